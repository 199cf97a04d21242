package chroma

import (
	"slices"

	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// encodeMetadata flattens an entry's payload. Chroma metadata values are
// scalars, so visibility becomes one boolean per role.
func encodeMetadata(e *vector.Entry) map[string]any {
	m := map[string]any{
		metaDocumentID: e.DocumentID,
		metaSequence:   e.Sequence,
		metaFilename:   e.Metadata.Filename,
	}
	for _, r := range roles.All() {
		m[roleKey(r)] = slices.Contains(e.Metadata.VisibleTo, r)
	}
	return m
}

func decodeMetadata(m map[string]any, e *vector.Entry) {
	if m == nil {
		return
	}
	if v, ok := m[metaDocumentID].(string); ok {
		e.DocumentID = v
	}
	if v, ok := m[metaSequence].(float64); ok {
		e.Sequence = int(v)
	}
	if v, ok := m[metaFilename].(string); ok {
		e.Metadata.Filename = v
	}
	e.Metadata.VisibleTo = nil
	for _, r := range roles.All() {
		if v, ok := m[roleKey(r)].(bool); ok && v {
			e.Metadata.VisibleTo = append(e.Metadata.VisibleTo, r)
		}
	}
}

// whereClause translates a filter into Chroma's where syntax. Chroma rejects
// an $and with a single operand, so lone conditions are sent bare.
func whereClause(f vector.Filter) map[string]any {
	var conds []map[string]any
	if f.Role != nil {
		conds = append(conds, map[string]any{roleKey(*f.Role): map[string]any{"$eq": true}})
	}
	if f.DocumentID != "" {
		conds = append(conds, map[string]any{metaDocumentID: map[string]any{"$eq": f.DocumentID}})
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		operands := make([]any, len(conds))
		for i, c := range conds {
			operands[i] = c
		}
		return map[string]any{"$and": operands}
	}
}
