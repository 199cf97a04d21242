package rag

import "github.com/papercomputeco/hrdesk/pkg/roles"

// NoInformationAnswer is returned when nothing visible to the asker is
// relevant, and is the sentence the model is told to reply with when the
// supplied context does not cover the question.
const NoInformationAnswer = "I'm sorry, I don't have access to that information or it's not covered in the available HR documents."

// Query is one question from an already-authenticated principal.
type Query struct {
	Principal roles.Principal
	Question  string

	// TopK overrides the engine's default number of passages.
	TopK int
}

// Citation names a document whose passages were given to the model.
type Citation struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// Answer is the engine's reply.
type Answer struct {
	Text string `json:"text"`

	// Grounded is false when no visible passage supported an answer.
	Grounded bool `json:"grounded"`

	// Citations lists source documents, most relevant first.
	Citations []Citation `json:"citations,omitempty"`
}

// SourceIDs returns the identifiers of the cited documents.
func (a *Answer) SourceIDs() []string {
	ids := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		ids = append(ids, c.DocumentID)
	}
	return ids
}

func noInformation() *Answer {
	return &Answer{Text: NoInformationAnswer}
}
