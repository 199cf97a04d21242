package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/hrdesk/pkg/document"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIndexed is emitted once every chunk of a document is
	// searchable.
	EventTypeDocumentIndexed = "hrdesk.document.indexed"

	// EventTypeDocumentFailed is emitted when ingestion stops at a stage.
	EventTypeDocumentFailed = "hrdesk.document.failed"

	// EventTypeDocumentDeleted is emitted after a document and all of its
	// chunks are removed.
	EventTypeDocumentDeleted = "hrdesk.document.deleted"
)

// DocumentEvent is a transport-neutral event payload for a document lifecycle
// transition. It carries bookkeeping only, never document text.
type DocumentEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Actor         EventActor   `json:"actor"`
	Document      DocumentMeta `json:"document"`
}

// EventActor identifies who triggered the transition.
type EventActor struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role"`
}

// DocumentMeta captures the document's state at the time of the event.
type DocumentMeta struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	FailedStage string   `json:"failed_stage,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	ChunkCount  int      `json:"chunk_count"`
	VisibleTo   []string `json:"visible_to,omitempty"`
}

// NewDocumentEvent builds an event of the given type from doc.
func NewDocumentEvent(eventType string, actorID, actorRole string, doc *document.Document) *DocumentEvent {
	ev := &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Actor:         EventActor{UserID: actorID, Role: actorRole},
	}
	if doc == nil {
		return ev
	}

	ev.Document = DocumentMeta{
		ID:          doc.ID,
		Filename:    doc.Filename,
		Stage:       string(doc.Stage),
		FailedStage: string(doc.FailedStage),
		Cause:       doc.FailureCause,
		ChunkCount:  doc.ChunkCount,
	}
	for _, r := range doc.Visibility.Resolve() {
		ev.Document.VisibleTo = append(ev.Document.VisibleTo, r.Slug())
	}
	return ev
}
