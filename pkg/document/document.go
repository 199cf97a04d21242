// Package document defines the uploaded Document record and the stages of its
// ingestion lifecycle.
package document

import (
	"time"

	"github.com/papercomputeco/hrdesk/pkg/roles"
)

// Stage is a state of the per-document ingestion state machine.
type Stage string

const (
	StageReceived Stage = "received"
	StageLoaded   Stage = "loaded"
	StageChunked  Stage = "chunked"
	StageEmbedded Stage = "embedded"
	StageIndexed  Stage = "indexed"
	StageFailed   Stage = "failed"
)

// Terminal reports whether no further transition may happen from s.
func (s Stage) Terminal() bool {
	return s == StageIndexed || s == StageFailed
}

// next maps each non-terminal stage to its successor on success.
var next = map[Stage]Stage{
	StageReceived: StageLoaded,
	StageLoaded:   StageChunked,
	StageChunked:  StageEmbedded,
	StageEmbedded: StageIndexed,
}

// Next returns the stage that follows s on success, and false for terminal stages.
func (s Stage) Next() (Stage, bool) {
	n, ok := next[s]
	return n, ok
}

// Document is one uploaded file. It is created on upload, advanced through the
// ingestion stages, and otherwise immutable until it is deleted. There is no
// expiry: an indexed document stays queryable until explicitly removed.
type Document struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	SourceFormat string       `json:"source_format"`
	UploadedBy   roles.Role   `json:"uploaded_by"`
	UploaderID   string       `json:"uploader_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Visibility   roles.Policy `json:"visibility"`
	ChunkCount   int          `json:"chunk_count"`
	Stage        Stage        `json:"stage"`

	// FailedStage and FailureCause are set only when Stage is StageFailed.
	FailedStage  Stage  `json:"failed_stage,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
}

// Advance moves d to its next stage. It is a no-op on terminal stages.
func (d *Document) Advance() Stage {
	if n, ok := d.Stage.Next(); ok {
		d.Stage = n
	}
	return d.Stage
}

// Fail marks d as failed while attempting stage at.
func (d *Document) Fail(at Stage, cause error) {
	d.FailedStage = at
	d.Stage = StageFailed
	if cause != nil {
		d.FailureCause = cause.Error()
	}
}

// VisibleTo reports whether role may retrieve passages from d.
func (d *Document) VisibleTo(role roles.Role) bool {
	return roles.VisibleTo(role, d.Visibility)
}
