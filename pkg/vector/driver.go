// Package vector provides interfaces and implementations for the chunk index:
// embedded passages tagged with the roles allowed to retrieve them.
package vector

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/papercomputeco/hrdesk/pkg/roles"
)

// Metadata is the per-entry payload that travels with a chunk.
type Metadata struct {
	// Filename is the uploaded file the chunk came from.
	Filename string

	// VisibleTo lists every role allowed to retrieve the chunk. Never empty
	// for an indexed entry.
	VisibleTo []roles.Role
}

// Entry is one indexed chunk.
type Entry struct {
	// ID is unique across the index. See ChunkID.
	ID string

	// DocumentID is the owning document.
	DocumentID string

	// Sequence is the chunk's position in its document, contiguous from 0.
	Sequence int

	// Text is the chunk content.
	Text string

	// Embedding has exactly Driver.Dimensions() components.
	Embedding []float32

	Metadata Metadata
}

// Result is a search hit.
type Result struct {
	Entry

	// Score is the cosine similarity to the query vector (higher = more similar).
	Score float32
}

// Filter restricts which entries a search or listing may return. The zero
// value is unrestricted.
type Filter struct {
	// Role, when set, limits results to entries visible to that role.
	Role *roles.Role

	// DocumentID, when set, limits results to one document.
	DocumentID string
}

// ForRole is the filter every question is answered under.
func ForRole(r roles.Role) Filter {
	return Filter{Role: &r}
}

// Match reports whether e passes the filter. Backends that cannot push a
// filter into their query language evaluate it with Match during the scan.
func (f Filter) Match(e *Entry) bool {
	if f.DocumentID != "" && e.DocumentID != f.DocumentID {
		return false
	}
	if f.Role != nil && !slices.Contains(e.Metadata.VisibleTo, *f.Role) {
		return false
	}
	return true
}

// ChunkID derives the index ID of a document's chunk. Re-ingesting a document
// reproduces the same IDs, so upserts overwrite in place.
func ChunkID(documentID string, sequence int) string {
	return fmt.Sprintf("%s_%d", documentID, sequence)
}

// SortBySequence orders a document's entries by chunk position.
func SortBySequence(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
}

// Driver handles storage and retrieval of chunk embeddings.
type Driver interface {
	// Upsert stores entries. An entry whose ID already exists is replaced.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns at most topK entries passing filter, ordered by
	// descending cosine similarity to vec. The filter is applied before
	// ranking, so a restricted role never displaces its own results with
	// ones it cannot see.
	Search(ctx context.Context, vec []float32, topK int, filter Filter) ([]Result, error)

	// DeleteByDocument removes every entry belonging to documentID. Deleting
	// a document with no entries is not an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Delete removes entries by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// ListDocument returns a document's entries ordered by Sequence.
	ListDocument(ctx context.Context, documentID string) ([]Entry, error)

	// Dimensions is the embedding length the index was created with.
	Dimensions() uint

	// Close releases any resources held by the driver.
	Close() error
}
