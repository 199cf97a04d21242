// Package storage persists Document records: what was uploaded, by whom, under
// which visibility policy, and how far ingestion got.
package storage

import (
	"context"

	"github.com/papercomputeco/hrdesk/pkg/document"
)

// Driver defines the interface for persisting and retrieving Document records
// in a storage backend. Chunk text and vectors live in the vector index; the
// Driver only holds the per-document bookkeeping.
type Driver interface {
	// Put inserts or replaces the record with the same ID.
	Put(ctx context.Context, doc *document.Document) error

	// Get retrieves a record by document ID. Returns NotFoundError if absent.
	Get(ctx context.Context, id string) (*document.Document, error)

	// List returns every record ordered by creation time, oldest first.
	List(ctx context.Context) ([]*document.Document, error)

	// Delete removes a record. Returns NotFoundError if absent.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
