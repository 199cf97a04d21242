// Package inmemory provides a map-backed storage driver for tests and
// ephemeral runs.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards docs
	mu sync.RWMutex

	// docs maps document ID to a private copy of its record
	docs map[string]document.Document
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]document.Document),
	}
}

// Put stores a copy of doc, replacing any record with the same ID.
func (s *Driver) Put(_ context.Context, doc *document.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}
	if doc.ID == "" {
		return errors.New("cannot store document without an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = clone(*doc)
	return nil
}

// Get retrieves a document record by ID.
func (s *Driver) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := clone(doc)
	return &out, nil
}

// List returns all records, oldest first.
func (s *Driver) List(_ context.Context) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*document.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		c := clone(doc)
		out = append(out, &c)
	}

	slices.SortFunc(out, func(a, b *document.Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete removes a record by ID.
func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(s.docs, id)
	return nil
}

// Close is a no-op.
func (s *Driver) Close() error {
	return nil
}

func clone(d document.Document) document.Document {
	d.Visibility.Allow = slices.Clone(d.Visibility.Allow)
	return d
}

var _ storage.Driver = (*Driver)(nil)
