// Package inmemory provides a brute-force vector driver for tests and
// single-process runs.
package inmemory

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// Driver implements vector.Driver with a map scanned on every search.
type Driver struct {
	dims   uint
	logger *slog.Logger

	// mu guards entries
	mu      sync.RWMutex
	entries map[string]vector.Entry
}

// NewDriver creates an empty index for vectors of the given dimension.
func NewDriver(dims uint, logger *slog.Logger) *Driver {
	return &Driver{
		dims:    dims,
		logger:  logger,
		entries: make(map[string]vector.Entry),
	}
}

// Upsert stores entries, replacing any with the same ID. The batch is applied
// all or nothing.
func (d *Driver) Upsert(_ context.Context, entries []vector.Entry) error {
	if err := vector.CheckEntries(d.dims, entries); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range entries {
		d.entries[e.ID] = clone(e)
	}
	return nil
}

// Search scans every entry, dropping those the filter rejects before ranking.
func (d *Driver) Search(_ context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	if err := vector.CheckDimensions(d.dims, vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	results := make([]vector.Result, 0, len(d.entries))
	for id := range d.entries {
		e := d.entries[id]
		if !filter.Match(&e) {
			continue
		}
		results = append(results, vector.Result{
			Entry: clone(e),
			Score: vector.Cosine(vec, e.Embedding),
		})
	}
	d.mu.RUnlock()

	slices.SortFunc(results, func(a, b vector.Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(results) > topK {
		results = results[:topK]
	}

	d.logger.Debug("searched in-memory index", "results", len(results))
	return results, nil
}

// DeleteByDocument removes every entry of documentID.
func (d *Driver) DeleteByDocument(_ context.Context, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, e := range d.entries {
		if e.DocumentID == documentID {
			delete(d.entries, id)
		}
	}
	return nil
}

// Delete removes entries by ID.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		delete(d.entries, id)
	}
	return nil
}

// ListDocument returns documentID's entries ordered by sequence.
func (d *Driver) ListDocument(_ context.Context, documentID string) ([]vector.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []vector.Entry
	for _, e := range d.entries {
		if e.DocumentID == documentID {
			out = append(out, clone(e))
		}
	}
	vector.SortBySequence(out)
	return out, nil
}

// Len is the number of stored entries.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Dimensions is the configured embedding length.
func (d *Driver) Dimensions() uint {
	return d.dims
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func clone(e vector.Entry) vector.Entry {
	e.Embedding = slices.Clone(e.Embedding)
	e.Metadata.VisibleTo = slices.Clone(e.Metadata.VisibleTo)
	return e
}

var _ vector.Driver = (*Driver)(nil)
