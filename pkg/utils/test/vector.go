package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// FaultyVectorDriver wraps a real driver and injects failures.
type FaultyVectorDriver struct {
	vector.Driver

	// FailUpsertAfter makes every Upsert call after the first N fail with
	// UpsertErr. Negative disables.
	FailUpsertAfter int
	UpsertErr       error

	// OnUpsert, if set, runs before each Upsert with its zero-based call number.
	OnUpsert func(n int)

	// SearchErr is returned by every Search when set.
	SearchErr error

	// AfterSearch, if set, runs once the inner driver has answered a Search
	// and before its results are returned.
	AfterSearch func()

	// DeleteErr is returned by DeleteByDocument when set.
	DeleteErr error

	mu            sync.Mutex
	upserts       int
	searches      int
	deletedDocs   []string
	lastSearchTop int
}

// NewFaultyVectorDriver wraps inner with all faults disabled.
func NewFaultyVectorDriver(inner vector.Driver) *FaultyVectorDriver {
	return &FaultyVectorDriver{Driver: inner, FailUpsertAfter: -1}
}

func (f *FaultyVectorDriver) Upsert(ctx context.Context, entries []vector.Entry) error {
	f.mu.Lock()
	n := f.upserts
	f.upserts++
	f.mu.Unlock()

	if f.OnUpsert != nil {
		f.OnUpsert(n)
	}
	if f.FailUpsertAfter >= 0 && n >= f.FailUpsertAfter {
		return f.UpsertErr
	}
	return f.Driver.Upsert(ctx, entries)
}

func (f *FaultyVectorDriver) Search(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	f.mu.Lock()
	f.searches++
	f.lastSearchTop = topK
	f.mu.Unlock()

	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	results, err := f.Driver.Search(ctx, vec, topK, filter)
	if f.AfterSearch != nil {
		f.AfterSearch()
	}
	return results, err
}

func (f *FaultyVectorDriver) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	f.deletedDocs = append(f.deletedDocs, documentID)
	f.mu.Unlock()

	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Driver.DeleteByDocument(ctx, documentID)
}

// Searches returns how many Search calls reached the driver.
func (f *FaultyVectorDriver) Searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

// Upserts returns how many Upsert calls were attempted.
func (f *FaultyVectorDriver) Upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

// DeletedDocuments returns the document IDs passed to DeleteByDocument.
func (f *FaultyVectorDriver) DeletedDocuments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedDocs...)
}
