package vector

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

// ErrConnection is returned when the vector store connection fails.
var ErrConnection = errors.New("vector store connection failed")

// CheckDimensions rejects a vector whose length differs from the index's.
func CheckDimensions(want uint, vec []float32) error {
	if uint(len(vec)) != want {
		return fmt.Errorf("%w: index has %d dimensions, got %d", errdefs.ErrDimensionMismatch, want, len(vec))
	}
	return nil
}

// CheckEntries validates a batch before it is written.
func CheckEntries(dims uint, entries []Entry) error {
	for i := range entries {
		e := &entries[i]
		if e.ID == "" || e.DocumentID == "" {
			return fmt.Errorf("%w: entry %d is missing its ID or document ID", errdefs.ErrInvalidInput, i)
		}
		if len(e.Metadata.VisibleTo) == 0 {
			return fmt.Errorf("%w: entry %s has no visible roles", errdefs.ErrInvalidInput, e.ID)
		}
		if err := CheckDimensions(dims, e.Embedding); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Unavailable marks a backend failure as retryable.
func Unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %w: %s: %w", errdefs.ErrTransient, ErrConnection, backend, err)
}
