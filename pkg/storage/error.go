package storage

import "github.com/papercomputeco/hrdesk/pkg/errdefs"

// NotFoundError is returned when a document record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "document not found"
	}

	return "document not found: " + e.ID
}

// Is lets errors.Is(err, errdefs.ErrNotFound) match.
func (e NotFoundError) Is(target error) bool {
	return target == errdefs.ErrNotFound
}
