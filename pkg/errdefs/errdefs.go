// Package errdefs defines the error taxonomy shared by the ingestion, retrieval
// and lifecycle packages.
//
// Callers inspect errors with errors.Is against the sentinels below. The split
// that matters to a calling layer is "you are not allowed" (ErrPermissionDenied)
// versus "try again later" (IsRetryable / IsUnavailable) versus caller misuse.
package errdefs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the acting role lacks the capability
	// for an operation. Never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDimensionMismatch is returned when an embedding's length differs from
	// the dimension the vector index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidInput is returned for caller misuse, e.g. text exceeding a
	// provider's size limit or nonsensical chunking parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyInput is returned when a document has no text to index.
	ErrEmptyInput = errors.New("empty input")

	// ErrRateLimited is returned when an external provider throttled the call.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient is returned for retryable provider failures (5xx, timeouts,
	// dropped connections).
	ErrTransient = errors.New("transient service error")

	// ErrServiceUnavailable is returned once the retry budget for a retryable
	// failure is exhausted.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrGeneration is returned when the LLM could not produce an answer.
	// It is retryable from the caller's perspective.
	ErrGeneration = errors.New("generation failed")

	// ErrNotFound is returned when a document record does not exist.
	ErrNotFound = errors.New("not found")
)

// IsRetryable reports whether err is worth another attempt with backoff.
// Context cancellation by the caller is never retryable; a deadline hit by a
// single attempt is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsPermission reports whether err denies the operation for the acting role.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsUnavailable reports whether err means the system is temporarily unable to
// serve the request and the user may retry later.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrGeneration) ||
		IsRetryable(err)
}

// StageError records the ingestion stage at which a document failed.
type StageError struct {
	DocumentID string
	Stage      string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingesting document %s failed at stage %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PermissionDenied builds an ErrPermissionDenied with the role and action that
// were refused.
func PermissionDenied(role, action string) error {
	return fmt.Errorf("%w: role %q may not %s", ErrPermissionDenied, role, action)
}
