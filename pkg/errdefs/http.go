package errdefs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FromHTTPStatus classifies a non-2xx provider response. Throttling and server
// side failures are retryable; any other client error is caller misuse.
func FromHTTPStatus(provider string, status int, body []byte) error {
	msg := fmt.Sprintf("%s returned status %d: %s", provider, status, truncate(body, 512))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: %s", ErrTransient, msg)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	}
}

// FromTransport classifies an error returned by http.Client.Do. Timeouts and
// dropped connections are transient; caller cancellation passes through.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s request: %w", ErrTransient, provider, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
