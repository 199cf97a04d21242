// Package retry runs calls that cross a network boundary under a bounded
// exponential backoff policy with a per-attempt timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultTimeout      = 30 * time.Second
)

// Policy bounds how a retryable operation is attempted.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. It doubles on every
	// further attempt up to MaxDelay.
	InitialDelay time.Duration

	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration

	// Timeout bounds each individual attempt. Zero leaves attempts unbounded
	// beyond the caller's context.
	Timeout time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Timeout:      DefaultTimeout,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Exhaustion is reported as ErrServiceUnavailable
// wrapping the last failure.
func Do(ctx context.Context, p Policy, op string, logger *slog.Logger, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, op, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op string, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T

	for attempt := 1; ; attempt++ {
		v, err := runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%s: %w", op, ctxErr)
		}

		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, errdefs.ErrTransient) {
			err = fmt.Errorf("%w: %s timed out after %s: %w", errdefs.ErrTransient, op, p.Timeout, err)
		}

		if !errdefs.IsRetryable(err) {
			return zero, err
		}

		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("%w: %s failed after %d attempts: %w",
				errdefs.ErrServiceUnavailable, op, attempt, err)
		}

		delay := p.Backoff(attempt)
		if logger != nil {
			logger.Warn("retrying after retryable failure",
				"op", op,
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"delay", delay,
				"error", err,
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
