// Package resilient decorates an Embedder with client-side throttling and
// bounded retries so providers see a steady request rate and transient
// failures do not abort a whole ingestion.
package resilient

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/hrdesk/pkg/embeddings"
	"github.com/papercomputeco/hrdesk/pkg/retry"
)

// Config controls the decorator.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the token bucket size. Defaults to 1 when throttling is on.
	Burst int

	// Retry bounds attempts and per-attempt timeouts.
	Retry retry.Policy
}

// Embedder wraps another Embedder.
type Embedder struct {
	inner   embeddings.Embedder
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

// New wraps inner.
func New(inner embeddings.Embedder, cfg Config, logger *slog.Logger) *Embedder {
	e := &Embedder{
		inner:  inner,
		policy: cfg.Retry,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return e
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry.Value(ctx, e.policy, "embed", e.logger, func(ctx context.Context) ([]float32, error) {
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		return e.inner.Embed(ctx, text)
	})
}

// EmbedBatch converts texts into embeddings in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.Value(ctx, e.policy, "embed batch", e.logger, func(ctx context.Context) ([][]float32, error) {
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		return e.inner.EmbedBatch(ctx, texts)
	})
}

// Close closes the wrapped embedder.
func (e *Embedder) Close() error {
	return e.inner.Close()
}

func (e *Embedder) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

var _ embeddings.Embedder = (*Embedder)(nil)
