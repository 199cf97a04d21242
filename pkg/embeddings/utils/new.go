// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/hrdesk/pkg/embeddings"
	"github.com/papercomputeco/hrdesk/pkg/embeddings/ollama"
	"github.com/papercomputeco/hrdesk/pkg/embeddings/openai"
	"github.com/papercomputeco/hrdesk/pkg/embeddings/resilient"
	"github.com/papercomputeco/hrdesk/pkg/retry"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   uint

	// RequestsPerSecond throttles calls to the provider. Zero disables it.
	RequestsPerSecond float64
	Retry             retry.Policy
	Logger            *slog.Logger
}

// NewEmbedder builds the configured provider wrapped in the resilient decorator.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		inner embeddings.Embedder
		err   error
	)

	switch o.ProviderType {
	case "ollama":
		inner, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		inner, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    o.TargetURL,
			APIKey:     o.APIKey,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	return resilient.New(inner, resilient.Config{
		RequestsPerSecond: o.RequestsPerSecond,
		Retry:             o.Retry,
	}, o.Logger), nil
}
