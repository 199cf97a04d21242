package config

import (
	"fmt"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/chunker"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/kafka"
	"github.com/papercomputeco/hrdesk/pkg/rag"
	"github.com/papercomputeco/hrdesk/pkg/retry"
)

const (
	defaultVectorProvider = "sqlite"
	defaultCollection     = "hrdesk"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingTarget     = "https://api.openai.com"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultEmbeddingDimensions = 1536

	defaultLLMProvider    = "openai"
	defaultLLMModel       = "gpt-4o-mini"
	defaultLLMTarget      = "https://api.openai.com"
	defaultLLMTemperature = 0.3

	defaultEventStreamProvider = "none"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	temperature := defaultLLMTemperature
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider:    defaultLLMProvider,
			Model:       defaultLLMModel,
			Target:      defaultLLMTarget,
			Temperature: &temperature,
		},
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultChunkSize,
			Overlap: chunker.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK:            rag.DefaultTopK,
			MaxContextChars: rag.DefaultMaxContextChars,
			CacheTTL:        rag.DefaultCacheTTL.String(),
		},
		Retry: RetryConfig{
			MaxAttempts:  retry.DefaultMaxAttempts,
			InitialDelay: retry.DefaultInitialDelay.String(),
			MaxDelay:     retry.DefaultMaxDelay.String(),
			Timeout:      retry.DefaultTimeout.String(),
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    kafka.DefaultTopic,
		},
	}
}

// RetryPolicy parses the retry section.
func (c *Config) RetryPolicy() (retry.Policy, error) {
	p := retry.Policy{MaxAttempts: c.Retry.MaxAttempts}

	var err error
	if p.InitialDelay, err = parseDuration("retry.initial_delay", c.Retry.InitialDelay); err != nil {
		return retry.Policy{}, err
	}
	if p.MaxDelay, err = parseDuration("retry.max_delay", c.Retry.MaxDelay); err != nil {
		return retry.Policy{}, err
	}
	if p.Timeout, err = parseDuration("retry.timeout", c.Retry.Timeout); err != nil {
		return retry.Policy{}, err
	}
	return p, nil
}

// CacheTTL parses retrieval.cache_ttl. An explicit zero disables the cache,
// which the engine expresses as a negative TTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Retrieval.CacheTTL == "" {
		return rag.DefaultCacheTTL, nil
	}
	ttl, err := parseDuration("retrieval.cache_ttl", c.Retrieval.CacheTTL)
	if err != nil {
		return 0, err
	}
	if ttl == 0 {
		return -1, nil
	}
	return ttl, nil
}

// TemperatureValue returns the configured temperature or the default.
func (c *Config) TemperatureValue() float64 {
	if c.LLM.Temperature == nil {
		return defaultLLMTemperature
	}
	return *c.LLM.Temperature
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}
