package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent hrdesk configuration stored as config.toml
// in the .hrdesk/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Retry       RetryConfig       `toml:"retry"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the document registry. PostgresDSN wins over
// SQLitePath; with neither set the registry lives in .hrdesk/hrdesk.sqlite.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	// Provider is one of "sqlite", "inmemory", "chroma", "qdrant" or "pgvector".
	Provider string `toml:"provider,omitempty"`

	// Target is the sqlite file, chroma URL, qdrant host:port or pgvector DSN.
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `toml:"provider,omitempty"`
	Target            string  `toml:"target,omitempty"`
	Model             string  `toml:"model,omitempty"`
	Dimensions        uint    `toml:"dimensions,omitempty"`
	APIKey            string  `toml:"api_key,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

// LLMConfig holds answer generation settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`

	// Temperature is a pointer so that an explicit 0 survives default merging.
	Temperature *float64 `toml:"temperature,omitempty"`
	MaxTokens   int      `toml:"max_tokens,omitempty"`
}

// ChunkingConfig sizes the passages documents are split into, in runes.
type ChunkingConfig struct {
	Size    int `toml:"size,omitempty"`
	Overlap int `toml:"overlap,omitempty"`
}

// RetrievalConfig tunes question answering.
type RetrievalConfig struct {
	TopK            int `toml:"top_k,omitempty"`
	MaxContextChars int `toml:"max_context_chars,omitempty"`

	// CacheTTL is a Go duration string. "0s" disables the cache.
	CacheTTL string `toml:"cache_ttl,omitempty"`
}

// RetryConfig bounds calls to external services. Delays are Go duration strings.
type RetryConfig struct {
	MaxAttempts  int    `toml:"max_attempts,omitempty"`
	InitialDelay string `toml:"initial_delay,omitempty"`
	MaxDelay     string `toml:"max_delay,omitempty"`
	Timeout      string `toml:"timeout,omitempty"`
}

// EventStreamConfig configures document lifecycle event publishing.
type EventStreamConfig struct {
	// Provider is "kafka" or "none".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into its addresses.
func (e EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.api_key":    stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":  stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.requests_per_second": {
		get: func(c *Config) string {
			if c.Embedding.RequestsPerSecond == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Embedding.RequestsPerSecond, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.requests_per_second: %w", err)
			}
			c.Embedding.RequestsPerSecond = f
			return nil
		},
	},

	"llm.provider": stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":    stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.target":   stringKey(func(c *Config) *string { return &c.LLM.Target }),
	"llm.api_key":  stringKey(func(c *Config) *string { return &c.LLM.APIKey }),
	"llm.temperature": {
		get: func(c *Config) string {
			if c.LLM.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*c.LLM.Temperature, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for llm.temperature: %w", err)
			}
			if f < 0 || f > 2 {
				return fmt.Errorf("invalid value for llm.temperature: %v is outside [0, 2]", f)
			}
			c.LLM.Temperature = &f
			return nil
		},
	},
	"llm.max_tokens": intKey("llm.max_tokens", func(c *Config) *int { return &c.LLM.MaxTokens }),

	"chunking.size":    intKey("chunking.size", func(c *Config) *int { return &c.Chunking.Size }),
	"chunking.overlap": intKey("chunking.overlap", func(c *Config) *int { return &c.Chunking.Overlap }),

	"retrieval.top_k":             intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	"retrieval.max_context_chars": intKey("retrieval.max_context_chars", func(c *Config) *int { return &c.Retrieval.MaxContextChars }),
	"retrieval.cache_ttl":         durationKey("retrieval.cache_ttl", func(c *Config) *string { return &c.Retrieval.CacheTTL }),

	"retry.max_attempts":  intKey("retry.max_attempts", func(c *Config) *int { return &c.Retry.MaxAttempts }),
	"retry.initial_delay": durationKey("retry.initial_delay", func(c *Config) *string { return &c.Retry.InitialDelay }),
	"retry.max_delay":     durationKey("retry.max_delay", func(c *Config) *string { return &c.Retry.MaxDelay }),
	"retry.timeout":       durationKey("retry.timeout", func(c *Config) *string { return &c.Retry.Timeout }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// secretKeys are masked by config list.
var secretKeys = map[string]bool{
	"vector_store.api_key": true,
	"embedding.api_key":    true,
	"llm.api_key":          true,
	"storage.postgres_dsn": true,
}

// IsSecretKey reports whether key holds a credential that should not be echoed.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
