package config

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/hrdesk/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .hrdesk/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"vector_store.provider",
		"vector_store.target",
		"vector_store.collection",
		"vector_store.api_key",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"embedding.api_key",
		"embedding.requests_per_second",
		"llm.provider",
		"llm.model",
		"llm.target",
		"llm.api_key",
		"llm.temperature",
		"llm.max_tokens",
		"chunking.size",
		"chunking.overlap",
		"retrieval.top_k",
		"retrieval.max_context_chars",
		"retrieval.cache_ttl",
		"retry.max_attempts",
		"retry.initial_delay",
		"retry.max_delay",
		"retry.timeout",
		"eventstream.provider",
		"eventstream.brokers",
		"eventstream.topic",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .hrdesk/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	cfg.Version = cmp.Or(cfg.Version, d.Version)

	cfg.VectorStore.Provider = cmp.Or(cfg.VectorStore.Provider, d.VectorStore.Provider)
	cfg.VectorStore.Collection = cmp.Or(cfg.VectorStore.Collection, d.VectorStore.Collection)

	cfg.Embedding.Provider = cmp.Or(cfg.Embedding.Provider, d.Embedding.Provider)
	cfg.Embedding.Target = cmp.Or(cfg.Embedding.Target, d.Embedding.Target)
	cfg.Embedding.Model = cmp.Or(cfg.Embedding.Model, d.Embedding.Model)
	cfg.Embedding.Dimensions = cmp.Or(cfg.Embedding.Dimensions, d.Embedding.Dimensions)

	cfg.LLM.Provider = cmp.Or(cfg.LLM.Provider, d.LLM.Provider)
	cfg.LLM.Model = cmp.Or(cfg.LLM.Model, d.LLM.Model)
	cfg.LLM.Target = cmp.Or(cfg.LLM.Target, d.LLM.Target)
	if cfg.LLM.Temperature == nil {
		cfg.LLM.Temperature = d.LLM.Temperature
	}

	cfg.Chunking.Size = cmp.Or(cfg.Chunking.Size, d.Chunking.Size)
	cfg.Chunking.Overlap = cmp.Or(cfg.Chunking.Overlap, d.Chunking.Overlap)

	cfg.Retrieval.TopK = cmp.Or(cfg.Retrieval.TopK, d.Retrieval.TopK)
	cfg.Retrieval.MaxContextChars = cmp.Or(cfg.Retrieval.MaxContextChars, d.Retrieval.MaxContextChars)
	cfg.Retrieval.CacheTTL = cmp.Or(cfg.Retrieval.CacheTTL, d.Retrieval.CacheTTL)

	cfg.Retry.MaxAttempts = cmp.Or(cfg.Retry.MaxAttempts, d.Retry.MaxAttempts)
	cfg.Retry.InitialDelay = cmp.Or(cfg.Retry.InitialDelay, d.Retry.InitialDelay)
	cfg.Retry.MaxDelay = cmp.Or(cfg.Retry.MaxDelay, d.Retry.MaxDelay)
	cfg.Retry.Timeout = cmp.Or(cfg.Retry.Timeout, d.Retry.Timeout)

	cfg.EventStream.Provider = cmp.Or(cfg.EventStream.Provider, d.EventStream.Provider)
	cfg.EventStream.Topic = cmp.Or(cfg.EventStream.Topic, d.EventStream.Topic)
}

// SaveConfig persists the configuration to config.toml in the target .hrdesk/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named provider preset.
// Supported presets: "openai", "anthropic", "ollama".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		return cfg, nil

	case "anthropic":
		// Anthropic has no embeddings API; passages are still embedded by OpenAI.
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.Model = "claude-haiku-4-5-20251001"
		cfg.LLM.Target = "https://api.anthropic.com"
		return cfg, nil

	case "ollama":
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "llama3.2"
		cfg.LLM.Target = "http://localhost:11434"
		cfg.Embedding = EmbeddingConfig{
			Provider:   "ollama",
			Target:     "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: openai, anthropic, ollama)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// Validate rejects settings that no component could run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embedding.Dimensions == 0 {
		return errors.New("embedding.dimensions must be set")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if _, err := c.RetryPolicy(); err != nil {
		return err
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.EventStream.Provider == "kafka" && len(c.EventStream.BrokerList()) == 0 {
		return errors.New("eventstream.brokers must be set for the kafka provider")
	}
	return nil
}
