package provider

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/hrdesk/pkg/llm"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/ollama"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// New creates a generator for cfg.Provider.
// Returns an error if the provider type is not recognized.
func New(cfg Config) (llm.Generator, error) {
	name := strings.ToLower(cfg.Provider)
	apiKey := ResolveAPIKey(name, cfg.APIKey)

	switch name {
	case OpenAI, "":
		return openai.New(openai.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  cfg.HTTPClient,
		})
	case Anthropic:
		return anthropic.New(anthropic.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  cfg.HTTPClient,
		})
	case Ollama:
		return ollama.New(ollama.Config{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  cfg.HTTPClient,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", cfg.Provider, SupportedProviders())
	}
}
