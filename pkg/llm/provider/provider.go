// Package provider builds llm.Generator clients for the supported chat APIs.
package provider

import (
	"net/http"
	"os"
	"strings"
)

// Config selects and configures a generator.
type Config struct {
	// Provider is "openai", "anthropic" or "ollama".
	Provider string

	// Model defaults per provider.
	Model string

	// APIKey falls back to the provider's environment variable.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Temperature is sent with every request.
	Temperature float64

	// MaxTokens bounds the completion. Zero uses the provider default.
	MaxTokens int

	HTTPClient *http.Client
}

// ResolveAPIKey returns cfg.APIKey or the provider's conventional
// environment variable.
func ResolveAPIKey(provider, apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	switch strings.ToLower(provider) {
	case Anthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case OpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
