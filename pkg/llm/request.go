package llm

// ChatRequest represents a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model overrides the generator's configured model when set.
	Model string `json:"model,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
