package llm

import "context"

// Generator produces a completion for a chat request.
type Generator interface {
	// Name returns the canonical provider name (e.g., "openai").
	Name() string

	// Chat sends the request and waits for the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Ptr returns a pointer to v, for optional request parameters.
func Ptr[T any](v T) *T {
	return &v
}
