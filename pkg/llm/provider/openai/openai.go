// Package openai implements llm.Generator for OpenAI's Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/llm"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"
)

// Config configures the OpenAI generator.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Generator calls /v1/chat/completions.
type Generator struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// New creates an OpenAI generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai requires an API key (set OPENAI_API_KEY)")
	}
	g := &Generator{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  cfg.HTTPClient,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return g, nil
}

func (g *Generator) Name() string {
	return "openai"
}

// Chat sends req and returns the first choice.
func (g *Generator) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	body := openaiRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.Temperature == nil {
		body.Temperature = llm.Ptr(g.temperature)
	}
	if body.MaxTokens == nil && g.maxTokens > 0 {
		body.MaxTokens = llm.Ptr(g.maxTokens)
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openaiMessage{Role: m.Role, Content: m.GetText()})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, errdefs.FromTransport("openai", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.FromTransport("openai", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.FromHTTPStatus("openai", resp.StatusCode, respBody)
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal openai response: %w", errdefs.ErrTransient, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: openai error: %s", errdefs.ErrTransient, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", errdefs.ErrTransient)
	}

	choice := result.Choices[0]
	out := &llm.ChatResponse{
		Model:      result.Model,
		Message:    llm.NewTextMessage(choice.Message.Role, choice.Message.Content),
		StopReason: choice.FinishReason,
	}
	if result.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

var _ llm.Generator = (*Generator)(nil)
