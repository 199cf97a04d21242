// Package anthropic implements llm.Generator for Anthropic's Messages API.
package anthropic

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
	DefaultModel = "claude-haiku-4-5-20251001"

	// DefaultBaseURL is the Anthropic API URL.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultMaxTokens is required by the API; answers are short.
	DefaultMaxTokens = 1024

	apiVersion = "2023-06-01"
)

// Config configures the Anthropic generator.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Generator calls /v1/messages.
type Generator struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// New creates an Anthropic generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic requires an API key (set ANTHROPIC_API_KEY)")
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
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return g, nil
}

func (g *Generator) Name() string {
	return "anthropic"
}

// Chat sends req with the system prompt in the top-level system field.
func (g *Generator) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := anthropicRequest{
		Model:       req.Model,
		System:      req.System,
		MaxTokens:   g.maxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = g.model
	}
	if req.MaxTokens != nil {
		body.MaxTokens = *req.MaxTokens
	}
	if body.Temperature == nil {
		body.Temperature = llm.Ptr(g.temperature)
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.GetText()})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, errdefs.FromTransport("anthropic", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.FromTransport("anthropic", err)
	}
	// 529 is Anthropic's "overloaded" status, covered by the 5xx rule.
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.FromHTTPStatus("anthropic", resp.StatusCode, respBody)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal anthropic response: %w", errdefs.ErrTransient, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: anthropic error: %s", errdefs.ErrTransient, result.Error.Message)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("%w: anthropic returned no content", errdefs.ErrTransient)
	}

	msg := llm.Message{Role: "assistant"}
	for _, block := range result.Content {
		if block.Type == "text" {
			msg.Content = append(msg.Content, llm.ContentBlock{Type: "text", Text: block.Text})
		}
	}

	out := &llm.ChatResponse{
		Model:      result.Model,
		Message:    msg,
		StopReason: result.StopReason,
	}
	if result.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		}
	}
	return out, nil
}

var _ llm.Generator = (*Generator)(nil)
