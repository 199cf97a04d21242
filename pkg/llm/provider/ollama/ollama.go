// Package ollama implements llm.Generator for Ollama's chat API.
package ollama

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
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Config configures the Ollama generator.
type Config struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Generator calls /api/chat without streaming.
type Generator struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// New creates an Ollama generator.
func New(cfg Config) (*Generator, error) {
	g := &Generator{
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
		g.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return g, nil
}

func (g *Generator) Name() string {
	return "ollama"
}

// Chat sends req to /api/chat.
func (g *Generator) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := ollamaRequest{
		Model:  req.Model,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if body.Model == "" {
		body.Model = g.model
	}
	if body.Options.Temperature == nil {
		body.Options.Temperature = llm.Ptr(g.temperature)
	}
	if body.Options.NumPredict == nil && g.maxTokens > 0 {
		body.Options.NumPredict = llm.Ptr(g.maxTokens)
	}
	if req.System != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaMessage{Role: m.Role, Content: m.GetText()})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, errdefs.FromTransport("ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.FromTransport("ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.FromHTTPStatus("ollama", resp.StatusCode, respBody)
	}

	var result ollamaResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal ollama response: %w", errdefs.ErrTransient, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: ollama error: %s", errdefs.ErrTransient, result.Error)
	}

	return &llm.ChatResponse{
		Model:      result.Model,
		Message:    llm.NewTextMessage("assistant", result.Message.Content),
		StopReason: result.DoneReason,
		Usage: &llm.Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
	}, nil
}

var _ llm.Generator = (*Generator)(nil)
