// Package rag answers questions from the passages a role is allowed to see.
//
// Retrieval pushes the role filter into the vector index query, so passages a
// role cannot see never reach ranking, the prompt, or the logs. When nothing
// visible matches, the engine answers NoInformationAnswer without calling the
// model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/embeddings"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/llm"
	"github.com/papercomputeco/hrdesk/pkg/retry"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const (
	// DefaultTopK is the number of passages retrieved per question.
	DefaultTopK = 5

	// DefaultMaxContextChars bounds the context handed to the model.
	DefaultMaxContextChars = 8000

	maxTopK = 50
)

// Config wires the engine to its collaborators.
type Config struct {
	Vectors   vector.Driver
	Embedder  embeddings.Embedder
	Generator llm.Generator

	TopK            int
	MaxContextChars int

	// CacheTTL is how long retrieval results are reused. Negative disables
	// the cache; zero uses DefaultCacheTTL.
	CacheTTL time.Duration

	// Retry governs index searches and generation.
	Retry retry.Policy

	Logger *slog.Logger
}

// Engine answers queries.
type Engine struct {
	vectors   vector.Driver
	embedder  embeddings.Embedder
	generator llm.Generator

	topK       int
	maxContext int
	retry      retry.Policy
	cache      *retrievalCache
	logger     *slog.Logger
}

// New builds an Engine.
func New(c *Config) (*Engine, error) {
	if c.Vectors == nil || c.Embedder == nil || c.Generator == nil {
		return nil, errors.New("rag engine requires a vector driver, an embedder and a generator")
	}

	e := &Engine{
		vectors:    c.Vectors,
		embedder:   c.Embedder,
		generator:  c.Generator,
		topK:       c.TopK,
		maxContext: c.MaxContextChars,
		retry:      c.Retry,
		logger:     c.Logger,
	}
	if e.topK <= 0 {
		e.topK = DefaultTopK
	}
	if e.maxContext <= 0 {
		e.maxContext = DefaultMaxContextChars
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	ttl := c.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	e.cache = newRetrievalCache(ttl)

	return e, nil
}

// Answer retrieves the passages visible to q.Principal's role and asks the
// model to answer from them.
func (e *Engine) Answer(ctx context.Context, q Query) (*Answer, error) {
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", errdefs.ErrInvalidInput)
	}

	log := e.logger.With("role", q.Principal.Role.Slug())

	results, err := e.Retrieve(ctx, q.Principal.Role, q.Question, q.TopK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		log.Info("no visible passages for question")
		return noInformation(), nil
	}

	contextText, citations := BuildContext(results, e.maxContext)
	log.Debug("assembled context", "passages", len(results), "context_chars", len(contextText))

	// Stop before the model spends tokens on an abandoned question.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}

	req := &llm.ChatRequest{
		System:   SystemPrompt(),
		Messages: []llm.Message{llm.NewTextMessage("user", UserPrompt(contextText, q.Question))},
	}

	resp, err := retry.Value(ctx, e.retry, "generate answer", e.logger, func(ctx context.Context) (*llm.ChatResponse, error) {
		return e.generator.Chat(ctx, req)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("answering question: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrGeneration, e.generator.Name(), err)
	}

	text := strings.TrimSpace(resp.Message.GetText())
	if text == "" || IsNoInformation(text) {
		log.Info("model found no answer in visible passages", "passages", len(results))
		return noInformation(), nil
	}

	log.Info("answered question", "passages", len(results), "sources", len(citations))
	return &Answer{Text: text, Grounded: true, Citations: citations}, nil
}

// Retrieve returns up to topK passages visible to role, most similar first.
// A topK of zero uses the engine default.
func (e *Engine) Retrieve(ctx context.Context, role roles.Role, question string, topK int) ([]vector.Result, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %d", errdefs.ErrInvalidInput, int(role))
	}
	if topK <= 0 {
		topK = e.topK
	}
	topK = min(topK, maxTopK)

	key := cacheKey{role: role, topK: topK, question: strings.TrimSpace(question)}
	if cached, ok := e.cache.get(key); ok {
		e.logger.Debug("retrieval cache hit", "role", role.Slug())
		return cached, nil
	}

	epoch := e.cache.current()

	vec, err := e.embedder.Embed(ctx, key.question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	filter := vector.ForRole(role)
	results, err := retry.Value(ctx, e.retry, "search index", e.logger, func(ctx context.Context) ([]vector.Result, error) {
		return e.vectors.Search(ctx, vec, topK, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	if e.cache != nil && !e.cache.put(epoch, key, results) {
		e.logger.Debug("index changed during retrieval, not caching", "role", role.Slug())
	}
	return results, nil
}

// Purge drops cached retrievals. Call it after the index changes.
func (e *Engine) Purge() {
	e.cache.purge()
}
