package testutils

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
//
// Unless a text has an explicit entry in Embeddings, its vector is a hashed
// bag of lowercase words, so texts that share words are similar.
type MockEmbedder struct {
	Dims       int
	Embeddings map[string][]float32

	// FailOn causes Embed to return Err when the input text matches.
	FailOn string

	// Err is returned for FailOn matches, or for every call when FailOn is empty.
	Err error

	// Gate, if set, holds every call until it is closed or ctx is done.
	Gate chan struct{}

	mu         sync.Mutex
	calls      int
	batchCalls int
}

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Dims:       dims,
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.embed(text)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		emb, err := m.embed(t)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

func (m *MockEmbedder) wait(ctx context.Context) error {
	if m.Gate == nil {
		return nil
	}
	select {
	case <-m.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockEmbedder) embed(text string) ([]float32, error) {
	if m.Err != nil && (m.FailOn == "" || text == m.FailOn) {
		return nil, m.Err
	}
	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return HashEmbedding(text, m.Dims), nil
}

// Calls returns how many single and batch calls were made.
func (m *MockEmbedder) Calls() (single, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.batchCalls
}

func (m *MockEmbedder) Close() error {
	return nil
}

// HashEmbedding folds the words of text into a unit vector of length dims.
func HashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%dims]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
