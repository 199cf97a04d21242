package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/llm"
)

// MockGenerator returns a canned reply and records every request.
type MockGenerator struct {
	Reply string

	// Errs are returned by successive calls before Reply is used.
	Errs []error

	mu       sync.Mutex
	requests []*llm.ChatRequest
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

func (m *MockGenerator) Name() string {
	return "mock"
}

func (m *MockGenerator) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if n <= len(m.Errs) && m.Errs[n-1] != nil {
		return nil, m.Errs[n-1]
	}
	return &llm.ChatResponse{
		Model:      "mock-model",
		Message:    llm.NewTextMessage("assistant", m.Reply),
		StopReason: "stop",
	}, nil
}

// Requests returns the requests received so far.
func (m *MockGenerator) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.requests...)
}

var _ llm.Generator = (*MockGenerator)(nil)
