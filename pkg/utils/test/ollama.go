package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
)

// FakeOllama is an httptest server speaking enough of the Ollama API for the
// embedding and chat providers: /api/embed returns HashEmbedding vectors and
// /api/chat always replies with Reply.
type FakeOllama struct {
	*httptest.Server

	Dims  int
	Reply string

	chats atomic.Int64
}

// NewFakeOllama starts the server. Callers Close it.
func NewFakeOllama(dims int, reply string) *FakeOllama {
	f := &FakeOllama{Dims: dims, Reply: reply}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vecs[i] = HashEmbedding(text, f.Dims)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, _ *http.Request) {
		f.chats.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":       "fake",
			"message":     map[string]string{"role": "assistant", "content": f.Reply},
			"done":        true,
			"done_reason": "stop",
		})
	})

	f.Server = httptest.NewServer(mux)
	return f
}

// Chats reports how many chat completions were served.
func (f *FakeOllama) Chats() int {
	return int(f.chats.Load())
}

// Flags returns the command line pointing embeddings and chat at the server.
func (f *FakeOllama) Flags() []string {
	return []string{
		"--embedding-provider", "ollama",
		"--embedding-target", f.URL,
		"--embedding-dimensions", strconv.Itoa(f.Dims),
		"--llm-provider", "ollama",
		"--llm-target", f.URL,
	}
}
