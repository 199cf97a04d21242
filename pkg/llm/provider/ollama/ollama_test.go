package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/llm"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/ollama"
)

var _ = Describe("Generator", func() {
	It("calls /api/chat without streaming", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/chat"))

			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["stream"]).To(BeFalse())
			Expect(req["model"]).To(Equal(ollama.DefaultModel))
			Expect(req["options"]).To(HaveKeyWithValue("temperature", BeNumerically("~", 0.3)))

			_, _ = w.Write([]byte(`{"model": "llama3.2", "message": {"role": "assistant", "content": "Twenty."}, "done": true, "done_reason": "stop", "prompt_eval_count": 5, "eval_count": 2}`))
		}))
		defer server.Close()

		gen, err := ollama.New(ollama.Config{BaseURL: server.URL, Temperature: 0.3})
		Expect(err).NotTo(HaveOccurred())
		Expect(gen.Name()).To(Equal("ollama"))

		resp, err := gen.Chat(context.Background(), &llm.ChatRequest{
			System:   "Answer from context.",
			Messages: []llm.Message{llm.NewTextMessage("user", "How many vacation days?")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Message.GetText()).To(Equal("Twenty."))
		Expect(resp.Usage.TotalTokens).To(Equal(7))
	})
})
