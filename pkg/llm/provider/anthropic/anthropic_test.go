package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/llm"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/anthropic"
)

var _ = Describe("Generator", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		gen     *anthropic.Generator
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		var err error
		gen, err = anthropic.New(anthropic.Config{APIKey: "key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("puts the system prompt in the top-level field", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(r.Header.Get("x-api-key")).To(Equal("key"))
			Expect(r.Header.Get("anthropic-version")).NotTo(BeEmpty())

			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["system"]).To(Equal("Answer from context."))
			Expect(req["max_tokens"]).To(BeNumerically("==", anthropic.DefaultMaxTokens))
			Expect(req["messages"]).To(HaveLen(1))

			_, _ = w.Write([]byte(`{
				"role": "assistant",
				"model": "claude",
				"content": [{"type": "text", "text": "Twenty "}, {"type": "text", "text": "days."}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 7, "output_tokens": 3}
			}`))
		}

		resp, err := gen.Chat(context.Background(), &llm.ChatRequest{
			System:   "Answer from context.",
			Messages: []llm.Message{llm.NewTextMessage("user", "How many vacation days?")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Message.GetText()).To(Equal("Twenty days."))
		Expect(resp.Usage.TotalTokens).To(Equal(10))
	})

	It("treats overload as transient", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(529)
		}

		_, err := gen.Chat(context.Background(), &llm.ChatRequest{})
		Expect(errors.Is(err, errdefs.ErrTransient)).To(BeTrue())
	})
})
