package openai_test

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
	"github.com/papercomputeco/hrdesk/pkg/llm/provider/openai"
)

var _ = Describe("Generator", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		gen     *openai.Generator
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		var err error
		gen, err = openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL, Temperature: 0.3})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := openai.New(openai.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("sends the system prompt first and parses the first choice", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))

			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req["model"]).To(Equal(openai.DefaultModel))
			Expect(req["temperature"]).To(BeNumerically("~", 0.3))

			msgs := req["messages"].([]any)
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].(map[string]any)["role"]).To(Equal("system"))
			Expect(msgs[1].(map[string]any)["content"]).To(Equal("How many vacation days?"))

			_, _ = w.Write([]byte(`{
				"model": "gpt-4o-mini",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Twenty."}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
			}`))
		}

		resp, err := gen.Chat(context.Background(), &llm.ChatRequest{
			System:   "Answer from context.",
			Messages: []llm.Message{llm.NewTextMessage("user", "How many vacation days?")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Message.GetText()).To(Equal("Twenty."))
		Expect(resp.StopReason).To(Equal("stop"))
		Expect(resp.Usage.TotalTokens).To(Equal(12))
	})

	It("treats an empty choice list as transient", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices": []}`))
		}

		_, err := gen.Chat(context.Background(), &llm.ChatRequest{})
		Expect(errors.Is(err, errdefs.ErrTransient)).To(BeTrue())
	})

	It("classifies throttling", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}

		_, err := gen.Chat(context.Background(), &llm.ChatRequest{})
		Expect(errors.Is(err, errdefs.ErrRateLimited)).To(BeTrue())
	})
})
