package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/embeddings/ollama"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func() *ollama.Embedder {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("sends the batch to /api/embed and returns vectors in order", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/embed"))

			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req.Model).To(Equal(ollama.DefaultEmbeddingModel))
			Expect(req.Input).To(Equal([]string{"leave policy", "benefits"}))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{1, 0}, {0, 1}},
			})
		}

		vecs, err := newEmbedder().EmbedBatch(ctx, []string{"leave policy", "benefits"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(Equal([][]float32{{1, 0}, {0, 1}}))
	})

	It("embeds a single text", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.5}}})
		}

		vec, err := newEmbedder().Embed(ctx, "holidays")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.5, 0.5}))
	})

	DescribeTable("classifies error statuses",
		func(status int, want error) {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}

			_, err := newEmbedder().Embed(ctx, "text")
			Expect(errors.Is(err, want)).To(BeTrue())
		},
		Entry("rate limited", http.StatusTooManyRequests, errdefs.ErrRateLimited),
		Entry("server error", http.StatusBadGateway, errdefs.ErrTransient),
		Entry("bad request", http.StatusBadRequest, errdefs.ErrInvalidInput),
	)

	It("treats a short response as transient", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
		}

		_, err := newEmbedder().Embed(ctx, "text")
		Expect(errors.Is(err, errdefs.ErrTransient)).To(BeTrue())
	})

	It("rejects an empty batch without calling the server", func() {
		_, err := newEmbedder().EmbedBatch(ctx, nil)
		Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
	})
})
