package rag_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/ingest"
	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/rag"
	"github.com/papercomputeco/hrdesk/pkg/retry"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	storageinmemory "github.com/papercomputeco/hrdesk/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/hrdesk/pkg/utils/test"
	vectorinmemory "github.com/papercomputeco/hrdesk/pkg/vector/inmemory"
)

const dims = 64

var (
	manager  = roles.Principal{UserID: "hr-1", Role: roles.HRManager}
	employee = roles.Principal{UserID: "e-1", Role: roles.Employee, TeamLead: "tl-1"}
)

var leavePolicy = strings.Join([]string{
	"Leave policy. Every full-time employee receives twenty days of paid annual leave per year.",
	"Leave requests must be approved by the team lead two weeks in advance.",
	"Unused leave days carry over to the next year up to a maximum of five days.",
	"Sick leave does not count against the annual leave balance and requires a doctor's note after three days.",
	"Parental leave is sixteen weeks at full pay for all parents.",
	"Public holidays are published by HR at the start of every calendar year.",
}, " ")

const salaryBands = "Salary bands. Engineering level three pays between ninety and one hundred ten thousand. Bonus pool is confidential."

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		vectors   *testutils.FaultyVectorDriver
		embedder  *testutils.MockEmbedder
		generator *testutils.MockGenerator
		pipeline  *ingest.Pipeline
		engine    *rag.Engine
	)

	newEngine := func(mod func(*rag.Config)) {
		cfg := &rag.Config{
			Vectors:   vectors,
			Embedder:  embedder,
			Generator: generator,
			Retry:     retry.Policy{MaxAttempts: 3},
			Logger:    logger.Nop(),
		}
		if mod != nil {
			mod(cfg)
		}
		var err error
		engine, err = rag.New(cfg)
		Expect(err).NotTo(HaveOccurred())
	}

	ingestDoc := func(id, filename, text string, policy roles.Policy) {
		_, err := pipeline.Ingest(ctx, manager, ingest.Upload{
			DocumentID: id,
			Filename:   filename,
			Text:       text,
			Visibility: policy,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		vectors = testutils.NewFaultyVectorDriver(vectorinmemory.NewDriver(dims, logger.Nop()))
		embedder = testutils.NewMockEmbedder(dims)
		generator = testutils.NewMockGenerator("Employees receive twenty days of paid annual leave.")

		var err error
		pipeline, err = ingest.New(&ingest.Config{
			Store:        storageinmemory.NewDriver(),
			Vectors:      vectors,
			Embedder:     embedder,
			ChunkSize:    200,
			ChunkOverlap: 40,
		})
		Expect(err).NotTo(HaveOccurred())

		newEngine(nil)
	})

	It("rejects empty questions", func() {
		_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "   "})
		Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
	})

	It("answers from visible passages and cites the source document", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())

		answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "What is the leave policy?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeTrue())
		Expect(answer.Text).To(ContainSubstring("twenty days"))
		Expect(answer.SourceIDs()).To(Equal([]string{"leave"}))

		reqs := generator.Requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].System).To(Equal(rag.SystemPrompt()))
		Expect(reqs[0].Messages[0].GetText()).To(ContainSubstring("Question: What is the leave policy?"))
		Expect(reqs[0].Messages[0].GetText()).To(ContainSubstring("leave-policy.pdf"))
	})

	It("returns the no-information answer without calling the model when nothing is visible", func() {
		ingestDoc("salaries", "salary-bands.md", salaryBands, roles.Only(roles.HRManager))

		answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "What are the salary bands?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeFalse())
		Expect(answer.Text).To(Equal(rag.NoInformationAnswer))
		Expect(answer.Citations).To(BeEmpty())
		Expect(generator.Requests()).To(BeEmpty())

		answer, err = engine.Answer(ctx, rag.Query{Principal: manager, Question: "What are the salary bands?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeTrue())
		Expect(answer.SourceIDs()).To(Equal([]string{"salaries"}))
	})

	It("never puts restricted passages into the prompt", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())
		ingestDoc("salaries", "salary-bands.md", salaryBands, roles.AtLeast(roles.HRExecutive))

		for _, question := range []string{"salary bands bonus pool", "What is the leave policy?", "confidential"} {
			answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: question, TopK: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.SourceIDs()).NotTo(ContainElement("salaries"))
		}
		for _, req := range generator.Requests() {
			Expect(req.Messages[0].GetText()).NotTo(ContainSubstring("Bonus pool"))
		}
	})

	It("treats the model's no-information reply as ungrounded", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())
		generator.Reply = rag.NoInformationAnswer

		answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "Can I bring my dog to work?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeFalse())
		Expect(answer.Citations).To(BeEmpty())
	})

	Describe("generation failures", func() {
		BeforeEach(func() {
			ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())
		})

		It("retries transient failures", func() {
			generator.Errs = []error{errdefs.ErrRateLimited}

			answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Grounded).To(BeTrue())
			Expect(generator.Requests()).To(HaveLen(2))
		})

		It("surfaces a retryable generation error once retries are spent", func() {
			generator.Errs = []error{errdefs.ErrTransient, errdefs.ErrTransient, errdefs.ErrTransient}

			_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(errors.Is(err, errdefs.ErrGeneration)).To(BeTrue())
			Expect(errdefs.IsUnavailable(err)).To(BeTrue())
			Expect(errdefs.IsPermission(err)).To(BeFalse())
			Expect(generator.Requests()).To(HaveLen(3))
		})

		It("reuses the retrieval when the question is retried", func() {
			generator.Errs = []error{errdefs.ErrTransient, errdefs.ErrTransient, errdefs.ErrTransient}
			_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).To(HaveOccurred())

			_, err = engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors.Searches()).To(Equal(1))

			engine.Purge()
			_, err = engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors.Searches()).To(Equal(2))
		})
	})

	It("does not cache a retrieval that raced a delete", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())

		searched := make(chan struct{})
		release := make(chan struct{})
		vectors.AfterSearch = func() {
			vectors.AfterSearch = nil
			close(searched)
			<-release
		}

		inflight := make(chan *rag.Answer, 1)
		go func() {
			defer GinkgoRecover()
			answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).NotTo(HaveOccurred())
			inflight <- answer
		}()

		Eventually(searched).Should(BeClosed())
		Expect(vectors.DeleteByDocument(ctx, "leave")).To(Succeed())
		engine.Purge()
		close(release)

		var stale *rag.Answer
		Eventually(inflight).Should(Receive(&stale))
		Expect(stale.SourceIDs()).To(ContainElement("leave"))

		answer, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.SourceIDs()).NotTo(ContainElement("leave"))
		Expect(answer.Grounded).To(BeFalse())
		Expect(vectors.Searches()).To(Equal(2))
	})

	It("keeps cached retrievals separate per role", func() {
		ingestDoc("salaries", "salary-bands.md", salaryBands, roles.Only(roles.HRManager))

		answer, err := engine.Answer(ctx, rag.Query{Principal: manager, Question: "salary bands"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeTrue())

		answer, err = engine.Answer(ctx, rag.Query{Principal: employee, Question: "salary bands"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Grounded).To(BeFalse())
	})

	It("can run without a cache", func() {
		newEngine(func(c *rag.Config) { c.CacheTTL = -1 })
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())

		for range 2 {
			_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(vectors.Searches()).To(Equal(2))
	})

	It("stops before generation when the caller has gone away", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := engine.Answer(cctx, rag.Query{Principal: employee, Question: "leave policy"})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(generator.Requests()).To(BeEmpty())
	})

	It("bounds the context handed to the model", func() {
		newEngine(func(c *rag.Config) { c.MaxContextChars = 250 })
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())

		_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy", TopK: 10})
		Expect(err).NotTo(HaveOccurred())

		prompt := generator.Requests()[0].Messages[0].GetText()
		passages, _, found := strings.Cut(strings.TrimPrefix(prompt, "Context:\n"), "\n\nQuestion:")
		Expect(found).To(BeTrue())
		Expect(len(passages)).To(BeNumerically("<=", 250))
	})

	It("surfaces search failures as unavailable", func() {
		ingestDoc("leave", "leave-policy.pdf", leavePolicy, roles.Everyone())
		vectors.SearchErr = errdefs.ErrTransient

		_, err := engine.Answer(ctx, rag.Query{Principal: employee, Question: "leave policy"})
		Expect(errors.Is(err, errdefs.ErrServiceUnavailable)).To(BeTrue())
		Expect(vectors.Searches()).To(Equal(3))
	})
})
