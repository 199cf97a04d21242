package desk_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/desk"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/nop"
	"github.com/papercomputeco/hrdesk/pkg/ingest/worker"
	"github.com/papercomputeco/hrdesk/pkg/loader"
	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/rag"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	storageinmemory "github.com/papercomputeco/hrdesk/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/hrdesk/pkg/utils/test"
	vectorinmemory "github.com/papercomputeco/hrdesk/pkg/vector/inmemory"
)

const dims = 32

var (
	manager   = roles.Principal{UserID: "hr-1", Role: roles.HRManager}
	executive = roles.Principal{UserID: "hx-1", Role: roles.HRExecutive}
	employee  = roles.Principal{UserID: "e-1", Role: roles.Employee, TeamLead: "tl-1"}
)

const handbook = `# Remote work

Employees may work remotely up to three days per week with their team lead's approval.
Equipment for home offices is reimbursed up to five hundred euros per year.`

const bonusPlan = `Bonus plan. The executive bonus pool is fifteen percent of operating profit.`

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		dir       string
		generator *testutils.MockGenerator
		embedder  *testutils.MockEmbedder
		svc       *desk.Service
	)

	writeFile := func(name, content string) string {
		p := filepath.Join(dir, name)
		Expect(os.WriteFile(p, []byte(content), 0o600)).To(Succeed())
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		generator = testutils.NewMockGenerator("Up to three days per week.")
		embedder = testutils.NewMockEmbedder(dims)

		cfg := config.NewDefaultConfig()
		cfg.Embedding.Dimensions = dims
		cfg.Retry.InitialDelay = "0s"

		var err error
		svc, err = desk.New(ctx, desk.Options{
			Config:    cfg,
			Store:     storageinmemory.NewDriver(),
			Vectors:   vectorinmemory.NewDriver(dims, logger.Nop()),
			Embedder:  embedder,
			Generator: generator,
			Publisher: nop.NewPublisher(),
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(svc.Close)
	})

	Describe("New", func() {
		It("rejects an invalid configuration before opening anything", func() {
			cfg := config.NewDefaultConfig()
			cfg.Chunking.Overlap = cfg.Chunking.Size

			_, err := desk.New(ctx, desk.Options{Config: cfg})
			Expect(err).To(MatchError(ContainSubstring("invalid configuration")))
		})
	})

	Describe("IngestFile and Ask", func() {
		It("answers from an ingested markdown file with a citation", func() {
			doc, err := svc.IngestFile(ctx, manager, writeFile("remote.md", handbook), roles.Everyone())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Stage).To(Equal(document.StageIndexed))
			Expect(doc.SourceFormat).To(Equal(loader.MIMEMarkdown))

			answer, err := svc.Ask(ctx, employee, "How many days can I work remotely?", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Grounded).To(BeTrue())
			Expect(answer.Citations).To(ConsistOf(rag.Citation{DocumentID: doc.ID, Filename: "remote.md"}))
		})

		It("gives the same file the same document ID on every ingest", func() {
			path := writeFile("remote.md", handbook)

			first, err := svc.IngestFile(ctx, manager, path, roles.Everyone())
			Expect(err).NotTo(HaveOccurred())
			second, err := svc.IngestFile(ctx, manager, path, roles.Everyone())
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(Equal(first.ID))
			Expect(second.ID).To(Equal(desk.DocumentIDForPath(path)))

			docs, err := svc.Documents(ctx, manager)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})

		It("refuses uploads from roles without the capability before reading the file", func() {
			_, err := svc.IngestFile(ctx, executive, filepath.Join(dir, "missing.md"), roles.Everyone())
			Expect(errdefs.IsPermission(err)).To(BeTrue())
		})

		It("answers without the model when only restricted documents exist", func() {
			_, err := svc.IngestFile(ctx, manager, writeFile("bonus.txt", bonusPlan), roles.Only(roles.HRManager))
			Expect(err).NotTo(HaveOccurred())

			answer, err := svc.Ask(ctx, employee, "How big is the bonus pool?", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Grounded).To(BeFalse())
			Expect(answer.Text).To(Equal(rag.NoInformationAnswer))
			Expect(generator.Requests()).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("drops cached retrievals so deleted passages stop answering", func() {
			doc, err := svc.IngestFile(ctx, manager, writeFile("remote.md", handbook), roles.Everyone())
			Expect(err).NotTo(HaveOccurred())

			before, err := svc.Ask(ctx, employee, "remote work days", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(before.Grounded).To(BeTrue())

			Expect(svc.Delete(ctx, executive, doc.ID)).To(Succeed())

			after, err := svc.Ask(ctx, employee, "remote work days", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Grounded).To(BeFalse())
		})

		It("refuses employees", func() {
			doc, err := svc.IngestFile(ctx, manager, writeFile("remote.md", handbook), roles.Everyone())
			Expect(err).NotTo(HaveOccurred())

			Expect(errdefs.IsPermission(svc.Delete(ctx, employee, doc.ID))).To(BeTrue())
		})
	})

	Describe("Documents", func() {
		It("hides restricted and failed documents from roles that cannot manage them", func() {
			_, err := svc.IngestFile(ctx, manager, writeFile("remote.md", handbook), roles.Everyone())
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.IngestFile(ctx, manager, writeFile("bonus.txt", bonusPlan), roles.Only(roles.HRManager))
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.IngestFile(ctx, manager, writeFile("empty.txt", "   "), roles.Everyone())
			Expect(err).To(MatchError(errdefs.ErrEmptyInput))

			all, err := svc.Documents(ctx, executive)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))

			visible, err := svc.Documents(ctx, employee)
			Expect(err).NotTo(HaveOccurred())
			Expect(visible).To(HaveLen(1))
			Expect(visible[0].Filename).To(Equal("remote.md"))
		})
	})

	Describe("IngestFiles", func() {
		It("ingests every loadable file and reports the rest", func() {
			paths := []string{
				writeFile("a.md", handbook),
				writeFile("b.txt", bonusPlan),
				writeFile("c.docx", "binary"),
			}

			var (
				mu      sync.Mutex
				results = map[string]error{}
			)
			err := svc.IngestFiles(ctx, manager, paths, roles.Everyone(), 2, func(path string, _ *document.Document, err error) {
				mu.Lock()
				defer mu.Unlock()
				results[filepath.Base(path)] = err
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(results).To(HaveLen(3))
			Expect(results["a.md"]).NotTo(HaveOccurred())
			Expect(results["b.txt"]).NotTo(HaveOccurred())
			Expect(results["c.docx"]).To(MatchError(loader.ErrUnsupportedFormat))
		})

		It("refuses the whole batch for a role that cannot upload", func() {
			err := svc.IngestFiles(ctx, employee, []string{"x.md"}, roles.Everyone(), 1, nil)
			Expect(errdefs.IsPermission(err)).To(BeTrue())
		})
	})

	Describe("Watch", func() {
		It("ingests files dropped into the folder", func() {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			indexed := make(chan *document.Document, 4)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- svc.Watch(watchCtx, desk.WatchOptions{
					Dir:      dir,
					Actor:    manager,
					Debounce: 50 * time.Millisecond,
					OnResult: func(_ string, doc *document.Document, err error) {
						if err == nil {
							indexed <- doc
						}
					},
				})
			}()

			// Give the watcher a moment to register before the write.
			time.Sleep(100 * time.Millisecond)
			writeFile("remote.md", handbook)

			var doc *document.Document
			Eventually(indexed, 5*time.Second).Should(Receive(&doc))
			Expect(doc.Filename).To(Equal("remote.md"))

			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})

		It("skips files that settle while the queue is full", func() {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			gate := make(chan struct{})
			embedder.Gate = gate

			var (
				mu      sync.Mutex
				skipped []string
			)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- svc.Watch(watchCtx, desk.WatchOptions{
					Dir:       dir,
					Actor:     manager,
					Workers:   1,
					QueueSize: 1,
					Debounce:  20 * time.Millisecond,
					OnResult: func(path string, _ *document.Document, err error) {
						if errors.Is(err, worker.ErrQueueFull) {
							mu.Lock()
							skipped = append(skipped, filepath.Base(path))
							mu.Unlock()
						}
					},
				})
			}()

			time.Sleep(100 * time.Millisecond)
			for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
				writeFile(name, handbook)
			}

			Eventually(func() []string {
				mu.Lock()
				defer mu.Unlock()
				return append([]string(nil), skipped...)
			}, 5*time.Second).ShouldNot(BeEmpty())

			close(gate)
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})

		It("refuses to start for a role that cannot upload", func() {
			err := svc.Watch(ctx, desk.WatchOptions{Dir: dir, Actor: employee})
			Expect(errdefs.IsPermission(err)).To(BeTrue())
		})
	})
})
