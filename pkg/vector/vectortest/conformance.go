// Package vectortest holds the behaviour every vector.Driver must share,
// expressed as Ginkgo specs that backend suites include.
package vectortest

import (
	"context"
	"errors"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// Dimensions is the embedding length the conformance specs use.
const Dimensions = 4

// Entry builds a chunk entry for documentID visible to the given roles, or to
// everyone when none are given.
func Entry(documentID string, seq int, embedding []float32, visibleTo ...roles.Role) vector.Entry {
	if len(visibleTo) == 0 {
		visibleTo = roles.All()
	}
	return vector.Entry{
		ID:         vector.ChunkID(documentID, seq),
		DocumentID: documentID,
		Sequence:   seq,
		Text:       documentID + " passage",
		Embedding:  embedding,
		Metadata: vector.Metadata{
			Filename:  documentID + ".pdf",
			VisibleTo: visibleTo,
		},
	}
}

func ids(results []vector.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

// DescribeDriver registers the shared driver tests. newDriver is called before
// every test and must return an empty index of Dimensions dimensions.
func DescribeDriver(newDriver func() vector.Driver) {
	var (
		driver vector.Driver
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	ginkgo.AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	ginkgo.It("reports its dimensions", func() {
		Expect(driver.Dimensions()).To(BeEquivalentTo(Dimensions))
	})

	ginkgo.Describe("Upsert and ListDocument", func() {
		ginkgo.It("lists a document's entries in sequence order", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				Entry("handbook", 2, []float32{0, 0, 1, 0}),
				Entry("handbook", 0, []float32{1, 0, 0, 0}),
				Entry("handbook", 1, []float32{0, 1, 0, 0}),
				Entry("leave", 0, []float32{0, 0, 0, 1}),
			})).To(Succeed())

			entries, err := driver.ListDocument(ctx, "handbook")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			for i, e := range entries {
				Expect(e.Sequence).To(Equal(i))
				Expect(e.DocumentID).To(Equal("handbook"))
			}
			Expect(entries[0].Text).To(Equal("handbook passage"))
			Expect(entries[0].Metadata.Filename).To(Equal("handbook.pdf"))
			Expect(entries[0].Metadata.VisibleTo).To(ConsistOf(roles.All()))
			Expect(entries[1].Embedding).To(Equal([]float32{0, 1, 0, 0}))
		})

		ginkgo.It("replaces an entry with the same ID", func() {
			Expect(driver.Upsert(ctx, []vector.Entry{Entry("policy", 0, []float32{1, 0, 0, 0})})).To(Succeed())

			updated := Entry("policy", 0, []float32{0, 1, 0, 0}, roles.HRManager)
			updated.Text = "revised"
			Expect(driver.Upsert(ctx, []vector.Entry{updated})).To(Succeed())

			entries, err := driver.ListDocument(ctx, "policy")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Text).To(Equal("revised"))
			Expect(entries[0].Metadata.VisibleTo).To(ConsistOf(roles.HRManager))
			Expect(entries[0].Embedding).To(Equal([]float32{0, 1, 0, 0}))
		})

		ginkgo.It("rejects vectors of the wrong dimension", func() {
			err := driver.Upsert(ctx, []vector.Entry{Entry("bad", 0, []float32{1, 0})})
			Expect(errors.Is(err, errdefs.ErrDimensionMismatch)).To(BeTrue())

			entries, err := driver.ListDocument(ctx, "bad")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		ginkgo.It("returns nothing for an unknown document", func() {
			entries, err := driver.ListDocument(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	ginkgo.Describe("Search", func() {
		ginkgo.BeforeEach(func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				Entry("benefits", 0, []float32{1, 0, 0, 0}),
				Entry("benefits", 1, []float32{0.9, 0.1, 0, 0}),
				Entry("holidays", 0, []float32{0, 1, 0, 0}),
				Entry("salaries", 0, []float32{1, 0.01, 0, 0}, roles.HRExecutive, roles.HRManager),
				Entry("salaries", 1, []float32{0.99, 0, 0.01, 0}, roles.HRManager),
			})).To(Succeed())
		})

		ginkgo.It("ranks by descending cosine similarity", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 5, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(5))
			Expect(results[0].ID).To(Equal("benefits_0"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-3))
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
			Expect(results[4].ID).To(Equal("holidays_0"))
		})

		ginkgo.It("truncates to topK", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 2, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		ginkgo.It("filters by role before ranking", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 3, vector.ForRole(roles.Employee))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(Equal([]string{"benefits_0", "benefits_1", "holidays_0"}))
			for _, r := range results {
				Expect(r.Metadata.VisibleTo).To(ContainElement(roles.Employee))
			}
		})

		ginkgo.It("gives higher roles the restricted passages", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 5, vector.ForRole(roles.HRExecutive))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(ContainElement("salaries_0"))
			Expect(ids(results)).NotTo(ContainElement("salaries_1"))

			results, err = driver.Search(ctx, []float32{1, 0, 0, 0}, 5, vector.ForRole(roles.HRManager))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(ContainElements("salaries_0", "salaries_1"))
		})

		ginkgo.It("filters by document", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 5, vector.Filter{DocumentID: "holidays"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(Equal([]string{"holidays_0"}))
		})

		ginkgo.It("rejects a query of the wrong dimension", func() {
			_, err := driver.Search(ctx, []float32{1, 0, 0}, 5, vector.Filter{})
			Expect(errors.Is(err, errdefs.ErrDimensionMismatch)).To(BeTrue())
		})
	})

	ginkgo.Describe("Delete", func() {
		ginkgo.BeforeEach(func() {
			Expect(driver.Upsert(ctx, []vector.Entry{
				Entry("handbook", 0, []float32{1, 0, 0, 0}),
				Entry("handbook", 1, []float32{0, 1, 0, 0}),
				Entry("handbook", 2, []float32{0, 0, 1, 0}),
				Entry("leave", 0, []float32{0, 0, 0, 1}),
			})).To(Succeed())
		})

		ginkgo.It("removes every entry of a document and nothing else", func() {
			Expect(driver.DeleteByDocument(ctx, "handbook")).To(Succeed())

			entries, err := driver.ListDocument(ctx, "handbook")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())

			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 10, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(Equal([]string{"leave_0"}))
		})

		ginkgo.It("tolerates deleting an unknown document", func() {
			Expect(driver.DeleteByDocument(ctx, "missing")).To(Succeed())
		})

		ginkgo.It("removes entries by ID", func() {
			Expect(driver.Delete(ctx, []string{"handbook_1", "handbook_2", "unknown_0"})).To(Succeed())

			entries, err := driver.ListDocument(ctx, "handbook")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ID).To(Equal("handbook_0"))
		})
	})
}
