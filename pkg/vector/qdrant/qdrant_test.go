package qdrant

import (
	"context"
	"errors"
	"os"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
	"github.com/papercomputeco/hrdesk/pkg/vector/vectortest"
)

var _ = Describe("payload mapping", func() {
	It("round trips an entry through the payload", func() {
		e := vectortest.Entry("handbook", 3, []float32{1, 0, 0, 0}, roles.HRExecutive, roles.HRManager)

		got := entryOf(payloadOf(&e))
		Expect(got.ID).To(Equal("handbook_3"))
		Expect(got.DocumentID).To(Equal("handbook"))
		Expect(got.Sequence).To(Equal(3))
		Expect(got.Text).To(Equal(e.Text))
		Expect(got.Metadata.Filename).To(Equal("handbook.pdf"))
		Expect(got.Metadata.VisibleTo).To(Equal([]roles.Role{roles.HRExecutive, roles.HRManager}))
	})

	It("derives stable point IDs", func() {
		Expect(pointID("handbook_0").GetUuid()).To(Equal(pointID("handbook_0").GetUuid()))
		Expect(pointID("handbook_0").GetUuid()).NotTo(Equal(pointID("handbook_1").GetUuid()))
	})
})

var _ = Describe("filterOf", func() {
	It("is nil for the unrestricted filter", func() {
		Expect(filterOf(vector.Filter{})).To(BeNil())
	})

	It("matches the role slug in visible_to", func() {
		f := filterOf(vector.ForRole(roles.TeamLead))
		Expect(f.GetMust()).To(HaveLen(1))
		field := f.GetMust()[0].GetField()
		Expect(field.GetKey()).To(Equal("visible_to"))
		Expect(field.GetMatch().GetKeyword()).To(Equal("team_lead"))
	})

	It("combines role and document conditions", func() {
		r := roles.Employee
		f := filterOf(vector.Filter{Role: &r, DocumentID: "leave"})
		Expect(f.GetMust()).To(HaveLen(2))
		Expect(f.GetMust()[1].GetField().GetKey()).To(Equal("document_id"))
	})
})

var _ = Describe("classify", func() {
	It("marks unavailable servers as transient", func() {
		err := classify(status.Error(codes.Unavailable, "connection refused"))
		Expect(errors.Is(err, errdefs.ErrTransient)).To(BeTrue())
	})

	It("leaves invalid requests non-retryable", func() {
		err := classify(status.Error(codes.InvalidArgument, "bad vector"))
		Expect(errdefs.IsRetryable(err)).To(BeFalse())
	})
})

// qdrantAddr returns the Qdrant gRPC address from environment or skips the test.
func qdrantAddr() (string, int) {
	host := os.Getenv("HRDESK_TEST_QDRANT_HOST")
	if host == "" {
		Skip("HRDESK_TEST_QDRANT_HOST not set, skipping Qdrant tests")
	}
	port := DefaultPort
	if p := os.Getenv("HRDESK_TEST_QDRANT_PORT"); p != "" {
		port, _ = strconv.Atoi(p)
	}
	return host, port
}

var _ = Describe("Driver", func() {
	vectortest.DescribeDriver(func() vector.Driver {
		host, port := qdrantAddr()
		d, err := NewDriver(context.Background(), Config{
			Host:           host,
			Port:           port,
			CollectionName: "hrdesk_conformance",
			Dimensions:     vectortest.Dimensions,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		// Start every test from an empty collection.
		Expect(d.client.DeleteCollection(context.Background(), d.collection)).To(Succeed())
		Expect(d.ensureCollection(context.Background())).To(Succeed())
		return d
	})
})
