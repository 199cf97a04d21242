package pgvector_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jackc/pgx/v5"

	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/vector"
	"github.com/papercomputeco/hrdesk/pkg/vector/pgvector"
	"github.com/papercomputeco/hrdesk/pkg/vector/vectortest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("HRDESK_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("HRDESK_TEST_POSTGRES_DSN not set, skipping pgvector tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	It("rejects an invalid table name", func() {
		_, err := pgvector.NewDriver(context.Background(), pgvector.Config{
			DSN:        "postgres://localhost/hrdesk",
			Table:      "chunks; DROP TABLE users",
			Dimensions: 4,
		}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("invalid table name")))
	})

	It("requires dimensions", func() {
		_, err := pgvector.NewDriver(context.Background(), pgvector.Config{DSN: "postgres://localhost/hrdesk"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	Describe("conformance", func() {
		vectortest.DescribeDriver(func() vector.Driver {
			dsn := connStr()
			ctx := context.Background()

			// Start every test from an empty table.
			conn, err := pgx.Connect(ctx, dsn)
			Expect(err).NotTo(HaveOccurred())
			_, err = conn.Exec(ctx, "DROP TABLE IF EXISTS hr_chunks_conformance")
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.Close(ctx)).To(Succeed())

			d, err := pgvector.NewDriver(ctx, pgvector.Config{
				DSN:        dsn,
				Table:      "hr_chunks_conformance",
				Dimensions: vectortest.Dimensions,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})
})
