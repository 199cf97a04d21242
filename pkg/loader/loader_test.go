package loader_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/loader"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("loads plain text with normalized line endings", func() {
		res, err := loader.Load(write("leave.txt", "Leave policy\r\nTwenty days.\r\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(Equal("Leave policy\nTwenty days."))
		Expect(res.SourceFormat).To(Equal(loader.MIMEText))
		Expect(res.Filename).To(Equal("leave.txt"))
	})

	It("loads markdown", func() {
		res, err := loader.Load(write("Handbook.MD", "# Handbook\n\nWelcome."))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.SourceFormat).To(Equal(loader.MIMEMarkdown))
		Expect(res.Text).To(HavePrefix("# Handbook"))
	})

	It("returns empty files for the pipeline to reject", func() {
		res, err := loader.Load(write("empty.txt", "  \n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(BeEmpty())
	})

	It("rejects unsupported formats", func() {
		_, err := loader.Load(write("payroll.xlsx", "binary"))
		Expect(errors.Is(err, loader.ErrUnsupportedFormat)).To(BeTrue())
		Expect(loader.Supported("payroll.xlsx")).To(BeFalse())
		Expect(loader.Supported("policy.PDF")).To(BeTrue())
	})

	It("reports unreadable PDFs as invalid input", func() {
		_, err := loader.Load(write("broken.pdf", "not a pdf at all"))
		Expect(errors.Is(err, errdefs.ErrInvalidInput)).To(BeTrue())
	})

	It("reports missing files", func() {
		_, err := loader.Load(filepath.Join(dir, "missing.txt"))
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("lists its extensions", func() {
		Expect(loader.Extensions()).To(ContainElements(".pdf", ".txt", ".md"))
	})
})
