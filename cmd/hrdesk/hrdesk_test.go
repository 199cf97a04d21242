package hrdeskcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	hrdeskcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk"
	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/rag"
	testutils "github.com/papercomputeco/hrdesk/pkg/utils/test"
)

const reply = "New hires receive 25 vacation days per year."

var _ = Describe("NewHrdeskCmd", func() {
	It("registers every subcommand", func() {
		cmd := hrdeskcmder.NewHrdeskCmd()
		var names []string
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}
		Expect(names).To(ContainElements("init", "config", "login", "logout", "whoami",
			"ingest", "watch", "ask", "docs", "delete", "version"))
	})

	It("carries the principal and config dir as persistent flags", func() {
		cmd := hrdeskcmder.NewHrdeskCmd()
		for _, name := range []string{"debug", "config-dir", "as-user", "as-role", "team-lead"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("version", func() {
	It("prints the build metadata", func() {
		cmd := hrdeskcmder.NewHrdeskCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"version"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: dev"))
	})
})

var _ = Describe("hrdesk end to end", func() {
	var (
		dir  string
		docs string
		fake *testutils.FakeOllama
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		docs = GinkgoT().TempDir()
		fake = testutils.NewFakeOllama(16, reply)
		DeferCleanup(fake.Close)

		Expect(os.WriteFile(filepath.Join(docs, "handbook.md"),
			[]byte("# Leave\n\nEmployees receive 25 vacation days per year."), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(docs, "salary.md"),
			[]byte("Salary bands are confidential. Band five pays ninety thousand."), 0o644)).To(Succeed())
	})

	execute := func(ctx context.Context, out *bytes.Buffer, args ...string) error {
		cmd := hrdeskcmder.NewHrdeskCmd()
		cmd.SetOut(out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append(args, "--config-dir", dir))
		return cmd.ExecuteContext(ctx)
	}

	// run executes a command that does not open the desk.
	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		err := execute(context.Background(), out, args...)
		return out.String(), err
	}

	// runDesk executes a command wired to the fake model server.
	runDesk := func(args ...string) (string, error) {
		return run(append(args, fake.Flags()...)...)
	}

	listDocs := func(as ...string) []*document.Document {
		out, err := runDesk(append([]string{"docs", "--json"}, as...)...)
		Expect(err).NotTo(HaveOccurred())
		var listed []*document.Document
		Expect(json.Unmarshal([]byte(out), &listed)).To(Succeed())
		return listed
	}

	asEmployee := []string{"--as-user", "e-1", "--as-role", "employee", "--team-lead", "tl-1"}

	BeforeEach(func() {
		_, err := run("login", "--user", "hr-1", "--role", "hr_manager")
		Expect(err).NotTo(HaveOccurred())
	})

	It("ingests, answers with citations, filters by role and deletes", func() {
		out, err := runDesk("ingest", filepath.Join(docs, "handbook.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("handbook.md"))

		_, err = runDesk("ingest", filepath.Join(docs, "salary.md"), "--visibility", "hr_manager")
		Expect(err).NotTo(HaveOccurred())

		out, err = runDesk("ask", "--json", "How many vacation days do employees receive?")
		Expect(err).NotTo(HaveOccurred())
		var answer rag.Answer
		Expect(json.Unmarshal([]byte(out), &answer)).To(Succeed())
		Expect(answer.Grounded).To(BeTrue())
		Expect(answer.Text).To(Equal(reply))
		Expect(answer.Citations).To(ContainElement(HaveField("Filename", "handbook.md")))

		out, err = runDesk(append([]string{"ask", "--json", "What does salary band five pay?"}, asEmployee...)...)
		Expect(err).NotTo(HaveOccurred())
		answer = rag.Answer{}
		Expect(json.Unmarshal([]byte(out), &answer)).To(Succeed())
		Expect(answer.Citations).NotTo(ContainElement(HaveField("Filename", "salary.md")))

		Expect(listDocs()).To(HaveLen(2))
		Expect(listDocs(asEmployee...)).To(ConsistOf(HaveField("Filename", "handbook.md")))

		_, err = runDesk(append([]string{"delete", "--path", filepath.Join(docs, "salary.md")}, asEmployee...)...)
		Expect(errdefs.IsPermission(err)).To(BeTrue())

		out, err = runDesk("delete", "--path", filepath.Join(docs, "salary.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("salary.md"))
		Expect(listDocs()).To(ConsistOf(HaveField("Filename", "handbook.md")))
	})

	It("says so when nothing visible answers the question", func() {
		out, err := runDesk("ask", "--json", "Is there a pension plan?")
		Expect(err).NotTo(HaveOccurred())

		var answer rag.Answer
		Expect(json.Unmarshal([]byte(out), &answer)).To(Succeed())
		Expect(answer.Grounded).To(BeFalse())
		Expect(answer.Text).To(Equal(rag.NoInformationAnswer))
		Expect(fake.Chats()).To(BeZero())
	})

	It("refuses uploads from employees", func() {
		_, err := runDesk(append([]string{"ingest", filepath.Join(docs, "handbook.md")}, asEmployee...)...)
		Expect(errdefs.IsPermission(err)).To(BeTrue())
		Expect(cmdutil.ExitCode(err)).To(Equal(cmdutil.ExitPermission))
		Expect(cmdutil.Hint(err)).To(ContainSubstring("permission denied"))
		Expect(listDocs()).To(BeEmpty())
	})

	It("exits as unavailable when the model server is down", func() {
		_, err := runDesk("ingest", filepath.Join(docs, "handbook.md"))
		Expect(err).NotTo(HaveOccurred())

		fake.Close()
		_, err = runDesk("ask", "--json", "How many vacation days do employees receive?")
		Expect(err).To(HaveOccurred())
		Expect(cmdutil.ExitCode(err)).To(Equal(cmdutil.ExitUnavailable))
		Expect(cmdutil.Hint(err)).To(ContainSubstring("try again later"))
	})

	It("exits with the generic code for other failures", func() {
		_, err := runDesk("ask", "--json", "   ")
		Expect(err).To(HaveOccurred())
		Expect(cmdutil.ExitCode(err)).To(Equal(cmdutil.ExitError))
		Expect(cmdutil.Hint(err)).To(BeEmpty())
	})

	It("reports files that could not be ingested", func() {
		Expect(os.WriteFile(filepath.Join(docs, "notes.docx"), []byte("binary"), 0o644)).To(Succeed())

		out, err := runDesk("ingest", filepath.Join(docs, "handbook.md"), filepath.Join(docs, "notes.docx"))
		Expect(err).To(MatchError("1 of 2 files failed"))
		Expect(out).To(ContainSubstring("notes.docx"))
	})

	It("renders the documents table", func() {
		_, err := runDesk("ingest", filepath.Join(docs, "handbook.md"))
		Expect(err).NotTo(HaveOccurred())

		out, err := runDesk("docs")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("handbook.md"))
		Expect(out).To(ContainSubstring("indexed"))
	})

	It("watches a directory until interrupted", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := gbytes.NewBuffer()
		cmd := hrdeskcmder.NewHrdeskCmd()
		cmd.SetOut(out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append([]string{"watch", docs, "--scan", "--debounce", "50ms",
			"--log-file", filepath.Join(dir, "watch.log"), "--config-dir", dir}, fake.Flags()...))

		done := make(chan error, 1)
		go func() { done <- cmd.ExecuteContext(ctx) }()

		Eventually(out, "5s").Should(gbytes.Say("handbook.md"))
		cancel()
		Eventually(done, "5s").Should(Receive(BeNil()))

		logged, err := os.ReadFile(filepath.Join(dir, "watch.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(logged)).To(ContainSubstring(`"msg":"ingesting document"`))
	})
})
