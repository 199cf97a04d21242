package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/init"
	"github.com/papercomputeco/hrdesk/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })

		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates the local directory once", func() {
		Expect(run()).To(Succeed())
		Expect(filepath.Join(tmpDir, ".hrdesk")).To(BeADirectory())
		Expect(out.String()).To(ContainSubstring("Initialized"))

		out.Reset()
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes the preset config", func() {
		Expect(run("--preset", "ollama")).To(Succeed())

		var cfg config.Config
		_, err := toml.DecodeFile(filepath.Join(tmpDir, ".hrdesk", "config.toml"), &cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
	})

	It("refuses to overwrite a config without --force", func() {
		Expect(run("--preset", "openai")).To(Succeed())
		Expect(run("--preset", "anthropic")).To(MatchError(ContainSubstring("--force")))
		Expect(run("--preset", "anthropic", "--force")).To(Succeed())
	})

	It("rejects unknown presets", func() {
		Expect(run("--preset", "mistral")).To(MatchError(ContainSubstring("unknown preset")))
	})
})
