// Package initcmder provides the init command for initializing a local .hrdesk
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/config"
)

const (
	dirName = ".hrdesk"
)

const initLongDesc string = `Initialize a new .hrdesk/ directory in the current working directory.

Creates a local .hrdesk/ directory that takes precedence over the default
~/.hrdesk/ directory for the document registry, the vector index, the CLI
session, and configuration.

Use --preset to write a config.toml with sane defaults for a provider.
Available presets: openai, anthropic, ollama.

Examples:
  hrdesk init
  hrdesk init --preset ollama`

const initShortDesc string = "Initialize a local .hrdesk/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Write config.toml for a provider preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml when --preset is given")

	return cmd
}

func (c *initCommander) run(w io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .hrdesk directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .hrdesk directory: %s\n", dir)
	}

	if c.preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(c.preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && !c.force:
		return fmt.Errorf("%s already exists; pass --force to overwrite it", cfger.GetTarget())
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.preset),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
