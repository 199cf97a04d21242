// Package docscmder provides the docs command for listing the documents in
// the knowledge base.
package docscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/document"
)

const docsLongDesc string = `List documents in the knowledge base.

HR Managers see every document including failed ingestions and why they
failed. Other roles see only indexed documents they are allowed to retrieve
from.

Examples:
  hrdesk docs
  hrdesk docs --json`

const docsShortDesc string = "List documents in the knowledge base"

const filenameWidth = 40

type docsCommander struct {
	backend cmdutil.BackendOptions
	asJSON  bool
}

func NewDocsCmd() *cobra.Command {
	cmder := &docsCommander{}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: docsShortDesc,
		Long:  docsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmdutil.AddBackendFlags(cmd, &cmder.backend)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print documents as JSON")

	return cmd
}

func (c *docsCommander) run(cmd *cobra.Command) error {
	viewer, err := cmdutil.Principal(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := cmdutil.OpenDesk(ctx, cmd, cmdutil.BackendFlags, cmdutil.Logger(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.Documents(ctx, viewer)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if c.asJSON {
		if docs == nil {
			docs = []*document.Document{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	printTable(w, docs)
	return nil
}

func printTable(w io.Writer, docs []*document.Document) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(cliui.DimStyle).
		Headers("ID", "FILENAME", "STAGE", "CHUNKS", "VISIBLE TO", "UPLOADED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cliui.HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, d := range docs {
		t.Row(
			d.ID,
			cliui.Truncate(d.Filename, filenameWidth),
			stage(d),
			strconv.Itoa(d.ChunkCount),
			d.Visibility.String(),
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	fmt.Fprintln(w, t.Render())
}

func stage(d *document.Document) string {
	if d.Stage != document.StageFailed {
		return string(d.Stage)
	}
	return cliui.WarnStyle.Render(fmt.Sprintf("failed at %s: %s", d.FailedStage, d.FailureCause))
}
