// Package ingestcmder provides the ingest command for adding HR documents to
// the knowledge base.
package ingestcmder

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/roles"
)

const ingestLongDesc string = `Ingest PDF, text or markdown files into the knowledge base.

Each file is extracted, chunked, embedded and indexed. Ingesting the same path
again replaces the earlier version. Files are processed in parallel.

--visibility restricts which roles may retrieve the document's passages:
  everyone                      every role (default)
  min:team_lead                 the named role and every role above it
  hr_executive,hr_manager       exactly the listed roles

Only HR Managers and Team Leads may upload.

Examples:
  hrdesk ingest handbook.pdf
  hrdesk ingest policies/*.md --visibility min:hr_executive
  hrdesk ingest salary-bands.pdf --visibility hr_manager --workers 2`

const ingestShortDesc string = "Ingest documents into the knowledge base"

type ingestCommander struct {
	backend cmdutil.BackendOptions

	visibility   string
	workers      uint
	chunkSize    int
	chunkOverlap int
}

var flagKeys = slices.Concat(cmdutil.BackendFlags, []string{
	config.FlagChunkSize,
	config.FlagChunkOverlap,
})

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmdutil.AddBackendFlags(cmd, &cmder.backend)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	cmd.Flags().StringVar(&cmder.visibility, "visibility", "everyone", "Roles allowed to retrieve the documents")
	cmd.Flags().UintVarP(&cmder.workers, "workers", "w", 4, "Number of files ingested concurrently")

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command, paths []string) error {
	actor, err := cmdutil.Principal(cmd)
	if err != nil {
		return err
	}
	visibility, err := roles.ParsePolicy(c.visibility)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := cmdutil.OpenDesk(ctx, cmd, flagKeys, cmdutil.Logger(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	w := cmd.OutOrStdout()
	var (
		mu     sync.Mutex
		failed int
	)
	err = svc.IngestFiles(ctx, actor, paths, visibility, c.workers, func(path string, doc *document.Document, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed++
		}
		printResult(w, path, doc, err)
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func printResult(w io.Writer, path string, doc *document.Document, err error) {
	if err != nil {
		fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, path, cliui.DimStyle.Render(err.Error()))
		return
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(doc.Filename),
		cliui.DimStyle.Render(fmt.Sprintf("%s  %d chunks  visible to %s", doc.ID, doc.ChunkCount, doc.Visibility)),
	)
}
