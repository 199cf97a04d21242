// Package watchcmder provides the watch command that ingests documents as they
// appear in a directory.
package watchcmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/desk"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/watcher"
)

const watchLongDesc string = `Watch a directory and ingest documents as they are written.

Every supported file (PDF, text, markdown) that is created or modified in the
directory is ingested once it stops changing. Re-saving a file replaces its
earlier version. Use --scan to ingest files already present first.

Runs until interrupted. Only HR Managers and Team Leads may watch.

Examples:
  hrdesk watch ./policies
  hrdesk watch /srv/hr-drop --visibility min:team_lead --scan`

const watchShortDesc string = "Ingest documents as they land in a directory"

type watchCommander struct {
	backend cmdutil.BackendOptions

	visibility   string
	workers      uint
	scan         bool
	debounce     time.Duration
	logFile      string
	chunkSize    int
	chunkOverlap int
}

var flagKeys = slices.Concat(cmdutil.BackendFlags, []string{
	config.FlagChunkSize,
	config.FlagChunkOverlap,
})

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd, args[0])
		},
	}

	cmdutil.AddBackendFlags(cmd, &cmder.backend)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	cmd.Flags().StringVar(&cmder.visibility, "visibility", "everyone", "Roles allowed to retrieve ingested documents")
	cmd.Flags().UintVarP(&cmder.workers, "workers", "w", 4, "Number of files ingested concurrently")
	cmd.Flags().BoolVar(&cmder.scan, "scan", false, "Ingest files already in the directory first")
	cmd.Flags().DurationVar(&cmder.debounce, "debounce", watcher.DefaultDebounce, "How long a file must stay unchanged before ingesting")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *watchCommander) run(ctx context.Context, cmd *cobra.Command, dir string) error {
	actor, err := cmdutil.Principal(cmd)
	if err != nil {
		return err
	}
	visibility, err := roles.ParsePolicy(c.visibility)
	if err != nil {
		return err
	}

	log := cmdutil.Logger(cmd)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		debug, _ := cmd.Flags().GetBool(cmdutil.FlagDebug)
		log = logger.Multi(log, logger.New(
			logger.WithJSON(true),
			logger.WithDebug(debug),
			logger.WithWriter(f),
		))
	}

	svc, err := cmdutil.OpenDesk(ctx, cmd, flagKeys, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	w := cmd.OutOrStdout()
	var mu sync.Mutex

	fmt.Fprintf(w, "  Watching %s %s\n", cliui.NameStyle.Render(dir), cliui.DimStyle.Render("(ctrl+c to stop)"))
	return svc.Watch(ctx, desk.WatchOptions{
		Dir:          dir,
		Actor:        actor,
		Visibility:   visibility,
		Workers:      c.workers,
		Debounce:     c.debounce,
		ScanExisting: c.scan,
		OnResult: func(path string, doc *document.Document, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, path, cliui.DimStyle.Render(err.Error()))
				return
			}
			fmt.Fprintf(w, "  %s %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(doc.Filename),
				cliui.DimStyle.Render(fmt.Sprintf("%d chunks", doc.ChunkCount)))
		},
	})
}
