// Package deletecmder provides the delete command for permanently removing
// documents from the knowledge base.
package deletecmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/desk"
)

const deleteLongDesc string = `Permanently delete documents and every passage indexed from them.

Arguments are document IDs as shown by "hrdesk docs". With --path they are the
paths the documents were ingested from instead.

Only HR Managers may delete documents.

Examples:
  hrdesk delete 3f1c2a8e-7d4b-5e1f-9a0c-6b2d8e4f1a37
  hrdesk delete --path policies/old-travel.md`

const deleteShortDesc string = "Delete documents from the knowledge base"

type deleteCommander struct {
	backend cmdutil.BackendOptions
	byPath  bool
}

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <document-id>...",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmdutil.AddBackendFlags(cmd, &cmder.backend)
	cmd.Flags().BoolVar(&cmder.byPath, "path", false, "Treat arguments as ingested file paths")

	return cmd
}

func (c *deleteCommander) run(cmd *cobra.Command, args []string) error {
	actor, err := cmdutil.Principal(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := cmdutil.OpenDesk(ctx, cmd, cmdutil.BackendFlags, cmdutil.Logger(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	w := cmd.OutOrStdout()
	var errs []error
	for _, arg := range args {
		id := arg
		if c.byPath {
			id = desk.DocumentIDForPath(arg)
		}

		err := svc.Delete(ctx, actor, id)
		fmt.Fprintf(w, "  %s %s\n", cliui.Mark(err), arg)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", arg, err))
		}
	}
	return errors.Join(errs...)
}
