// Package hrdeskcmder
package hrdeskcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/ask"
	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	configcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/config"
	deletecmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/delete"
	docscmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/docs"
	ingestcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/ingest"
	initcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/init"
	sessioncmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/session"
	watchcmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/watch"
	versioncmder "github.com/papercomputeco/hrdesk/cmd/version"
)

const hrdeskLongDesc string = `hrdesk answers HR questions from your organization's own documents.

Every answer is drawn only from documents the asking role is allowed to see.

Get started:
  hrdesk init --preset openai
  hrdesk login --user u-1 --role hr_manager
  hrdesk ingest handbook.pdf
  hrdesk ask "How many vacation days do new hires get?"`

const hrdeskShortDesc string = "hrdesk - Role-aware HR knowledge desk"

func NewHrdeskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hrdesk",
		Short:         hrdeskShortDesc,
		Long:          hrdeskLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(cmdutil.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdutil.FlagConfigDir, "", "Override the .hrdesk directory")
	cmd.PersistentFlags().String(cmdutil.FlagUser, "", "Act as this user ID instead of the saved session")
	cmd.PersistentFlags().String(cmdutil.FlagRole, "", "Role of --as-user")
	cmd.PersistentFlags().String(cmdutil.FlagTeamLead, "", "Team lead of --as-user")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(sessioncmder.NewLoginCmd())
	cmd.AddCommand(sessioncmder.NewLogoutCmd())
	cmd.AddCommand(sessioncmder.NewWhoamiCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(docscmder.NewDocsCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
