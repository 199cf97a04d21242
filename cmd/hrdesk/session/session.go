// Package sessioncmder provides the login, logout and whoami commands that
// manage which principal the CLI acts as.
//
// Identities are verified by the user-management service; these commands only
// record the principal it vouched for in .hrdesk/session.json.
package sessioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/dotdir"
	"github.com/papercomputeco/hrdesk/pkg/roles"
)

const loginLongDesc string = `Remember the principal hrdesk commands act as.

Stores the user ID, role and --team-lead in .hrdesk/session.json. Commands
use it unless --as-user and --as-role are given.

Roles: employee, team_lead, hr_executive, hr_manager.

Examples:
  hrdesk login --user u-1042 --role hr_manager
  hrdesk login --user u-2001 --role employee --team-lead u-0007`

type loginCommander struct {
	user string
	role string
}

func NewLoginCmd() *cobra.Command {
	cmder := &loginCommander{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Remember the acting principal",
		Long:  loginLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamLead, _ := cmd.Flags().GetString(cmdutil.FlagTeamLead)
			return cmder.run(cmd.OutOrStdout(), cmdutil.ConfigDir(cmd), teamLead)
		},
	}

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&cmder.role, "role", "r", "", "Role")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func (c *loginCommander) run(w io.Writer, configDir, teamLead string) error {
	role, err := roles.Parse(c.role)
	if err != nil {
		return err
	}

	s := &dotdir.Session{UserID: c.user, Role: role, TeamLead: teamLead}
	if err := dotdir.NewManager().SaveSession(s, configDir); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Acting as %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(s.UserID),
		cliui.DimStyle.Render("("+role.String()+")"),
	)
	return nil
}

func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the acting principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := dotdir.NewManager().ClearSession(cmdutil.ConfigDir(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Session cleared\n", cliui.SuccessMark)
			return nil
		},
	}
}

func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting principal and what it may do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := cmdutil.Principal(cmd)
			if err != nil {
				return err
			}
			printPrincipal(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func printPrincipal(w io.Writer, p roles.Principal) {
	caps := p.Role.Capabilities()

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("User:     "), cliui.NameStyle.Render(p.UserID))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Role:     "), cliui.ValueStyle.Render(p.Role.String()))
	if p.TeamLead != "" {
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Team lead:"), cliui.ValueStyle.Render(p.TeamLead))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s upload documents\n", mark(caps.Upload))
	fmt.Fprintf(w, "  %s delete documents\n", mark(caps.DeleteDocuments))
	fmt.Fprintf(w, "  %s remove any member\n", mark(caps.DeleteAny))
	fmt.Fprintf(w, "  %s remove own team members\n\n", mark(caps.DeleteAny || caps.DeleteOwnTeam))
}

func mark(ok bool) string {
	if ok {
		return cliui.SuccessMark
	}
	return cliui.FailMark
}
