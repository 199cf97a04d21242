// Package askcmder provides the ask command for answering HR questions from
// the documents visible to the acting role.
package askcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hrdesk/cmd/hrdesk/cmdutil"
	"github.com/papercomputeco/hrdesk/pkg/cliui"
	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/rag"
)

const askLongDesc string = `Ask a question about HR policy.

Answers are generated only from passages the acting role is allowed to see and
cite the documents they came from. When nothing visible supports an answer,
hrdesk says so instead of guessing.

Use --plain to skip markdown rendering, or --json for machine readable output.

Examples:
  hrdesk ask "How many vacation days do new hires get?"
  hrdesk ask "What is the parental leave policy?" --top-k 8
  hrdesk ask "Who approves remote work?" --as-user u-1 --as-role employee --json`

const askShortDesc string = "Ask a question about HR policy"

type askCommander struct {
	backend cmdutil.BackendOptions

	topK   int
	plain  bool
	asJSON bool
}

var flagKeys = slices.Concat(cmdutil.BackendFlags, []string{config.FlagTopK})

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmdutil.AddBackendFlags(cmd, &cmder.backend)
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the answer without markdown rendering")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the answer as JSON")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, question string) error {
	principal, err := cmdutil.Principal(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := cmdutil.OpenDesk(ctx, cmd, flagKeys, cmdutil.Logger(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	// Zero defers to retrieval.top_k, which already carries the flag value.
	answer, err := svc.Ask(ctx, principal, question, 0)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	return printAnswer(w, answer, c.plain)
}

func printAnswer(w io.Writer, answer *rag.Answer, plain bool) error {
	text := answer.Text
	if !plain && answer.Grounded {
		rendered, err := cliui.RenderMarkdown(text)
		if err == nil {
			text = rendered
		}
	}

	if !answer.Grounded {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.WarnStyle.Render(text))
		return nil
	}

	fmt.Fprintf(w, "%s\n", strings.TrimRight(text, "\n"))
	if len(answer.Citations) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n", cliui.HeaderStyle.Render("Sources"))
	for i, c := range answer.Citations {
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("[%d]", i+1)),
			cliui.NameStyle.Render(c.Filename),
			cliui.DimStyle.Render(c.DocumentID),
		)
	}
	fmt.Fprintln(w)
	return nil
}
