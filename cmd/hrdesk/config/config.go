// Package configcmder provides the config command for managing persistent
// hrdesk configuration stored in the .hrdesk/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent hrdesk configuration.

Configuration is stored as config.toml in the .hrdesk/ directory and provides
default values for command flags. CLI flags and HRDESK_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  storage.sqlite_path, vector_store.provider, embedding.model,
  llm.provider, chunking.size, retrieval.top_k, retry.max_attempts,
  eventstream.brokers

Use subcommands to get, set, or list configuration values:
  hrdesk config set <key> <value>    Set a configuration value
  hrdesk config get <key>            Get a configuration value
  hrdesk config list                 List all configuration values

Examples:
  hrdesk config set llm.provider anthropic
  hrdesk config set vector_store.provider qdrant
  hrdesk config get retrieval.top_k
  hrdesk config list`

const configShortDesc string = "Manage persistent hrdesk configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return configKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
