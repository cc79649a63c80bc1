// Package configcmder provides the config command for managing persistent
// loom configuration stored in the .loom/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent loom configuration.

Configuration is stored as config.toml in the .loom/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  graph_backend.target, graph_backend.api_key,
  fact_backend.provider, fact_backend.target, fact_backend.api_key,
  links.provider, links.sqlite_path, links.postgres_dsn,
  events.provider, events.topic,
  recall.max_entries, recall.relevance_weight, recall.recency_weight,
  consolidation.threshold, consolidation.interval_minutes,
  api.listen, api.mcp_listen,
  vector_store.host, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions

Use subcommands to get, set, or list configuration values:
  loom config set <key> <value>    Set a configuration value
  loom config get <key>            Get a configuration value
  loom config list                 List all configuration values

Examples:
  loom config set fact_backend.provider vector
  loom config set consolidation.threshold 0.9
  loom config get graph_backend.target
  loom config list`

const configShortDesc string = "Manage persistent loom configuration"

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
