// Package loomcmder
package loomcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/loomworks/loom/cmd/loom/config"
	consolidatecmder "github.com/loomworks/loom/cmd/loom/consolidate"
	servecmder "github.com/loomworks/loom/cmd/loom/serve"
	versioncmder "github.com/loomworks/loom/cmd/version"
)

const loomLongDesc string = `Loom is a hybrid memory coordination engine for conversational assistants.

It coordinates two external memory backends, a temporal/relationship graph
store and a semantic fact store, behind one API:
  loom serve          Run the memory API server and consolidation scheduler
  loom consolidate    Run an on-demand consolidation pass
  loom config         Manage persistent configuration`

const loomShortDesc string = "Loom - Hybrid Memory Coordination"

func NewLoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loom",
		Short: loomShortDesc,
		Long:  loomLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .loom/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(consolidatecmder.NewConsolidateCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
