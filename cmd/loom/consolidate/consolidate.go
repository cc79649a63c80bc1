// Package consolidatecmder provides the on-demand consolidation command.
package consolidatecmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	servecmder "github.com/loomworks/loom/cmd/loom/serve"
	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/memory"
)

type consolidateCommander struct {
	userID    string
	debug     bool
	configDir string
}

const consolidateLongDesc string = `Run a consolidation pass on demand.

Scans a user's records across both memory backends, links duplicates in
the append-only audit trail, and reports what was done. Requires
--user-id: the scheduled background pass covers users touched by recent
writes, but an on-demand run names its target explicitly.`

const consolidateShortDesc string = "Run an on-demand consolidation pass"

func NewConsolidateCmd() *cobra.Command {
	cmder := &consolidateCommander{}

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: consolidateShortDesc,
		Long:  consolidateLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user-id", "u", "", "User to consolidate (required)")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func (c *consolidateCommander) run() error {
	opts := []logger.Option{}
	if c.debug {
		opts = append(opts, logger.WithDebug(true))
	}
	log := logger.New(opts...)

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}

	ctx := context.Background()

	engine, err := servecmder.BuildEngine(ctx, v, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	var report memory.ConsolidationReport
	err = cliui.Step(os.Stdout, fmt.Sprintf("Consolidating memories for %s", c.userID), func() error {
		var runErr error
		report, runErr = engine.Coordinator.Consolidate(ctx, c.userID)
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s  %d\n  %s  %d\n  %s  %d\n\n",
		cliui.KeyStyle.Render("Pairs compared:"), report.PairsCompared,
		cliui.KeyStyle.Render("Links created: "), report.LinksCreated,
		cliui.KeyStyle.Render("Skipped:       "), report.Skipped,
	)

	return nil
}
