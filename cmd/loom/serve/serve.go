// Package servecmder provides the serve command running the memory API
// server and the consolidation scheduler together.
package servecmder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loomworks/loom/api"
	"github.com/loomworks/loom/api/mcp"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/logger"
)

type ServeCommander struct {
	listen    string
	debug     bool
	configDir string
	viper     *viper.Viper
}

const serveLongDesc string = `Run the loom memory services.

Starts the HTTP API server, the MCP server, and the background
consolidation scheduler together. Configuration comes from flags,
LOOM_ environment variables, and .loom/config.toml, in that order.`

const serveShortDesc string = "Run the loom memory services"

var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagGraphTarget: {
		Name:        "graph-target",
		ViperKey:    "graph_backend.target",
		Description: "Graph memory service URL",
	},
	config.FlagFactProvider: {
		Name:        "fact-provider",
		ViperKey:    "fact_backend.provider",
		Description: "Fact backend provider (factmem, vector, memory)",
	},
	config.FlagFactTarget: {
		Name:        "fact-target",
		ViperKey:    "fact_backend.target",
		Description: "Fact memory service URL",
	},
	config.FlagLinksProvider: {
		Name:        "links-provider",
		ViperKey:    "links.provider",
		Description: "Consolidation link store provider (sqlite, postgres, memory)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "links.sqlite_path",
		Description: "Path to the SQLite link store database",
	},
	config.FlagEventsProv: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Audit event stream provider (nop, kafka)",
	},
	config.FlagInterval: {
		Name:        "interval",
		ViperKey:    "consolidation.interval_minutes",
		Description: "Minutes between scheduled consolidation runs",
	},
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	var interval int
	var graphTarget, factProvider, factTarget, linksProvider, sqlitePath, eventsProvider string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.viper, cmd, serveFlags, []string{
				config.FlagAPIListen,
				config.FlagGraphTarget,
				config.FlagFactProvider,
				config.FlagFactTarget,
				config.FlagLinksProvider,
				config.FlagSQLite,
				config.FlagEventsProv,
				config.FlagInterval,
			})
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagGraphTarget, &graphTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagFactProvider, &factProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagFactTarget, &factTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagLinksProvider, &linksProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProv, &eventsProvider)
	config.AddIntFlag(cmd, serveFlags, config.FlagInterval, &interval)

	return cmd
}

func (c *ServeCommander) run() error {
	opts := []logger.Option{}
	if c.debug {
		opts = append(opts, logger.WithDebug(true))
	}
	log := logger.New(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := BuildEngine(ctx, c.viper, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	apiConfig := api.Config{
		ListenAddr: c.viper.GetString("api.listen"),
	}
	apiServer := api.NewServer(apiConfig, engine.Coordinator, engine.Links, log)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Coordinator: engine.Coordinator,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	mcpListen := c.viper.GetString("api.mcp_listen")
	var mcpHTTP *http.Server
	if mcpListen != "" {
		mcpHTTP = &http.Server{
			Addr:    mcpListen,
			Handler: mcpServer.Handler(),
		}
		log.Info("starting MCP server",
			"listen", mcpListen,
		)
		go func() {
			if err := mcpHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("MCP server error: %w", err)
			}
		}()
	}

	go engine.Scheduler.Run(ctx)

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down",
			"signal", sig.String(),
		)
		cancel()
		if mcpHTTP != nil {
			_ = mcpHTTP.Shutdown(context.Background())
		}
		return apiServer.Shutdown()
	}
}
