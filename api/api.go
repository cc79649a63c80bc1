package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	"github.com/loomworks/loom/pkg/coordinator"
)

// Server is the API server exposing remember, recall, and consolidate.
type Server struct {
	config      Config
	coordinator *coordinator.Coordinator
	links       linkstore.Store
	logger      *slog.Logger
	app         *fiber.App
}

// NewServer creates a new API server. The coordinator and link store are
// injected to allow sharing with the consolidation scheduler.
func NewServer(config Config, coord *coordinator.Coordinator, links linkstore.Store, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:      config,
		coordinator: coord,
		links:       links,
		logger:      logger,
		app:         app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/memory/remember", s.handleRemember)
	app.Get("/v1/memory/recall", s.handleRecall)
	app.Post("/v1/memory/consolidate", s.handleConsolidate)
	app.Get("/v1/memory/links/:user_id", s.handleListLinks)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
