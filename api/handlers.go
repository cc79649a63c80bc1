package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/memory"
)

// ErrorResponse is the JSON error body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RememberResponse summarizes the writes a turn produced.
type RememberResponse struct {
	Candidates int                  `json:"candidates"`
	Results    []memory.WriteResult `json:"results,omitempty"`
}

// ConsolidateRequest names the user to consolidate; empty means every user
// touched since the last cycle.
type ConsolidateRequest struct {
	UserID string `json:"user_id"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRemember accepts a conversation turn and routes its fact candidates.
func (s *Server) handleRemember(c *fiber.Ctx) error {
	var turn memory.ConversationTurn
	if err := c.BodyParser(&turn); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	results, err := s.coordinator.Remember(c.Context(), turn)
	if err != nil {
		return s.errorStatus(c, err)
	}

	return c.JSON(RememberResponse{
		Candidates: len(results),
		Results:    results,
	})
}

// handleRecall returns the merged memory context for a query.
func (s *Server) handleRecall(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	query := c.Query("query")
	maxEntries := c.QueryInt("max_entries")

	merged, err := s.coordinator.Recall(c.Context(), userID, query, maxEntries)
	if err != nil {
		return s.errorStatus(c, err)
	}

	return c.JSON(merged)
}

// handleConsolidate triggers an on-demand consolidation run.
func (s *Server) handleConsolidate(c *fiber.Ctx) error {
	var req ConsolidateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	report, err := s.coordinator.Consolidate(c.Context(), req.UserID)
	if err != nil {
		return s.errorStatus(c, err)
	}

	return c.JSON(report)
}

// handleListLinks returns a user's consolidation audit trail, oldest first.
func (s *Server) handleListLinks(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	links, err := s.links.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list links"})
	}

	return c.JSON(map[string]any{
		"count": len(links),
		"links": links,
	})
}

// errorStatus maps engine errors to HTTP statuses.
func (s *Server) errorStatus(c *fiber.Ctx, err error) error {
	s.logger.Warn("request failed",
		"path", c.Path(),
		"error", err,
	)

	switch {
	case errors.Is(err, memory.ErrInvalidTurn):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, memory.ErrWriteFailed):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, memory.ErrUnavailable), errors.Is(err, memory.ErrBackendUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
