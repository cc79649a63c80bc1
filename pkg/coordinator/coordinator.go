// Package coordinator is the facade over the hybrid memory engine. It
// owns the three operations callers see (remember, recall, consolidate)
// and the bookkeeping that connects them: which users have been written
// to since the last consolidation cycle.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loomworks/loom/pkg/consolidate"
	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/normalize"
	"github.com/loomworks/loom/pkg/route"
)

// Coordinator wires the normalizer, router, hybrid engine, and
// consolidator behind one API. It also implements consolidate.UserSource
// so the scheduler only revisits users that writes actually touched.
type Coordinator struct {
	normalizer   *normalize.Normalizer
	router       *route.Router
	engine       *hybrid.Engine
	consolidator *consolidate.Consolidator
	logger       *slog.Logger

	mu      sync.Mutex
	touched map[string]struct{}
}

// New creates a Coordinator.
func New(normalizer *normalize.Normalizer, router *route.Router, engine *hybrid.Engine, consolidator *consolidate.Consolidator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		normalizer:   normalizer,
		router:       router,
		engine:       engine,
		consolidator: consolidator,
		logger:       logger,
		touched:      make(map[string]struct{}),
	}
}

// Remember normalizes a turn into fact candidates and routes the writes.
// A turn that yields no candidates is a successful no-op. The returned
// results report the per-candidate write outcomes.
func (c *Coordinator) Remember(ctx context.Context, turn memory.ConversationTurn) ([]memory.WriteResult, error) {
	candidates, err := c.normalizer.Normalize(turn)
	if err != nil {
		return nil, fmt.Errorf("normalizing turn: %w", err)
	}
	if len(candidates) == 0 {
		c.logger.Debug("turn yielded no candidates",
			"user_id", turn.UserID,
			"session_id", turn.SessionID,
		)
		return nil, nil
	}

	results, err := c.router.Route(ctx, turn.UserID, candidates)
	if err != nil {
		return results, err
	}

	c.touch(turn.UserID)

	return results, nil
}

// Recall returns the merged, ranked memory context for a query.
func (c *Coordinator) Recall(ctx context.Context, userID, query string, maxEntries int) (memory.MergedContext, error) {
	return c.engine.Recall(ctx, userID, query, maxEntries)
}

// Consolidate runs duplicate detection on demand. An empty userID runs
// over every user touched since the last cycle; otherwise only the named
// user is scanned and their touched mark is kept for the next scheduled
// pass.
func (c *Coordinator) Consolidate(ctx context.Context, userID string) (memory.ConsolidationReport, error) {
	if userID != "" {
		return c.consolidator.RunUser(ctx, userID, consolidate.TriggerOnDemand)
	}

	var report memory.ConsolidationReport
	for _, user := range c.Drain() {
		userReport, err := c.consolidator.RunUser(ctx, user, consolidate.TriggerOnDemand)
		if err != nil {
			c.logger.Warn("consolidation failed for user",
				"user_id", user,
				"error", err,
			)
			userReport.Errors = append(userReport.Errors, err.Error())
		}
		report.Merge(userReport)
	}
	return report, nil
}

// Drain returns the users touched since the last call and clears the set.
func (c *Coordinator) Drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := make([]string, 0, len(c.touched))
	for user := range c.touched {
		users = append(users, user)
	}
	c.touched = make(map[string]struct{})
	return users
}

func (c *Coordinator) touch(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched[userID] = struct{}{}
}

var _ consolidate.UserSource = (*Coordinator)(nil)
