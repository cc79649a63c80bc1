// Package hybrid merges both memory backends into one ranked view.
//
// A recall fans out to the graph and fact backends concurrently, merges
// and deduplicates the two result lists, ranks them by a composite of
// backend relevance and recency, and bounds the result. The merge and rank
// steps are pure functions of the backend responses and the clock. This
// is the contract that decides what the downstream model "remembers", so
// it must be deterministic and unit-testable without live services.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
)

const (
	// DefaultMaxEntries bounds a merged context when the caller passes
	// maxEntries <= 0.
	DefaultMaxEntries = 10

	// DefaultRelevanceWeight weights the backend-native score.
	DefaultRelevanceWeight = 0.7

	// DefaultRecencyWeight weights the recency decay.
	DefaultRecencyWeight = 0.3

	// DefaultHalfLife is the recency decay half-life.
	DefaultHalfLife = 30 * 24 * time.Hour
)

// Config holds the ranking weights and the result bound. Zero values fall
// back to defaults.
type Config struct {
	RelevanceWeight float64
	RecencyWeight   float64
	HalfLife        time.Duration

	// MaxEntries bounds a merged context when the caller does not ask for
	// a specific limit.
	MaxEntries int
}

func (c Config) withDefaults() Config {
	if c.RelevanceWeight <= 0 {
		c.RelevanceWeight = DefaultRelevanceWeight
	}
	if c.RecencyWeight <= 0 {
		c.RecencyWeight = DefaultRecencyWeight
	}
	if c.HalfLife <= 0 {
		c.HalfLife = DefaultHalfLife
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	return c
}

// SupersededView reports record ids retired by consolidation for a user.
// Implemented by the consolidation link store.
type SupersededView interface {
	Superseded(ctx context.Context, userID string) (map[string]time.Time, error)
}

// Engine is the hybrid query engine.
type Engine struct {
	config     Config
	graph      backend.Client
	fact       backend.Client
	superseded SupersededView
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Engine over the two backends. The superseded view may be
// nil when no link store is configured.
func New(config Config, graph, fact backend.Client, superseded SupersededView, logger *slog.Logger) *Engine {
	return &Engine{
		config:     config.withDefaults(),
		graph:      graph,
		fact:       fact,
		superseded: superseded,
		logger:     logger,
		now:        time.Now,
	}
}

// searchOutcome is one backend's search result for the fan-in.
type searchOutcome struct {
	backend memory.BackendID
	records []memory.Record
	err     error
}

// Recall queries both backends concurrently and returns the merged,
// deduplicated, ranked context.
//
// Partial-result policy: if one backend fails or times out, the other's
// results are returned with Truncated set. If both fail, the error wraps
// memory.ErrUnavailable and the caller decides whether to answer without
// memory; a memory outage never blocks a conversation turn.
func (e *Engine) Recall(ctx context.Context, userID, query string, maxEntries int) (memory.MergedContext, error) {
	if maxEntries <= 0 {
		maxEntries = e.config.MaxEntries
	}

	outcomes := make(chan searchOutcome, 2)
	for _, client := range []backend.Client{e.graph, e.fact} {
		go func(client backend.Client) {
			records, err := client.Search(ctx, userID, query, maxEntries)
			outcomes <- searchOutcome{backend: client.ID(), records: records, err: err}
		}(client)
	}

	var lists [][]memory.Record
	var failures []error
	for range 2 {
		outcome := <-outcomes
		if outcome.err != nil {
			e.logger.Warn("backend search failed, degrading to partial results",
				"backend", outcome.backend,
				"user_id", userID,
				"error", outcome.err,
			)
			failures = append(failures, outcome.err)
			continue
		}
		lists = append(lists, outcome.records)
	}

	if len(lists) == 0 {
		return memory.MergedContext{}, fmt.Errorf("%w: %w", memory.ErrUnavailable, failures[0])
	}

	retired := e.retired(ctx, userID)

	merged := Merge(lists, retired)
	ranked := Rank(merged, e.now(), e.config)

	truncated := len(failures) > 0
	if len(ranked) > maxEntries {
		ranked = ranked[:maxEntries]
		truncated = true
	}

	return memory.MergedContext{
		UserID:    userID,
		Entries:   ranked,
		Truncated: truncated,
	}, nil
}

// retired fetches the consolidation-superseded record ids. A link store
// failure degrades to no exclusions rather than failing the recall.
func (e *Engine) retired(ctx context.Context, userID string) map[string]time.Time {
	if e.superseded == nil {
		return nil
	}

	retired, err := e.superseded.Superseded(ctx, userID)
	if err != nil {
		e.logger.Warn("could not load superseded records",
			"user_id", userID,
			"error", err,
		)
		return nil
	}
	return retired
}
