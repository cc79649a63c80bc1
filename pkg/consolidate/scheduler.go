package consolidate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// DefaultInterval is the cadence of scheduled consolidation runs.
const DefaultInterval = time.Hour

// UserSource supplies the users touched by writes since the last cycle.
// Draining is destructive: returned users are the caller's to process.
type UserSource interface {
	Drain() []string
}

// Scheduler runs consolidation on a fixed cadence, fully decoupled from
// request handling. Per-user failures are isolated: one user's error
// never aborts the batch. Users drained but not processed before a
// cancellation are carried over to the next run.
type Scheduler struct {
	consolidator *Consolidator
	source       UserSource
	interval     time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	pending []string
}

// NewScheduler creates a Scheduler. interval <= 0 means DefaultInterval.
func NewScheduler(consolidator *Consolidator, source UserSource, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		consolidator: consolidator,
		source:       source,
		interval:     interval,
		logger:       logger,
	}
}

// Run ticks until the context is cancelled. Call in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("consolidation scheduler started",
		"interval", s.interval,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("consolidation scheduler stopped")
			return
		case <-ticker.C:
			report := s.RunOnce(ctx)
			s.logger.Info("scheduled consolidation finished",
				"users", report.UsersScanned,
				"pairs", report.PairsCompared,
				"links", report.LinksCreated,
				"skipped", report.Skipped,
			)
		}
	}
}

// RunOnce drains the touched-user set, prepends any carry-over from an
// interrupted run, and consolidates each user with bounded concurrency.
func (s *Scheduler) RunOnce(ctx context.Context) memory.ConsolidationReport {
	users := dedupe(append(s.takePending(), s.source.Drain()...))
	if len(users) == 0 {
		return memory.ConsolidationReport{}
	}

	// Two workers keeps backend load gentle without serializing the batch.
	const maxConcurrency = 2
	sem := make(chan struct{}, maxConcurrency)

	var mu sync.Mutex
	var report memory.ConsolidationReport

	var wg sync.WaitGroup
	for i, userID := range users {
		if ctx.Err() != nil {
			s.requeue(users[i:])
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			userReport, err := s.consolidator.RunUser(ctx, userID, TriggerScheduled)
			if err != nil {
				s.logger.Warn("consolidation failed for user",
					"user_id", userID,
					"error", err,
				)
				userReport.Errors = append(userReport.Errors, err.Error())
			}

			mu.Lock()
			report.Merge(userReport)
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	return report
}

// takePending claims the carry-over users from an interrupted run.
func (s *Scheduler) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pending
	s.pending = nil
	return pending
}

// requeue holds unprocessed users for the next run so their touched
// marks are not lost to a cancellation.
func (s *Scheduler) requeue(users []string) {
	if len(users) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, users...)
}

// dedupe removes repeated users, keeping first occurrence order.
func dedupe(users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := users[:0]
	for _, userID := range users {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		out = append(out, userID)
	}
	return out
}
