// Package route decides which backend(s) receive each fact candidate and
// executes the writes.
//
// Routing is a fixed dispatch table over the candidate's kind: temporal
// goes to the graph backend, factual to the fact backend, ambiguous to
// both. Writes for independent candidates run concurrently and are
// isolated: one candidate's failure never blocks or fails the others.
package route

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
	"github.com/loomworks/loom/pkg/utils"
)

// Router fans candidate writes out to the two backends.
type Router struct {
	graph  backend.Client
	fact   backend.Client
	logger *slog.Logger
}

// New creates a Router over the two backend clients.
func New(graph, fact backend.Client, logger *slog.Logger) *Router {
	return &Router{
		graph:  graph,
		fact:   fact,
		logger: logger,
	}
}

// targets resolves the dispatch table for a kind.
func (r *Router) targets(kind memory.Kind) []backend.Client {
	switch kind {
	case memory.KindTemporal:
		return []backend.Client{r.graph}
	case memory.KindFactual:
		return []backend.Client{r.fact}
	default:
		// Ambiguous candidates go to both; consolidation resolves the
		// duplication later.
		return []backend.Client{r.graph, r.fact}
	}
}

// Route writes every candidate to its backend(s) concurrently and reports
// the per-candidate outcomes. If no backend accepted any write, the results
// are returned alongside memory.ErrWriteFailed so the caller can retry the
// turn; duplicated retries are absorbed by consolidation.
func (r *Router) Route(ctx context.Context, userID string, candidates []memory.FactCandidate) ([]memory.WriteResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]memory.WriteResult, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate memory.FactCandidate) {
			defer wg.Done()
			results[i] = r.writeCandidate(ctx, userID, candidate)
		}(i, candidate)
	}
	wg.Wait()

	var succeeded int
	for _, res := range results {
		if res.Succeeded() {
			succeeded++
		}
	}

	if succeeded == 0 {
		return results, fmt.Errorf("%w: all %d candidate writes failed", memory.ErrWriteFailed, len(candidates))
	}

	r.logger.Debug("routed candidates",
		"user_id", userID,
		"candidates", len(candidates),
		"succeeded", succeeded,
	)

	return results, nil
}

// writeCandidate sends one candidate to its target backend(s), both
// concurrently when the dispatch table names two.
func (r *Router) writeCandidate(ctx context.Context, userID string, candidate memory.FactCandidate) memory.WriteResult {
	meta := backend.Metadata{
		Kind:       candidate.Kind,
		SessionID:  candidate.SourceTurn.SessionID,
		Confidence: candidate.Confidence,
		ValidAt:    candidate.SourceTurn.Timestamp,
	}

	targets := r.targets(candidate.Kind)
	writes := make([]memory.BackendWrite, len(targets))

	var wg sync.WaitGroup
	for i, client := range targets {
		wg.Add(1)
		go func(i int, client backend.Client) {
			defer wg.Done()

			recordID, err := client.Add(ctx, userID, candidate.Content, meta)
			writes[i] = memory.BackendWrite{
				Backend:  client.ID(),
				RecordID: recordID,
				Err:      err,
			}

			if err != nil {
				r.logger.Warn("backend write failed",
					"backend", client.ID(),
					"user_id", userID,
					"content", utils.Truncate(candidate.Content, 80),
					"error", err,
				)
			}
		}(i, client)
	}
	wg.Wait()

	return memory.WriteResult{
		Candidate: candidate,
		Writes:    writes,
	}
}
