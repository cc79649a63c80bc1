// Package backend defines the client contract for the two external memory
// services and the shared retry policy their adapters use.
//
// Adapters are thin and stateless: every call is scoped to one user, carries
// a bounded timeout, and is retried on transient failure. A backend that
// stays unreachable is reported as memory.ErrBackendUnavailable so callers
// can degrade gracefully instead of failing a whole conversation turn.
//
// The graph side always talks to the graph memory service; the fact side
// is pluggable via configuration:
//
//	[fact_backend]
//	provider = "factmem"  # or "vector", "memory"
package backend

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// Metadata accompanies a write so backends can record scope and provenance.
type Metadata struct {
	// Kind is the routing classification of the candidate.
	Kind memory.Kind

	// SessionID scopes session-bound statements.
	SessionID string

	// Confidence is the normalizer's classification confidence.
	Confidence float64

	// ValidAt is the time the stated fact became true, taken from the
	// source turn's timestamp.
	ValidAt time.Time
}

// Client is the capability-typed contract both memory backends expose.
type Client interface {
	// Add stores one fact for the user and returns the backend record id.
	Add(ctx context.Context, userID, content string, meta Metadata) (string, error)

	// Search returns up to limit records relevant to the query, scoped to
	// the user. Results carry backend-native relevance scores when the
	// service reports them.
	Search(ctx context.Context, userID, query string, limit int) ([]memory.Record, error)

	// GetAll returns every record the backend holds for the user.
	GetAll(ctx context.Context, userID string) ([]memory.Record, error)

	// Delete removes a record by id. The coordinator itself never calls
	// this; it exists for operational tooling.
	Delete(ctx context.Context, recordID string) error

	// ID reports which backend this client fronts.
	ID() memory.BackendID

	// Close releases client resources.
	Close() error
}

// DefaultSearchLimit applies when a caller passes limit <= 0.
const DefaultSearchLimit = 10
