// Package linkstore persists the append-only consolidation audit trail.
//
// A ConsolidationLink records that a canonical record supersedes a
// duplicate. Links are never mutated or deleted: a superseded record's
// invalidation lives here, which makes invalidation monotonic by
// construction. Nothing in the system can clear it.
//
// Stores are pluggable via configuration:
//
//	[links]
//	provider = "sqlite"   # or "postgres", "memory"
package linkstore

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// Store is the contract for persisting consolidation links.
type Store interface {
	// Append records a new link. Appending an already-linked pair is an
	// idempotent no-op.
	Append(ctx context.Context, link memory.ConsolidationLink) error

	// Linked reports whether the pair has already been consolidated, in
	// either direction.
	Linked(ctx context.Context, userID, recordA, recordB string) (bool, error)

	// Superseded returns record id -> detection time for every record
	// retired for the user.
	Superseded(ctx context.Context, userID string) (map[string]time.Time, error)

	// List returns the user's audit trail, oldest first.
	List(ctx context.Context, userID string) ([]memory.ConsolidationLink, error)

	// Close releases store resources.
	Close() error
}
