// Package inmemory provides an in-process consolidation link store for
// local dev and tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	"github.com/loomworks/loom/pkg/memory"
)

// Store implements linkstore.Store using in-process data structures.
type Store struct {
	mu sync.RWMutex

	// links maps user id -> append-ordered links.
	links map[string][]memory.ConsolidationLink
}

// NewStore creates an in-memory link store.
func NewStore() *Store {
	return &Store{
		links: make(map[string][]memory.ConsolidationLink),
	}
}

// Append records a new link. Re-appending an existing pair is a no-op.
func (s *Store) Append(_ context.Context, link memory.ConsolidationLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.links[link.UserID] {
		if existing.CanonicalID == link.CanonicalID && existing.SupersededID == link.SupersededID {
			return nil
		}
	}

	s.links[link.UserID] = append(s.links[link.UserID], link)
	return nil
}

// Linked reports whether the pair has been consolidated in either direction.
func (s *Store) Linked(_ context.Context, userID, recordA, recordB string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.links[userID] {
		if (link.CanonicalID == recordA && link.SupersededID == recordB) ||
			(link.CanonicalID == recordB && link.SupersededID == recordA) {
			return true, nil
		}
	}
	return false, nil
}

// Superseded returns every retired record id for the user.
func (s *Store) Superseded(_ context.Context, userID string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	retired := make(map[string]time.Time)
	for _, link := range s.links[userID] {
		if _, ok := retired[link.SupersededID]; !ok {
			retired[link.SupersededID] = link.DetectedAt
		}
	}
	return retired, nil
}

// List returns the user's audit trail in append order.
func (s *Store) List(_ context.Context, userID string) ([]memory.ConsolidationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := make([]memory.ConsolidationLink, len(s.links[userID]))
	copy(links, s.links[userID])
	return links, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

var _ linkstore.Store = (*Store)(nil)
