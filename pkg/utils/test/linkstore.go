package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	"github.com/loomworks/loom/pkg/memory"
)

// MockLinkStore is an in-process link store that records appends and can
// be told to fail.
type MockLinkStore struct {
	// FailAppend causes Append to return an error.
	FailAppend bool

	// FailSuperseded causes Superseded to return an error.
	FailSuperseded bool

	mu    sync.Mutex
	links []memory.ConsolidationLink
}

// NewMockLinkStore creates an empty mock link store.
func NewMockLinkStore() *MockLinkStore {
	return &MockLinkStore{}
}

func (m *MockLinkStore) Append(_ context.Context, link memory.ConsolidationLink) error {
	if m.FailAppend {
		return fmt.Errorf("mock append failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.links {
		if existing.UserID == link.UserID &&
			existing.CanonicalID == link.CanonicalID &&
			existing.SupersededID == link.SupersededID {
			return nil
		}
	}
	m.links = append(m.links, link)
	return nil
}

func (m *MockLinkStore) Linked(_ context.Context, userID, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.UserID != userID {
			continue
		}
		if (link.CanonicalID == a && link.SupersededID == b) ||
			(link.CanonicalID == b && link.SupersededID == a) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLinkStore) Superseded(_ context.Context, userID string) (map[string]time.Time, error) {
	if m.FailSuperseded {
		return nil, fmt.Errorf("mock superseded failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time)
	for _, link := range m.links {
		if link.UserID != userID {
			continue
		}
		if _, ok := out[link.SupersededID]; !ok {
			out[link.SupersededID] = link.DetectedAt
		}
	}
	return out, nil
}

func (m *MockLinkStore) List(_ context.Context, userID string) ([]memory.ConsolidationLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []memory.ConsolidationLink
	for _, link := range m.links {
		if link.UserID == userID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *MockLinkStore) Close() error {
	return nil
}

// Links returns a copy of every appended link.
func (m *MockLinkStore) Links() []memory.ConsolidationLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memory.ConsolidationLink, len(m.links))
	copy(out, m.links)
	return out
}

var _ linkstore.Store = (*MockLinkStore)(nil)
