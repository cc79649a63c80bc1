package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
)

// MockBackend is a test backend client that records writes and returns
// configurable results.
type MockBackend struct {
	// Backend is reported by ID.
	Backend memory.BackendID

	// SearchResults is returned by Search for any query.
	SearchResults []memory.Record

	// AllRecords is returned by GetAll.
	AllRecords []memory.Record

	// FailAdd causes Add to return an error.
	FailAdd bool

	// FailSearch causes Search to return an error.
	FailSearch bool

	// FailGetAll causes GetAll to return an error.
	FailGetAll bool

	mu      sync.Mutex
	added   []AddedRecord
	deleted []string
}

// AddedRecord captures one Add call.
type AddedRecord struct {
	UserID  string
	Content string
	Meta    backend.Metadata
}

// NewMockBackend creates a mock client reporting the given backend id.
func NewMockBackend(id memory.BackendID) *MockBackend {
	return &MockBackend{Backend: id}
}

func (m *MockBackend) Add(_ context.Context, userID, content string, meta backend.Metadata) (string, error) {
	if m.FailAdd {
		return "", fmt.Errorf("%w: mock add failure", memory.ErrBackendUnavailable)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, AddedRecord{UserID: userID, Content: content, Meta: meta})
	return fmt.Sprintf("%s-%d", m.Backend, len(m.added)), nil
}

func (m *MockBackend) Search(_ context.Context, _, _ string, limit int) ([]memory.Record, error) {
	if m.FailSearch {
		return nil, fmt.Errorf("%w: mock search failure", memory.ErrBackendUnavailable)
	}
	if limit > 0 && len(m.SearchResults) > limit {
		return m.SearchResults[:limit], nil
	}
	return m.SearchResults, nil
}

func (m *MockBackend) GetAll(_ context.Context, _ string) ([]memory.Record, error) {
	if m.FailGetAll {
		return nil, fmt.Errorf("%w: mock getall failure", memory.ErrBackendUnavailable)
	}
	return m.AllRecords, nil
}

func (m *MockBackend) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, recordID)
	return nil
}

func (m *MockBackend) ID() memory.BackendID {
	return m.Backend
}

func (m *MockBackend) Close() error {
	return nil
}

// Added returns a copy of the recorded Add calls.
func (m *MockBackend) Added() []AddedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AddedRecord, len(m.added))
	copy(out, m.added)
	return out
}

var _ backend.Client = (*MockBackend)(nil)
