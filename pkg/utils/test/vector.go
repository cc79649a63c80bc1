package testutils

import (
	"context"
	"sync"

	"github.com/loomworks/loom/pkg/vector"
)

// MockVectorDriver is an in-process vector driver for tests. Query ignores
// the embedding and returns the user's documents in insertion order.
type MockVectorDriver struct {
	// FailQuery causes Query to return vector.ErrConnection.
	FailQuery bool

	mu   sync.Mutex
	docs []vector.Document
}

// NewMockVectorDriver creates an empty mock vector driver.
func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range docs {
		replaced := false
		for i, existing := range m.docs {
			if existing.ID == doc.ID {
				m.docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			m.docs = append(m.docs, doc)
		}
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, userID string, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, vector.ErrConnection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vector.QueryResult
	for _, doc := range m.docs {
		if doc.UserID != userID {
			continue
		}
		out = append(out, vector.QueryResult{Document: doc, Score: 0.9})
		if topK > 0 && len(out) == topK {
			break
		}
	}
	return out, nil
}

func (m *MockVectorDriver) List(_ context.Context, userID string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vector.Document
	for _, doc := range m.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.docs[:0]
	for _, doc := range m.docs {
		remove := false
		for _, id := range ids {
			if doc.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, doc)
		}
	}
	m.docs = kept
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
