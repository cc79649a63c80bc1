package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/eventstream"
)

// MockPublisher records published link events.
type MockPublisher struct {
	// FailPublish causes PublishLink to return an error.
	FailPublish bool

	mu     sync.Mutex
	events []*eventstream.LinkCreatedEvent
}

// NewMockPublisher creates an empty mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishLink(_ context.Context, event *eventstream.LinkCreatedEvent) error {
	if event == nil {
		return eventstream.ErrNilLinkEvent
	}
	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*eventstream.LinkCreatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.LinkCreatedEvent, len(m.events))
	copy(out, m.events)
	return out
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
