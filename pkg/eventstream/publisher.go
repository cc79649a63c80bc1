package eventstream

import "context"

// Publisher publishes consolidation audit events to an event stream backend.
type Publisher interface {
	PublishLink(ctx context.Context, event *LinkCreatedEvent) error
	Close() error
}
