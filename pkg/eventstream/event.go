// Package eventstream defines transport-neutral audit events emitted when
// consolidation retires a duplicate record, plus pluggable publishers.
package eventstream

import (
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeLinkCreated is emitted after a consolidation link is
	// appended to the audit trail.
	EventTypeLinkCreated = "loom.consolidation.link.created"
)

// LinkCreatedEvent is a transport-neutral payload for a created link.
type LinkCreatedEvent struct {
	SchemaVersion int                      `json:"schema_version"`
	EventType     string                   `json:"event_type"`
	EventID       string                   `json:"event_id"`
	EmittedAt     time.Time                `json:"emitted_at"`
	Source        EventSource              `json:"source"`
	Link          memory.ConsolidationLink `json:"link"`
}

// EventSource identifies where the consolidation decision was made.
type EventSource struct {
	// Trigger is "scheduled" or "on_demand".
	Trigger string `json:"trigger"`

	// CanonicalBackend is the backend holding the surviving record.
	CanonicalBackend memory.BackendID `json:"canonical_backend"`
}
