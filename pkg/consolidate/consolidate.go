// Package consolidate detects semantic duplicates across the two memory
// backends and retires them without deleting data.
//
// A run snapshots both backends' records for a user, compares every
// not-yet-linked pair with the same similarity comparator recall uses for
// deduplication, and when a pair crosses the threshold designates one
// record canonical and appends a ConsolidationLink. The superseded record
// is never hard-deleted: its invalidation lives in the append-only link
// store, so once retired it stays retired.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
)

const (
	// DefaultThreshold is the similarity above which a pair is
	// consolidated.
	DefaultThreshold = 0.85

	// DefaultConflictMargin is the band below the threshold where scoring
	// is considered too ambiguous to act on. Such pairs are skipped and
	// retried next cycle.
	DefaultConflictMargin = 0.05
)

// Trigger values recorded on emitted audit events.
const (
	TriggerScheduled = "scheduled"
	TriggerOnDemand  = "on_demand"
)

// Config holds consolidation tuning. Zero values fall back to defaults.
type Config struct {
	Threshold      float64
	ConflictMargin float64
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ConflictMargin <= 0 {
		c.ConflictMargin = DefaultConflictMargin
	}
	return c
}

// Consolidator runs duplicate detection for one user at a time.
type Consolidator struct {
	config Config
	graph  backend.Client
	fact   backend.Client
	links  linkstore.Store
	events eventstream.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Consolidator.
func New(config Config, graph, fact backend.Client, links linkstore.Store, events eventstream.Publisher, logger *slog.Logger) *Consolidator {
	return &Consolidator{
		config: config.withDefaults(),
		graph:  graph,
		fact:   fact,
		links:  links,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// RunUser consolidates one user's records. Both backend snapshots are
// fetched before any comparison so the pass never compares against a
// half-written state, and no lock is held across a network call.
func (c *Consolidator) RunUser(ctx context.Context, userID, trigger string) (memory.ConsolidationReport, error) {
	report := memory.ConsolidationReport{UsersScanned: 1}

	graphRecords, err := c.graph.GetAll(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("snapshotting graph memory: %w", err)
	}
	factRecords, err := c.fact.GetAll(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("snapshotting fact memory: %w", err)
	}

	retired, err := c.links.Superseded(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("loading superseded records: %w", err)
	}

	records := make([]memory.Record, 0, len(graphRecords)+len(factRecords))
	records = append(records, graphRecords...)
	records = append(records, factRecords...)

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]

			if a.ID == b.ID {
				continue
			}
			if _, gone := retired[a.ID]; gone {
				continue
			}
			if _, gone := retired[b.ID]; gone {
				continue
			}
			if a.InvalidatedAt != nil || b.InvalidatedAt != nil {
				continue
			}

			linked, err := c.links.Linked(ctx, userID, a.ID, b.ID)
			if err != nil {
				return report, fmt.Errorf("checking existing link: %w", err)
			}
			if linked {
				continue
			}

			report.PairsCompared++

			similarity := hybrid.Similarity(a.Content, b.Content)
			if similarity < c.config.Threshold {
				if similarity >= c.config.Threshold-c.config.ConflictMargin {
					// Too close to call; leave the pair for the next
					// cycle rather than guess.
					report.Skipped++
					c.logger.Debug("skipping ambiguous pair",
						"user_id", userID,
						"similarity", similarity,
						"error", memory.ErrConsolidationConflict,
					)
				}
				continue
			}

			canonical, superseded := chooseCanonical(a, b)

			link := memory.ConsolidationLink{
				ID:           uuid.NewString(),
				UserID:       userID,
				CanonicalID:  canonical.ID,
				SupersededID: superseded.ID,
				Similarity:   similarity,
				DetectedAt:   c.now(),
			}

			if err := c.links.Append(ctx, link); err != nil {
				return report, fmt.Errorf("appending link: %w", err)
			}
			retired[superseded.ID] = link.DetectedAt
			report.LinksCreated++

			c.publish(ctx, link, canonical.Backend, trigger)

			c.logger.Info("consolidated duplicate records",
				"user_id", userID,
				"canonical", canonical.ID,
				"superseded", superseded.ID,
				"similarity", similarity,
			)
		}
	}

	return report, nil
}

// publish emits the audit event; emission failures are logged, never fatal.
func (c *Consolidator) publish(ctx context.Context, link memory.ConsolidationLink, canonicalBackend memory.BackendID, trigger string) {
	if c.events == nil {
		return
	}

	event := &eventstream.LinkCreatedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeLinkCreated,
		EventID:       uuid.NewString(),
		EmittedAt:     c.now(),
		Source: eventstream.EventSource{
			Trigger:          trigger,
			CanonicalBackend: canonicalBackend,
		},
		Link: link,
	}

	if err := c.events.PublishLink(ctx, event); err != nil {
		c.logger.Warn("could not publish link event",
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// attributeMarkers suggest stable attribute content, which the fact
// backend should own.
var attributeMarkers = []string{
	" i am ", " i'm ", " i live ", " i work ", " i like ", " i love ",
	" i prefer ", " my favorite ",
}

// relationshipStyleMarkers suggest relationship content, which the graph
// backend should own.
var relationshipStyleMarkers = []string{
	" name is ", " my friend ", " my wife ", " my husband ", " my sister ",
	" my brother ", " my boss ", " met ",
}

// chooseCanonical picks the surviving record of a duplicate pair:
// attribute-style content prefers the fact backend, relationship-style
// prefers graph, then later ValidAt, then lexically smaller id.
func chooseCanonical(a, b memory.Record) (canonical, superseded memory.Record) {
	if a.Backend != b.Backend {
		preferred := preferredBackend(a.Content + " " + b.Content)
		if preferred != "" {
			if a.Backend == preferred {
				return a, b
			}
			return b, a
		}
	}

	if !a.ValidAt.Equal(b.ValidAt) {
		if a.ValidAt.After(b.ValidAt) {
			return a, b
		}
		return b, a
	}

	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

func preferredBackend(content string) memory.BackendID {
	lower := " " + strings.ToLower(content) + " "

	var attribute, relationship bool
	for _, marker := range attributeMarkers {
		if strings.Contains(lower, marker) {
			attribute = true
			break
		}
	}
	for _, marker := range relationshipStyleMarkers {
		if strings.Contains(lower, marker) {
			relationship = true
			break
		}
	}

	switch {
	case attribute && !relationship:
		return memory.BackendFact
	case relationship && !attribute:
		return memory.BackendGraph
	default:
		return ""
	}
}
