// Package inmemory provides an in-process implementation of backend.Client.
//
// Records are kept in per-user maps and scored by naive token overlap. This
// is a local-dev and test story; production deployments point the adapters
// at real graph/fact services.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
)

// Config holds configuration for the in-memory backend.
type Config struct {
	// Backend is the identity this client reports (graph or fact).
	Backend memory.BackendID
}

// Client implements backend.Client using in-process data structures.
type Client struct {
	config Config

	mu sync.RWMutex

	// records maps user id -> record id -> record.
	records map[string]map[string]memory.Record

	now func() time.Time
}

// NewClient creates an in-memory backend client.
func NewClient(config Config) *Client {
	return &Client{
		config:  config,
		records: make(map[string]map[string]memory.Record),
		now:     time.Now,
	}
}

// ID reports the configured backend identity.
func (c *Client) ID() memory.BackendID {
	return c.config.Backend
}

// Add stores one fact for the user.
func (c *Client) Add(_ context.Context, userID, content string, meta backend.Metadata) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	validAt := meta.ValidAt
	if validAt.IsZero() {
		validAt = c.now()
	}

	rec := memory.Record{
		ID:        uuid.NewString(),
		Backend:   c.config.Backend,
		UserID:    userID,
		Content:   content,
		CreatedAt: c.now(),
		ValidAt:   validAt,
	}

	if c.records[userID] == nil {
		c.records[userID] = make(map[string]memory.Record)
	}
	c.records[userID][rec.ID] = rec

	return rec.ID, nil
}

// Search scores the user's records by token overlap with the query and
// returns the top limit matches.
func (c *Client) Search(_ context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = backend.DefaultSearchLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	queryTokens := tokenize(query)

	var matches []memory.Record
	for _, rec := range c.records[userID] {
		score := overlap(queryTokens, tokenize(rec.Content))
		if score == 0 {
			continue
		}
		rec.Score = score
		rec.HasScore = true
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// GetAll returns copies of every record stored for the user.
func (c *Client) GetAll(_ context.Context, userID string) ([]memory.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]memory.Record, 0, len(c.records[userID]))
	for _, rec := range c.records[userID] {
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// Delete removes a record by id across all users.
func (c *Client) Delete(_ context.Context, recordID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, byID := range c.records {
		delete(byID, recordID)
	}
	return nil
}

// Close is a no-op for the in-memory client.
func (c *Client) Close() error {
	return nil
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

// overlap is the fraction of query tokens present in the content.
func overlap(query, content map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	var hits int
	for tok := range query {
		if _, ok := content[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

var _ backend.Client = (*Client)(nil)
