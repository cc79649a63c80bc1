// Package vecmem implements a self-hosted Fact Memory backend over a
// vector store.
//
// Instead of delegating to a hosted fact service, vecmem embeds each fact
// with a configured embedder and stores the vector in a vector.Driver
// (Qdrant in production). Semantic search is a query-embedding similarity
// lookup scoped to the user.
package vecmem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/embeddings"
	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
	"github.com/loomworks/loom/pkg/vector"
)

// Client implements backend.Client over a vector driver and embedder.
type Client struct {
	driver   vector.Driver
	embedder embeddings.Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient creates a vector-backed fact memory client.
func NewClient(driver vector.Driver, embedder embeddings.Embedder, logger *slog.Logger) (*Client, error) {
	if driver == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	return &Client{
		driver:   driver,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ID reports the backend identity.
func (c *Client) ID() memory.BackendID {
	return memory.BackendFact
}

// Add embeds the content and upserts it as a document.
func (c *Client) Add(ctx context.Context, userID, content string, meta backend.Metadata) (string, error) {
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	embedding, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embedding fact: %w", err)
	}

	validAt := meta.ValidAt
	if validAt.IsZero() {
		validAt = c.now()
	}

	doc := vector.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Embedding: embedding,
		ValidAt:   validAt,
		CreatedAt: c.now(),
	}

	if err := c.driver.Add(ctx, []vector.Document{doc}); err != nil {
		return "", fmt.Errorf("storing fact vector: %w", err)
	}

	c.logger.Debug("added fact to vector memory",
		"user_id", userID,
		"record_id", doc.ID,
	)

	return doc.ID, nil
}

// Search embeds the query and returns the most similar facts.
func (c *Client) Search(ctx context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = backend.DefaultSearchLimit
	}

	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := c.driver.Query(ctx, userID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fact vectors: %w", err)
	}

	records := make([]memory.Record, 0, len(results))
	for _, res := range results {
		rec := recordFromDocument(res.Document)
		rec.Score = float64(res.Score)
		rec.HasScore = true
		records = append(records, rec)
	}

	return records, nil
}

// GetAll returns every fact stored for the user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]memory.Record, error) {
	docs, err := c.driver.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing fact vectors: %w", err)
	}

	records := make([]memory.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, recordFromDocument(doc))
	}

	return records, nil
}

// Delete removes a fact by id.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	if err := c.driver.Delete(ctx, []string{recordID}); err != nil {
		return fmt.Errorf("deleting fact vector: %w", err)
	}
	return nil
}

// Close releases the driver and embedder.
func (c *Client) Close() error {
	if err := c.embedder.Close(); err != nil {
		return err
	}
	return c.driver.Close()
}

func recordFromDocument(doc vector.Document) memory.Record {
	return memory.Record{
		ID:        doc.ID,
		Backend:   memory.BackendFact,
		UserID:    doc.UserID,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
		ValidAt:   doc.ValidAt,
	}
}

var _ backend.Client = (*Client)(nil)
