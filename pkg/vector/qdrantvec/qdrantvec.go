// Package qdrantvec provides a Qdrant vector database driver implementation.
package qdrantvec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/loomworks/loom/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for fact embeddings.
	DefaultCollectionName = "loom_facts"

	// DefaultDimensions matches the default embedding model.
	DefaultDimensions = 768

	// listPageSize bounds one scroll page when listing a user's documents.
	listPageSize = 256
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (defaults to 6334).
	Port int

	// APIKey is the optional Qdrant API key.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding dimensionality. Defaults to
	// DefaultDimensions if zero.
	Dimensions uint64
}

// Driver implements vector.Driver using Qdrant's gRPC API.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver creates a new Qdrant vector driver and ensures the collection
// exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	dims := c.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %w", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, dims); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensuring collection %q: %w", collection, err)
	}

	logger.Info("connected to qdrant",
		"host", c.Host,
		"port", port,
		"collection", collection,
	)

	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection: %w", vector.ErrConnection, err)
	}
	return nil
}

// Add stores documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"user_id":    doc.UserID,
				"content":    doc.Content,
				"valid_at":   doc.ValidAt.UTC().Format(time.RFC3339),
				"created_at": doc.CreatedAt.UTC().Format(time.RFC3339),
			}),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %w", vector.ErrConnection, err)
	}

	d.logger.Debug("added documents to qdrant",
		"count", len(docs),
	)

	return nil
}

// Query finds the topK most similar documents for one user.
func (d *Driver) Query(ctx context.Context, userID string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	limit := uint64(topK)

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %w", vector.ErrConnection, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		doc := documentFromPayload(p.GetId().GetUuid(), p.GetPayload())
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		"user_id", userID,
		"results", len(results),
	)

	return results, nil
}

// List returns every document stored for the user, paging through scroll.
func (d *Driver) List(ctx context.Context, userID string) ([]vector.Document, error) {
	limit := uint32(listPageSize)
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("user_id", userID),
		},
	}

	var docs []vector.Document
	var offset *qdrant.PointId

	for {
		points, err := d.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: d.collection,
			Filter:         filter,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scrolling points: %w", vector.ErrConnection, err)
		}

		for _, p := range points {
			docs = append(docs, documentFromPayload(p.GetId().GetUuid(), p.GetPayload()))
		}

		if len(points) < listPageSize {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %w", vector.ErrConnection, err)
	}

	d.logger.Debug("deleted documents from qdrant",
		"count", len(ids),
	)

	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func documentFromPayload(id string, payload map[string]*qdrant.Value) vector.Document {
	doc := vector.Document{ID: id}

	if v, ok := payload["user_id"]; ok {
		doc.UserID = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		doc.Content = v.GetStringValue()
	}
	if v, ok := payload["valid_at"]; ok {
		if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			doc.ValidAt = t
		}
	}
	if v, ok := payload["created_at"]; ok {
		if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			doc.CreatedAt = t
		}
	}

	return doc
}

var _ vector.Driver = (*Driver)(nil)
