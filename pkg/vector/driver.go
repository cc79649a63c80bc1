// Package vector provides interfaces and implementations for vector storage
// and embedding, used by the self-hosted fact backend option.
package vector

import (
	"context"
	"time"
)

// Document represents a stored fact with its embedding and scope.
type Document struct {
	// ID is a unique identifier for the document.
	ID string

	// UserID scopes the document to one user. Every query filters on it.
	UserID string

	// Content is the fact text.
	Content string

	// Embedding is the vector representation of the content.
	Embedding []float32

	// ValidAt is when the stated fact became true.
	ValidAt time.Time

	// CreatedAt is when the document was stored.
	CreatedAt time.Time
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings. Same-ID documents are
	// updated in place.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding,
	// scoped to one user.
	Query(ctx context.Context, userID string, embedding []float32, topK int) ([]QueryResult, error)

	// List returns every document stored for the user.
	List(ctx context.Context, userID string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
