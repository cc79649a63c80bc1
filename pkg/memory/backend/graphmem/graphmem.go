// Package graphmem provides the Graph Memory backend adapter.
//
// Graph Memory is an external Zep-style service storing temporal,
// relationship, and session-scoped knowledge as a connected structure. The
// adapter speaks its REST API and translates graph edges into
// memory.Record values.
package graphmem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
)

// Config holds configuration for the Graph Memory adapter.
type Config struct {
	// URL is the graph memory service URL (e.g. "https://api.getzep.com").
	URL string

	// APIKey is the credential sent on every request.
	APIKey string

	// Retry overrides the shared timeout/backoff policy.
	Retry backend.RetryPolicy
}

// Client implements backend.Client against a Zep-style graph API.
type Client struct {
	baseURL    string
	apiKey     string
	retry      backend.RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Graph Memory adapter.
func NewClient(c Config, logger *slog.Logger) (*Client, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("graph memory URL is required")
	}

	return &Client{
		baseURL:    c.URL,
		apiKey:     c.APIKey,
		retry:      c.Retry,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// ID reports the backend identity.
func (c *Client) ID() memory.BackendID {
	return memory.BackendGraph
}

// Add stores one fact in the user's knowledge graph.
func (c *Client) Add(ctx context.Context, userID, content string, meta backend.Metadata) (string, error) {
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	reqBody := graphAddRequest{
		UserID: userID,
		Type:   "text",
		Data:   content,
		Metadata: map[string]any{
			"kind":       string(meta.Kind),
			"session_id": meta.SessionID,
			"confidence": meta.Confidence,
			"valid_at":   meta.ValidAt.UTC().Format(time.RFC3339),
		},
	}

	var resp graphAddResponse
	err := c.do(ctx, http.MethodPost, "/api/v2/graph/add", reqBody, &resp)
	if err != nil {
		return "", fmt.Errorf("adding to graph memory: %w", err)
	}

	c.logger.Debug("added fact to graph memory",
		"user_id", userID,
		"record_id", resp.UUID,
	)

	return resp.UUID, nil
}

// Search queries the user's graph for edges relevant to the query.
func (c *Client) Search(ctx context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = backend.DefaultSearchLimit
	}

	reqBody := graphSearchRequest{
		UserID: userID,
		Query:  query,
		Scope:  "edges",
		Limit:  limit,
	}

	var resp graphSearchResponse
	err := c.do(ctx, http.MethodPost, "/api/v2/graph/search", reqBody, &resp)
	if err != nil {
		return nil, fmt.Errorf("searching graph memory: %w", err)
	}

	records := make([]memory.Record, 0, len(resp.Edges))
	for _, edge := range resp.Edges {
		records = append(records, edge.toRecord(userID))
	}

	c.logger.Debug("searched graph memory",
		"user_id", userID,
		"results", len(records),
	)

	return records, nil
}

// GetAll returns every edge the graph holds for the user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]memory.Record, error) {
	path := "/api/v2/users/" + url.PathEscape(userID) + "/facts"

	var resp graphFactsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing graph memory: %w", err)
	}

	records := make([]memory.Record, 0, len(resp.Facts))
	for _, edge := range resp.Facts {
		records = append(records, edge.toRecord(userID))
	}

	return records, nil
}

// Delete removes an edge by its uuid.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	path := "/api/v2/graph/edge/" + url.PathEscape(recordID)

	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting from graph memory: %w", err)
	}
	return nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// do sends one request under the retry policy, decoding the response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return backend.Permanent(fmt.Errorf("marshaling request: %w", err))
		}
	}

	return backend.Do(ctx, c.retry, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backend.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Api-Key "+c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			respBody, _ := io.ReadAll(resp.Body)
			return backend.StatusError(resp.StatusCode, string(respBody))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backend.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
}

var _ backend.Client = (*Client)(nil)
