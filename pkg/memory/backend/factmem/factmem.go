// Package factmem provides the Fact Memory backend adapter.
//
// Fact Memory is an external Mem0-style service storing discrete, durable
// factual statements with semantic search. The adapter speaks its v2 REST
// API and translates stored memories into memory.Record values.
package factmem

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

// Config holds configuration for the Fact Memory adapter.
type Config struct {
	// URL is the fact memory service URL (e.g. "https://api.mem0.ai").
	URL string

	// APIKey is the credential sent on every request.
	APIKey string

	// Retry overrides the shared timeout/backoff policy.
	Retry backend.RetryPolicy
}

// Client implements backend.Client against a Mem0-style memories API.
type Client struct {
	baseURL    string
	apiKey     string
	retry      backend.RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Fact Memory adapter.
func NewClient(c Config, logger *slog.Logger) (*Client, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("fact memory URL is required")
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
	return memory.BackendFact
}

// Add stores one fact for the user.
func (c *Client) Add(ctx context.Context, userID, content string, meta backend.Metadata) (string, error) {
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	reqBody := factAddRequest{
		Messages: []factMessage{{Role: "user", Content: content}},
		UserID:   userID,
		Metadata: map[string]any{
			"kind":       string(meta.Kind),
			"session_id": meta.SessionID,
			"confidence": meta.Confidence,
			"valid_at":   meta.ValidAt.UTC().Format(time.RFC3339),
		},
	}

	var resp []factAddResult
	err := c.do(ctx, http.MethodPost, "/v2/memories/", reqBody, &resp)
	if err != nil {
		return "", fmt.Errorf("adding to fact memory: %w", err)
	}

	var recordID string
	if len(resp) > 0 {
		recordID = resp[0].ID
	}

	c.logger.Debug("added fact to fact memory",
		"user_id", userID,
		"record_id", recordID,
	)

	return recordID, nil
}

// Search returns up to limit memories relevant to the query.
func (c *Client) Search(ctx context.Context, userID, query string, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = backend.DefaultSearchLimit
	}

	reqBody := factSearchRequest{
		Query:   query,
		Filters: factFilters{UserID: userID},
		Limit:   limit,
	}

	var resp []factMemory
	err := c.do(ctx, http.MethodPost, "/v2/memories/search/", reqBody, &resp)
	if err != nil {
		return nil, fmt.Errorf("searching fact memory: %w", err)
	}

	records := make([]memory.Record, 0, len(resp))
	for _, m := range resp {
		records = append(records, m.toRecord(userID))
	}

	c.logger.Debug("searched fact memory",
		"user_id", userID,
		"results", len(records),
	)

	return records, nil
}

// GetAll returns every memory stored for the user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]memory.Record, error) {
	path := "/v2/memories/?user_id=" + url.QueryEscape(userID)

	var resp []factMemory
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing fact memory: %w", err)
	}

	records := make([]memory.Record, 0, len(resp))
	for _, m := range resp {
		records = append(records, m.toRecord(userID))
	}

	return records, nil
}

// Delete removes a memory by id.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	path := "/v1/memories/" + url.PathEscape(recordID) + "/"

	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting from fact memory: %w", err)
	}
	return nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

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
		req.Header.Set("Authorization", "Token "+c.apiKey)
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
