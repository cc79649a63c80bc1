package graphmem

import (
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// graphAddRequest is the request body for adding data to a user's graph.
type graphAddRequest struct {
	UserID   string         `json:"user_id"`
	Type     string         `json:"type"`
	Data     string         `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// graphAddResponse is the response from a graph add.
type graphAddResponse struct {
	UUID string `json:"uuid"`
}

// graphSearchRequest is the request body for searching a user's graph.
type graphSearchRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Scope  string `json:"scope"`
	Limit  int    `json:"limit"`
}

// graphEdge is one knowledge-graph edge as the service reports it.
type graphEdge struct {
	UUID      string     `json:"uuid"`
	Fact      string     `json:"fact"`
	Score     *float64   `json:"score,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ValidAt   *time.Time `json:"valid_at,omitempty"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`
}

// graphSearchResponse is the response from a graph search.
type graphSearchResponse struct {
	Edges []graphEdge `json:"edges"`
}

// graphFactsResponse is the response from listing a user's facts.
type graphFactsResponse struct {
	Facts []graphEdge `json:"facts"`
}

// toRecord translates an edge into the backend-neutral record shape.
// ValidAt falls back to CreatedAt when the service omits it.
func (e graphEdge) toRecord(userID string) memory.Record {
	r := memory.Record{
		ID:            e.UUID,
		Backend:       memory.BackendGraph,
		UserID:        userID,
		Content:       e.Fact,
		CreatedAt:     e.CreatedAt,
		ValidAt:       e.CreatedAt,
		InvalidatedAt: e.InvalidAt,
	}
	if e.ValidAt != nil {
		r.ValidAt = *e.ValidAt
	}
	if e.Score != nil {
		r.Score = *e.Score
		r.HasScore = true
	}
	return r
}
