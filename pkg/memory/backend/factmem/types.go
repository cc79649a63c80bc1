package factmem

import (
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// factMessage is one message in an add request.
type factMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// factAddRequest is the request body for storing memories.
type factAddRequest struct {
	Messages []factMessage  `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// factAddResult is one element of the add response.
type factAddResult struct {
	ID string `json:"id"`
}

// factFilters scopes a search to one user.
type factFilters struct {
	UserID string `json:"user_id"`
}

// factSearchRequest is the request body for semantic search.
type factSearchRequest struct {
	Query   string      `json:"query"`
	Filters factFilters `json:"filters"`
	Limit   int         `json:"limit"`
}

// factMemory is one stored memory as the service reports it.
type factMemory struct {
	ID        string     `json:"id"`
	Memory    string     `json:"memory"`
	Score     *float64   `json:"score,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// toRecord translates a stored memory into the backend-neutral record
// shape. UpdatedAt, when present, is the better valid_at signal.
func (m factMemory) toRecord(userID string) memory.Record {
	r := memory.Record{
		ID:            m.ID,
		Backend:       memory.BackendFact,
		UserID:        userID,
		Content:       m.Memory,
		CreatedAt:     m.CreatedAt,
		ValidAt:       m.CreatedAt,
		InvalidatedAt: m.DeletedAt,
	}
	if m.UpdatedAt != nil {
		r.ValidAt = *m.UpdatedAt
	}
	if m.Score != nil {
		r.Score = *m.Score
		r.HasScore = true
	}
	return r
}
