// Package memory defines the domain types shared by the hybrid memory
// coordination engine.
//
// Two independently hosted backends hold what is known about a user: a
// temporal/relationship graph store and a durable fact store. Everything in
// this package is backend-neutral: adapters translate these types to and
// from their service's wire format, and the hybrid engine merges records
// from both sides into a single ranked view.
package memory

import (
	"strings"
	"time"
)

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser = "user"

	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of a conversation. Turns are immutable
// inputs to the normalizer; the engine never persists raw turn text.
type ConversationTurn struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the turn carries everything the normalizer needs.
func (t ConversationTurn) Valid() bool {
	if t.UserID == "" || strings.TrimSpace(t.Text) == "" {
		return false
	}
	return t.Role == RoleUser || t.Role == RoleAssistant
}

// Kind classifies a fact candidate for routing.
type Kind string

const (
	// KindTemporal marks events, relationships, and session-scoped
	// statements. Routed to the graph backend.
	KindTemporal Kind = "temporal"

	// KindFactual marks stable attributes and preferences. Routed to the
	// fact backend.
	KindFactual Kind = "factual"

	// KindAmbiguous marks candidates the heuristic could not place
	// confidently. Routed to both backends; consolidation resolves the
	// duplication later.
	KindAmbiguous Kind = "ambiguous"
)

// TurnRef points a candidate back at the turn it was extracted from.
type TurnRef struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FactCandidate is one atomic statement extracted from a turn. Candidates
// are ephemeral; they exist only for the duration of a remember call and
// the writes it derives.
type FactCandidate struct {
	Content    string  `json:"content"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	SourceTurn TurnRef `json:"source_turn"`
}

// BackendID identifies which of the two memory backends a record lives in.
type BackendID string

const (
	// BackendGraph is the temporal/relationship graph store.
	BackendGraph BackendID = "graph"

	// BackendFact is the durable fact store.
	BackendFact BackendID = "fact"
)

// Record is one stored memory as reported by a backend.
//
// InvalidatedAt, once set, is never cleared; invalidation is monotonic.
// Records are marked superseded by consolidation, never hard-deleted.
type Record struct {
	ID            string     `json:"id"`
	Backend       BackendID  `json:"backend"`
	UserID        string     `json:"user_id"`
	Content       string     `json:"content"`
	CreatedAt     time.Time  `json:"created_at"`
	ValidAt       time.Time  `json:"valid_at"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`

	// Score is the backend-native relevance score for search results.
	// HasScore distinguishes "no score reported" from a genuine zero.
	Score    float64 `json:"score,omitempty"`
	HasScore bool    `json:"-"`
}

// MergedContext is the ranked, deduplicated memory excerpt handed to the
// response-generation step. Built fresh per recall; never persisted.
type MergedContext struct {
	UserID    string   `json:"user_id"`
	Entries   []Record `json:"entries"`
	Truncated bool     `json:"truncated"`
}

// BackendWrite records the outcome of one backend write for a candidate.
type BackendWrite struct {
	Backend  BackendID `json:"backend"`
	RecordID string    `json:"record_id,omitempty"`
	Err      error     `json:"-"`
}

// WriteResult is the per-candidate outcome of routing.
type WriteResult struct {
	Candidate FactCandidate  `json:"candidate"`
	Writes    []BackendWrite `json:"writes"`
}

// Succeeded reports whether at least one backend accepted the candidate.
func (r WriteResult) Succeeded() bool {
	for _, w := range r.Writes {
		if w.Err == nil {
			return true
		}
	}
	return false
}

// ConsolidationLink is one entry of the append-only audit trail recording
// that a canonical record supersedes a duplicate. Links are never mutated.
type ConsolidationLink struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CanonicalID  string    `json:"canonical_record_id"`
	SupersededID string    `json:"superseded_record_id"`
	Similarity   float64   `json:"similarity"`
	DetectedAt   time.Time `json:"detected_at"`
}

// ConsolidationReport summarizes one consolidation run.
type ConsolidationReport struct {
	UsersScanned  int      `json:"users_scanned"`
	PairsCompared int      `json:"pairs_compared"`
	LinksCreated  int      `json:"links_created"`
	Skipped       int      `json:"skipped"`
	Errors        []string `json:"errors,omitempty"`
}

// Merge folds another report into this one.
func (r *ConsolidationReport) Merge(other ConsolidationReport) {
	r.UsersScanned += other.UsersScanned
	r.PairsCompared += other.PairsCompared
	r.LinksCreated += other.LinksCreated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}
