// Package normalize turns raw conversational turns into atomic fact
// candidates for routing.
//
// The normalizer is a deterministic heuristic: the extraction intelligence
// lives in the language model that produced the turn and in the backends
// that store it. Here a turn is split into clauses, each clause is
// classified as temporal (events, relationships, session-scoped statements)
// or factual (stable attributes and preferences), and anything the
// heuristic cannot place confidently is marked ambiguous. Ambiguous
// candidates are written to both backends rather than dropped: storage
// duplication is cheaper than a lost memory, and consolidation retires the
// duplicates later.
package normalize

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/memory"
)

// DefaultAmbiguityThreshold is the confidence below which a candidate is
// classified ambiguous.
const DefaultAmbiguityThreshold = 0.6

// Config holds configuration for the normalizer.
type Config struct {
	// AmbiguityThreshold overrides DefaultAmbiguityThreshold when > 0.
	AmbiguityThreshold float64
}

// Normalizer extracts fact candidates from conversation turns.
type Normalizer struct {
	threshold float64
}

// New creates a Normalizer.
func New(config Config) *Normalizer {
	threshold := config.AmbiguityThreshold
	if threshold <= 0 {
		threshold = DefaultAmbiguityThreshold
	}
	return &Normalizer{threshold: threshold}
}

// Normalize splits the turn into clauses and classifies each into a fact
// candidate. Returns zero candidates for turns with nothing worth keeping;
// that is not an error.
func (n *Normalizer) Normalize(turn memory.ConversationTurn) ([]memory.FactCandidate, error) {
	if !turn.Valid() {
		return nil, fmt.Errorf("%w: user id, text, and role are required", memory.ErrInvalidTurn)
	}

	ref := memory.TurnRef{
		UserID:    turn.UserID,
		SessionID: turn.SessionID,
		Timestamp: turn.Timestamp,
	}

	var candidates []memory.FactCandidate
	for _, clause := range splitClauses(turn.Text) {
		if !worthKeeping(clause, turn.Role) {
			continue
		}

		kind, confidence := n.classify(clause)
		candidates = append(candidates, memory.FactCandidate{
			Content:    clause,
			Kind:       kind,
			Confidence: confidence,
			SourceTurn: ref,
		})
	}

	return candidates, nil
}

// splitClauses breaks text into candidate clauses on sentence boundaries,
// then on coordinating conjunctions that start a new first-person statement.
func splitClauses(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', '\n':
			return true
		}
		return false
	})

	var clauses []string
	for _, sentence := range sentences {
		for _, part := range splitConjunctions(sentence) {
			part = strings.TrimSpace(strings.Trim(part, ","))
			if part != "" {
				clauses = append(clauses, part)
			}
		}
	}
	return clauses
}

// conjunctionCuts are lowercase separators that begin a new first-person
// statement. The subject suffix stays with the tail clause.
var conjunctionCuts = []struct {
	sep     string
	subject string
}{
	{", and i ", "i "},
	{", but i ", "i "},
	{", and my ", "my "},
	{", but my ", "my "},
	{" and i ", "i "},
	{" but i ", "i "},
	{" and my ", "my "},
	{" but my ", "my "},
}

func splitConjunctions(sentence string) []string {
	parts := []string{sentence}
	for _, cut := range conjunctionCuts {
		var next []string
		for _, part := range parts {
			lower := strings.ToLower(part)
			idx := strings.Index(lower, cut.sep)
			if idx < 0 {
				next = append(next, part)
				continue
			}
			head := part[:idx]
			// Slice so the subject keeps its original casing.
			tail := part[idx+len(cut.sep)-len(cut.subject):]
			next = append(next, head, tail)
		}
		parts = next
	}
	return parts
}

// worthKeeping filters clauses that carry no memorable statement. User
// turns need a first-person reference; assistant turns only contribute
// second-person restatements of user facts.
func worthKeeping(clause, role string) bool {
	tokens := strings.Fields(clause)
	if len(tokens) < 3 {
		return false
	}

	lower := " " + strings.ToLower(clause) + " "
	if role == memory.RoleAssistant {
		return strings.Contains(lower, " you ") || strings.Contains(lower, " your ")
	}
	return strings.Contains(lower, " i ") ||
		strings.Contains(lower, " i'm ") ||
		strings.Contains(lower, " my ") ||
		strings.Contains(lower, " we ")
}

// Marker tables. Iterated as slices so classification order is fixed.
var (
	strongTemporal = []string{
		" just ", " yesterday ", " today ", " tonight ", " recently ",
		" last week ", " last month ", " last year ", " this morning ",
		" moved ", " met ", " started ", " quit ", " visited ", " went ",
		" bought ", " joined ", " graduated ", " broke up ", " got married ",
	}
	weakTemporal = []string{
		" now ", " currently ", " this week ", " soon ", " planning ",
		" going to ", " will ",
	}
	strongFactual = []string{
		" i am ", " i'm ", " i live in ", " i work ", " i like ",
		" i love ", " i hate ", " i prefer ", " i enjoy ", " i speak ",
		" my favorite ", " i always ", " i never ", " i don't eat ",
	}
	weakFactual = []string{
		" i have ", " i own ", " i use ", " i drink ", " i eat ",
	}
	// Relationship phrasing belongs to the graph side even when it looks
	// attribute-shaped ("my dog's name is Bruno").
	relationshipMarkers = []string{
		" name is ", " my wife ", " my husband ", " my partner ",
		" my sister ", " my brother ", " my mother ", " my father ",
		" my friend ", " my boss ", " my dog ", " my cat ", " my son ",
		" my daughter ",
	}
)

// classify scores a clause against the marker tables and returns its kind
// with a confidence in [0, 1). Confidence below the ambiguity threshold
// always yields KindAmbiguous.
func (n *Normalizer) classify(clause string) (memory.Kind, float64) {
	lower := " " + strings.ToLower(clause) + " "

	temporal := markerScore(lower, strongTemporal, weakTemporal)
	temporal += markerStrength(lower, relationshipMarkers) * 0.25
	factual := markerScore(lower, strongFactual, weakFactual)

	switch {
	case temporal == 0 && factual == 0:
		return memory.KindAmbiguous, 0.5
	case temporal == factual:
		return memory.KindAmbiguous, 0.5
	case temporal > factual:
		confidence := capConfidence(0.5 + temporal - factual)
		if confidence < n.threshold {
			return memory.KindAmbiguous, confidence
		}
		return memory.KindTemporal, confidence
	default:
		confidence := capConfidence(0.5 + factual - temporal)
		if confidence < n.threshold {
			return memory.KindAmbiguous, confidence
		}
		return memory.KindFactual, confidence
	}
}

func markerScore(clause string, strong, weak []string) float64 {
	return markerStrength(clause, strong)*0.25 + markerStrength(clause, weak)*0.1
}

func markerStrength(clause string, markers []string) float64 {
	var hits float64
	for _, marker := range markers {
		if strings.Contains(clause, marker) {
			hits++
		}
	}
	return hits
}

func capConfidence(c float64) float64 {
	if c > 0.95 {
		return 0.95
	}
	return c
}
