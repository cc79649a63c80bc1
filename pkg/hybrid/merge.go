package hybrid

import (
	"strings"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// NormalizeContent canonicalizes record content for duplicate detection:
// lowercase, trimmed, inner whitespace collapsed, trailing punctuation
// stripped.
func NormalizeContent(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRight(s, ".,!?;: ")
}

// Similarity scores two contents in [0, 1]: 1.0 for normalized equality,
// otherwise the Jaccard index of their token sets. Shared by recall
// deduplication and the consolidation comparator.
func Similarity(a, b string) float64 {
	na, nb := NormalizeContent(a), NormalizeContent(b)
	if na == nb {
		return 1.0
	}

	ta, tb := tokenSet(na), tokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var intersection int
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}

// Merge combines record lists from both backends, dropping invalidated and
// consolidation-retired records and collapsing duplicates by normalized
// content. When two records are judged duplicates the one with the later
// ValidAt wins; equal timestamps fall back to higher native score, then
// lexically smaller id, so the outcome never depends on input order.
func Merge(lists [][]memory.Record, retired map[string]time.Time) []memory.Record {
	byContent := make(map[string]memory.Record)
	var order []string

	for _, list := range lists {
		for _, rec := range list {
			if rec.InvalidatedAt != nil {
				continue
			}
			if _, gone := retired[rec.ID]; gone {
				continue
			}

			key := NormalizeContent(rec.Content)
			if key == "" {
				continue
			}

			existing, ok := byContent[key]
			if !ok {
				byContent[key] = rec
				order = append(order, key)
				continue
			}
			if newerThan(rec, existing) {
				byContent[key] = rec
			}
		}
	}

	merged := make([]memory.Record, 0, len(order))
	for _, key := range order {
		merged = append(merged, byContent[key])
	}
	return merged
}

// newerThan reports whether a should replace b as the surviving duplicate.
func newerThan(a, b memory.Record) bool {
	if !a.ValidAt.Equal(b.ValidAt) {
		return a.ValidAt.After(b.ValidAt)
	}
	if a.HasScore != b.HasScore {
		return a.HasScore
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
