package hybrid

import (
	"math"
	"sort"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

// defaultRelevance substitutes for records whose backend reported no score.
const defaultRelevance = 0.5

// CompositeScore combines backend relevance and recency for one record.
// Relevance is clamped to [0, 1]; recency decays as 0.5^(age/halfLife)
// over the record's ValidAt.
func CompositeScore(rec memory.Record, now time.Time, config Config) float64 {
	relevance := defaultRelevance
	if rec.HasScore {
		relevance = min(max(rec.Score, 0), 1)
	}

	age := now.Sub(rec.ValidAt)
	recency := 1.0
	if age > 0 {
		recency = math.Pow(0.5, float64(age)/float64(config.HalfLife))
	}

	return config.RelevanceWeight*relevance + config.RecencyWeight*recency
}

// Rank orders records by composite score descending. Ties break on later
// ValidAt, then lexically smaller id, giving a total order: identical
// backend responses always produce identical context ordering.
func Rank(records []memory.Record, now time.Time, config Config) []memory.Record {
	ranked := make([]memory.Record, len(records))
	copy(ranked, records)

	scores := make(map[string]float64, len(ranked))
	for _, rec := range ranked {
		scores[rec.ID] = CompositeScore(rec, now, config)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		if !ranked[i].ValidAt.Equal(ranked[j].ValidAt) {
			return ranked[i].ValidAt.After(ranked[j].ValidAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}
