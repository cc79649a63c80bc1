package hybrid_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/memory"
)

var _ = Describe("Ranking", func() {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	config := hybrid.Config{
		RelevanceWeight: hybrid.DefaultRelevanceWeight,
		RecencyWeight:   hybrid.DefaultRecencyWeight,
		HalfLife:        hybrid.DefaultHalfLife,
	}

	Describe("CompositeScore", func() {
		It("gives a fresh, fully relevant record the maximum score", func() {
			rec := memory.Record{ID: "r1", ValidAt: now, Score: 1.0, HasScore: true}
			Expect(hybrid.CompositeScore(rec, now, config)).To(BeNumerically("~", 1.0, 0.001))
		})

		It("halves the recency component after one half-life", func() {
			rec := memory.Record{ID: "r1", ValidAt: now.Add(-hybrid.DefaultHalfLife), Score: 1.0, HasScore: true}
			Expect(hybrid.CompositeScore(rec, now, config)).To(BeNumerically("~", 0.7+0.3*0.5, 0.001))
		})

		It("substitutes neutral relevance when the backend reported none", func() {
			rec := memory.Record{ID: "r1", ValidAt: now}
			Expect(hybrid.CompositeScore(rec, now, config)).To(BeNumerically("~", 0.7*0.5+0.3, 0.001))
		})

		It("clamps out-of-range backend scores", func() {
			rec := memory.Record{ID: "r1", ValidAt: now, Score: 3.5, HasScore: true}
			Expect(hybrid.CompositeScore(rec, now, config)).To(BeNumerically("~", 1.0, 0.001))
		})

		It("treats future ValidAt as maximally recent", func() {
			rec := memory.Record{ID: "r1", ValidAt: now.Add(time.Hour), Score: 1.0, HasScore: true}
			Expect(hybrid.CompositeScore(rec, now, config)).To(BeNumerically("~", 1.0, 0.001))
		})
	})

	Describe("Rank", func() {
		It("prefers an equally relevant but fresher record", func() {
			older := memory.Record{ID: "delhi", Content: "User lives in Delhi", ValidAt: now.Add(-90 * 24 * time.Hour), Score: 0.9, HasScore: true}
			newer := memory.Record{ID: "mumbai", Content: "User moved to Mumbai", ValidAt: now.Add(-24 * time.Hour), Score: 0.9, HasScore: true}

			ranked := hybrid.Rank([]memory.Record{older, newer}, now, config)
			Expect(ranked[0].ID).To(Equal("mumbai"))
			Expect(ranked[1].ID).To(Equal("delhi"))
		})

		It("orders by composite score descending", func() {
			low := memory.Record{ID: "low", ValidAt: now, Score: 0.1, HasScore: true}
			high := memory.Record{ID: "high", ValidAt: now, Score: 0.9, HasScore: true}

			ranked := hybrid.Rank([]memory.Record{low, high}, now, config)
			Expect(ranked[0].ID).To(Equal("high"))
		})

		It("breaks score ties on later ValidAt then smaller id", func() {
			a := memory.Record{ID: "a", ValidAt: now, Score: 0.5, HasScore: true}
			b := memory.Record{ID: "b", ValidAt: now, Score: 0.5, HasScore: true}

			ranked := hybrid.Rank([]memory.Record{b, a}, now, config)
			Expect(ranked[0].ID).To(Equal("a"))
		})

		It("does not mutate its input", func() {
			records := []memory.Record{
				{ID: "low", ValidAt: now, Score: 0.1, HasScore: true},
				{ID: "high", ValidAt: now, Score: 0.9, HasScore: true},
			}

			_ = hybrid.Rank(records, now, config)
			Expect(records[0].ID).To(Equal("low"))
		})
	})
})
