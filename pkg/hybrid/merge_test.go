package hybrid_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/memory"
)

var _ = Describe("NormalizeContent", func() {
	It("lowercases, collapses whitespace, and strips trailing punctuation", func() {
		Expect(hybrid.NormalizeContent("  User LIVES   in Delhi.  ")).To(Equal("user lives in delhi"))
	})
})

var _ = Describe("Similarity", func() {
	It("returns 1.0 for normalized equality", func() {
		Expect(hybrid.Similarity("User lives in Delhi", "user lives in delhi.")).To(Equal(1.0))
	})

	It("returns the token Jaccard index otherwise", func() {
		// {user, lives, in, delhi} vs {user, lives, in, mumbai}: 3/5.
		Expect(hybrid.Similarity("user lives in delhi", "user lives in mumbai")).To(BeNumerically("~", 0.6, 0.001))
	})

	It("returns 0 for disjoint contents", func() {
		Expect(hybrid.Similarity("cats are great", "weather was cold")).To(BeZero())
	})
})

var _ = Describe("Merge", func() {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	record := func(id string, backend memory.BackendID, content string, validAt time.Time) memory.Record {
		return memory.Record{
			ID:      id,
			Backend: backend,
			UserID:  "user-1",
			Content: content,
			ValidAt: validAt,
		}
	}

	It("collapses duplicates across backends, keeping the later ValidAt", func() {
		graph := []memory.Record{record("g1", memory.BackendGraph, "User lives in Delhi", now)}
		fact := []memory.Record{record("f1", memory.BackendFact, "user lives in delhi.", now.Add(time.Hour))}

		merged := hybrid.Merge([][]memory.Record{graph, fact}, nil)
		Expect(merged).To(HaveLen(1))
		Expect(merged[0].ID).To(Equal("f1"))
	})

	It("is insensitive to input list order", func() {
		graph := []memory.Record{record("g1", memory.BackendGraph, "User lives in Delhi", now)}
		fact := []memory.Record{record("f1", memory.BackendFact, "user lives in delhi", now.Add(time.Hour))}

		a := hybrid.Merge([][]memory.Record{graph, fact}, nil)
		b := hybrid.Merge([][]memory.Record{fact, graph}, nil)
		Expect(a[0].ID).To(Equal(b[0].ID))
	})

	It("breaks exact ties on smaller id", func() {
		a := record("a", memory.BackendGraph, "user lives in delhi", now)
		b := record("b", memory.BackendFact, "user lives in delhi", now)

		merged := hybrid.Merge([][]memory.Record{{b}, {a}}, nil)
		Expect(merged).To(HaveLen(1))
		Expect(merged[0].ID).To(Equal("a"))
	})

	It("drops invalidated records", func() {
		invalidatedAt := now
		rec := record("g1", memory.BackendGraph, "user lives in delhi", now)
		rec.InvalidatedAt = &invalidatedAt

		merged := hybrid.Merge([][]memory.Record{{rec}}, nil)
		Expect(merged).To(BeEmpty())
	})

	It("drops consolidation-retired records", func() {
		rec := record("g1", memory.BackendGraph, "user lives in delhi", now)

		merged := hybrid.Merge([][]memory.Record{{rec}}, map[string]time.Time{"g1": now})
		Expect(merged).To(BeEmpty())
	})

	It("keeps distinct contents from both backends", func() {
		graph := []memory.Record{record("g1", memory.BackendGraph, "met Priya at the conference", now)}
		fact := []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

		merged := hybrid.Merge([][]memory.Record{graph, fact}, nil)
		Expect(merged).To(HaveLen(2))
	})
})
