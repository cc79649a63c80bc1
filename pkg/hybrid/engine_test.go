package hybrid_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/memory"
	testutils "github.com/loomworks/loom/pkg/utils/test"
)

var _ = Describe("Engine", func() {
	var (
		graph  *testutils.MockBackend
		fact   *testutils.MockBackend
		links  *testutils.MockLinkStore
		engine *hybrid.Engine
	)

	now := time.Now()

	record := func(id string, backend memory.BackendID, content string, validAt time.Time) memory.Record {
		return memory.Record{
			ID:       id,
			Backend:  backend,
			UserID:   "user-1",
			Content:  content,
			ValidAt:  validAt,
			Score:    0.8,
			HasScore: true,
		}
	}

	BeforeEach(func() {
		graph = testutils.NewMockBackend(memory.BackendGraph)
		fact = testutils.NewMockBackend(memory.BackendFact)
		links = testutils.NewMockLinkStore()
		engine = hybrid.New(hybrid.Config{}, graph, fact, links, logger.Nop())
	})

	Describe("Recall", func() {
		It("merges results from both backends", func() {
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "met Priya yesterday", now)}
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			merged, err := engine.Recall(context.Background(), "user-1", "food", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.UserID).To(Equal("user-1"))
			Expect(merged.Entries).To(HaveLen(2))
			Expect(merged.Truncated).To(BeFalse())
		})

		It("collapses cross-backend duplicates", func() {
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "User lives in Delhi", now)}
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user lives in delhi.", now.Add(time.Hour))}

			merged, err := engine.Recall(context.Background(), "user-1", "home", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(1))
			Expect(merged.Entries[0].ID).To(Equal("f1"))
		})

		It("degrades to partial results when one backend fails", func() {
			graph.FailSearch = true
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			merged, err := engine.Recall(context.Background(), "user-1", "food", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(1))
			Expect(merged.Truncated).To(BeTrue())
		})

		It("fails with ErrUnavailable when both backends fail", func() {
			graph.FailSearch = true
			fact.FailSearch = true

			_, err := engine.Recall(context.Background(), "user-1", "food", 10)
			Expect(err).To(MatchError(memory.ErrUnavailable))
		})

		It("bounds the context and flags truncation", func() {
			for i := range 8 {
				graph.SearchResults = append(graph.SearchResults,
					record(fmt.Sprintf("g%d", i), memory.BackendGraph, fmt.Sprintf("graph fact number %d", i), now))
				fact.SearchResults = append(fact.SearchResults,
					record(fmt.Sprintf("f%d", i), memory.BackendFact, fmt.Sprintf("fact number %d stored", i), now))
			}

			merged, err := engine.Recall(context.Background(), "user-1", "facts", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(5))
			Expect(merged.Truncated).To(BeTrue())
		})

		It("falls back to the configured bound when no limit is requested", func() {
			engine = hybrid.New(hybrid.Config{MaxEntries: 1}, graph, fact, links, logger.Nop())
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "met Priya yesterday", now)}
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			merged, err := engine.Recall(context.Background(), "user-1", "food", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(1))
			Expect(merged.Truncated).To(BeTrue())
		})

		It("excludes records retired by consolidation", func() {
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "User lives in Delhi", now)}
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			Expect(links.Append(context.Background(), memory.ConsolidationLink{
				ID:           "l1",
				UserID:       "user-1",
				CanonicalID:  "f1",
				SupersededID: "g1",
				Similarity:   1.0,
				DetectedAt:   now,
			})).To(Succeed())

			merged, err := engine.Recall(context.Background(), "user-1", "home", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(1))
			Expect(merged.Entries[0].ID).To(Equal("f1"))
		})

		It("degrades to no exclusions when the link store fails", func() {
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "met Priya yesterday", now)}
			links.FailSuperseded = true

			merged, err := engine.Recall(context.Background(), "user-1", "priya", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.Entries).To(HaveLen(1))
		})

		It("is read-only: repeated recalls return identical results", func() {
			graph.SearchResults = []memory.Record{record("g1", memory.BackendGraph, "met Priya yesterday", now)}
			fact.SearchResults = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			first, err := engine.Recall(context.Background(), "user-1", "food", 10)
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Recall(context.Background(), "user-1", "food", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Entries).To(Equal(first.Entries))
		})
	})
})
