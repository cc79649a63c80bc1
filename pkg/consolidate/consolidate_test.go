package consolidate_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/consolidate"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/memory"
	testutils "github.com/loomworks/loom/pkg/utils/test"
)

var _ = Describe("Consolidator", func() {
	var (
		graph     *testutils.MockBackend
		fact      *testutils.MockBackend
		links     *testutils.MockLinkStore
		publisher *testutils.MockPublisher
	)

	now := time.Now()

	record := func(id string, backend memory.BackendID, content string, validAt time.Time) memory.Record {
		return memory.Record{
			ID:      id,
			Backend: backend,
			UserID:  "user-1",
			Content: content,
			ValidAt: validAt,
		}
	}

	newConsolidator := func(config consolidate.Config) *consolidate.Consolidator {
		return consolidate.New(config, graph, fact, links, publisher, logger.Nop())
	}

	BeforeEach(func() {
		graph = testutils.NewMockBackend(memory.BackendGraph)
		fact = testutils.NewMockBackend(memory.BackendFact)
		links = testutils.NewMockLinkStore()
		publisher = testutils.NewMockPublisher()
	})

	Describe("RunUser", func() {
		It("links identical records across backends", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "i live in delhi.", now)}

			report, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.PairsCompared).To(Equal(1))
			Expect(report.LinksCreated).To(Equal(1))

			created := links.Links()
			Expect(created).To(HaveLen(1))
			Expect(created[0].Similarity).To(BeNumerically("~", 1.0, 0.001))
		})

		It("prefers the fact backend as canonical for attribute content", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "i live in delhi", now)}

			_, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())

			created := links.Links()
			Expect(created[0].CanonicalID).To(Equal("f1"))
			Expect(created[0].SupersededID).To(Equal("g1"))
		})

		It("prefers the graph backend as canonical for relationship content", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "my friend Priya lives nearby", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "My friend Priya lives nearby.", now)}

			_, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())

			created := links.Links()
			Expect(created[0].CanonicalID).To(Equal("g1"))
			Expect(created[0].SupersededID).To(Equal("f1"))
		})

		It("is idempotent across runs", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "i live in delhi", now)}

			consolidator := newConsolidator(consolidate.Config{})
			first, err := consolidator.RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.LinksCreated).To(Equal(1))

			second, err := consolidator.RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.LinksCreated).To(BeZero())
			Expect(links.Links()).To(HaveLen(1))
		})

		It("skips ambiguous pairs in the conflict band", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "user enjoys hiking trips", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "user enjoys hiking long walks", now)}

			// Similarity is 0.5: below the 0.6 threshold but inside the band.
			report, err := newConsolidator(consolidate.Config{Threshold: 0.6, ConflictMargin: 0.2}).
				RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.LinksCreated).To(BeZero())
			Expect(report.Skipped).To(Equal(1))
		})

		It("ignores dissimilar pairs entirely", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "met Priya at the conference", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "user is vegetarian", now)}

			report, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.PairsCompared).To(Equal(1))
			Expect(report.LinksCreated).To(BeZero())
			Expect(report.Skipped).To(BeZero())
		})

		It("never compares records already retired by an earlier link", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{
				record("f1", memory.BackendFact, "i live in delhi", now),
				record("f2", memory.BackendFact, "I live in Delhi!", now),
			}

			report, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())

			// Three records would be three pairs, but g1 is retired by the
			// first link and never compared against f2.
			Expect(report.PairsCompared).To(Equal(2))
			Expect(report.LinksCreated).To(Equal(2))
			for _, link := range links.Links() {
				Expect(link.SupersededID).NotTo(Equal("f1"))
			}
		})

		It("publishes an audit event per link", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "i live in delhi", now)}

			_, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal("loom.consolidation.link.created"))
			Expect(events[0].Source.Trigger).To(Equal(consolidate.TriggerOnDemand))
			Expect(events[0].Source.CanonicalBackend).To(Equal(memory.BackendFact))
			Expect(events[0].Link.UserID).To(Equal("user-1"))
		})

		It("treats publish failures as non-fatal", func() {
			graph.AllRecords = []memory.Record{record("g1", memory.BackendGraph, "I live in Delhi", now)}
			fact.AllRecords = []memory.Record{record("f1", memory.BackendFact, "i live in delhi", now)}
			publisher.FailPublish = true

			report, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.LinksCreated).To(Equal(1))
		})

		It("fails when a backend snapshot cannot be taken", func() {
			graph.FailGetAll = true

			_, err := newConsolidator(consolidate.Config{}).RunUser(context.Background(), "user-1", consolidate.TriggerOnDemand)
			Expect(err).To(HaveOccurred())
		})
	})
})

// stubSource is a fixed touched-user set for scheduler tests.
type stubSource struct {
	users []string
}

func (s *stubSource) Drain() []string {
	users := s.users
	s.users = nil
	return users
}

var _ = Describe("Scheduler", func() {
	var (
		graph     *testutils.MockBackend
		fact      *testutils.MockBackend
		links     *testutils.MockLinkStore
		publisher *testutils.MockPublisher
	)

	BeforeEach(func() {
		graph = testutils.NewMockBackend(memory.BackendGraph)
		fact = testutils.NewMockBackend(memory.BackendFact)
		links = testutils.NewMockLinkStore()
		publisher = testutils.NewMockPublisher()
	})

	Describe("RunOnce", func() {
		It("consolidates every drained user", func() {
			consolidator := consolidate.New(consolidate.Config{}, graph, fact, links, publisher, logger.Nop())
			scheduler := consolidate.NewScheduler(consolidator, &stubSource{users: []string{"user-1", "user-2"}}, 0, logger.Nop())

			report := scheduler.RunOnce(context.Background())
			Expect(report.UsersScanned).To(Equal(2))
		})

		It("returns an empty report when no users were touched", func() {
			consolidator := consolidate.New(consolidate.Config{}, graph, fact, links, publisher, logger.Nop())
			scheduler := consolidate.NewScheduler(consolidator, &stubSource{}, 0, logger.Nop())

			report := scheduler.RunOnce(context.Background())
			Expect(report).To(Equal(memory.ConsolidationReport{}))
		})

		It("carries unprocessed users over to the next run after cancellation", func() {
			consolidator := consolidate.New(consolidate.Config{}, graph, fact, links, publisher, logger.Nop())
			scheduler := consolidate.NewScheduler(consolidator, &stubSource{users: []string{"user-1", "user-2"}}, 0, logger.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report := scheduler.RunOnce(ctx)
			Expect(report.UsersScanned).To(BeZero())

			report = scheduler.RunOnce(context.Background())
			Expect(report.UsersScanned).To(Equal(2))
		})

		It("isolates per-user failures", func() {
			graph.FailGetAll = true

			consolidator := consolidate.New(consolidate.Config{}, graph, fact, links, publisher, logger.Nop())
			scheduler := consolidate.NewScheduler(consolidator, &stubSource{users: []string{"user-1", "user-2"}}, 0, logger.Nop())

			report := scheduler.RunOnce(context.Background())
			Expect(report.UsersScanned).To(Equal(2))
			Expect(report.Errors).To(HaveLen(2))
		})
	})
})
