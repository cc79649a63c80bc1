package inmemory_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
	"github.com/loomworks/loom/pkg/memory/backend/inmemory"
)

func TestInMemoryBackend(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "In-Memory Backend Suite")
}

var _ = Describe("Client", func() {
	var client *inmemory.Client

	BeforeEach(func() {
		client = inmemory.NewClient(inmemory.Config{Backend: memory.BackendFact})
	})

	It("reports its configured identity", func() {
		Expect(client.ID()).To(Equal(memory.BackendFact))
	})

	Describe("Add", func() {
		It("stores a record retrievable via GetAll", func() {
			id, err := client.Add(context.Background(), "user-1", "user is vegetarian", backend.Metadata{})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			records, err := client.GetAll(context.Background(), "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].ID).To(Equal(id))
			Expect(records[0].Backend).To(Equal(memory.BackendFact))
			Expect(records[0].Content).To(Equal("user is vegetarian"))
		})

		It("honors an explicit ValidAt", func() {
			validAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			_, err := client.Add(context.Background(), "user-1", "user lived in Delhi", backend.Metadata{ValidAt: validAt})
			Expect(err).NotTo(HaveOccurred())

			records, err := client.GetAll(context.Background(), "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].ValidAt).To(Equal(validAt))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			_, err := client.Add(context.Background(), "user-1", "user is vegetarian", backend.Metadata{})
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Add(context.Background(), "user-1", "user lives in Delhi", backend.Metadata{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("scores matches by token overlap", func() {
			records, err := client.Search(context.Background(), "user-1", "vegetarian food", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Content).To(Equal("user is vegetarian"))
			Expect(records[0].HasScore).To(BeTrue())
			Expect(records[0].Score).To(BeNumerically("~", 0.5, 0.001))
		})

		It("returns nothing when no token matches", func() {
			records, err := client.Search(context.Background(), "user-1", "weather", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("caps results at the limit", func() {
			records, err := client.Search(context.Background(), "user-1", "user", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("never returns another user's records", func() {
			records, err := client.Search(context.Background(), "user-2", "vegetarian", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("removes a record by id", func() {
			id, err := client.Add(context.Background(), "user-1", "user is vegetarian", backend.Metadata{})
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Delete(context.Background(), id)).To(Succeed())

			records, err := client.GetAll(context.Background(), "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})
})
