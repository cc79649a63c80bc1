// Package kafka provides a Kafka-backed eventstream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/loomworks/loom/pkg/eventstream"
)

// DefaultTopic is the topic consolidation link events are published to.
const DefaultTopic = "loom.consolidation.links"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// Publisher implements eventstream.Publisher over a Kafka topic. Events
// are keyed by user id so one user's audit trail stays ordered within a
// partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafkago.RequireOne,
	}

	logger.Info("kafka publisher configured",
		"brokers", c.Brokers,
		"topic", topic,
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishLink serializes and writes one link event.
func (p *Publisher) PublishLink(ctx context.Context, event *eventstream.LinkCreatedEvent) error {
	if event == nil {
		return eventstream.ErrNilLinkEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling link event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Link.UserID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("writing link event: %w", err)
	}

	p.logger.Debug("published link event",
		"event_id", event.EventID,
		"user_id", event.Link.UserID,
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
