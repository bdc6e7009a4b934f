// Package kafka publishes dashboard activity events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/early-design-app/internal/config"
	"github.com/couchcryptid/early-design-app/internal/domain"
)

// Publisher produces activity events to the configured topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the activity topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaActivityTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one event, keyed by session so a session's events stay ordered.
func (p *Publisher) Publish(ctx context.Context, event domain.ActivityEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	p.logger.Debug("activity event published", "type", event.Type, "id", event.ID, "session", event.SessionID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. Used when KAFKA_ENABLED is false.
type Nop struct{}

func (Nop) Publish(context.Context, domain.ActivityEvent) error { return nil }

func (Nop) Close() error { return nil }

// serializeToMessage marshals an ActivityEvent into a Kafka message.
func serializeToMessage(event domain.ActivityEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize activity event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
