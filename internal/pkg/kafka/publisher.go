// Package kafka forwards domain events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// EventPublisher is an event bus subscriber writing every event as JSON,
// keyed by aggregate so partitions keep per-request order.
type EventPublisher struct {
	writer MessageWriter
	topic  string
}

func NewEventPublisher(writer MessageWriter, topic string) *EventPublisher {
	return &EventPublisher{writer: writer, topic: topic}
}

func (p *EventPublisher) Handle(ctx context.Context, event leave.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	msg := kafkago.Message{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event %s to kafka: %w", event.ID, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
