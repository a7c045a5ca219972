// Package kafka publishes usage events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
)

// Config holds Kafka publisher settings.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// ErrNoBrokers is returned when no broker address is configured.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// ErrNoTopic is returned when no topic is configured.
var ErrNoTopic = errors.New("kafka: no topic configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes usage events as JSON values keyed by token fingerprint,
// so every event for one token lands on the same partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka backed publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           batchTimeout,
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// newPublisherWithWriter is used by tests to inject a writer.
func newPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishUsage serializes event and writes it to the topic.
func (p *Publisher) PublishUsage(ctx context.Context, event *eventstream.UsageEvent) error {
	if event == nil {
		return eventstream.ErrNilUsageEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling usage event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.TokenFingerprint),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("writing usage event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
