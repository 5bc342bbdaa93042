package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaWriter is the subset of *kafka.Writer used by KafkaPublisher.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON envelopes to a Kafka topic. Messages are keyed
// by reporter so one device's samples land on one partition in order.
type KafkaPublisher struct {
	writer kafkaWriter
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
// Connections are established lazily on the first write. Writes are
// asynchronous; delivery failures are logged from the writer's completion
// callback.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             logKafkaCompletion(slog.Default(), topic),
	}
	return &KafkaPublisher{writer: w}, nil
}

func logKafkaCompletion(logger *slog.Logger, topic string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil {
			logger.Warn("kafka delivery failed", "topic", topic, "messages", len(msgs), "err", err)
		}
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := encodeEnvelope(topic, event)
	if err != nil {
		return err
	}
	key := EventSource(event)
	if key == "" {
		key = topic
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "topic", Value: []byte(topic)}},
		Time:    time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
