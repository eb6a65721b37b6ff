package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes a single envelope to its topic. Implementations may
// block briefly; outbox flush already runs after local writes committed.
type Producer interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go. One writer
// serves all topics; the message topic is the envelope type.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a producer for the given brokers. brokers must be
// non-empty. Call Close when shutting down.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer}
}

// Publish serialises the envelope as JSON and writes it to the topic named
// after its type, keyed by the envelope's partition key.
func (p *KafkaProducer) Publish(ctx context.Context, env Envelope) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: env.Type,
		Key:   []byte(env.Key),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NopProducer discards events. Used when KAFKA_BROKERS is unset.
type NopProducer struct{}

func (NopProducer) Publish(context.Context, Envelope) error { return nil }
func (NopProducer) Close() error                            { return nil }
