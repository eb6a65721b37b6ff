package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"identity-service/internal/metrics"
)

// Handler processes one decoded event. Handlers must be idempotent: the
// transport redelivers on failure and may redeliver after success.
type Handler func(ctx context.Context, env Envelope) error

// Deduper short-cuts redelivered events. Optional; handlers do not rely on it.
type Deduper interface {
	IsDuplicate(ctx context.Context, topic, eventID string) (bool, error)
	Mark(ctx context.Context, topic, eventID string) error
}

// Consumer reads one topic with a consumer group and dispatches each event
// to the registered handler. A handler error leaves the message uncommitted
// for redelivery.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	topic   string
	dedup   Deduper
	log     zerolog.Logger
}

// NewConsumer creates a consumer-group reader for topic. dedup may be nil.
func NewConsumer(brokers []string, groupID, topic string, handler Handler, dedup Deduper, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
	})
	return &Consumer{reader: reader, handler: handler, topic: topic, dedup: dedup, log: log}
}

// Run consumes until ctx is cancelled. Messages are committed only after the
// handler returns nil, giving at-least-once semantics.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Str("topic", c.topic).Msg("kafka fetch failed")
			continue
		}

		env, err := decodeEnvelope(msg.Value)
		if err != nil {
			// Malformed payloads would never succeed; commit and move on.
			c.log.Error().Err(err).Str("topic", c.topic).Msg("dropping undecodable event")
			metrics.EventsConsumedTotal.WithLabelValues(c.topic, "error").Inc()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if c.skipDuplicate(ctx, env) {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.handler(ctx, env); err != nil {
			metrics.EventsConsumedTotal.WithLabelValues(c.topic, "error").Inc()
			c.log.Error().Err(err).
				Str("topic", c.topic).
				Str("event_id", env.ID).
				Str("correlation_id", env.CorrelationID).
				Msg("event handling failed; leaving uncommitted for redelivery")
			continue
		}

		c.markProcessed(ctx, env)
		metrics.EventsConsumedTotal.WithLabelValues(c.topic, "ok").Inc()
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error().Err(err).Str("topic", c.topic).Msg("offset commit failed")
		}
	}
}

func (c *Consumer) skipDuplicate(ctx context.Context, env Envelope) bool {
	if c.dedup == nil || env.ID == "" {
		return false
	}
	dup, err := c.dedup.IsDuplicate(ctx, c.topic, env.ID)
	if err != nil {
		// Dedup is an optimisation; on checker failure fall through to the
		// idempotent handler.
		c.log.Warn().Err(err).Str("topic", c.topic).Msg("dedup check failed")
		return false
	}
	if dup {
		metrics.EventsDedupTotal.WithLabelValues("hit").Inc()
		c.log.Debug().Str("topic", c.topic).Str("event_id", env.ID).Msg("duplicate event skipped")
		return true
	}
	metrics.EventsDedupTotal.WithLabelValues("miss").Inc()
	return false
}

func (c *Consumer) markProcessed(ctx context.Context, env Envelope) {
	if c.dedup == nil || env.ID == "" {
		return
	}
	if err := c.dedup.Mark(ctx, c.topic, env.ID); err != nil {
		c.log.Warn().Err(err).Str("topic", c.topic).Msg("dedup mark failed")
	}
}

func decodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
