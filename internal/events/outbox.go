package events

import (
	"context"

	"github.com/rs/zerolog"

	"identity-service/internal/metrics"
)

// Outbox queues events during an operation and publishes them only when the
// operation's local writes have all succeeded. Create one per operation,
// Enqueue as transitions happen, and Flush as the final step; an error
// before Flush means nothing is published, so consumers never observe a
// transition that was rolled back.
type Outbox struct {
	producer Producer
	log      zerolog.Logger
	queue    []Envelope
}

// NewOutbox returns an empty outbox bound to the given producer.
func NewOutbox(producer Producer, log zerolog.Logger) *Outbox {
	return &Outbox{producer: producer, log: log}
}

// Enqueue records an event for publication at Flush time.
func (o *Outbox) Enqueue(env Envelope) {
	o.queue = append(o.queue, env)
}

// Flush publishes queued events in order and clears the queue. Publishing is
// best-effort-but-reported: a failed publish is logged and counted, and the
// remaining events are still attempted. Local state is already committed by
// the time Flush runs, so failures must not unwind it.
func (o *Outbox) Flush(ctx context.Context) {
	for _, env := range o.queue {
		if err := o.producer.Publish(ctx, env); err != nil {
			metrics.EventsPublishErrorsTotal.WithLabelValues(env.Type).Inc()
			o.log.Error().Err(err).
				Str("topic", env.Type).
				Str("event_id", env.ID).
				Str("correlation_id", env.CorrelationID).
				Msg("event publish failed")
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(env.Type).Inc()
		o.log.Debug().
			Str("topic", env.Type).
			Str("event_id", env.ID).
			Str("correlation_id", env.CorrelationID).
			Msg("event published")
	}
	o.queue = nil
}

// Discard drops queued events without publishing, for callers that detect a
// failure after enqueueing.
func (o *Outbox) Discard() {
	o.queue = nil
}

// Pending returns the number of queued events.
func (o *Outbox) Pending() int { return len(o.queue) }
