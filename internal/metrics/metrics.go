// Package metrics defines all custom Prometheus metrics for the identity
// service. It is the single source of truth for metric names, labels, and
// help strings. Metrics register with the default registry via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// EventsPublishedTotal counts domain events flushed to the broker.
// Label:
//   - topic: the event type, e.g. "workspace.membership.deleted"
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of domain events published to the broker.",
	},
	[]string{"topic"},
)

// EventsPublishErrorsTotal counts failed publishes during outbox flush.
var EventsPublishErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_publish_errors_total",
		Help:      "Total number of domain events that failed to publish.",
	},
	[]string{"topic"},
)

// EventsConsumedTotal counts events that completed handling.
// Labels:
//   - topic: the event type
//   - result: "ok" or "error"
var EventsConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_consumed_total",
		Help:      "Total number of consumed events, labelled by handling result.",
	},
	[]string{"topic", "result"},
)

// EventsDedupTotal counts deduplication decisions on the consumer side.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new event, processed)
var EventsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dedup_total",
		Help:      "Total number of consumer dedup checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// IdPSyncTotal counts identity-provider attribute synchronisations.
// Label:
//   - result: "updated" (a replace call was issued), "noop" (already in
//     sync), or "error"
var IdPSyncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idp_sync_total",
		Help:      "Total number of identity-provider attribute syncs, labelled by result.",
	},
	[]string{"result"},
)
