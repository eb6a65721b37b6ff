package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// DedupChecker provides idempotency checks for consumed events backed by
// Redis. Handlers stay idempotent on their own; the checker only short-cuts
// redeliveries. Key format: dedup:<topic>:<event_id>
type DedupChecker struct {
	client *redis.Client
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client *redis.Client) *DedupChecker {
	return &DedupChecker{client: client}
}

// IsDuplicate reports whether this event has already been processed.
func (d *DedupChecker) IsDuplicate(ctx context.Context, topic, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(topic, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this event has been processed (expires after dedupTTL).
func (d *DedupChecker) Mark(ctx context.Context, topic, eventID string) error {
	return d.client.Set(ctx, d.key(topic, eventID), "1", dedupTTL).Err()
}

func (d *DedupChecker) key(topic, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", topic, eventID)
}
