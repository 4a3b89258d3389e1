package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache remembers webhook events that already reached a terminal
// outcome, so redelivered events can be acknowledged without touching the
// database. It is an optimization only: the conditional status update in the
// order repository stays the source of truth for idempotence, so cache misses
// (eviction, Redis outage) are always safe.
type ReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayCache creates a replay cache with the given entry TTL.
func NewReplayCache(client *redis.Client, ttl time.Duration) *ReplayCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReplayCache{client: client, ttl: ttl}
}

func (c *ReplayCache) key(ref, status string) string {
	return fmt.Sprintf("webhook:seen:%s:%s", ref, strings.ToLower(status))
}

// MarkSeen records that a terminal event for ref was applied. Best effort:
// errors are returned for logging but must not fail the webhook flow.
func (c *ReplayCache) MarkSeen(ctx context.Context, ref, status string) error {
	return c.client.SetNX(ctx, c.key(ref, status), time.Now().Format(time.RFC3339), c.ttl).Err()
}

// Seen reports whether a terminal event for ref was already applied.
// On Redis errors it reports false so the event falls through to the
// database path.
func (c *ReplayCache) Seen(ctx context.Context, ref, status string) bool {
	n, err := c.client.Exists(ctx, c.key(ref, status)).Result()
	if err != nil {
		return false
	}
	return n > 0
}
