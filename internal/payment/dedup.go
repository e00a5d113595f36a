package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed webhook event ids.  It is an optimisation:
// the guarded status transition already makes replays harmless.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "dedup:webhook:"

// DedupTTL is how long a processed event id is remembered.  The gateway
// stops retrying well within this window.
var DedupTTL = 48 * time.Hour

// RedisDeduper stores event ids as expiring keys.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DedupTTL
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupKeyPrefix+eventID).Result()
	return n > 0, err
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.rdb.Set(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Err()
}
