// Package ledger provides the Redis-backed idempotency ledger, used in
// deployments that keep the hot dedupe path off Postgres. The Postgres
// ledger in internal/db remains the durable default; this one trades the
// archive/cleanup lifecycle for TTL-based expiry handled by Redis itself.
package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"bubbletasks/internal/types"
)

// DefaultRedisRetention mirrors the Postgres ledger's retention window.
const DefaultRedisRetention = 30 * 24 * time.Hour

// redisClient is the slice of go-redis the ledger needs. *redis.Client
// satisfies it.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLedger records fired notifications as Redis keys with a TTL.
// SET NX gives the same write-twice-is-a-no-op contract the Postgres
// ledger gets from ON CONFLICT DO NOTHING.
type RedisLedger struct {
	client    redisClient
	retention time.Duration
}

// NewRedisLedger creates a RedisLedger. A non-positive retention falls
// back to DefaultRedisRetention.
func NewRedisLedger(client redisClient, retention time.Duration) *RedisLedger {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisLedger{client: client, retention: retention}
}

// HasFired reports whether the key has already been recorded.
func (l *RedisLedger) HasFired(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalLedger, "failed to read redis ledger", err)
	}
	return n > 0, nil
}

// MarkFired records the key with the send timestamp as its value.
// Re-marking an existing key leaves the original entry and TTL untouched.
func (l *RedisLedger) MarkFired(ctx context.Context, key string, at time.Time) error {
	_, err := l.client.SetNX(ctx, key, at.UTC().Format(time.RFC3339), l.retention).Result()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalLedger, "failed to write redis ledger", err)
	}
	return nil
}
