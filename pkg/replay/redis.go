package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// noncePrefix namespaces replay keys in the shared Redis keyspace.
const noncePrefix = "veribadge:nonce:"

// RedisGuard is a Guard backed by Redis. SET NX with a TTL gives the
// atomic check-and-insert the protocol requires across multiple service
// instances, and Redis expiry bounds storage growth to the token's own
// validity window.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a RedisGuard on an existing client.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// RecordIfNew implements Guard.
func (g *RedisGuard) RecordIfNew(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}

	ok, err := g.client.SetNX(ctx, noncePrefix+hashNonce(nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay guard unavailable: %w", err)
	}
	return ok, nil
}

// Ping checks connectivity to the backing Redis instance.
func (g *RedisGuard) Ping(ctx context.Context) error {
	if err := g.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("replay guard unavailable: %w", err)
	}
	return nil
}
