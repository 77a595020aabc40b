package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard backs the guard with Redis so multiple relay instances share
// one replay horizon. Keys expire after TTL; batches older than that are
// rejected upstream by the envelope's expiry, not by the guard.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a guard on client. Keys are written under prefix
// with the given TTL.
func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

// Register implements Guard via SETNX.
func (g *RedisGuard) Register(ctx context.Context, id string) error {
	key := g.prefix + ":" + id
	ok, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return fmt.Errorf("replay: redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrReplay, id)
	}
	return nil
}
