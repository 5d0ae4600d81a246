package robots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of *redis.Client the cache uses.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares robots.txt responses between worker nodes.
type RedisCache struct {
	client redisCmdable
	prefix string
}

// NewRedisCache wraps a redis client. Keys are prefix + origin.
func NewRedisCache(client redisCmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, origin string) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+origin).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get robots: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached robots: %w", err)
	}
	return e, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, origin string, e Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode robots: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+origin, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set robots: %w", err)
	}
	return nil
}
