package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by RedisCache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// RedisCache is the shared second level behind a Cache. Values are stored as
// JSON under "<prefix>:<key>" and expire through Redis TTLs.
type RedisCache[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. The client is owned by the caller.
func NewRedisCache[V any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[V] {
	return &RedisCache[V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache[V]) fullKey(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, error) {
	var result V

	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, ErrCacheMiss
		}
		return result, fmt.Errorf("failed to get from redis: %w", err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return result, nil
}

func (c *RedisCache[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.fullKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisCache[V]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}
