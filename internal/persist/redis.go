package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores entries as plain Redis strings under
// "<prefix><scope>:<key>" with native expiry.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV wraps an existing client. The client is owned by the caller.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(scope, key string) string {
	return r.prefix + scope + ":" + key
}

func (r *RedisKV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(scope, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return data, nil
}

func (r *RedisKV) Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(scope, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(scope, k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

func (r *RedisKV) Close() error {
	return nil
}
