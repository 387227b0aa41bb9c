package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/pkg/log"
)

const (
	l2WriteTimeout = 2 * time.Second

	// sharedFetchTimeout bounds a fetch that outlives the caller which
	// started it. Upstream clients apply their own, shorter, timeouts.
	sharedFetchTimeout = 2 * time.Minute
)

// layeredCache puts an in-process cache in front of an optional Redis level
// and collapses concurrent misses for the same key into one fetch.
type layeredCache[V any] struct {
	l1 *cache.Cache[V]
	l2 *cache.RedisCache[V]
	sf singleflight.Group
}

func newLayeredCache[V any](l1 *cache.Cache[V], l2 *cache.RedisCache[V]) *layeredCache[V] {
	return &layeredCache[V]{l1: l1, l2: l2}
}

// get returns the cached value for key or calls fetch. Only successful
// fetches are cached.
func (c *layeredCache[V]) get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.l1.Get(key); ok {
		return v, nil
	}

	// The fetch is shared by every caller waiting on key, so it runs on a
	// context that keeps the first caller's logger but not its cancellation.
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		if v, ok := c.l1.Get(key); ok {
			return v, nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		if c.l2 != nil {
			v, err := c.l2.Get(ctx, key)
			if err == nil {
				c.l1.Set(key, v)
				return v, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache get error")
			}
		}

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.l1.Set(key, v)
		c.asyncL2Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *layeredCache[V]) asyncL2Set(key string, v V) {
	if c.l2 == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l2WriteTimeout)
		defer cancel()

		if err := c.l2.Set(ctx, key, v); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache set error")
		}
	}()
}

func (c *layeredCache[V]) stats() cache.Stats {
	return c.l1.Stats()
}

func (c *layeredCache[V]) clear() {
	c.l1.Clear()
}
