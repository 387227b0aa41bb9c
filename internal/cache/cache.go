// Package cache memoizes responses of slow or rate-limited search endpoints.
//
// Cache is the in-process level: a bounded, expiring map with FIFO eviction
// by first insertion and lazy expiry. RedisCache is the optional shared level
// behind it.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ultrathink/discovery-web/pkg/log"
)

const (
	// DefaultTTL is how long an entry stays valid.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize is the entry count at which eviction starts.
	DefaultMaxSize = 50
)

// Clock returns the current time.
type Clock func() time.Time

type options struct {
	name   string
	clock  Clock
	logger *zerolog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces time.Now, so tests can simulate the passage of time.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithName labels the cache in log lines and stats.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for debug-level hit/miss/eviction lines.
// The global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	elem     *list.Element
}

// Stats is a point-in-time view of a cache's counters.
type Stats struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	MaxSize     int    `json:"max_size"`
	TTLSeconds  int64  `json:"ttl_seconds"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Expirations uint64 `json:"expirations"`
	Evictions   uint64 `json:"evictions"`
}

// Cache is a keyed store with a fixed ttl and a bounded entry count.
//
// Entries are valid while now-storedAt < ttl. Expired entries are removed
// only when they are looked up; nothing sweeps in the background, so Size
// counts stale entries until they are touched. When inserting a new key
// would exceed maxSize, the earliest-inserted entry is evicted. Reads never
// refresh an entry's position, and overwriting a key keeps the position of
// its first insertion.
//
// Values are returned as stored, without copying. Callers must treat them as
// read-only.
type Cache[V any] struct {
	ttl     time.Duration
	maxSize int
	name    string
	now     Clock
	logger  *zerolog.Logger

	mu      sync.Mutex
	order   *list.List // keys, front is the oldest insertion
	entries map[string]*entry[V]
	stats   Stats
}

// New creates a cache. Negative ttl or maxSize are treated as zero: a zero
// maxSize disables the cache and a zero ttl makes every lookup miss.
func New[V any](ttl time.Duration, maxSize int, opts ...Option) *Cache[V] {
	o := options{name: "cache", clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl < 0 {
		ttl = 0
	}
	if maxSize < 0 {
		maxSize = 0
	}

	return &Cache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		name:    o.name,
		now:     o.clock,
		logger:  o.logger,
		order:   list.New(),
		entries: make(map[string]*entry[V]),
	}
}

func (c *Cache[V]) log() *zerolog.Logger {
	if c.logger != nil {
		return c.logger
	}
	l := log.L()
	return &l
}

// Get returns the value stored under key if it has not expired.
// An expired entry is deleted as a side effect.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.log().Debug().Str("cache", c.name).Str(log.FieldCacheKey, key).
			Str("reason", "not_found").Msg("cache miss")
		return zero, false
	}

	age := c.now().Sub(e.storedAt)
	if age >= c.ttl {
		c.removeLocked(key, e)
		c.stats.Misses++
		c.stats.Expirations++
		c.log().Debug().Str("cache", c.name).Str(log.FieldCacheKey, key).
			Str("reason", "expired").Dur("age", age).Msg("cache miss")
		return zero, false
	}

	c.stats.Hits++
	c.log().Debug().Str("cache", c.name).Str(log.FieldCacheKey, key).
		Dur("age", age).Msg("cache hit")
	return e.value, true
}

// Has reports whether Get would return a value. It performs the same lazy expiry.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key with storedAt = now.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = now
		return
	}

	c.entries[key] = &entry[V]{
		value:    value,
		storedAt: now,
		elem:     c.order.PushBack(key),
	}

	for len(c.entries) > c.maxSize {
		c.evictOldestLocked()
	}

	c.log().Debug().Str("cache", c.name).Str(log.FieldCacheKey, key).
		Int("total_entries", len(c.entries)).Msg("cache set")
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// Clear empties the cache. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*entry[V])
}

// Size returns the number of stored entries, including stale ones that
// have not been looked up since they expired.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns a copy of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Name = c.name
	s.Size = len(c.entries)
	s.MaxSize = c.maxSize
	s.TTLSeconds = int64(c.ttl / time.Second)
	return s
}

// evictOldestLocked must be called with mu held.
func (c *Cache[V]) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.removeLocked(key, c.entries[key])
	c.stats.Evictions++
	c.log().Debug().Str("cache", c.name).Str(log.FieldCacheKey, key).Msg("cache evict")
}

func (c *Cache[V]) removeLocked(key string, e *entry[V]) {
	c.order.Remove(e.elem)
	delete(c.entries, key)
}

// Key builds a composite cache key from query parameters.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}
