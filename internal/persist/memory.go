package persist

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKV is an in-process KV. Expired entries are dropped when read.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryKV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[scope][key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries[scope], key)
		return nil, ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryKV) Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.entries[scope]
	if !ok {
		bucket = make(map[string]memoryEntry)
		m.entries[scope] = bucket
	}

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	bucket[key] = e
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, scope string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries[scope], k)
	}
	if len(m.entries[scope]) == 0 {
		delete(m.entries, scope)
	}
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}
