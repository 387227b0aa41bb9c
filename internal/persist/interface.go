// Package persist keeps the small JSON blobs a browser session would
// otherwise hold in local storage.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("persist: key not found")

// GlobalScope holds entries shared by every session.
const GlobalScope = "global"

// Well known keys.
const (
	KeyDiscoveryCandidates = "discovery_candidates"
	KeyDiscoveryTarget     = "discovery_target"
	abstractKeyPrefix      = "pubmed_abstract_"
)

// AbstractKey returns the key of a cached PubMed abstract.
func AbstractKey(pmid string) string {
	return abstractKeyPrefix + pmid
}

// KV is a scoped key-value store. A zero ttl means no expiry.
type KV interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, scope string, keys ...string) error
	Close() error
}

// GetJSON reads key and decodes it into out.
func GetJSON(ctx context.Context, kv KV, scope, key string, out any) error {
	data, err := kv.Get(ctx, scope, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, kv KV, scope, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, scope, key, data, ttl)
}
