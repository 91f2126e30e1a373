// Package cache defines the advisory key/value cache the facets engine
// consults before falling back to storage.
//
// The cache is never authoritative: a miss or an error only means the store
// must be asked. Implementations live in the memory and badger subpackages.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix. Used to
	// invalidate the whole fs range on a full clear.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases the underlying resources.
	Close() error
}
