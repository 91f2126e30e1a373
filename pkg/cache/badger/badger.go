// Package badger provides a BadgerDB-backed cache.Cache.
//
// Entry expiry uses Badger's native TTL support, so entries written with a
// deadline disappear without any sweeper of our own.
package badger

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/cache"
)

// Config holds the BadgerDB cache configuration.
type Config struct {
	// Path is the directory for the Badger value log and LSM tree.
	// Empty means a purely in-memory instance.
	Path string `mapstructure:"path" yaml:"path"`
}

// BadgerCache is a persistent cache.Cache backed by BadgerDB.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) the Badger database at cfg.Path.
func NewBadgerCache(cfg Config) (*BadgerCache, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Badger's own logging is too chatty for a cache
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	logger.Debug("badger cache opened", "path", cfg.Path)
	return &BadgerCache{db: db}, nil
}

// Get returns the value stored under key, or cache.ErrCacheMiss.
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with the given ttl.
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *BadgerCache) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("badger drop prefix %q: %w", prefix, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
