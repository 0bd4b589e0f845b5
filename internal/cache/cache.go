// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package cache is the advisory read cache backed by BadgerDB. It holds the
// cheapest-per-GPU rollup under a fixed key with a short TTL, plus
// list-endpoint entries invalidated by prefix sweep after every aggregation
// run. The cache is never authoritative: callers fall back to the store on
// any miss or error, and write/invalidation failures are swallowed upstream.
package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/metrics"
)

// RollupKey is the fixed key the aggregation processor writes the
// cheapest-per-GPU rollup under.
const RollupKey = "rollup:cheapest-gpus"

// Prefixes of list-endpoint entries invalidated after every aggregation run.
var ListPrefixes = []string{"providers:", "instances:", "gpus:"}

// ErrNotFound is returned when a key is absent or its TTL has expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a thin TTL key/value layer over BadgerDB.
type Cache struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens (or creates) the cache at the configured directory.
func Open(cfg *config.CacheConfig, logger *zerolog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	// Badger logs through its own interface; route it to zerolog.
	opts.Logger = badgerLogger{logger.With().Str("component", "cache").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{
		db:     db,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Set stores a value under key with the given TTL. A zero TTL stores the
// entry without expiry.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get returns the value stored under key, or ErrNotFound when absent or
// expired.
func (c *Cache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		metrics.CacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return nil, err
	}
	metrics.CacheHits.WithLabelValues(keyPrefix(key)).Inc()
	return value, nil
}

// InvalidatePrefix deletes every key under the given prefix, iterating
// keys-only so the sweep never materializes values or blocks readers.
// Returns the number of keys removed.
func (c *Cache) InvalidatePrefix(prefix string) (int, error) {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}

	removed := 0
	for _, key := range keys {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	metrics.CacheInvalidations.WithLabelValues(prefix).Add(float64(removed))
	return removed, nil
}

func keyPrefix(key string) string {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx+1]
	}
	return key
}

// badgerLogger adapts badger's logger interface to zerolog. Badger is
// chatty at INFO; its operational detail maps to debug here.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}
