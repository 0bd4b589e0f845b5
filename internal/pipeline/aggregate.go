// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/cache"
	"github.com/gpuradar/gpuradar/internal/metrics"
	"github.com/gpuradar/gpuradar/internal/models"
)

// RollupStore is the slice of the store the aggregation processor needs.
type RollupStore interface {
	CheapestPerGPU(ctx context.Context) ([]models.CheapestEntry, error)
}

// RollupCache is the slice of the advisory cache the aggregation processor
// needs. Both operations are best-effort.
type RollupCache interface {
	Set(key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(prefix string) (int, error)
}

// AggregationProcessor recomputes the cheapest-per-GPU rollup and refreshes
// the advisory cache. The store remains authoritative: every cache failure
// is logged and swallowed, and the run still reports success.
type AggregationProcessor struct {
	store     RollupStore
	cache     RollupCache
	rollupTTL time.Duration
	logger    zerolog.Logger
}

// NewAggregationProcessor builds an aggregation processor.
func NewAggregationProcessor(store RollupStore, c RollupCache, rollupTTL time.Duration, logger *zerolog.Logger) *AggregationProcessor {
	return &AggregationProcessor{
		store:     store,
		cache:     c,
		rollupTTL: rollupTTL,
		logger:    logger.With().Str("component", "aggregation").Logger(),
	}
}

// Run recomputes the rollup and returns the number of entries. It fails
// only when the store query fails.
func (p *AggregationProcessor) Run(ctx context.Context) (int, error) {
	log := runLogger(ctx, p.logger)
	entries, err := p.store.CheapestPerGPU(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate: %w", err)
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return 0, fmt.Errorf("marshal rollup: %w", err)
	}
	if err := p.cache.Set(cache.RollupKey, payload, p.rollupTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache rollup")
	}

	for _, prefix := range cache.ListPrefixes {
		removed, err := p.cache.InvalidatePrefix(prefix)
		if err != nil {
			log.Warn().Err(err).Str("prefix", prefix).Msg("Cache invalidation failed")
			continue
		}
		if removed > 0 {
			log.Debug().Str("prefix", prefix).Int("removed", removed).Msg("Invalidated cache entries")
		}
	}

	metrics.AggregationRunsTotal.Inc()
	metrics.AggregationEntries.Set(float64(len(entries)))
	log.Info().Int("entries", len(entries)).Msg("Aggregation complete")
	return len(entries), nil
}
