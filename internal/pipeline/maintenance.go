// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/config"
)

// MaintenanceStore is the slice of the store the maintenance job needs.
type MaintenanceStore interface {
	PruneHistory(ctx context.Context, cutoff time.Time) (int64, error)
	MarkStaleInstances(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceProcessor prunes old price history and deprecates instances
// from providers that have gone silent.
type MaintenanceProcessor struct {
	store  MaintenanceStore
	cfg    config.MaintenanceConfig
	logger zerolog.Logger
}

// NewMaintenanceProcessor builds a maintenance processor.
func NewMaintenanceProcessor(store MaintenanceStore, cfg config.MaintenanceConfig, logger *zerolog.Logger) *MaintenanceProcessor {
	return &MaintenanceProcessor{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "maintenance").Logger(),
	}
}

// Run executes one cleanup pass and returns the pruned and deprecated row
// counts.
func (p *MaintenanceProcessor) Run(ctx context.Context) (pruned, marked int64, err error) {
	log := runLogger(ctx, p.logger)
	now := time.Now().UTC()

	pruned, err = p.store.PruneHistory(ctx, now.Add(-p.cfg.HistoryRetention))
	if err != nil {
		return 0, 0, fmt.Errorf("prune history: %w", err)
	}

	marked, err = p.store.MarkStaleInstances(ctx, now.Add(-p.cfg.StaleAfter))
	if err != nil {
		return pruned, 0, fmt.Errorf("mark stale: %w", err)
	}

	log.Info().
		Int64("history_pruned", pruned).
		Int64("instances_deprecated", marked).
		Msg("Maintenance complete")
	return pruned, marked, nil
}
