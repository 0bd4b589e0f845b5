// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package store

import (
	"context"
	"fmt"
	"time"
)

// PruneHistory deletes price history rows observed before the cutoff and
// returns the number of rows removed.
func (db *DB) PruneHistory(ctx context.Context, cutoff time.Time) (pruned int64, err error) {
	start := time.Now()
	defer func() { observe("prune_history", start, err) }()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM price_history WHERE observed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	pruned, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history rows: %w", err)
	}
	return pruned, nil
}

// MarkStaleInstances deprecates and deactivates instances from providers
// that have not produced an observation since the cutoff, so a silent
// provider's last-known prices cannot win an aggregation run forever.
func (db *DB) MarkStaleInstances(ctx context.Context, cutoff time.Time) (marked int64, err error) {
	start := time.Now()
	defer func() { observe("mark_stale_instances", start, err) }()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE gpu_instances
		SET availability = 'deprecated', active = FALSE
		WHERE active AND last_seen_at < ?`,
		cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark stale instances: %w", err)
	}
	marked, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark stale rows: %w", err)
	}
	return marked, nil
}

// HistoryCount returns the number of price history rows, used by tests and
// the ops endpoint.
func (db *DB) HistoryCount(ctx context.Context) (count int64, err error) {
	start := time.Now()
	defer func() { observe("history_count", start, err) }()

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_history`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}
