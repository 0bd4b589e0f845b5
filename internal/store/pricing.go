// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/models"
)

// UpsertObservations replaces a provider's active instance set with the
// given observations and appends each one to the price history. Instances
// the provider stopped listing are deactivated; instances still listed keep
// their first_seen_at. Observations for other providers are untouched, so
// concurrent fetch jobs do not contend beyond the provider's own rows.
func (db *DB) UpsertObservations(ctx context.Context, providerSlug string, observations []models.PricingObservation) (err error) {
	start := time.Now()
	defer func() { observe("upsert_observations", start, err) }()

	for i := range observations {
		if verr := observations[i].Validate(); verr != nil {
			return fmt.Errorf("observation %d: %w", i, verr)
		}
		if observations[i].ProviderSlug != providerSlug {
			return fmt.Errorf("observation %d: provider %q does not match job provider %q",
				i, observations[i].ProviderSlug, providerSlug)
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE gpu_instances SET active = FALSE WHERE provider_slug = ?`,
		providerSlug); err != nil {
		return fmt.Errorf("deactivate previous instances: %w", err)
	}

	for i := range observations {
		o := &observations[i]

		var regions any
		if len(o.Regions) > 0 {
			b, jerr := json.Marshal(o.Regions)
			if jerr != nil {
				return fmt.Errorf("marshal regions: %w", jerr)
			}
			regions = string(b)
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO gpu_instances (
				provider_slug, instance_id, instance_name, gpu_slug, gpu_count,
				price_per_hour, price_per_gpu_hour, spot_price, currency,
				vcpus, memory_gb, storage_gb, availability, regions, source_url,
				active, first_seen_at, last_seen_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)
			ON CONFLICT (provider_slug, instance_id) DO UPDATE SET
				instance_name      = excluded.instance_name,
				gpu_slug           = excluded.gpu_slug,
				gpu_count          = excluded.gpu_count,
				price_per_hour     = excluded.price_per_hour,
				price_per_gpu_hour = excluded.price_per_gpu_hour,
				spot_price         = excluded.spot_price,
				currency           = excluded.currency,
				vcpus              = excluded.vcpus,
				memory_gb          = excluded.memory_gb,
				storage_gb         = excluded.storage_gb,
				availability       = excluded.availability,
				regions            = excluded.regions,
				source_url         = excluded.source_url,
				active             = TRUE,
				last_seen_at       = excluded.last_seen_at`,
			o.ProviderSlug, o.InstanceID, o.InstanceName, o.GPUSlug, o.GPUCount,
			o.PricePerHour, o.PricePerGPUHour(), nullFloat(o.SpotPrice), o.Currency,
			nullInt(o.VCPUs), nullInt(o.MemoryGB), nullInt(o.StorageGB),
			string(o.Availability), regions, nullString(o.SourceURL),
			o.ObservedAt, o.ObservedAt); err != nil {
			return fmt.Errorf("upsert instance %s/%s: %w", o.ProviderSlug, o.InstanceID, err)
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO price_history (
				provider_slug, instance_id, gpu_slug, gpu_count,
				price_per_hour, price_per_gpu_hour, spot_price, availability, observed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ProviderSlug, o.InstanceID, o.GPUSlug, o.GPUCount,
			o.PricePerHour, o.PricePerGPUHour(), nullFloat(o.SpotPrice),
			string(o.Availability), o.ObservedAt); err != nil {
			return fmt.Errorf("append history %s/%s: %w", o.ProviderSlug, o.InstanceID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// CheapestPerGPU computes the minimum active price-per-GPU-hour and the
// winning provider for every GPU model, ranking inside the database so the
// result is consistent under concurrent upserts. Equal prices tie-break on
// lexicographic provider slug.
func (db *DB) CheapestPerGPU(ctx context.Context) (entries []models.CheapestEntry, err error) {
	start := time.Now()
	defer func() { observe("cheapest_per_gpu", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		WITH ranked AS (
			SELECT
				gpu_slug,
				provider_slug,
				price_per_gpu_hour,
				ROW_NUMBER() OVER (
					PARTITION BY gpu_slug
					ORDER BY price_per_gpu_hour ASC, provider_slug ASC
				) AS rank
			FROM gpu_instances
			WHERE active
		)
		SELECT gpu_slug, provider_slug, price_per_gpu_hour
		FROM ranked
		WHERE rank = 1
		ORDER BY gpu_slug`)
	if err != nil {
		return nil, fmt.Errorf("cheapest query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	now := time.Now().UTC()
	for rows.Next() {
		var e models.CheapestEntry
		if err = rows.Scan(&e.GPUSlug, &e.ProviderSlug, &e.PricePerGPUHour); err != nil {
			return nil, fmt.Errorf("scan cheapest row: %w", err)
		}
		e.GPUName = catalog.GPUName(e.GPUSlug)
		e.GeneratedAt = now
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cheapest rows: %w", err)
	}
	return entries, nil
}

// MinActivePrice returns the minimum active price-per-GPU-hour for a GPU
// model, optionally scoped to one provider. The second return value is
// false when no active instance offers the model.
func (db *DB) MinActivePrice(ctx context.Context, gpuSlug, providerSlug string) (price float64, found bool, err error) {
	start := time.Now()
	defer func() { observe("min_active_price", start, err) }()

	query := `SELECT MIN(price_per_gpu_hour) FROM gpu_instances WHERE active AND gpu_slug = ?`
	args := []any{gpuSlug}
	if providerSlug != "" {
		query += ` AND provider_slug = ?`
		args = append(args, providerSlug)
	}

	var min sql.NullFloat64
	if err = db.conn.QueryRowContext(ctx, query, args...).Scan(&min); err != nil {
		return 0, false, fmt.Errorf("min price query: %w", err)
	}
	if !min.Valid {
		return 0, false, nil
	}
	return min.Float64, true, nil
}

// ActiveInstanceCount returns the number of active instances, used by the
// ops endpoint.
func (db *DB) ActiveInstanceCount(ctx context.Context) (count int64, err error) {
	start := time.Now()
	defer func() { observe("active_instance_count", start, err) }()

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gpu_instances WHERE active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return count, nil
}

func nullFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
