// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package store is the authoritative persistence layer, backed by embedded
// DuckDB. It keeps the active instance set with current prices, an
// append-only price history, and alert subscriptions. The advisory cache
// never substitutes for it: readers fall back here on any cache miss.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/metrics"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at the configured path and initializes the schema.
// A path of ":memory:" opens an in-memory database.
func New(cfg *config.StoreConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create store directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments; nothing here needs them.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// DuckDB is embedded; a small pool avoids write contention.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func (db *DB) initSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_price_history START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_alert_subscriptions START 1`,
		`CREATE TABLE IF NOT EXISTS gpu_instances (
			provider_slug      VARCHAR NOT NULL,
			instance_id        VARCHAR NOT NULL,
			instance_name      VARCHAR NOT NULL,
			gpu_slug           VARCHAR NOT NULL,
			gpu_count          INTEGER NOT NULL,
			price_per_hour     DOUBLE NOT NULL,
			price_per_gpu_hour DOUBLE NOT NULL,
			spot_price         DOUBLE,
			currency           VARCHAR NOT NULL,
			vcpus              INTEGER,
			memory_gb          INTEGER,
			storage_gb         INTEGER,
			availability       VARCHAR NOT NULL,
			regions            VARCHAR,
			source_url         VARCHAR,
			active             BOOLEAN NOT NULL DEFAULT TRUE,
			first_seen_at      TIMESTAMP NOT NULL,
			last_seen_at       TIMESTAMP NOT NULL,
			PRIMARY KEY (provider_slug, instance_id)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id                 BIGINT PRIMARY KEY DEFAULT nextval('seq_price_history'),
			provider_slug      VARCHAR NOT NULL,
			instance_id        VARCHAR NOT NULL,
			gpu_slug           VARCHAR NOT NULL,
			gpu_count          INTEGER NOT NULL,
			price_per_hour     DOUBLE NOT NULL,
			price_per_gpu_hour DOUBLE NOT NULL,
			spot_price         DOUBLE,
			availability       VARCHAR NOT NULL,
			observed_at        TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_observed_at ON price_history (observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_gpu_slug ON price_history (gpu_slug)`,
		`CREATE TABLE IF NOT EXISTS alert_subscriptions (
			id               BIGINT PRIMARY KEY DEFAULT nextval('seq_alert_subscriptions'),
			email            VARCHAR NOT NULL,
			gpu_slug         VARCHAR NOT NULL,
			provider_slug    VARCHAR,
			target_price     DOUBLE NOT NULL,
			active           BOOLEAN NOT NULL DEFAULT TRUE,
			confirmed        BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMP NOT NULL,
			last_notified_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// observe records query duration and error state under an operation label.
func observe(operation string, start time.Time, err error) {
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}
