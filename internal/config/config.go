// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package config loads and validates GPURadar configuration from defaults,
// an optional YAML file, and GPURADAR_-prefixed environment variables,
// layered in that order.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode controls which adapter strategies the registry may select.
type Mode string

const (
	// ModeStatic serves deterministic sample data for every provider so
	// the pipeline is exercisable without network access.
	ModeStatic Mode = "static"

	// ModeLive forbids fabricated data: providers without a fetch
	// strategy fall through to the no-op adapter.
	ModeLive Mode = "live"

	// ModeHybrid fetches live where possible and falls back to static
	// data elsewhere.
	ModeHybrid Mode = "hybrid"
)

// Config is the root configuration for a GPURadar worker process.
type Config struct {
	Mode Mode `koanf:"mode" validate:"oneof=static live hybrid"`

	Catalog     CatalogConfig     `koanf:"catalog"`
	Logging     LoggingConfig     `koanf:"logging"`
	NATS        NATSConfig        `koanf:"nats"`
	Store       StoreConfig       `koanf:"store"`
	Cache       CacheConfig       `koanf:"cache"`
	Scrape      ScrapeConfig      `koanf:"scrape"`
	Breaker     BreakerConfig     `koanf:"breaker"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Ops         OpsConfig         `koanf:"ops"`

	// Credentials holds per-provider API credentials keyed by provider
	// slug. A provider with credentials present is eligible for its
	// dedicated API adapter.
	Credentials map[string]ProviderCredentials `koanf:"credentials"`
}

// CatalogConfig points at the provider catalog file. An empty path falls
// back to the built-in provider set.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// NATSConfig configures the JetStream connection backing the job, render
// and notification queues.
type NATSConfig struct {
	URL            string        `koanf:"url" validate:"required"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// StoreConfig configures the embedded DuckDB authoritative store.
type StoreConfig struct {
	Path    string `koanf:"path" validate:"required"`
	Threads int    `koanf:"threads"`
}

// CacheConfig configures the Badger advisory cache.
type CacheConfig struct {
	Dir       string        `koanf:"dir" validate:"required"`
	RollupTTL time.Duration `koanf:"rollup_ttl" validate:"gt=0"`
	InMemory  bool          `koanf:"in_memory"`
}

// ScrapeConfig carries the timeout budgets for the three fetch
// capabilities.
type ScrapeConfig struct {
	TextTimeout time.Duration `koanf:"text_timeout" validate:"gt=0"`
	JSONTimeout time.Duration `koanf:"json_timeout" validate:"gt=0"`

	// RenderTimeoutMS is forwarded to the rendering worker; the caller
	// waits RenderTimeoutMS + RenderGrace for the reply.
	RenderTimeoutMS int           `koanf:"render_timeout_ms" validate:"gt=0"`
	RenderGrace     time.Duration `koanf:"render_grace" validate:"gt=0"`
	WaitUntil       string        `koanf:"wait_until"`
	BlockResources  bool          `koanf:"block_resources"`
}

// BreakerConfig configures the per-adapter circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gt=0"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

// SchedulerConfig configures the recurring-job runner.
type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
}

// MaintenanceConfig bounds the cleanup job.
type MaintenanceConfig struct {
	HistoryRetention time.Duration `koanf:"history_retention" validate:"gt=0"`
	StaleAfter       time.Duration `koanf:"stale_after" validate:"gt=0"`
}

// OpsConfig configures the health/metrics endpoint.
type OpsConfig struct {
	Addr string `koanf:"addr"`
}

// ProviderCredentials holds what a dedicated API adapter needs to call a
// provider's own pricing API.
type ProviderCredentials struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// HasCredentials reports whether usable API credentials exist for the
// given provider slug.
func (c *Config) HasCredentials(providerSlug string) bool {
	creds, ok := c.Credentials[providerSlug]
	return ok && creds.APIKey != ""
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
