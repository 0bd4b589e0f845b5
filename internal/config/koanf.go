// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gpuradar/config.yaml",
	"/etc/gpuradar/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "GPURADAR_CONFIG"

// envPrefix namespaces the environment overrides:
// GPURADAR_NATS_URL -> nats.url, GPURADAR_BREAKER_OPEN_TIMEOUT ->
// breaker.open_timeout.
const envPrefix = "GPURADAR_"

// defaultConfig returns a Config with all defaults applied. Config file
// and environment override these.
func defaultConfig() *Config {
	return &Config{
		Mode:    ModeHybrid,
		Catalog: CatalogConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
			MaxReconnects:  -1, // retry forever
			ReconnectWait:  2 * time.Second,
		},
		Store: StoreConfig{
			Path: "/data/gpuradar/pricing.db",
		},
		Cache: CacheConfig{
			Dir:       "/data/gpuradar/cache",
			RollupTTL: 5 * time.Minute,
		},
		Scrape: ScrapeConfig{
			TextTimeout:     30 * time.Second,
			JSONTimeout:     30 * time.Second,
			RenderTimeoutMS: 30000,
			RenderGrace:     15 * time.Second,
			WaitUntil:       "networkidle2",
			BlockResources:  true,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			OpenTimeout:      60 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			TickInterval: time.Minute,
		},
		Maintenance: MaintenanceConfig{
			HistoryRetention: 90 * 24 * time.Hour,
			StaleAfter:       48 * time.Hour,
		},
		Ops: OpsConfig{
			Addr: ":9090",
		},
		Credentials: map[string]ProviderCredentials{},
	}
}

// Load builds the effective configuration: defaults, then the first config
// file found, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first readable config file, honoring the
// env override.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps GPURADAR_SECTION_SUB_KEY to section.sub_key. The first
// underscore separates the section; the rest keep underscores so multiword
// field names survive the round trip.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "mode" {
		return s
	}
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	return parts[0] + "." + parts[1]
}
