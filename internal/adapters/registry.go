// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/scrape"
)

// Registry selects the fetch strategy per provider per run. Selection is a
// pure function of the global mode and the provider context; no strategies
// are loaded at runtime.
type Registry struct {
	cfg    *config.Config
	client *scrape.Client

	static *StaticAdapter
	noop   *NoopAdapter
}

// NewRegistry creates the strategy registry.
func NewRegistry(cfg *config.Config, client *scrape.Client) *Registry {
	return &Registry{
		cfg:    cfg,
		client: client,
		static: NewStaticAdapter(),
		noop:   NewNoopAdapter(),
	}
}

// Select picks the adapter for a provider:
//
//	static mode          -> static adapter
//	credentials present  -> dedicated API adapter
//	pricing URL present  -> heuristic adapter
//	otherwise            -> noop (live mode) or static (any other mode)
func (r *Registry) Select(provider catalog.Provider) Adapter {
	if r.cfg.Mode == config.ModeStatic {
		return r.static
	}
	if r.cfg.HasCredentials(provider.Slug) {
		return NewAPIAdapter(r.client, r.cfg.Credentials[provider.Slug])
	}
	if provider.PricingURL != "" {
		return NewHeuristicAdapter(r.client)
	}
	if r.cfg.Mode == config.ModeLive {
		return r.noop
	}
	return r.static
}
