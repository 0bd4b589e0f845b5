// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"context"
	"testing"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/config"
)

func TestRegistrySelection(t *testing.T) {
	withURL := testProvider()
	noURL := testProvider()
	noURL.Slug = "bare"
	noURL.PricingURL = ""

	tests := []struct {
		name     string
		mode     config.Mode
		provider catalog.Provider
		creds    map[string]config.ProviderCredentials
		want     string
	}{
		{
			name:     "static mode always selects static",
			mode:     config.ModeStatic,
			provider: withURL,
			creds:    map[string]config.ProviderCredentials{"gpufarm": {APIKey: "k"}},
			want:     "static",
		},
		{
			name:     "credentials select the dedicated api adapter",
			mode:     config.ModeLive,
			provider: withURL,
			creds:    map[string]config.ProviderCredentials{"gpufarm": {APIKey: "k"}},
			want:     "api",
		},
		{
			name:     "pricing url selects heuristic",
			mode:     config.ModeLive,
			provider: withURL,
			want:     "heuristic",
		},
		{
			name:     "live mode without strategy selects noop",
			mode:     config.ModeLive,
			provider: noURL,
			want:     "noop",
		},
		{
			name:     "hybrid mode without strategy falls back to static",
			mode:     config.ModeHybrid,
			provider: noURL,
			want:     "static",
		},
		{
			name:     "empty api key does not count as credentials",
			mode:     config.ModeLive,
			provider: withURL,
			creds:    map[string]config.ProviderCredentials{"gpufarm": {}},
			want:     "heuristic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Mode: tt.mode, Credentials: tt.creds}
			r := NewRegistry(cfg, nil)
			if got := r.Select(tt.provider).Name(); got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticAdapterDeterministic(t *testing.T) {
	a := NewStaticAdapter()
	p := testProvider()
	p.SupportsSpot = true

	first, err := a.FetchPricing(context.Background(), p)
	if err != nil {
		t.Fatalf("FetchPricing: %v", err)
	}
	second, err := a.FetchPricing(context.Background(), p)
	if err != nil {
		t.Fatalf("FetchPricing: %v", err)
	}

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("runs returned %d and %d observations", len(first), len(second))
	}
	for i := range first {
		if first[i].PricePerHour != second[i].PricePerHour {
			t.Errorf("instance %s price varied across runs: %v vs %v",
				first[i].InstanceID, first[i].PricePerHour, second[i].PricePerHour)
		}
		if first[i].SpotPrice <= 0 {
			t.Errorf("spot-capable provider missing spot price on %s", first[i].InstanceID)
		}
		if err := first[i].Validate(); err != nil {
			t.Errorf("invalid static observation: %v", err)
		}
	}
}

func TestNoopAdapterReturnsNothing(t *testing.T) {
	obs, err := NewNoopAdapter().FetchPricing(context.Background(), testProvider())
	if err != nil {
		t.Fatalf("FetchPricing: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("noop returned %d observations", len(obs))
	}
}
