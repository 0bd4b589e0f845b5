// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package catalog

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults returns the built-in provider set, used when no catalog file is
// configured. Slugs and classifications mirror the public GPU rental
// market; pricing URLs point at each provider's public pricing page.
func Defaults() []Provider {
	return []Provider{
		{
			ID: 1, Slug: "coreweave", Name: "CoreWeave",
			PricingURL: "https://www.coreweave.com/pricing",
			Type:       ProviderTypeCloud, Tier: TierEnterprise,
			SupportsSpot: false, SupportsReserved: true, Active: true,
		},
		{
			ID: 2, Slug: "lambda-labs", Name: "Lambda",
			PricingURL: "https://lambda.ai/service/gpu-cloud",
			Type:       ProviderTypeCloud, Tier: TierEnterprise,
			SupportsSpot: false, SupportsReserved: true, Active: true,
		},
		{
			ID: 3, Slug: "runpod", Name: "RunPod",
			PricingURL: "https://www.runpod.io/pricing",
			Type:       ProviderTypeCloud, Tier: TierStandard,
			SupportsSpot: true, HasPublicAPI: true, Active: true,
		},
		{
			ID: 4, Slug: "vast-ai", Name: "Vast.ai",
			PricingURL: "https://vast.ai/pricing",
			Type:       ProviderTypeMarketplace, Tier: TierCommunity,
			SupportsSpot: true, HasPublicAPI: true, Active: true,
		},
		{
			ID: 5, Slug: "akash", Name: "Akash Network",
			Type: ProviderTypeDecentralized, Tier: TierCommunity,
			SupportsSpot: false, Active: true,
		},
		{
			ID: 6, Slug: "paperspace", Name: "Paperspace",
			PricingURL: "https://www.paperspace.com/pricing",
			Type:       ProviderTypeCloud, Tier: TierStandard,
			SupportsSpot: false, Active: true,
		},
	}
}

// Load reads a provider catalog from a YAML file with a top-level
// `providers:` list. An empty path returns the built-in set.
func Load(path string) ([]Provider, error) {
	if path == "" {
		return Defaults(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog file %s: %w", path, err)
	}

	var out struct {
		Providers []Provider `koanf:"providers"`
	}
	if err := k.Unmarshal("", &out); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if len(out.Providers) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no providers", path)
	}

	seen := make(map[string]bool, len(out.Providers))
	for i, p := range out.Providers {
		if p.Slug == "" {
			return nil, fmt.Errorf("catalog provider %d missing slug", i)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("catalog provider slug %q duplicated", p.Slug)
		}
		seen[p.Slug] = true
	}
	return out.Providers, nil
}

// ActiveProviders filters the given set down to providers eligible for
// scheduling.
func ActiveProviders(providers []Provider) []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}
