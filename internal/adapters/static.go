// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/models"
)

// staticInstance is one representative offering in the fallback data set.
type staticInstance struct {
	gpuSlug   string
	gpuCount  int
	basePrice float64 // USD per hour for the whole instance
	vcpus     int
	memoryGB  int
}

// staticCatalog is the representative instance set every provider gets in
// static mode, scaled per provider so rollups stay interesting.
var staticCatalog = []staticInstance{
	{gpuSlug: "h100-sxm", gpuCount: 1, basePrice: 2.99, vcpus: 26, memoryGB: 200},
	{gpuSlug: "h100-sxm", gpuCount: 8, basePrice: 23.12, vcpus: 208, memoryGB: 1600},
	{gpuSlug: "a100-80gb", gpuCount: 1, basePrice: 1.79, vcpus: 12, memoryGB: 120},
	{gpuSlug: "rtx-4090", gpuCount: 1, basePrice: 0.44, vcpus: 8, memoryGB: 48},
	{gpuSlug: "l40s", gpuCount: 1, basePrice: 0.89, vcpus: 16, memoryGB: 96},
}

// StaticAdapter returns a deterministic provider-scaled sample set so the
// rest of the pipeline is exercisable without external dependencies. The
// same provider slug always yields the same prices.
type StaticAdapter struct{}

// NewStaticAdapter creates the static fallback adapter.
func NewStaticAdapter() *StaticAdapter { return &StaticAdapter{} }

// Name implements Adapter.
func (a *StaticAdapter) Name() string { return "static" }

// FetchPricing implements Adapter.
func (a *StaticAdapter) FetchPricing(_ context.Context, provider catalog.Provider) ([]models.PricingObservation, error) {
	now := time.Now().UTC()

	// Scale factor in [0.85, 1.15) derived from the slug so providers
	// disagree on price deterministically.
	factor := 0.85 + float64(slugSum(provider.Slug)%30)/100.0

	observations := make([]models.PricingObservation, 0, len(staticCatalog))
	for _, inst := range staticCatalog {
		price := round2(inst.basePrice * factor)
		obs := models.PricingObservation{
			ProviderSlug: provider.Slug,
			GPUSlug:      inst.gpuSlug,
			InstanceID:   fmt.Sprintf("%s-%dx-%s", inst.gpuSlug, inst.gpuCount, provider.Slug),
			InstanceName: fmt.Sprintf("%dx %s", inst.gpuCount, catalog.GPUName(inst.gpuSlug)),
			GPUCount:     inst.gpuCount,
			PricePerHour: price,
			Currency:     "USD",
			VCPUs:        inst.vcpus,
			MemoryGB:     inst.memoryGB,
			Availability: models.AvailabilityAvailable,
			SourceURL:    provider.PricingURL,
			ObservedAt:   now,
		}
		if provider.SupportsSpot {
			obs.SpotPrice = round2(price * 0.6)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func slugSum(slug string) int {
	sum := 0
	for _, c := range slug {
		sum += int(c)
	}
	return sum
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
