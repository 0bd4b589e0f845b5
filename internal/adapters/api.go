// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/logging"
	"github.com/gpuradar/gpuradar/internal/models"
)

// jsonFetcher is the slice of the scrape client the API adapter needs.
type jsonFetcher interface {
	FetchJSON(ctx context.Context, url string, target interface{}) error
}

// apiInstance is the common shape provider pricing APIs are normalized
// into. Individual providers differ in envelope but converge on these
// fields.
type apiInstance struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	GPUType      string   `json:"gpu_type"`
	GPUCount     int      `json:"gpu_count"`
	PricePerHour float64  `json:"price_per_hour"`
	SpotPrice    float64  `json:"spot_price"`
	Currency     string   `json:"currency"`
	VCPUs        int      `json:"vcpus"`
	MemoryGB     int      `json:"memory_gb"`
	StorageGB    int      `json:"storage_gb"`
	Availability string   `json:"availability"`
	Regions      []string `json:"regions"`
}

type apiPricingResponse struct {
	Instances []apiInstance `json:"instances"`
}

// APIAdapter calls a provider's own pricing API when credentials are
// configured for it.
type APIAdapter struct {
	client jsonFetcher
	creds  config.ProviderCredentials
}

// NewAPIAdapter creates a dedicated API adapter for a provider with
// configured credentials.
func NewAPIAdapter(client jsonFetcher, creds config.ProviderCredentials) *APIAdapter {
	return &APIAdapter{client: client, creds: creds}
}

// Name implements Adapter.
func (a *APIAdapter) Name() string { return "api" }

// FetchPricing implements Adapter. Instances whose GPU type does not
// resolve to the catalog alias set, or whose price is unusable, are
// skipped per candidate; the run fails only on the transport round trip.
func (a *APIAdapter) FetchPricing(ctx context.Context, provider catalog.Provider) ([]models.PricingObservation, error) {
	if provider.APIBaseURL == "" {
		return nil, fmt.Errorf("provider %s has no api base url", provider.Slug)
	}

	url := strings.TrimRight(provider.APIBaseURL, "/") + "/v1/pricing?api_key=" + a.creds.APIKey
	var resp apiPricingResponse
	if err := a.client.FetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("pricing api for %s: %w", provider.Slug, err)
	}

	now := time.Now().UTC()
	observations := make([]models.PricingObservation, 0, len(resp.Instances))
	for _, inst := range resp.Instances {
		gpuSlug, ok := catalog.NormalizeGPU(inst.GPUType)
		if !ok {
			logging.Debug().
				Str("provider", provider.Slug).
				Str("gpu_type", inst.GPUType).
				Msg("skipping instance with unknown gpu type")
			continue
		}
		if inst.PricePerHour <= 0 || math.IsInf(inst.PricePerHour, 0) || math.IsNaN(inst.PricePerHour) {
			continue
		}

		count := inst.GPUCount
		if count < 1 {
			count = 1
		}
		currency := inst.Currency
		if currency == "" {
			currency = "USD"
		}

		evidence, _ := json.Marshal(inst)

		observations = append(observations, models.PricingObservation{
			ProviderSlug: provider.Slug,
			GPUSlug:      gpuSlug,
			InstanceID:   inst.ID,
			InstanceName: inst.Name,
			GPUCount:     count,
			PricePerHour: inst.PricePerHour,
			SpotPrice:    inst.SpotPrice,
			Currency:     currency,
			VCPUs:        inst.VCPUs,
			MemoryGB:     inst.MemoryGB,
			StorageGB:    inst.StorageGB,
			Availability: normalizeAvailability(inst.Availability),
			Regions:      inst.Regions,
			SourceURL:    provider.APIBaseURL,
			RawEvidence:  evidence,
			ObservedAt:   now,
		})
	}
	return observations, nil
}

func normalizeAvailability(s string) models.Availability {
	switch models.Availability(strings.ToLower(strings.TrimSpace(s))) {
	case models.AvailabilityAvailable, models.AvailabilityLimited, models.AvailabilityWaitlist,
		models.AvailabilitySoldOut, models.AvailabilityContactSales, models.AvailabilityDeprecated:
		return models.Availability(strings.ToLower(strings.TrimSpace(s)))
	default:
		return models.AvailabilityAvailable
	}
}
