// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package adapters turns a provider's public pricing surface into
// normalized pricing observations. Four strategies exist: a static
// fallback with deterministic sample data, a dedicated API adapter for
// providers with configured credentials, a heuristic adapter that extracts
// prices from the provider's rendered pricing page, and a no-op adapter
// for live mode when no fetch strategy applies. The Registry picks the
// strategy per provider per run.
package adapters

import (
	"context"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/models"
)

// Adapter fetches pricing for one provider. An empty result is a valid
// outcome ("no data found"); adapters return errors only for transport
// failures.
type Adapter interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// FetchPricing produces fresh observations for the provider. The
	// context carries the job's deadline.
	FetchPricing(ctx context.Context, provider catalog.Provider) ([]models.PricingObservation, error)
}
