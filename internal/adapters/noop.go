// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"context"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/models"
)

// NoopAdapter returns no observations. Live mode forbids fabricated data,
// so providers without a usable fetch strategy get this instead of the
// static fallback.
type NoopAdapter struct{}

// NewNoopAdapter creates the no-op adapter.
func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

// Name implements Adapter.
func (a *NoopAdapter) Name() string { return "noop" }

// FetchPricing implements Adapter.
func (a *NoopAdapter) FetchPricing(context.Context, catalog.Provider) ([]models.PricingObservation, error) {
	return nil, nil
}
