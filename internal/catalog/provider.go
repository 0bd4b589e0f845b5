// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package catalog defines the provider context supplied to every fetch job
// and the closed GPU alias set the heuristic extractor normalizes against.
// The pipeline never invents catalog identities: every observation it emits
// references a provider slug and GPU slug defined here or supplied by the
// external catalog.
package catalog

// ProviderType classifies how a provider sells GPU capacity.
type ProviderType string

const (
	ProviderTypeCloud         ProviderType = "cloud"
	ProviderTypeMarketplace   ProviderType = "marketplace"
	ProviderTypeDecentralized ProviderType = "decentralized"
)

// ReliabilityTier drives the scrape cadence: enterprise providers change
// prices rarely but matter most, community sources churn and rate-limit.
type ReliabilityTier string

const (
	TierEnterprise ReliabilityTier = "enterprise"
	TierStandard   ReliabilityTier = "standard"
	TierCommunity  ReliabilityTier = "community"
)

// Provider is the context record the external catalog supplies per fetch
// job. It is immutable for the duration of a scheduling/fetch cycle.
type Provider struct {
	ID         int64           `json:"id" koanf:"id"`
	Slug       string          `json:"slug" koanf:"slug"`
	Name       string          `json:"name" koanf:"name"`
	PricingURL string          `json:"pricing_url,omitempty" koanf:"pricing_url"`
	APIBaseURL string          `json:"api_base_url,omitempty" koanf:"api_base_url"`
	Type       ProviderType    `json:"type" koanf:"type"`
	Tier       ReliabilityTier `json:"tier" koanf:"tier"`

	SupportsSpot     bool `json:"supports_spot" koanf:"supports_spot"`
	SupportsReserved bool `json:"supports_reserved" koanf:"supports_reserved"`
	HasPublicAPI     bool `json:"has_public_api" koanf:"has_public_api"`
	Active           bool `json:"active" koanf:"active"`
}
