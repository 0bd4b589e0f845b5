// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package models defines the canonical data types flowing through the
// pricing pipeline: normalized pricing observations, the cheapest-per-GPU
// rollup, and alert subscriptions.
package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Availability describes how purchasable an instance currently is.
type Availability string

const (
	AvailabilityAvailable    Availability = "available"
	AvailabilityLimited      Availability = "limited"
	AvailabilityWaitlist     Availability = "waitlist"
	AvailabilitySoldOut      Availability = "sold_out"
	AvailabilityContactSales Availability = "contact_sales"
	AvailabilityDeprecated   Availability = "deprecated"
)

// PricingObservation is one normalized price point produced by an adapter
// run. Observations are values: they are produced fresh on every successful
// fetch and never mutated afterward. Persistence and versioning belong to
// the store.
type PricingObservation struct {
	ProviderSlug string  `json:"provider_slug"`
	GPUSlug      string  `json:"gpu_slug"`
	InstanceID   string  `json:"instance_id"`
	InstanceName string  `json:"instance_name"`
	GPUCount     int     `json:"gpu_count"` // always >= 1
	PricePerHour float64 `json:"price_per_hour"`
	SpotPrice    float64 `json:"spot_price,omitempty"`
	Currency     string  `json:"currency"`

	// Optional resource attributes
	VCPUs     int `json:"vcpus,omitempty"`
	MemoryGB  int `json:"memory_gb,omitempty"`
	StorageGB int `json:"storage_gb,omitempty"`

	Availability Availability `json:"availability"`
	Regions      []string     `json:"regions,omitempty"`
	SourceURL    string       `json:"source_url,omitempty"`

	// RawEvidence holds the opaque payload the observation was derived
	// from (API response fragment, matched text window). Debugging only.
	RawEvidence json.RawMessage `json:"raw_evidence,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}

// PricePerGPUHour normalizes the hourly price to a single GPU.
func (o *PricingObservation) PricePerGPUHour() float64 {
	if o.GPUCount <= 0 {
		return o.PricePerHour
	}
	return o.PricePerHour / float64(o.GPUCount)
}

// Validate checks the invariants an observation must satisfy before it is
// handed to the store.
func (o *PricingObservation) Validate() error {
	if o.ProviderSlug == "" {
		return fmt.Errorf("observation missing provider slug")
	}
	if o.GPUSlug == "" {
		return fmt.Errorf("observation missing gpu slug")
	}
	if o.GPUCount < 1 {
		return fmt.Errorf("observation gpu count %d < 1", o.GPUCount)
	}
	if o.PricePerHour <= 0 {
		return fmt.Errorf("observation price %v not positive", o.PricePerHour)
	}
	return nil
}

// CheapestEntry is one row of the cheapest-provider-per-GPU rollup.
// The rollup is recomputed wholesale on every aggregation run and cached
// for five minutes; entries are never partially updated.
type CheapestEntry struct {
	GPUSlug         string    `json:"gpu_slug"`
	GPUName         string    `json:"gpu_name"`
	ProviderSlug    string    `json:"provider_slug"`
	PricePerGPUHour float64   `json:"price_per_gpu_hour"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// AlertSubscription is a user-defined price target for a GPU model.
// Creation and confirmation happen outside the pipeline; the alert
// processor only reads subscriptions and records triggered notifications.
type AlertSubscription struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	GPUSlug        string     `json:"gpu_slug"`
	ProviderSlug   string     `json:"provider_slug,omitempty"` // empty = any provider
	TargetPrice    float64    `json:"target_price"`            // per GPU-hour
	Active         bool       `json:"active"`
	Confirmed      bool       `json:"confirmed"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}
