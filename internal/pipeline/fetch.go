// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package pipeline contains the job processors consuming the pricing
// queues: per-provider fetch, aggregation rollup, alert matching, and
// maintenance, plus the router that wires them to the broker with retry
// and poison-queue middleware.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/adapters"
	"github.com/gpuradar/gpuradar/internal/breaker"
	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/metrics"
	"github.com/gpuradar/gpuradar/internal/models"
)

// ErrUnknownProvider marks a fetch job naming a provider outside the
// catalog. Retrying cannot fix it, so the consumer acks instead of
// redelivering.
var ErrUnknownProvider = errors.New("unknown provider")

// ObservationStore is the slice of the store the fetch processor needs.
type ObservationStore interface {
	UpsertObservations(ctx context.Context, providerSlug string, observations []models.PricingObservation) error
}

// AdapterSelector picks the fetch strategy for a provider. Satisfied by
// adapters.Registry.
type AdapterSelector interface {
	Select(provider catalog.Provider) adapters.Adapter
}

// FetchProcessor executes one provider pricing fetch: select the adapter,
// run it behind the provider's circuit breaker, persist the observations.
type FetchProcessor struct {
	registry  AdapterSelector
	store     ObservationStore
	providers map[string]catalog.Provider
	breakCfg  config.BreakerConfig
	logger    zerolog.Logger

	// One breaker per provider, owned here and never shared.
	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewFetchProcessor builds a fetch processor over the given provider set.
func NewFetchProcessor(
	registry AdapterSelector,
	store ObservationStore,
	providers []catalog.Provider,
	breakCfg config.BreakerConfig,
	logger *zerolog.Logger,
) *FetchProcessor {
	bySlug := make(map[string]catalog.Provider, len(providers))
	for _, p := range providers {
		bySlug[p.Slug] = p
	}
	return &FetchProcessor{
		registry:  registry,
		store:     store,
		providers: bySlug,
		breakCfg:  breakCfg,
		logger:    logger.With().Str("component", "fetch").Logger(),
		breakers:  make(map[string]*breaker.Breaker),
	}
}

// Run fetches pricing for one provider and persists the result. It returns
// the number of observations stored. An unknown provider slug yields
// ErrUnknownProvider; an inactive provider is skipped.
func (p *FetchProcessor) Run(ctx context.Context, providerSlug string) (int, error) {
	log := runLogger(ctx, p.logger)
	provider, ok := p.providers[providerSlug]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, providerSlug)
	}
	if !provider.Active {
		log.Debug().Str("provider", providerSlug).Msg("Provider inactive, skipping fetch")
		return 0, nil
	}

	adapter := p.registry.Select(provider)
	br := p.breakerFor(providerSlug)

	start := time.Now()
	observations, err := br.Execute(func() ([]models.PricingObservation, error) {
		return adapter.FetchPricing(ctx, provider)
	})
	metrics.FetchDuration.WithLabelValues(providerSlug, adapter.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			metrics.FetchRunsTotal.WithLabelValues(providerSlug, "circuit_open").Inc()
			log.Warn().Str("provider", providerSlug).Msg("Fetch rejected, circuit open")
			return 0, err
		}
		metrics.FetchRunsTotal.WithLabelValues(providerSlug, "failure").Inc()
		log.Error().Err(err).
			Str("provider", providerSlug).
			Str("adapter", adapter.Name()).
			Msg("Fetch failed")
		return 0, fmt.Errorf("fetch %s: %w", providerSlug, err)
	}

	// Empty result is success: the provider listed nothing we recognize.
	if len(observations) > 0 {
		if err := p.store.UpsertObservations(ctx, providerSlug, observations); err != nil {
			metrics.FetchRunsTotal.WithLabelValues(providerSlug, "failure").Inc()
			return 0, fmt.Errorf("persist %s: %w", providerSlug, err)
		}
	}

	metrics.FetchRunsTotal.WithLabelValues(providerSlug, "success").Inc()
	metrics.ObservationsExtracted.WithLabelValues(providerSlug, adapter.Name()).Add(float64(len(observations)))
	log.Info().
		Str("provider", providerSlug).
		Str("adapter", adapter.Name()).
		Int("observations", len(observations)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")
	return len(observations), nil
}

// BreakerState reports the circuit state for a provider, "closed" when no
// breaker exists yet.
func (p *FetchProcessor) BreakerState(providerSlug string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if br, ok := p.breakers[providerSlug]; ok {
		return br.State()
	}
	return "closed"
}

func (p *FetchProcessor) breakerFor(providerSlug string) *breaker.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if br, ok := p.breakers[providerSlug]; ok {
		return br
	}
	br := breaker.New(breaker.Settings{
		Name:             "fetch:" + providerSlug,
		FailureThreshold: p.breakCfg.FailureThreshold,
		OpenTimeout:      p.breakCfg.OpenTimeout,
	})
	p.breakers[providerSlug] = br
	return br
}
