// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/metrics"
	"github.com/gpuradar/gpuradar/internal/models"
	"github.com/gpuradar/gpuradar/internal/notify"
)

// AlertStore is the slice of the store the alert matcher needs.
type AlertStore interface {
	ActiveSubscriptions(ctx context.Context) ([]models.AlertSubscription, error)
	MinActivePrice(ctx context.Context, gpuSlug, providerSlug string) (float64, bool, error)
	MarkNotified(ctx context.Context, id int64, at time.Time) error
}

// Enqueuer is the slice of the notifier the alert matcher needs.
type Enqueuer interface {
	EnqueueEmail(payload notify.EmailNotification) error
}

// AlertProcessor evaluates active confirmed subscriptions against the
// current minimum price and enqueues notifications for price breaches.
type AlertProcessor struct {
	store    AlertStore
	notifier Enqueuer
	logger   zerolog.Logger
}

// NewAlertProcessor builds an alert matching processor.
func NewAlertProcessor(store AlertStore, notifier Enqueuer, logger *zerolog.Logger) *AlertProcessor {
	return &AlertProcessor{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "alerts").Logger(),
	}
}

// Run evaluates every active confirmed subscription. A subscription
// triggers when the current minimum active price is at or below its
// target; triggering enqueues an email and deactivates the subscription so
// a price that stays low cannot re-notify every cycle. Returns the counts
// of evaluated and notified subscriptions.
func (p *AlertProcessor) Run(ctx context.Context) (evaluated, notified int, err error) {
	log := runLogger(ctx, p.logger)
	subs, err := p.store.ActiveSubscriptions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load subscriptions: %w", err)
	}

	for _, sub := range subs {
		evaluated++
		metrics.AlertsEvaluated.Inc()

		min, found, err := p.store.MinActivePrice(ctx, sub.GPUSlug, sub.ProviderSlug)
		if err != nil {
			return evaluated, notified, fmt.Errorf("min price for subscription %d: %w", sub.ID, err)
		}
		if !found || min > sub.TargetPrice {
			continue
		}

		if err := p.notifier.EnqueueEmail(breachEmail(sub, min)); err != nil {
			// Leave the subscription armed; the next cycle retries.
			log.Error().Err(err).
				Int64("subscription", sub.ID).
				Msg("Failed to enqueue alert notification")
			continue
		}
		if err := p.store.MarkNotified(ctx, sub.ID, time.Now().UTC()); err != nil {
			return evaluated, notified, fmt.Errorf("mark subscription %d notified: %w", sub.ID, err)
		}

		notified++
		metrics.AlertsNotified.Inc()
		log.Info().
			Int64("subscription", sub.ID).
			Str("gpu", sub.GPUSlug).
			Float64("min_price", min).
			Float64("target", sub.TargetPrice).
			Msg("Alert triggered")
	}
	return evaluated, notified, nil
}

func breachEmail(sub models.AlertSubscription, min float64) notify.EmailNotification {
	name := catalog.GPUName(sub.GPUSlug)
	scope := "any provider"
	if sub.ProviderSlug != "" {
		scope = sub.ProviderSlug
	}
	return notify.EmailNotification{
		To:      sub.Email,
		Subject: fmt.Sprintf("Price alert: %s at $%.2f/GPU-hr", name, min),
		Body: fmt.Sprintf(
			"%s is now $%.2f per GPU-hour (%s), at or below your target of $%.2f.",
			name, min, scope, sub.TargetPrice),
	}
}
