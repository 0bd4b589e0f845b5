// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/logging"
	"github.com/gpuradar/gpuradar/internal/models"
	"github.com/gpuradar/gpuradar/internal/notify"
	"github.com/gpuradar/gpuradar/internal/scheduler"
)

func testRouterConfig() RouterConfig {
	cfg := DefaultRouterConfig()
	cfg.RetryInitialInterval = 5 * time.Millisecond
	cfg.RetryMaxInterval = 20 * time.Millisecond
	cfg.CloseTimeout = 2 * time.Second
	return cfg
}

func TestRouterDispatchesFetchJobs(t *testing.T) {
	logger := logging.NewTestLogger(io.Discard)
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubsub.Close() }()

	obs := []models.PricingObservation{{
		ProviderSlug: "runpod",
		GPUSlug:      "h100-sxm",
		InstanceID:   "pod-h100",
		InstanceName: "H100 SXM",
		GPUCount:     1,
		PricePerHour: 2.50,
		Currency:     "USD",
		Availability: models.AvailabilityAvailable,
		ObservedAt:   time.Now().UTC(),
	}}
	store := newFakeObservationStore()
	fetch := NewFetchProcessor(&fakeSelector{&fakeAdapter{name: "api", observations: obs}},
		store, testProviders(), defaultBreakCfg(), &logger)

	db := newTestStore(t)
	c := newTestCache(t)
	aggregate := NewAggregationProcessor(db, c, 5*time.Minute, &logger)
	alerts := NewAlertProcessor(db, notify.New(&capturePublisher{}), &logger)
	maintenance := NewMaintenanceProcessor(db, config.MaintenanceConfig{
		HistoryRetention: 90 * 24 * time.Hour,
		StaleAfter:       48 * time.Hour,
	}, &logger)

	router, err := NewRouter(testRouterConfig(), pubsub, pubsub, fetch, aggregate, alerts, maintenance, &logger)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := router.Run(ctx); err != nil {
			t.Errorf("router run: %v", err)
		}
	}()
	<-router.Running()

	payload, _ := json.Marshal(scheduler.FetchJob{ProviderSlug: "runpod"})
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := pubsub.Publish(scheduler.TopicPricingFetch, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		done := len(store.upserts["runpod"]) == 1
		store.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("fetch job never persisted observations")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
}

func TestRouterAcksUnknownProviderJobs(t *testing.T) {
	logger := logging.NewTestLogger(io.Discard)
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubsub.Close() }()

	adapter := &fakeAdapter{name: "static"}
	store := newFakeObservationStore()
	fetch := NewFetchProcessor(&fakeSelector{adapter}, store, testProviders(), defaultBreakCfg(), &logger)

	db := newTestStore(t)
	c := newTestCache(t)
	aggregate := NewAggregationProcessor(db, c, 5*time.Minute, &logger)
	alerts := NewAlertProcessor(db, notify.New(&capturePublisher{}), &logger)
	maintenance := NewMaintenanceProcessor(db, config.MaintenanceConfig{
		HistoryRetention: 90 * 24 * time.Hour,
		StaleAfter:       48 * time.Hour,
	}, &logger)

	router, err := NewRouter(testRouterConfig(), pubsub, pubsub, fetch, aggregate, alerts, maintenance, &logger)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	dlq, err := pubsub.Subscribe(ctx, testRouterConfig().PoisonQueueTopic)
	if err != nil {
		t.Fatalf("subscribe dlq: %v", err)
	}

	// A job naming a slug outside the catalog is acked and dropped, never
	// retried into the dead-letter queue.
	payload, _ := json.Marshal(scheduler.FetchJob{ProviderSlug: "nonexistent"})
	if err := pubsub.Publish(scheduler.TopicPricingFetch,
		message.NewMessage(uuid.NewString(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-dlq:
		t.Fatalf("unknown-provider job reached the dead-letter queue: %s", msg.Payload)
	case <-time.After(300 * time.Millisecond):
	}
	if adapter.calls != 0 {
		t.Error("adapter invoked for unknown provider")
	}

	cancel()
}

func TestJobContextPrefersJobIDMetadata(t *testing.T) {
	msg := message.NewMessage(uuid.NewString(), nil)
	msg.Metadata.Set(scheduler.JobIDKey, "pricing-aggregate:2026-08-31T12:00:00Z")

	ctx := jobContext(msg)
	if got := logging.CorrelationIDFromContext(ctx); got != "pricing-aggregate:2026-08-31T12:00:00Z" {
		t.Errorf("correlation ID = %q, want the job ID", got)
	}

	bare := message.NewMessage("msg-uuid-1", nil)
	if got := logging.CorrelationIDFromContext(jobContext(bare)); got != "msg-uuid-1" {
		t.Errorf("correlation ID = %q, want the message UUID", got)
	}
}

func TestRouterDispatchesAggregationJobs(t *testing.T) {
	logger := logging.NewTestLogger(io.Discard)
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubsub.Close() }()

	db := newTestStore(t)
	c := newTestCache(t)
	seedObservation(t, db, "runpod", "h100-sxm", 1.75)

	fetch := NewFetchProcessor(&fakeSelector{&fakeAdapter{name: "noop"}},
		newFakeObservationStore(), testProviders(), defaultBreakCfg(), &logger)
	aggregate := NewAggregationProcessor(db, c, 5*time.Minute, &logger)
	alerts := NewAlertProcessor(db, notify.New(&capturePublisher{}), &logger)
	maintenance := NewMaintenanceProcessor(db, config.MaintenanceConfig{
		HistoryRetention: 90 * 24 * time.Hour,
		StaleAfter:       48 * time.Hour,
	}, &logger)

	router, err := NewRouter(testRouterConfig(), pubsub, pubsub, fetch, aggregate, alerts, maintenance, &logger)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	// An aggregation trigger flows end to end: rollup lands in the cache.
	if err := pubsub.Publish(scheduler.TopicPricingAggregate,
		message.NewMessage(uuid.NewString(), nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, err := c.Get("rollup:cheapest-gpus"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("aggregation job never refreshed the rollup")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
}
