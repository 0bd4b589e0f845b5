// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Command server runs the GPURadar worker: the deterministic scheduler,
// the pricing fetch/aggregate/alert/maintenance pipeline, and the ops
// endpoint, all in one process.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gpuradar/gpuradar/internal/adapters"
	"github.com/gpuradar/gpuradar/internal/cache"
	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/config"
	"github.com/gpuradar/gpuradar/internal/logging"
	"github.com/gpuradar/gpuradar/internal/notify"
	"github.com/gpuradar/gpuradar/internal/ops"
	"github.com/gpuradar/gpuradar/internal/pipeline"
	"github.com/gpuradar/gpuradar/internal/queue"
	"github.com/gpuradar/gpuradar/internal/scheduler"
	"github.com/gpuradar/gpuradar/internal/scrape"
	"github.com/gpuradar/gpuradar/internal/store"
	"github.com/gpuradar/gpuradar/internal/supervisor"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().Str("mode", string(cfg.Mode)).Msg("Starting GPURadar server")

	// Embedded NATS keeps single-node deployments to one process. The
	// client URL override points every queue consumer at it.
	if cfg.NATS.EmbeddedServer {
		ns, err := queue.NewEmbeddedServer(cfg.NATS.StoreDir)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer ns.Shutdown()
		cfg.NATS.URL = ns.ClientURL()
		logger.Info().Str("url", cfg.NATS.URL).Msg("Embedded NATS server ready")
	}

	wmLogger := pipeline.NewWatermillLogger(&logger)

	publisher, err := queue.NewPublisher(&cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect queue publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close queue publisher")
		}
	}()

	subscriber, err := queue.NewSubscriber(&cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect queue subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close queue subscriber")
		}
	}()

	db, err := store.New(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open pricing store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close pricing store")
		}
	}()

	rollupCache, err := cache.Open(&cfg.Cache, &logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open rollup cache")
	}
	defer func() {
		if err := rollupCache.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close rollup cache")
		}
	}()

	providers, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load provider catalog")
	}
	active := catalog.ActiveProviders(providers)
	logger.Info().Int("providers", len(providers)).Int("active", len(active)).Msg("Provider catalog loaded")

	client := scrape.NewClient(cfg.Scrape, publisher, subscriber)
	registry := adapters.NewRegistry(cfg, client)

	fetchProc := pipeline.NewFetchProcessor(registry, db, active, cfg.Breaker, &logger)
	aggregateProc := pipeline.NewAggregationProcessor(db, rollupCache, cfg.Cache.RollupTTL, &logger)
	alertProc := pipeline.NewAlertProcessor(db, notify.New(publisher), &logger)
	maintenanceProc := pipeline.NewMaintenanceProcessor(db, cfg.Maintenance, &logger)

	router, err := pipeline.NewRouter(
		pipeline.DefaultRouterConfig(),
		subscriber,
		publisher,
		fetchProc,
		aggregateProc,
		alertProc,
		maintenanceProc,
		&logger,
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build pipeline router")
	}

	sched := scheduler.New(publisher, &logger, scheduler.Config{
		TickInterval: cfg.Scheduler.TickInterval,
		Enabled:      cfg.Scheduler.Enabled,
	})
	for _, p := range active {
		if err := sched.RegisterProviderFetch(p); err != nil {
			logging.Fatal().Err(err).Str("provider", p.Slug).Msg("Failed to register fetch job")
		}
	}
	if err := sched.RegisterGlobalJobs(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register global jobs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opsServer := ops.New(cfg.Ops.Addr, db, &logger)

	// The supervision tree owns every long-lived component: a crash
	// restarts the component with backoff instead of killing the worker.
	tree := supervisor.New(logging.NewSlogLogger(), supervisor.Config{
		ShutdownTimeout: shutdownTimeout,
	})
	tree.AddPipelineService(supervisor.NewRunnerService(router, "pipeline-router"))
	tree.AddPipelineService(supervisor.NewStartStopService(sched, "scheduler"))
	tree.AddOpsService(supervisor.NewHTTPService(opsServer, shutdownTimeout))

	treeDone := tree.ServeBackground(ctx)

	select {
	case <-router.Running():
		logger.Info().Int("jobs", len(sched.JobIDs())).Msg("Pipeline running")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("Pipeline router slow to start")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	case err := <-treeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Supervision tree stopped")
		}
		treeDone = nil
	}

	if treeDone != nil {
		select {
		case <-treeDone:
		case <-time.After(shutdownTimeout):
			if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
				for _, svc := range report {
					logger.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
				}
			} else {
				logger.Warn().Msg("Supervision tree did not stop in time")
			}
		}
	}

	logger.Info().Msg("Shutdown complete")
}
