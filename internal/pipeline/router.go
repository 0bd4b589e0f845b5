// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/logging"
	"github.com/gpuradar/gpuradar/internal/scheduler"
)

// RouterConfig holds configuration for the job router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish on close.
	CloseTimeout time.Duration

	// Retry configuration. MaxRetries counts redeliveries, so 2 retries
	// means three attempts total.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that exhausted their retries.
	PoisonQueueTopic string
}

// DefaultRouterConfig returns production defaults: three attempts with
// exponential backoff starting at two seconds, then the poison queue.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: 2 * time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     "dlq.pricing",
	}
}

// NewRouter creates a watermill router with panic recovery, retry, and
// poison-queue middleware, and subscribes the four job processors to their
// topics.
func NewRouter(
	cfg RouterConfig,
	subscriber message.Subscriber,
	poisonPublisher message.Publisher,
	fetch *FetchProcessor,
	aggregate *AggregationProcessor,
	alerts *AlertProcessor,
	maintenance *MaintenanceProcessor,
	logger *zerolog.Logger,
) (*message.Router, error) {
	wmLogger := NewWatermillLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue: %w", err)
		}
		router.AddMiddleware(poison)
	}

	router.AddConsumerHandler(
		"pricing-fetch",
		scheduler.TopicPricingFetch,
		subscriber,
		func(msg *message.Message) error {
			ctx := jobContext(msg)
			var job scheduler.FetchJob
			if err := json.Unmarshal(msg.Payload, &job); err != nil {
				return fmt.Errorf("decode fetch job: %w", err)
			}
			_, err := fetch.Run(ctx, job.ProviderSlug)
			if errors.Is(err, ErrUnknownProvider) {
				// Redelivery cannot fix a slug outside the catalog; ack
				// and drop instead of cycling through retry and the DLQ.
				log := logging.Ctx(ctx)
				log.Warn().
					Str("provider", job.ProviderSlug).
					Msg("Dropping fetch job for unknown provider")
				return nil
			}
			return err
		},
	)

	router.AddConsumerHandler(
		"pricing-aggregate",
		scheduler.TopicPricingAggregate,
		subscriber,
		func(msg *message.Message) error {
			_, err := aggregate.Run(jobContext(msg))
			return err
		},
	)

	router.AddConsumerHandler(
		"alert-matching",
		scheduler.TopicAlertMatching,
		subscriber,
		func(msg *message.Message) error {
			_, _, err := alerts.Run(jobContext(msg))
			return err
		},
	)

	router.AddConsumerHandler(
		"maintenance-cleanup",
		scheduler.TopicMaintenance,
		subscriber,
		func(msg *message.Message) error {
			_, _, err := maintenance.Run(jobContext(msg))
			return err
		},
	)

	return router, nil
}

// jobContext derives the handler context for one job message, carrying a
// correlation ID so every log line of the run can be tied back to the
// scheduler tick that published it. The scheduler's job ID doubles as the
// correlation ID; ad hoc messages fall back to the message UUID.
func jobContext(msg *message.Message) context.Context {
	id := msg.Metadata.Get(scheduler.JobIDKey)
	if id == "" {
		id = msg.UUID
	}
	return logging.ContextWithCorrelationID(msg.Context(), id)
}

// runLogger enriches a component logger with the correlation ID carried in
// the context, if any. Processors call it once per run.
func runLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		return logger.With().Str("correlation_id", id).Logger()
	}
	return logger
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter. Watermill's
// operational chatter maps to debug/trace.
type watermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger wraps a zerolog logger for watermill.
func NewWatermillLogger(logger *zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger.With().Str("component", "queue").Logger()}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := l.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
