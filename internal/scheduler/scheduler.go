// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// scheduler.go - Job Scheduler Service
//
// This file implements the scheduler service that:
//   - Maintains a registry of recurring jobs keyed by job ID
//   - Runs on a configurable tick interval (default: 1 minute)
//   - On each tick, publishes a queue message for every job whose cron
//     expression matches the current minute
//
// Registration is idempotent: registering a job with an existing ID
// replaces the previous descriptor, so provider fetch jobs can be
// re-registered on every catalog refresh without duplication.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/metrics"
)

// Queue topics for scheduled job messages.
const (
	TopicPricingFetch     = "jobs.pricing.fetch"
	TopicPricingAggregate = "jobs.pricing.aggregate"
	TopicAlertMatching    = "jobs.pricing.alerts"
	TopicMaintenance      = "jobs.pricing.maintenance"
)

// Message metadata keys.
const (
	// JobIDKey carries "<job ID>:<fire time RFC3339>" and doubles as the
	// broker deduplication ID, so a restarted scheduler cannot enqueue
	// the same fire twice.
	JobIDKey = "job_id"
)

// FetchJob is the payload for a provider pricing fetch.
type FetchJob struct {
	ProviderSlug string `json:"providerSlug"`
}

// Job is a registered recurring job.
type Job struct {
	ID      string
	Topic   string
	Cron    *CronExpression
	Payload any
}

// Config holds scheduler configuration.
type Config struct {
	// TickInterval is how often to evaluate registered jobs (default: 1 minute).
	TickInterval time.Duration

	// Enabled controls whether the scheduler publishes at all.
	Enabled bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Minute,
		Enabled:      true,
	}
}

// Scheduler publishes queue messages for registered jobs on their cron
// schedules.
type Scheduler struct {
	publisher message.Publisher
	logger    zerolog.Logger
	config    Config

	mu   sync.Mutex
	jobs map[string]*Job

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler publishing to the given queue.
func New(publisher message.Publisher, logger *zerolog.Logger, config Config) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	return &Scheduler{
		publisher: publisher,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		config:    config,
		jobs:      make(map[string]*Job),
	}
}

// Register adds or replaces a job. Registering an existing ID replaces
// the previous descriptor.
func (s *Scheduler) Register(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID must not be empty")
	}
	if job.Topic == "" {
		return fmt.Errorf("job %s: topic must not be empty", job.ID)
	}
	if job.Cron == nil {
		return fmt.Errorf("job %s: cron expression must not be nil", job.ID)
	}

	s.mu.Lock()
	_, replaced := s.jobs[job.ID]
	s.jobs[job.ID] = &job
	count := len(s.jobs)
	s.mu.Unlock()

	metrics.ScheduledJobs.Set(float64(count))
	s.logger.Debug().
		Str("job_id", job.ID).
		Str("topic", job.Topic).
		Bool("replaced", replaced).
		Msg("Registered job")
	return nil
}

// RegisterProviderFetch registers the recurring fetch job for a provider,
// on the deterministic cadence derived from its slug and tier.
func (s *Scheduler) RegisterProviderFetch(provider catalog.Provider) error {
	hours := FireHours(provider.Slug, CadenceHours(provider))
	expr, err := ParseCron(CronForHours(hours))
	if err != nil {
		return fmt.Errorf("provider %s: %w", provider.Slug, err)
	}
	return s.Register(Job{
		ID:      "pricing-fetch:" + provider.Slug,
		Topic:   TopicPricingFetch,
		Cron:    expr,
		Payload: FetchJob{ProviderSlug: provider.Slug},
	})
}

// RegisterGlobalJobs registers the pipeline jobs that do not belong to a
// single provider: hourly aggregation, hourly alert matching on the half
// hour, and maintenance every six hours.
func (s *Scheduler) RegisterGlobalJobs() error {
	globals := []struct {
		id, topic, cron string
	}{
		{"pricing-aggregate", TopicPricingAggregate, "0 * * * *"},
		{"alert-matching", TopicAlertMatching, "30 * * * *"},
		{"maintenance-cleanup", TopicMaintenance, "15 */6 * * *"},
	}
	for _, g := range globals {
		expr, err := ParseCron(g.cron)
		if err != nil {
			return fmt.Errorf("job %s: %w", g.id, err)
		}
		if err := s.Register(Job{ID: g.id, Topic: g.topic, Cron: expr}); err != nil {
			return err
		}
	}
	return nil
}

// JobIDs returns the IDs of all registered jobs.
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	s.logger.Info().
		Dur("tick_interval", s.config.TickInterval).
		Msg("Starting scheduler")

	go s.run()
	return nil
}

// Stop stops the scheduler loop and waits for it to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// run is the main scheduler loop.
func (s *Scheduler) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.Tick(now.UTC())
		case <-s.stopCh:
			return
		}
	}
}

// Tick publishes a message for every job whose schedule matches the given
// minute. Exported so callers can trigger an out-of-band evaluation.
func (s *Scheduler) Tick(now time.Time) {
	now = now.Truncate(time.Minute)

	s.mu.Lock()
	due := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Cron.Matches(now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		if err := s.publish(job, now); err != nil {
			s.logger.Error().Err(err).
				Str("job_id", job.ID).
				Msg("Failed to publish job")
			continue
		}
		metrics.JobsPublished.WithLabelValues(job.Topic).Inc()
		s.logger.Info().
			Str("job_id", job.ID).
			Str("topic", job.Topic).
			Time("fire_time", now).
			Msg("Published job")
	}
}

func (s *Scheduler) publish(job *Job, fireTime time.Time) error {
	var payload []byte
	if job.Payload != nil {
		b, err := json.Marshal(job.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = b
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(JobIDKey, job.ID+":"+fireTime.Format(time.RFC3339))
	return s.publisher.Publish(job.Topic, msg)
}
