// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package breaker wraps provider adapters with a circuit breaker so a
// chronically failing source cannot keep burning fetch-job slots.
//
// Semantics: the breaker opens after FailureThreshold consecutive
// failures. While open, calls fail fast with ErrCircuitOpen before the
// wrapped operation is invoked. Once OpenTimeout has elapsed a single
// probe call is allowed through; its success resets the failure counter
// and closes the breaker, its failure reopens immediately (the counter is
// only ever reset by a success). State is owned by one breaker instance
// per provider-adapter pairing and is never shared.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gpuradar/gpuradar/internal/logging"
	"github.com/gpuradar/gpuradar/internal/metrics"
	"github.com/gpuradar/gpuradar/internal/models"
)

// ErrCircuitOpen is returned when a call is rejected without invoking the
// wrapped operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings parameterizes a breaker instance.
type Settings struct {
	// Name identifies the breaker in logs and metrics, conventionally
	// the provider slug.
	Name string

	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before allowing a
	// probe.
	OpenTimeout time.Duration
}

// Breaker shields a single adapter from repeated failures. Not shared
// across providers.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[[]models.PricingObservation]
	name string
}

// New creates a breaker with the given settings.
func New(s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 3
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 60 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.PricingObservation](gobreaker.Settings{
		Name: s.Name,

		// Exactly one probe may pass while half-open; one successful
		// probe closes the breaker.
		MaxRequests: 1,

		// Interval 0: closed-state counts are never cleared by time,
		// only by a success, so the consecutive-failure tally is exact.
		Interval: 0,
		Timeout:  s.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateString(from), stateString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{cb: cb, name: s.Name}
}

// Execute runs fn under the breaker. Rejections are reported as
// ErrCircuitOpen; all other errors pass through unchanged and count as
// failures.
func (b *Breaker) Execute(fn func() ([]models.PricingObservation, error)) ([]models.PricingObservation, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, ErrCircuitOpen
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// State reports the current breaker state as a string: closed, half-open
// or open. Open lazily becomes half-open once the open timeout elapses.
func (b *Breaker) State() string {
	return stateString(b.cb.State())
}

func stateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
