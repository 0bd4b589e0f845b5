// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package supervisor

import (
	"context"
	"fmt"
	"time"
)

// Runner is a component whose blocking Run honors context cancellation.
// Satisfied by *message.Router from watermill.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a blocking Run loop to suture's Serve contract.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps a runner under the given service name.
func NewRunnerService(runner Runner, name string) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service. Run blocks until the context is
// canceled or the component fails; a failure return triggers a supervised
// restart.
func (s *RunnerService) Serve(ctx context.Context) error {
	if err := s.runner.Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *RunnerService) String() string { return s.name }

// StartStopper is a component with the scheduler's lifecycle shape: Start
// spawns internal goroutines and returns, Stop blocks until they drain.
type StartStopper interface {
	Start() error
	Stop() error
}

// StartStopService adapts a Start/Stop component to suture's Serve
// contract.
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService wraps a Start/Stop component under the given name.
func NewStartStopService(component StartStopper, name string) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// Serve implements suture.Service: start, wait for cancellation, stop.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(); err != nil {
		return fmt.Errorf("%s start: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *StartStopService) String() string { return s.name }

// HTTPServer is the lifecycle slice of the ops server: a blocking Start
// and a deadline-bounded graceful Shutdown.
type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server to suture's Serve contract.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPService wraps an HTTP server. shutdownTimeout bounds how long
// graceful shutdown waits for in-flight requests.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "ops-server",
	}
}

// Serve implements suture.Service. Start blocks in a goroutine; on
// cancellation the server is shut down with a fresh deadline since the
// original context is already canceled.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", s.name, err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return s.name }
