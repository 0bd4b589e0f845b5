// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRunner blocks until its context is canceled, or fails immediately.
type fakeRunner struct {
	err  error
	runs atomic.Int32
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.runs.Add(1)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return nil
}

// fakeStartStopper records lifecycle transitions.
type fakeStartStopper struct {
	startErr error
	stopErr  error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (f *fakeStartStopper) Start() error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeStartStopper) Stop() error {
	f.stopped.Add(1)
	return f.stopErr
}

// fakeHTTPServer blocks in Start until Shutdown releases it.
type fakeHTTPServer struct {
	startErr  error
	release   chan struct{}
	shutdowns atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{release: make(chan struct{})}
}

func (f *fakeHTTPServer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.release
	return nil
}

func (f *fakeHTTPServer) Shutdown(_ context.Context) error {
	f.shutdowns.Add(1)
	close(f.release)
	return nil
}

func TestRunnerServiceStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewRunnerService(runner, "pipeline-router")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if runner.runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runner.runs.Load())
	}
}

func TestRunnerServiceSurfacesFailure(t *testing.T) {
	svc := NewRunnerService(&fakeRunner{err: errors.New("broker gone")}, "pipeline-router")

	err := svc.Serve(context.Background())
	if err == nil || err.Error() != "pipeline-router: broker gone" {
		t.Errorf("Serve() = %v, want wrapped runner error", err)
	}
}

func TestStartStopServiceLifecycle(t *testing.T) {
	component := &fakeStartStopper{}
	svc := NewStartStopService(component, "scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Start must have happened before cancellation is observed.
	deadline := time.After(2 * time.Second)
	for component.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("component never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if component.stopped.Load() != 1 {
		t.Errorf("stops = %d, want 1", component.stopped.Load())
	}
}

func TestStartStopServiceStartFailure(t *testing.T) {
	component := &fakeStartStopper{startErr: errors.New("already running")}
	svc := NewStartStopService(component, "scheduler")

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected start failure to surface")
	}
	if component.stopped.Load() != 0 {
		t.Error("Stop called after failed Start")
	}
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	server := newFakeHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns.Load())
	}
}

func TestHTTPServiceSurfacesListenFailure(t *testing.T) {
	server := newFakeHTTPServer()
	server.startErr = errors.New("address in use")
	svc := NewHTTPService(server, time.Second)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected listen failure to surface")
	}
	if server.shutdowns.Load() != 0 {
		t.Error("Shutdown called after failed Start")
	}
}
