// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testSlogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTreeAppliesDefaults(t *testing.T) {
	tree := New(testSlogger(), Config{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %f, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %f, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeLifecycle(t *testing.T) {
	tree := New(testSlogger(), Config{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	runner := &fakeRunner{}
	component := &fakeStartStopper{}
	server := newFakeHTTPServer()
	tree.AddPipelineService(NewRunnerService(runner, "pipeline-router"))
	tree.AddPipelineService(NewStartStopService(component, "scheduler"))
	tree.AddOpsService(NewHTTPService(server, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for runner.runs.Load() == 0 || component.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("supervised services never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}

	if component.stopped.Load() != 1 {
		t.Errorf("scheduler stops = %d, want 1", component.stopped.Load())
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("ops server shutdowns = %d, want 1", server.shutdowns.Load())
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	tree := New(testSlogger(), Config{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	runner := &fakeRunner{err: errors.New("transient")}
	tree.AddPipelineService(NewRunnerService(runner, "pipeline-router"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(3 * time.Second)
	for runner.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("service restarted %d times, want >= 2", runner.runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-errCh
}
