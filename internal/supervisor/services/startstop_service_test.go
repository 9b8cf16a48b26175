// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/fieldsync/internal/queue"
)

type fakeComponent struct {
	startErr error
	running  atomic.Bool
	starts   atomic.Int32
	stops    atomic.Int32
}

func (f *fakeComponent) Start(context.Context) error {
	f.starts.Add(1)
	if f.startErr != nil {
		return f.startErr
	}
	f.running.Store(true)
	return nil
}

func (f *fakeComponent) Stop() {
	f.stops.Add(1)
	f.running.Store(false)
}

func (f *fakeComponent) IsRunning() bool { return f.running.Load() }

var _ suture.Service = (*StartStopService)(nil)

func TestStartStopService_Lifecycle(t *testing.T) {
	c := &fakeComponent{}
	svc := NewStartStopService(c, "fake")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !c.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !c.IsRunning() {
		t.Fatal("component was not started")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if c.IsRunning() || c.stops.Load() != 1 {
		t.Errorf("component running=%v stops=%d after cancel", c.IsRunning(), c.stops.Load())
	}
}

func TestStartStopService_StartError(t *testing.T) {
	boom := errors.New("queue is closed")
	svc := NewStartStopService(&fakeComponent{startErr: boom}, "fake")

	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve() = %v, want %v", err, boom)
	}
}

func TestQueueServices(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "queue")
	cfg.PollInterval = 10 * time.Millisecond
	q, err := queue.OpenForTesting(cfg)
	if err != nil {
		t.Fatalf("OpenForTesting() error = %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	runner := queue.NewRunner(q, nil)
	compactor := queue.NewCompactor(q)

	runnerSvc := NewQueueRunnerService(runner)
	compactorSvc := NewCompactorService(compactor)
	if runnerSvc.String() != "queue-runner" || compactorSvc.String() != "queue-compactor" {
		t.Errorf("names = %q, %q", runnerSvc, compactorSvc)
	}

	sup := suture.New("test-sup", suture.Spec{Timeout: 2 * time.Second})
	sup.Add(runnerSvc)
	sup.Add(compactorSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for !(runner.IsRunning() && compactor.IsRunning()) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !runner.IsRunning() || !compactor.IsRunning() {
		t.Fatalf("runner=%v compactor=%v, want both running", runner.IsRunning(), compactor.IsRunning())
	}

	cancel()
	<-errCh

	if runner.IsRunning() || compactor.IsRunning() {
		t.Error("components still running after supervisor stopped")
	}
}
