// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeSweeper struct {
	calls atomic.Int32
	fails int32
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	if f.calls.Add(1) <= f.fails {
		return 0, errors.New("database is locked")
	}
	return 3, nil
}

func TestReconcileService_RunsOnce(t *testing.T) {
	sw := &fakeSweeper{}
	svc := NewReconcileService(sw)

	if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want ErrDoNotRestart", err)
	}
	if svc.String() != "reconciler" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestReconcileService_RetriedUntilSweepSucceeds(t *testing.T) {
	sw := &fakeSweeper{fails: 2}

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewReconcileService(sw))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	time.Sleep(200 * time.Millisecond)
	if got := sw.calls.Load(); got != 3 {
		t.Errorf("Sweep called %d times, want 3 (two failures then success)", got)
	}

	cancel()
	<-errCh
}
