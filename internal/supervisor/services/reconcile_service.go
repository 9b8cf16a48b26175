// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// Sweeper schedules retries for records that never reached the queue.
// Satisfied by *submission.Reconciler.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ReconcileService runs a single sweep when the tree starts. A failed sweep is
// returned so the supervisor retries it with backoff; a completed one returns
// suture.ErrDoNotRestart.
type ReconcileService struct {
	sweeper Sweeper
	name    string
}

// NewReconcileService creates the startup reconciliation service.
func NewReconcileService(sweeper Sweeper) *ReconcileService {
	return &ReconcileService{sweeper: sweeper, name: "reconciler"}
}

// Serve implements suture.Service.
func (r *ReconcileService) Serve(ctx context.Context) error {
	scheduled, err := r.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reconciliation sweep failed after scheduling %d: %w", scheduled, err)
	}

	logging.Info().Int("scheduled", scheduled).Msg("Startup reconciliation complete")
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for suture's logs.
func (r *ReconcileService) String() string {
	return r.name
}
