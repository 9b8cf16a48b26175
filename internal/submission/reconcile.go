// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Reconciler schedules retries for records that were saved but never
// delivered or rejected. It closes the window where the process dies between
// the local save and the retry enqueue.
//
// Records younger than grace are skipped so a submission still in flight is
// not picked up.
type Reconciler struct {
	records   UndeliveredLister
	scheduler RetryScheduler
	grace     time.Duration
	now       func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(records UndeliveredLister, scheduler RetryScheduler, grace time.Duration) *Reconciler {
	return &Reconciler{
		records:   records,
		scheduler: scheduler,
		grace:     grace,
		now:       time.Now,
	}
}

// Sweep schedules a retry for every undelivered record older than the grace
// period and returns how many it scheduled. Records that already have a
// pending retry are unaffected because scheduling is idempotent.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.grace)
	total := 0
	var errs []error

	for _, kind := range survey.Kinds {
		ids, err := r.records.Undelivered(ctx, kind, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("list undelivered %s: %w", kind, err))
			continue
		}

		scheduled := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total + scheduled, err
			}
			if err := r.scheduler.ScheduleRetry(ctx, kind, id); err != nil {
				errs = append(errs, err)
				continue
			}
			scheduled++
		}

		total += scheduled
		metrics.RecordReconciled(kind.String(), scheduled)
		if len(ids) > 0 {
			logging.Info().
				Str("kind", kind.String()).
				Int("undelivered", len(ids)).
				Int("scheduled", scheduled).
				Msg("Reconciliation sweep scheduled retries")
		}
	}

	return total, errors.Join(errs...)
}
