// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// RecoveryResult contains the results of a startup recovery pass.
type RecoveryResult struct {
	// TotalPending is the number of pending descriptors found.
	TotalPending int
	// Released is the number of leases left behind by a previous process.
	Released int
	// Overdue is the number of descriptors whose NextRunAt already passed.
	Overdue int
	// Errors contains any errors encountered during recovery.
	Errors []error
	// Duration is how long the recovery took.
	Duration time.Duration
}

// Recover prepares the queue after a restart. BadgerDB holds an exclusive
// directory lock, so any lease found now belongs to a process that is gone;
// those leases are cleared so the runner does not wait out LeaseDuration.
//
// Recover is idempotent and must run before the Runner starts.
func (q *Queue) Recover(ctx context.Context) (*RecoveryResult, error) {
	start := time.Now()
	result := &RecoveryResult{}

	pending, err := q.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending descriptors: %w", err)
	}
	result.TotalPending = len(pending)

	if result.TotalPending == 0 {
		logging.Info().Msg("Queue recovery: no pending descriptors found")
		result.Duration = time.Since(start)
		return result, nil
	}

	now := q.now()
	for _, d := range pending {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err())
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		if !d.NextRunAt.After(now) {
			result.Overdue++
		}
		if d.LeaseHolder == "" {
			continue
		}

		if err := q.Release(ctx, d.Key); err != nil {
			if errors.Is(err, ErrDescriptorNotFound) {
				continue
			}
			logging.Error().Err(err).Str("key", d.Key).Msg("Queue recovery: failed to release stale lease")
			result.Errors = append(result.Errors, fmt.Errorf("release lease %s: %w", d.Key, err))
			continue
		}
		result.Released++
		logging.Debug().
			Str("key", d.Key).
			Str("previous_holder", d.LeaseHolder).
			Msg("Queue recovery: stale lease released")
	}

	result.Duration = time.Since(start)
	RecordLeasesRecovered(result.Released)
	UpdatePendingDescriptors(int64(result.TotalPending))

	logging.Info().
		Int("pending", result.TotalPending).
		Int("released", result.Released).
		Int("overdue", result.Overdue).
		Dur("duration", result.Duration).
		Msg("Queue recovery complete")

	return result, nil
}
