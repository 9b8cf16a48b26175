// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Scheduler enqueues retry descriptors that need the network and a battery
// that is not low, back off linearly, and are tagged with the record kind.
type Scheduler struct {
	queue   Enqueuer
	backoff queue.Backoff
}

// NewScheduler creates a scheduler. minBackoff is the linear backoff
// minimum; maxBackoff caps it (zero leaves the queue default).
func NewScheduler(q Enqueuer, minBackoff, maxBackoff time.Duration) *Scheduler {
	return &Scheduler{
		queue: q,
		backoff: queue.Backoff{
			Policy:      queue.BackoffLinear,
			MinInterval: minBackoff,
			MaxInterval: maxBackoff,
		},
	}
}

// Request builds the descriptor request for a record.
func (s *Scheduler) Request(kind survey.Kind, id int64) queue.Request {
	return queue.Request{
		Tag:      kind.String(),
		RecordID: id,
		Constraints: queue.Constraints{
			RequiresNetwork:       true,
			RequiresBatteryNotLow: true,
		},
		Backoff: s.backoff,
	}
}

// ScheduleRetry enqueues a retry for the record. Scheduling a record that
// already has a pending retry is a no-op.
func (s *Scheduler) ScheduleRetry(ctx context.Context, kind survey.Kind, id int64) error {
	created, err := s.queue.Enqueue(ctx, s.Request(kind, id))
	if err != nil {
		return fmt.Errorf("schedule retry for %s %d: %w", kind, id, err)
	}

	logging.Ctx(ctx).Info().
		Str("kind", kind.String()).
		Int64("local_id", id).
		Bool("already_pending", !created).
		Msg("Retry scheduled")
	return nil
}
