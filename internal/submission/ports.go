// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// RecordStore is the part of the record store the pipeline uses.
// *store.Store implements it.
type RecordStore interface {
	Insert(ctx context.Context, rec survey.Record) (int64, error)
	Load(ctx context.Context, kind survey.Kind, id int64) (survey.Record, error)
	MarkDelivered(ctx context.Context, kind survey.Kind, id int64, remoteID string) error
	MarkRejected(ctx context.Context, kind survey.Kind, id int64, reason string) error
	Settled(ctx context.Context, kind survey.Kind, id int64) (bool, error)
}

// UndeliveredLister lists records that still need sending.
type UndeliveredLister interface {
	Undelivered(ctx context.Context, kind survey.Kind, olderThan time.Time) ([]int64, error)
}

// RetryScheduler turns a "needs retry" signal into a durable background task.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, kind survey.Kind, id int64) error
}

// Enqueuer is the durable queue the Scheduler writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.Request) (bool, error)
}

// TaskRegistry binds workers to tags. *queue.Runner implements it.
type TaskRegistry interface {
	Register(tag string, w queue.Worker)
}

var (
	_ RecordStore       = (*store.Store)(nil)
	_ UndeliveredLister = (*store.Store)(nil)
	_ Enqueuer          = (*queue.Queue)(nil)
	_ TaskRegistry      = (*queue.Runner)(nil)
)
