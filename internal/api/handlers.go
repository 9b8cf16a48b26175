// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/submission"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Submitter is the submission use case.
type Submitter interface {
	Submit(ctx context.Context, rec survey.Record) (submission.Receipt, error)
}

// RecordReader reads stored records back.
type RecordReader interface {
	Load(ctx context.Context, kind survey.Kind, id int64) (survey.Record, error)
	Delivery(ctx context.Context, kind survey.Kind, id int64) (*store.Delivery, error)
	Counts(ctx context.Context) (map[survey.Kind]store.KindCount, error)
	Ping(ctx context.Context) error
}

// QueueInspector exposes the retry queue to operators.
type QueueInspector interface {
	Stats(ctx context.Context) (queue.Stats, error)
	List(ctx context.Context) ([]*queue.Descriptor, error)
}

// Sweeper runs the reconciliation sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Handler holds the dependencies of the API handlers.
//
// Handler methods are split across files:
//   - handlers_records.go: submission and record reload
//   - handlers_queue.go: queue inspection and reconciliation
//   - handlers_health.go: health, liveness and readiness
type Handler struct {
	submitter  Submitter
	records    RecordReader
	queue      QueueInspector
	reconciler Sweeper
	startTime  time.Time
}

// NewHandler creates the API handler. reconciler may be nil, in which case
// POST /api/v1/queue/reconcile answers 503.
func NewHandler(submitter Submitter, records RecordReader, q QueueInspector, reconciler Sweeper) *Handler {
	return &Handler{
		submitter:  submitter,
		records:    records,
		queue:      q,
		reconciler: reconciler,
		startTime:  time.Now(),
	}
}

var (
	_ Submitter      = (*submission.Service)(nil)
	_ RecordReader   = (*store.Store)(nil)
	_ QueueInspector = (*queue.Queue)(nil)
	_ Sweeper        = (*submission.Reconciler)(nil)
)
