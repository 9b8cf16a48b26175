// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// RetryTask resends one record kind from the local store.
type RetryTask struct {
	kind      survey.Kind
	store     RecordStore
	submitter remote.Submitter
	deliver   *deliverer
}

// NewRetryTask creates the task for kind. photos may be nil.
func NewRetryTask(kind survey.Kind, records RecordStore, submitter remote.Submitter, photos remote.PhotoUploader) *RetryTask {
	return &RetryTask{
		kind:      kind,
		store:     records,
		submitter: submitter,
		deliver:   &deliverer{store: records, photos: photos},
	}
}

// RegisterTasks registers a RetryTask for every record kind.
func RegisterTasks(registry TaskRegistry, records RecordStore, submitter remote.Submitter, photos remote.PhotoUploader) {
	for _, kind := range survey.Kinds {
		registry.Register(kind.String(), NewRetryTask(kind, records, submitter, photos))
	}
}

// Kind returns the record kind this task handles.
func (t *RetryTask) Kind() survey.Kind { return t.kind }

// Run implements queue.Worker.
func (t *RetryTask) Run(ctx context.Context, d *queue.Descriptor) (queue.Result, error) {
	if d.Tag != t.kind.String() {
		return queue.ResultFailure, fmt.Errorf("%s task cannot run %q descriptor", t.kind, d.Tag)
	}
	return t.Execute(ctx, d.RecordID)
}

// Execute reloads record id and sends it unless it was already delivered or
// rejected. A record that no longer exists is a terminal failure; an
// unreachable server asks for a later retry.
func (t *RetryTask) Execute(ctx context.Context, id int64) (queue.Result, error) {
	result, err := t.execute(ctx, id)
	metrics.RecordRetryTaskResult(t.kind.String(), result.String())
	return result, err
}

func (t *RetryTask) execute(ctx context.Context, id int64) (queue.Result, error) {
	log := logging.Ctx(ctx).With().Str("kind", t.kind.String()).Int64("local_id", id).Logger()

	rec, err := t.store.Load(ctx, t.kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("Retry task: record not found")
			return queue.ResultFailure, err
		}
		// The record exists as far as we know; the store is just unhappy
		log.Warn().Err(err).Msg("Retry task: record could not be loaded")
		return queue.ResultRetryLater, err
	}

	// A reconciliation sweep can enqueue a record while its first send is
	// still in flight; that send may have settled it since.
	settled, err := t.store.Settled(ctx, t.kind, id)
	if err != nil {
		log.Warn().Err(err).Msg("Retry task: delivery state could not be read")
		return queue.ResultRetryLater, err
	}
	if settled {
		log.Info().Msg("Retry task: record already settled, nothing to send")
		return queue.ResultSuccess, nil
	}

	outcome := t.submitter.Send(ctx, rec)
	bgCtx := context.WithoutCancel(ctx)

	switch {
	case outcome.OK():
		if failed := t.deliver.delivered(bgCtx, rec, id, outcome.RemoteID); failed > 0 {
			log.Warn().Int("failed_photos", failed).Msg("Retry task: delivered with photo upload failures")
		}
		log.Info().Str("remote_id", outcome.RemoteID).Msg("Retry task: record delivered")
		return queue.ResultSuccess, nil

	case outcome.Retryable() || ctx.Err() != nil:
		log.Info().Err(outcome.Cause).Msg("Retry task: server still unreachable")
		return queue.ResultRetryLater, outcome.Cause

	default:
		t.deliver.rejected(bgCtx, t.kind, id, outcome.Cause)
		log.Warn().Err(outcome.Cause).Msg("Retry task: record rejected by server")
		return queue.ResultFailure, outcome.Cause
	}
}

var _ queue.Worker = (*RetryTask)(nil)
