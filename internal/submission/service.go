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
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// ErrInvalidRecord wraps field validation failures. Nothing is stored.
var ErrInvalidRecord = errors.New("invalid record")

// Submission outcomes used in metrics
const (
	outcomeDelivered    = "delivered"
	outcomeQueued       = "queued"
	outcomeRejected     = "rejected"
	outcomeStorageFault = "storage_fault"
	outcomeInvalid      = "invalid"
)

// Receipt tells the caller where a submitted record ended up. Exactly one of
// Delivered and Queued is set on a nil error.
type Receipt struct {
	Kind      survey.Kind `json:"kind"`
	LocalID   int64       `json:"local_id"`
	Delivered bool        `json:"delivered"`
	Queued    bool        `json:"queued"`
	RemoteID  string      `json:"remote_id,omitempty"`
}

// SendError is returned when the server was reached and refused the record.
// The record stays in the local store and no retry is scheduled.
type SendError struct {
	Kind    survey.Kind
	LocalID int64
	Cause   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("submit %s %d: %v", e.Kind, e.LocalID, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

// Service is the submission use case.
type Service struct {
	store     RecordStore
	submitter remote.Submitter
	scheduler RetryScheduler
	deliver   *deliverer
}

// NewService wires the use case. photos may be nil when no uploader is
// configured.
func NewService(records RecordStore, submitter remote.Submitter, scheduler RetryScheduler, photos remote.PhotoUploader) *Service {
	return &Service{
		store:     records,
		submitter: submitter,
		scheduler: scheduler,
		deliver:   &deliverer{store: records, photos: photos},
	}
}

// Submit saves rec locally, then tries to send it.
//
// A connectivity failure schedules a durable retry and returns a queued
// receipt with a nil error. A refusal from a reachable server returns a
// *SendError. A failed local save returns an error wrapping
// store.ErrStorageFault and nothing is sent.
func (s *Service) Submit(ctx context.Context, rec survey.Record) (Receipt, error) {
	if err := survey.Validate(rec); err != nil {
		if rec != nil {
			metrics.RecordSubmission(rec.Kind().String(), outcomeInvalid)
		}
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	kind := rec.Kind()

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		if !errors.Is(err, store.ErrStorageFault) {
			err = fmt.Errorf("%w: %w", store.ErrStorageFault, err)
		}
		metrics.RecordSubmission(kind.String(), outcomeStorageFault)
		logging.Ctx(ctx).Error().Err(err).Str("kind", kind.String()).Msg("Record could not be saved")
		return Receipt{}, err
	}

	receipt := Receipt{Kind: kind, LocalID: id}
	log := logging.Ctx(ctx).With().Str("kind", kind.String()).Int64("local_id", id).Logger()

	outcome := s.submitter.Send(ctx, rec)

	// The record is saved. Everything from here on must finish even if the
	// caller has gone away.
	bgCtx := context.WithoutCancel(ctx)

	switch {
	case outcome.OK():
		s.deliver.delivered(bgCtx, rec, id, outcome.RemoteID)
		receipt.Delivered = true
		receipt.RemoteID = outcome.RemoteID
		metrics.RecordSubmission(kind.String(), outcomeDelivered)
		log.Info().Str("remote_id", outcome.RemoteID).Msg("Record delivered")
		return receipt, nil

	// A caller that cancels mid-send is not a verdict on the record either
	case outcome.Retryable() || ctx.Err() != nil:
		if err := s.scheduler.ScheduleRetry(bgCtx, kind, id); err != nil {
			metrics.RecordSubmission(kind.String(), outcomeStorageFault)
			log.Error().Err(err).Msg("Record saved but its retry could not be scheduled")
			return receipt, fmt.Errorf("%w: %w", store.ErrStorageFault, err)
		}
		receipt.Queued = true
		metrics.RecordSubmission(kind.String(), outcomeQueued)
		log.Info().Err(outcome.Cause).Msg("Server unreachable, record queued for retry")
		return receipt, nil

	default:
		s.deliver.rejected(bgCtx, kind, id, outcome.Cause)
		metrics.RecordSubmission(kind.String(), outcomeRejected)
		log.Warn().Err(outcome.Cause).Msg("Record rejected by server")
		return receipt, &SendError{Kind: kind, LocalID: id, Cause: outcome.Cause}
	}
}
