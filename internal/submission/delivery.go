// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// Auxiliary effect names used in metrics
const (
	effectMarkDelivered = "mark_delivered"
	effectMarkRejected  = "mark_rejected"
	effectPhotoUpload   = "photo_upload"
)

// deliverer runs the bookkeeping and side effects that follow a send. None of
// them can change the outcome of the send itself.
type deliverer struct {
	store  RecordStore
	photos remote.PhotoUploader
}

// delivered records the delivery and uploads attached photos. It returns the
// number of photos that failed to upload.
func (d *deliverer) delivered(ctx context.Context, rec survey.Record, id int64, remoteID string) int {
	kind := rec.Kind()
	log := logging.Ctx(ctx).With().Str("kind", kind.String()).Int64("local_id", id).Logger()

	if err := d.store.MarkDelivered(ctx, kind, id, remoteID); err != nil {
		metrics.RecordAuxiliaryFailure(kind.String(), effectMarkDelivered)
		log.Error().Err(err).Msg("Record delivered but the delivery could not be recorded")
	}

	photos := rec.Photos()
	if len(photos) == 0 || d.photos == nil {
		return 0
	}
	if remoteID == "" {
		metrics.RecordAuxiliaryFailure(kind.String(), effectPhotoUpload)
		log.Warn().Int("photos", len(photos)).Msg("Server returned no id, photos cannot be attached")
		return len(photos)
	}

	failed := 0
	for _, p := range photos {
		if err := d.photos.UploadPhoto(ctx, kind, remoteID, p); err != nil {
			failed++
			metrics.RecordAuxiliaryFailure(kind.String(), effectPhotoUpload)
			log.Warn().Err(err).
				Str("remote_id", remoteID).
				Int("child_position", p.ChildPosition).
				Str("path", p.Path).
				Msg("Photo upload failed")
		}
	}
	return failed
}

// rejected records a terminal refusal so the reconciliation sweep never
// resubmits the record.
func (d *deliverer) rejected(ctx context.Context, kind survey.Kind, id int64, cause error) {
	reason := "rejected"
	if cause != nil {
		reason = cause.Error()
	}
	if err := d.store.MarkRejected(ctx, kind, id, reason); err != nil {
		metrics.RecordAuxiliaryFailure(kind.String(), effectMarkRejected)
		logging.Ctx(ctx).Error().Err(err).
			Str("kind", kind.String()).
			Int64("local_id", id).
			Msg("Rejection could not be recorded")
	}
}
