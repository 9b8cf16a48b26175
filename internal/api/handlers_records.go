// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/submission"
	"github.com/tomtom215/fieldsync/internal/survey"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// maxRecordBodyBytes bounds a submitted record. Five hundred sightings with
// notes fit comfortably.
const maxRecordBodyBytes = 1 << 20

// RecordView is a stored record plus its delivery state.
type RecordView struct {
	Kind     survey.Kind     `json:"kind"`
	Record   survey.Record   `json:"record"`
	Delivery *store.Delivery `json:"delivery,omitempty"`
}

// SubmitObservation handles POST /api/v1/observations.
func (h *Handler) SubmitObservation(w http.ResponseWriter, r *http.Request) {
	h.submitRecord(w, r, survey.KindObservation)
}

// SubmitNestSurvey handles POST /api/v1/nest-surveys.
func (h *Handler) SubmitNestSurvey(w http.ResponseWriter, r *http.Request) {
	h.submitRecord(w, r, survey.KindNestSurvey)
}

// GetObservation handles GET /api/v1/observations/{id}.
func (h *Handler) GetObservation(w http.ResponseWriter, r *http.Request) {
	h.getRecord(w, r, survey.KindObservation)
}

// GetNestSurvey handles GET /api/v1/nest-surveys/{id}.
func (h *Handler) GetNestSurvey(w http.ResponseWriter, r *http.Request) {
	h.getRecord(w, r, survey.KindNestSurvey)
}

func (h *Handler) submitRecord(w http.ResponseWriter, r *http.Request, kind survey.Kind) {
	rw := NewResponseWriter(w, r)

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			rw.Error(http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "Content-Type must be application/json")
			return
		}
	}

	if r.ContentLength > maxRecordBodyBytes {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Record body too large")
		return
	}

	rec, err := survey.New(kind)
	if err != nil {
		rw.InternalError("Unknown record kind")
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Record body too large")
			return
		}
		rw.BadRequest("Malformed record JSON: " + err.Error())
		return
	}

	receipt, err := h.submitter.Submit(r.Context(), rec)
	if err != nil {
		h.writeSubmitError(rw, r, receipt, err)
		return
	}

	if receipt.Delivered {
		rw.Created(receipt)
		return
	}
	rw.Accepted(receipt)
}

func (h *Handler) writeSubmitError(rw *ResponseWriter, r *http.Request, receipt submission.Receipt, err error) {
	log := logging.Ctx(r.Context())

	var sendErr *submission.SendError
	switch {
	case errors.Is(err, submission.ErrInvalidRecord):
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			rw.ValidationError("Record failed validation", verr.Fields())
			return
		}
		rw.ValidationError(err.Error(), nil)

	case errors.As(err, &sendErr):
		details := map[string]interface{}{
			"kind":     sendErr.Kind,
			"local_id": sendErr.LocalID,
		}
		var httpErr *remote.HTTPError
		if errors.As(err, &httpErr) {
			details["upstream_status"] = httpErr.StatusCode
		}
		rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeRemoteRejected, "Server refused the record: "+sendErr.Cause.Error(), details)

	case errors.Is(err, store.ErrStorageFault):
		// A non-zero id means the record is saved but its retry is not queued
		var details interface{}
		if receipt.LocalID != 0 {
			details = map[string]interface{}{"kind": receipt.Kind, "local_id": receipt.LocalID}
		}
		rw.StorageFault("Record could not be stored durably", details)

	default:
		log.Error().Err(err).Msg("Unexpected submission error")
		rw.InternalError("Submission failed")
	}
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request, kind survey.Kind) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rw.BadRequest("id must be a positive integer")
		return
	}

	rec, err := h.records.Load(r.Context(), kind, id)
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound(kind.String() + " not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("kind", kind.String()).Int64("local_id", id).Msg("Record load failed")
		rw.StorageFault("Record could not be loaded", nil)
		return
	}

	view := RecordView{Kind: kind, Record: rec}
	d, err := h.records.Delivery(r.Context(), kind, id)
	switch {
	case err == nil:
		view.Delivery = d
	case !errors.Is(err, store.ErrNotFound):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Delivery state unavailable")
	}

	rw.Success(view)
}
