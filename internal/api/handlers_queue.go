// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/queue"
)

const (
	defaultPendingLimit = 100
	maxPendingLimit     = 1000
)

// QueueView is the response of GET /api/v1/queue.
type QueueView struct {
	Stats   queue.Stats         `json:"stats"`
	Pending []*queue.Descriptor `json:"pending"`
	Total   int                 `json:"total_pending"`
}

// QueueStatus handles GET /api/v1/queue. ?limit bounds the pending list.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := defaultPendingLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > maxPendingLimit {
			rw.BadRequest("limit must be between 0 and " + strconv.Itoa(maxPendingLimit))
			return
		}
		limit = n
	}

	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Queue stats failed")
		rw.ServiceUnavailable("Retry queue unavailable")
		return
	}
	pending, err := h.queue.List(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Queue list failed")
		rw.ServiceUnavailable("Retry queue unavailable")
		return
	}

	view := QueueView{Stats: stats, Total: len(pending), Pending: pending}
	if len(pending) > limit {
		view.Pending = pending[:limit]
	}
	if view.Pending == nil {
		view.Pending = []*queue.Descriptor{}
	}
	rw.Success(view)
}

// Reconcile handles POST /api/v1/queue/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.reconciler == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeReconcileDisabled, "Reconciliation is not configured")
		return
	}

	scheduled, err := h.reconciler.Sweep(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int("scheduled", scheduled).Msg("Reconciliation sweep incomplete")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeReconcileIncomplete,
			"Reconciliation sweep incomplete", map[string]int{"scheduled": scheduled})
		return
	}
	rw.Success(map[string]int{"scheduled": scheduled})
}
