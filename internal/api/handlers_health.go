// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/survey"
)

// HealthStatus is the response of GET /health.
type HealthStatus struct {
	Status         string                          `json:"status"`
	StoreConnected bool                            `json:"store_connected"`
	QueueOpen      bool                            `json:"queue_open"`
	PendingRetries int64                           `json:"pending_retries"`
	OverdueRetries int64                           `json:"overdue_retries"`
	Records        map[survey.Kind]store.KindCount `json:"records,omitempty"`
	Uptime         float64                         `json:"uptime_seconds"`
}

// Health handles GET /health. It reports degraded rather than failing so a
// field operator can still read the counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	status.StoreConnected = h.records.Ping(ctx) == nil
	if status.StoreConnected {
		if counts, err := h.records.Counts(ctx); err == nil {
			status.Records = counts
		}
	}

	if stats, err := h.queue.Stats(ctx); err == nil {
		status.QueueOpen = true
		status.PendingRetries = stats.Pending
		status.OverdueRetries = stats.Overdue
	}

	if !status.StoreConnected || !status.QueueOpen {
		status.Status = "degraded"
	}

	NewResponseWriter(w, r).Success(status)
}

// HealthLive handles GET /health/live: 200 while the process serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /health/ready: 503 unless both the record store
// and the retry queue answer.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.records.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("record store not ready")
		return
	}
	if _, err := h.queue.Stats(r.Context()); err != nil {
		rw.ServiceUnavailable("retry queue not ready")
		return
	}
	rw.Success(map[string]bool{"ready": true})
}
