// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Record store
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation", "kind"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_store_errors_total",
			Help: "Total number of failed record store operations",
		},
		[]string{"operation", "kind"},
	)

	// Submission pipeline
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_submissions_total",
			Help: "Submissions by immediate outcome",
		},
		[]string{"kind", "outcome"}, // delivered, queued, rejected, storage_fault, invalid
	)

	RetryTaskResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_retry_task_results_total",
			Help: "Retry task executions by result",
		},
		[]string{"kind", "result"},
	)

	AuxiliaryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_auxiliary_failures_total",
			Help: "Side effects that failed after a successful send",
		},
		[]string{"kind", "effect"},
	)

	ReconciledRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_reconciled_records_total",
			Help: "Undelivered records rescheduled by the reconciliation sweep",
		},
		[]string{"kind"},
	)

	// Remote server
	RemoteSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_remote_send_duration_seconds",
			Help:    "Remote send duration in seconds by outcome status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Local API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordStoreOperation records a record store operation.
func RecordStoreOperation(operation, kind string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation, kind).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation, kind).Inc()
	}
}

// RecordSubmission counts one Submit call by outcome.
func RecordSubmission(kind, outcome string) {
	SubmissionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRetryTaskResult counts one retry task execution.
func RecordRetryTaskResult(kind, result string) {
	RetryTaskResults.WithLabelValues(kind, result).Inc()
}

// RecordAuxiliaryFailure counts a failed post-send side effect such as a photo upload.
func RecordAuxiliaryFailure(kind, effect string) {
	AuxiliaryFailures.WithLabelValues(kind, effect).Inc()
}

// RecordReconciled adds n rescheduled records for kind.
func RecordReconciled(kind string, n int) {
	ReconciledRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordRemoteSend records one remote send.
func RecordRemoteSend(kind, status string, duration time.Duration) {
	RemoteSendDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
