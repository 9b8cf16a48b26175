// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the retry queue
var (
	// queueEnqueueTotal counts enqueue calls by whether a descriptor was created.
	queueEnqueueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_queue_enqueue_total",
		Help: "Enqueue calls by tag and result (created, duplicate, error)",
	}, []string{"tag", "result"})

	// queueFinishedTotal counts descriptors leaving the pending set.
	queueFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_queue_finished_total",
		Help: "Descriptors finished by tag and outcome",
	}, []string{"tag", "outcome"})

	// queueRunsTotal counts worker executions.
	queueRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_queue_runs_total",
		Help: "Worker executions by tag and result",
	}, []string{"tag", "result"})

	// queueDeferralsTotal counts runs skipped because a constraint was unmet.
	queueDeferralsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_queue_deferrals_total",
		Help: "Runs deferred by tag and unmet constraint",
	}, []string{"tag", "constraint"})

	// queueRunLatency measures worker execution time.
	queueRunLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldsync_queue_run_duration_seconds",
		Help:    "Worker execution time in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"tag"})

	// queuePendingDescriptors is the current number of pending descriptors.
	queuePendingDescriptors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_queue_pending_descriptors",
		Help: "Current number of pending retry descriptors",
	})

	// queueDBSizeBytes is the current BadgerDB size.
	queueDBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_queue_db_size_bytes",
		Help: "BadgerDB database size in bytes",
	})

	// queueCompactionsTotal counts compaction runs.
	queueCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_queue_compactions_total",
		Help: "Total number of queue compaction runs",
	})

	// queueDescriptorsCompacted counts finished descriptors removed by compaction.
	queueDescriptorsCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_queue_descriptors_compacted_total",
		Help: "Total number of finished descriptors removed during compaction",
	})

	// queueLeasesRecovered counts stale leases cleared at startup.
	queueLeasesRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_queue_leases_recovered_total",
		Help: "Total number of leases cleared during startup recovery",
	})
)

// RecordEnqueue records an enqueue that either created a descriptor or hit
// an existing one.
func RecordEnqueue(tag string, created bool) {
	result := "duplicate"
	if created {
		result = "created"
	}
	queueEnqueueTotal.WithLabelValues(tag, result).Inc()
}

// RecordEnqueueFailure records an enqueue that could not be stored.
func RecordEnqueueFailure(tag string) {
	queueEnqueueTotal.WithLabelValues(tag, "error").Inc()
}

// RecordFinish records a descriptor leaving the pending set.
func RecordFinish(tag string, outcome Outcome) {
	queueFinishedTotal.WithLabelValues(tag, string(outcome)).Inc()
}

// RecordRun records one worker execution and its duration.
func RecordRun(tag string, result Result, seconds float64) {
	queueRunsTotal.WithLabelValues(tag, result.String()).Inc()
	queueRunLatency.WithLabelValues(tag).Observe(seconds)
}

// RecordDeferral records a run skipped for an unmet constraint.
func RecordDeferral(tag, constraint string) {
	queueDeferralsTotal.WithLabelValues(tag, constraint).Inc()
}

// UpdatePendingDescriptors sets the pending gauge.
func UpdatePendingDescriptors(count int64) {
	queuePendingDescriptors.Set(float64(count))
}

// UpdateDBSize sets the database size gauge.
func UpdateDBSize(bytes int64) {
	queueDBSizeBytes.Set(float64(bytes))
}

// RecordCompaction records a compaction run.
func RecordCompaction(removed int64) {
	queueCompactionsTotal.Inc()
	if removed > 0 {
		queueDescriptorsCompacted.Add(float64(removed))
	}
}

// RecordLeasesRecovered records leases cleared at startup.
func RecordLeasesRecovered(count int) {
	if count > 0 {
		queueLeasesRecovered.Add(float64(count))
	}
}
