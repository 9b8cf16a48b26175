// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package metrics holds the Prometheus collectors shared across fieldsync packages.

Metrics are exposed at /metrics by the local API:

	curl http://127.0.0.1:8686/metrics

# Available Metrics

Record store:
  - fieldsync_store_operation_duration_seconds{operation, kind}
  - fieldsync_store_errors_total{operation, kind}

Submission pipeline:
  - fieldsync_submissions_total{kind, outcome}: delivered, queued, rejected, storage_fault, invalid
  - fieldsync_retry_task_results_total{kind, result}: success, retry_later, failure
  - fieldsync_auxiliary_failures_total{kind, effect}
  - fieldsync_reconciled_records_total{kind}

Remote server:
  - fieldsync_remote_send_duration_seconds{kind, status}
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total

Local API:
  - fieldsync_api_requests_total{method, endpoint, status_code}
  - fieldsync_api_request_duration_seconds{method, endpoint}
  - fieldsync_api_active_requests

Retry queue metrics live in internal/queue next to the code that records them.
*/
package metrics
