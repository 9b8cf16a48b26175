// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package api is the local HTTP surface the field UI talks to.

Routes:

	POST /api/v1/observations          submit an observation
	POST /api/v1/nest-surveys          submit a nest survey
	GET  /api/v1/observations/{id}     reload a stored observation
	GET  /api/v1/nest-surveys/{id}     reload a stored nest survey
	GET  /api/v1/queue                 retry queue statistics and pending descriptors
	POST /api/v1/queue/reconcile       run the reconciliation sweep now
	GET  /health, /health/live, /health/ready
	GET  /metrics                      Prometheus exposition

Submission status codes:

  - 201 Created: the server accepted the record
  - 202 Accepted: the server was unreachable and a retry is queued
  - 422 Unprocessable Entity: field validation failed, nothing stored
  - 502 Bad Gateway: the server refused the record; it stays stored locally
  - 500 Internal Server Error: the record could not be saved or its retry
    could not be queued

Every response uses the APIResponse envelope and carries the request id.
*/
package api
