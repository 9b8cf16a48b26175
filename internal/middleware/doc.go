// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package middleware provides HTTP middleware for the local submission API.

  - RequestID: UUID request ids, propagated into the logging context so every
    log line for a submission carries request_id and correlation_id
  - PrometheusMetrics: request counts, latency and in-flight gauge, labelled by
    the chi route pattern rather than the raw path so record ids do not
    explode label cardinality

Both use the func(http.HandlerFunc) http.HandlerFunc shape; the api package
adapts them to chi's r.Use.
*/
package middleware
