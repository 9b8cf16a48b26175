// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package store is the durable local record store.
//
// A composite record (an observation with its sightings, or a nest survey with
// its nests) is inserted in one transaction: the parent row first, then every
// child row carrying the parent's freshly assigned id. Identifiers are
// monotonic and never reused. Rows are immutable once written; delivery to the
// remote server is tracked in a separate deliveries table.
//
// Two backends share one API:
//   - sqlite (modernc.org/sqlite, pure Go, the default on field devices)
//   - duckdb (duckdb-go, for workstation imports and analysis)
package store
