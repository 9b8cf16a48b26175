// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package survey defines the composite records collected in the field.
//
// A composite record is a parent entry plus ordered child collections that point
// back at the parent through its local identifier. Two kinds exist:
//
//   - Observation: a beach visit with a list of Sightings
//   - NestSurvey: a nest inspection round with a list of Nests
//
// Records are create-only. Once stored they are never edited through the
// submission pipeline, only re-read and re-sent.
package survey
