// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package main is the fieldsync command.
//
// fieldsync runs on a field device next to the survey UI. Every observation
// and nest survey is written to the local record store before anything goes
// over the network. When the central server cannot be reached, a durable
// retry descriptor is queued and sent later once the device is online and its
// battery is not low.
//
// # Commands
//
//	fieldsync serve                          run the API, retry runner and compactor
//	fieldsync submit --kind observation -f rec.json
//	fieldsync queue stats                    pending, leased and finished counts
//	fieldsync queue list [--finished]        descriptors as JSON
//	fieldsync reconcile                      queue retries for stranded records
//
// The retry queue is a single-process Badger directory. submit, queue and
// reconcile open it directly, so stop serve before using them, or use the
// HTTP API of the running server instead.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables, with .env loaded first when present
//   - Config file (--config, CONFIG_PATH or a default location)
//   - Built-in defaults
//
// REMOTE_BASE_URL is required. SESSION_TOKEN carries the device credential.
//
// # Signal Handling
//
// serve shuts down on SIGINT and SIGTERM. In-flight retries are released back
// to the queue without spending an attempt, the HTTP server drains for
// SERVER_SHUTDOWN_TIMEOUT, and the queue and store are closed.
package main

import (
	"os"

	"github.com/tomtom215/fieldsync/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("fieldsync failed")
		os.Exit(1)
	}
}
