// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package logging provides the zerolog-based global logger used across fieldsync.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("kind", "observation").Msg("Submission received")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Send failed, queued for retry")
//
// # Configuration
//
// Environment Variables (read by internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file and line (default: false)
//
// Always terminate an event chain with Msg or Send, otherwise nothing is written.
//
// The package also exposes an slog.Handler so that libraries speaking slog
// (sutureslog in the supervisor tree) write through the same logger.
package logging
