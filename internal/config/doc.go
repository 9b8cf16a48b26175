// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package config loads fieldsync configuration.

# Configuration Sources

Sources are layered, later ones win:
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, or config.yaml / /etc/fieldsync/config.yaml)
  - Environment variables, including a .env file in the working directory

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW

Record store:
  - DB_DRIVER: sqlite (default) or duckdb
  - DB_PATH: database file (default: /data/fieldsync/records.db)

Retry queue:
  - QUEUE_PATH, QUEUE_WORKERS, QUEUE_POLL_INTERVAL, QUEUE_RUN_TIMEOUT, QUEUE_LEASE_DURATION
  - QUEUE_MIN_BACKOFF (default: 10s), QUEUE_MAX_BACKOFF, QUEUE_MAX_ATTEMPTS (0 = unlimited)
  - QUEUE_FINISHED_RETENTION, QUEUE_COMPACT_INTERVAL

Remote server:
  - REMOTE_BASE_URL (required), REMOTE_TIMEOUT, REMOTE_RATE_LIMIT, REMOTE_BURST
  - REMOTE_BREAKER_FAILURES, REMOTE_BREAKER_TIMEOUT

Session:
  - SESSION_TOKEN, INSTALL_ID

Device constraints:
  - DEVICE_PROBE_ADDRESS, DEVICE_PROBE_TIMEOUT, DEVICE_PROBE_CACHE
  - BATTERY_CAPACITY_PATH, BATTERY_LOW_PERCENT

Submission:
  - RECONCILE_ON_START, RECONCILE_GRACE (must exceed REMOTE_TIMEOUT)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
*/
package config
