// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"time"
)

// Config holds queue storage and runner configuration.
type Config struct {
	// Path is the BadgerDB directory.
	Path string

	// SyncWrites fsyncs every write. Keep it on: a descriptor that is lost on
	// power failure is a record that never reaches the server.
	SyncWrites bool

	// Workers bounds how many descriptors run concurrently.
	Workers int

	// PollInterval is how often the runner looks for due descriptors when
	// nothing has been enqueued.
	PollInterval time.Duration

	// RunTimeout bounds a single worker execution.
	RunTimeout time.Duration

	// LeaseDuration is how long a claim is held before another runner may
	// take the descriptor over. Must exceed RunTimeout.
	LeaseDuration time.Duration

	// MinBackoff is the default minimum interval for linear backoff.
	MinBackoff time.Duration

	// MaxBackoff caps any computed backoff delay.
	MaxBackoff time.Duration

	// MaxAttempts finishes a descriptor as exhausted after this many
	// RetryLater results. Zero means unlimited.
	MaxAttempts int

	// FinishedRetention is how long finished descriptors are kept for
	// inspection before compaction removes them.
	FinishedRetention time.Duration

	// CompactInterval is how often the compactor runs.
	CompactInterval time.Duration

	// BadgerDB tuning
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	Compression      bool
	GCRatio          float64

	// CloseTimeout bounds Close. Zero means wait forever.
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults. The descriptor volume of a field
// device is tiny, so Badger tables are kept at their minimum sizes.
func DefaultConfig() Config {
	return Config{
		Path:              "/data/fieldsync/queue",
		SyncWrites:        true,
		Workers:           2,
		PollInterval:      15 * time.Second,
		RunTimeout:        2 * time.Minute,
		LeaseDuration:     5 * time.Minute,
		MinBackoff:        10 * time.Second,
		MaxBackoff:        5 * time.Hour,
		MaxAttempts:       0,
		FinishedRetention: 7 * 24 * time.Hour,
		CompactInterval:   time.Hour,
		MemTableSize:      16 * 1024 * 1024,
		ValueLogFileSize:  16 * 1024 * 1024,
		NumCompactors:     2,
		Compression:       true,
		GCRatio:           0.5,
		CloseTimeout:      30 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "path is required"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Message: "must be at least 1"}
	}
	if c.PollInterval < 100*time.Millisecond {
		return &ConfigError{Field: "PollInterval", Message: "must be at least 100ms"}
	}
	if c.RunTimeout < time.Second {
		return &ConfigError{Field: "RunTimeout", Message: "must be at least 1s"}
	}
	if c.LeaseDuration <= c.RunTimeout {
		return &ConfigError{Field: "LeaseDuration", Message: "must be greater than RunTimeout"}
	}
	if c.MinBackoff < time.Second {
		return &ConfigError{Field: "MinBackoff", Message: "must be at least 1s"}
	}
	if c.MaxBackoff < c.MinBackoff {
		return &ConfigError{Field: "MaxBackoff", Message: "must not be less than MinBackoff"}
	}
	if c.MaxAttempts < 0 {
		return &ConfigError{Field: "MaxAttempts", Message: "must not be negative"}
	}
	if c.CompactInterval < time.Minute {
		return &ConfigError{Field: "CompactInterval", Message: "must be at least 1 minute"}
	}
	if c.FinishedRetention < 0 {
		return &ConfigError{Field: "FinishedRetention", Message: "must not be negative"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	// BadgerDB requires at least 2 compactors
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1 exclusive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "queue config error: " + e.Field + ": " + e.Message
}
