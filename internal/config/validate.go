// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"fmt"
	"net/url"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{"json": true, "console": true}

var validDrivers = map[string]bool{"sqlite": true, "duckdb": true}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateSubmission(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("DB_DRIVER must be sqlite or duckdb, got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := &c.Queue
	switch {
	case q.Path == "":
		return fmt.Errorf("QUEUE_PATH is required")
	case q.Workers < 1:
		return fmt.Errorf("QUEUE_WORKERS must be at least 1")
	case q.PollInterval <= 0:
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive")
	case q.RunTimeout <= 0:
		return fmt.Errorf("QUEUE_RUN_TIMEOUT must be positive")
	case q.LeaseDuration <= q.RunTimeout:
		return fmt.Errorf("QUEUE_LEASE_DURATION (%s) must exceed QUEUE_RUN_TIMEOUT (%s)", q.LeaseDuration, q.RunTimeout)
	case q.MinBackoff <= 0:
		return fmt.Errorf("QUEUE_MIN_BACKOFF must be positive")
	case q.MaxBackoff < q.MinBackoff:
		return fmt.Errorf("QUEUE_MAX_BACKOFF must not be below QUEUE_MIN_BACKOFF")
	case q.MaxAttempts < 0:
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must not be negative (0 = unlimited)")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if err := validateHTTPURL(c.Remote.BaseURL, "REMOTE_BASE_URL"); err != nil {
		return err
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("REMOTE_RATE_LIMIT must not be negative (0 = unlimited)")
	}
	return nil
}

func (c *Config) validateDevice() error {
	if p := c.Device.BatteryLowPercent; p < 0 || p > 100 {
		return fmt.Errorf("BATTERY_LOW_PERCENT must be between 0 and 100, got %d", p)
	}
	return nil
}

// validateSubmission keeps the sweep from picking up a record whose first
// send can still be in flight.
func (c *Config) validateSubmission() error {
	if c.Submission.ReconcileGrace <= c.Remote.Timeout {
		return fmt.Errorf("RECONCILE_GRACE (%s) must exceed REMOTE_TIMEOUT (%s)",
			c.Submission.ReconcileGrace, c.Remote.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// validateHTTPURL accepts a base URL with an http or https scheme and no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
