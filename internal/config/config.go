// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Queue      QueueConfig      `koanf:"queue"`
	Remote     RemoteConfig     `koanf:"remote"`
	Session    SessionConfig    `koanf:"session"`
	Device     DeviceConfig     `koanf:"device"`
	Submission SubmissionConfig `koanf:"submission"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the local HTTP API used by the field UI.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig selects the record store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// QueueConfig configures the durable retry queue and its runner.
type QueueConfig struct {
	Path              string        `koanf:"path"`
	SyncWrites        bool          `koanf:"sync_writes"`
	Workers           int           `koanf:"workers"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	RunTimeout        time.Duration `koanf:"run_timeout"`
	LeaseDuration     time.Duration `koanf:"lease_duration"`
	MinBackoff        time.Duration `koanf:"min_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	MaxAttempts       int           `koanf:"max_attempts"`
	FinishedRetention time.Duration `koanf:"finished_retention"`
	CompactInterval   time.Duration `koanf:"compact_interval"`
}

// RemoteConfig configures the client for the central survey server.
type RemoteConfig struct {
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimit       float64       `koanf:"rate_limit"`
	Burst           int           `koanf:"burst"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// SessionConfig holds the device credential.
type SessionConfig struct {
	Token     string `koanf:"token"`
	InstallID string `koanf:"install_id"`
}

// DeviceConfig configures the network and battery probes gating retries.
type DeviceConfig struct {
	// ProbeAddress is host:port; empty derives it from Remote.BaseURL.
	ProbeAddress      string        `koanf:"probe_address"`
	ProbeTimeout      time.Duration `koanf:"probe_timeout"`
	ProbeCache        time.Duration `koanf:"probe_cache"`
	BatteryPath       string        `koanf:"battery_path"`
	BatteryLowPercent int           `koanf:"battery_low_percent"`
}

// SubmissionConfig controls the optional startup reconciliation sweep.
type SubmissionConfig struct {
	ReconcileOnStart bool          `koanf:"reconcile_on_start"`
	ReconcileGrace   time.Duration `koanf:"reconcile_grace"`
}

// LoggingConfig mirrors logging.Config for the fields settable from config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns host:port for the HTTP server.
func (c *ServerConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ProbeTarget returns the host:port the network probe dials.
func (c *Config) ProbeTarget() string {
	if c.Device.ProbeAddress != "" {
		return c.Device.ProbeAddress
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Load reads configuration in order of precedence:
//  1. Built-in defaults
//  2. Config file (CONFIG_PATH or a default path)
//  3. Environment variables (.env is loaded into the environment first)
func Load() (*Config, error) {
	return LoadWithKoanf()
}
