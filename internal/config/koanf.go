// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fieldsync/config.yaml",
	"/etc/fieldsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the environment before the env layer, if present.
var DotEnvFile = ".env"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8686,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "/data/fieldsync/records.db",
		},
		Queue: QueueConfig{
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
		},
		Remote: RemoteConfig{
			Timeout:         30 * time.Second,
			RateLimit:       5,
			Burst:           5,
			BreakerFailures: 5,
			BreakerTimeout:  2 * time.Minute,
		},
		Device: DeviceConfig{
			ProbeTimeout:      3 * time.Second,
			ProbeCache:        10 * time.Second,
			BatteryPath:       "/sys/class/power_supply/BAT0/capacity",
			BatteryLowPercent: 15,
		},
		Submission: SubmissionConfig{
			ReconcileOnStart: false,
			ReconcileGrace:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads defaults, then the config file, then the environment,
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already set in the process environment.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",

	"db_driver": "database.driver",
	"db_path":   "database.path",

	"queue_path":               "queue.path",
	"queue_sync_writes":        "queue.sync_writes",
	"queue_workers":            "queue.workers",
	"queue_poll_interval":      "queue.poll_interval",
	"queue_run_timeout":        "queue.run_timeout",
	"queue_lease_duration":     "queue.lease_duration",
	"queue_min_backoff":        "queue.min_backoff",
	"queue_max_backoff":        "queue.max_backoff",
	"queue_max_attempts":       "queue.max_attempts",
	"queue_finished_retention": "queue.finished_retention",
	"queue_compact_interval":   "queue.compact_interval",

	"remote_base_url":         "remote.base_url",
	"remote_timeout":          "remote.timeout",
	"remote_rate_limit":       "remote.rate_limit",
	"remote_burst":            "remote.burst",
	"remote_breaker_failures": "remote.breaker_failures",
	"remote_breaker_timeout":  "remote.breaker_timeout",

	"session_token": "session.token",
	"install_id":    "session.install_id",

	"device_probe_address":  "device.probe_address",
	"device_probe_timeout":  "device.probe_timeout",
	"device_probe_cache":    "device.probe_cache",
	"battery_capacity_path": "device.battery_path",
	"battery_low_percent":   "device.battery_low_percent",

	"reconcile_on_start": "submission.reconcile_on_start",
	"reconcile_grace":    "submission.reconcile_grace",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unknown variables return "" and are ignored.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
