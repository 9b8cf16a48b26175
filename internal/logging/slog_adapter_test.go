// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.DebugLevel)

	logger := slog.New(NewSlogHandlerWithLogger(zl)).
		With("service", "queue-runner").
		WithGroup("restart")
	logger.Warn("service failed", "attempt", 3, "backoff", 15*time.Second)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"message":"service failed"`,
		`"restart.service":"queue-runner"`,
		`"restart.attempt":3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := toZerologLevel(tt.in); got != tt.want {
			t.Errorf("toZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
