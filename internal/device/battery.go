// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package device

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// ErrNoBattery means the device runs on mains power.
var ErrNoBattery = errors.New("no battery present")

// BatteryProbe reads a Linux power_supply capacity file.
type BatteryProbe struct {
	capacityPath string
	lowPercent   int
}

// NewBatteryProbe creates a probe for the capacity file at path. A sibling
// "status" file, when present, is used to detect charging.
func NewBatteryProbe(path string, lowPercent int) *BatteryProbe {
	return &BatteryProbe{capacityPath: path, lowPercent: lowPercent}
}

// Level returns the charge in percent.
func (b *BatteryProbe) Level() (int, error) {
	if b.capacityPath == "" {
		return 0, ErrNoBattery
	}
	data, err := os.ReadFile(b.capacityPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoBattery
		}
		return 0, fmt.Errorf("read battery capacity: %w", err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse battery capacity %q: %w", strings.TrimSpace(string(data)), err)
	}
	return level, nil
}

// Charging reports whether the power supply says it is charging or full.
func (b *BatteryProbe) Charging() bool {
	if b.capacityPath == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(b.capacityPath), "status"))
	if err != nil {
		return false
	}
	switch strings.TrimSpace(string(data)) {
	case "Charging", "Full":
		return true
	default:
		return false
	}
}

// NotLow reports whether the battery is above the low threshold. A device
// without a battery, a charging device, and an unreadable capacity all
// count as not low, so a broken sensor never blocks delivery forever.
func (b *BatteryProbe) NotLow() bool {
	level, err := b.Level()
	if err != nil {
		if !errors.Is(err, ErrNoBattery) {
			logging.Warn().Err(err).Str("path", b.capacityPath).Msg("Battery level unreadable, assuming not low")
		}
		return true
	}
	if level > b.lowPercent {
		return true
	}
	return b.Charging()
}
