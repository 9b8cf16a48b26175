// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package device reports the device state that retry constraints gate on:
// whether the remote host is reachable and whether the battery is low.
package device

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/queue"
)

// Config configures the probes.
type Config struct {
	ProbeAddress      string
	ProbeTimeout      time.Duration
	ProbeCache        time.Duration
	BatteryPath       string
	BatteryLowPercent int
}

// Conditions combines the network and battery probes.
type Conditions struct {
	network *NetworkProbe
	battery *BatteryProbe
}

// New builds probes from cfg.
func New(cfg Config) *Conditions {
	return &Conditions{
		network: NewNetworkProbe(cfg.ProbeAddress, cfg.ProbeTimeout, cfg.ProbeCache),
		battery: NewBatteryProbe(cfg.BatteryPath, cfg.BatteryLowPercent),
	}
}

// NetworkAvailable implements queue.Conditions.
func (c *Conditions) NetworkAvailable(ctx context.Context) bool {
	return c.network.Available(ctx)
}

// BatteryNotLow implements queue.Conditions.
func (c *Conditions) BatteryNotLow(context.Context) bool {
	return c.battery.NotLow()
}

// Invalidate implements queue.Invalidator by dropping the cached network result.
func (c *Conditions) Invalidate() {
	c.network.Invalidate()
}

// Static reports fixed conditions. Used in tests and on headless
// deployments where neither probe makes sense.
type Static struct {
	Network bool
	Battery bool
}

// NetworkAvailable implements queue.Conditions.
func (s Static) NetworkAvailable(context.Context) bool { return s.Network }

// BatteryNotLow implements queue.Conditions.
func (s Static) BatteryNotLow(context.Context) bool { return s.Battery }

var (
	_ queue.Conditions  = (*Conditions)(nil)
	_ queue.Invalidator = (*Conditions)(nil)
	_ queue.Conditions  = Static{}
)
