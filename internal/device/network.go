// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package device

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NetworkProbe reports whether the remote host accepts TCP connections.
// Results are cached for a short while so a queue pass over many
// descriptors dials once.
type NetworkProbe struct {
	address  string
	timeout  time.Duration
	cacheFor time.Duration
	dial     DialFunc
	now      func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	available bool
	known     bool
}

// NewNetworkProbe creates a probe for address (host:port).
func NewNetworkProbe(address string, timeout, cacheFor time.Duration) *NetworkProbe {
	d := &net.Dialer{}
	return &NetworkProbe{
		address:  address,
		timeout:  timeout,
		cacheFor: cacheFor,
		dial:     d.DialContext,
		now:      time.Now,
	}
}

// Available dials the remote host unless a recent result is cached.
// An empty address is treated as always reachable.
func (p *NetworkProbe) Available(ctx context.Context) bool {
	if p.address == "" {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.known && now.Sub(p.checkedAt) < p.cacheFor {
		return p.available
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	conn, err := p.dial(dialCtx, "tcp", p.address)
	cancel()

	available := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	if !p.known || available != p.available {
		ev := logging.Info()
		if !available {
			ev = logging.Warn().Err(err)
		}
		ev.Str("address", p.address).Bool("available", available).Msg("Network availability changed")
	}

	p.available = available
	p.known = true
	p.checkedAt = now
	return available
}

// Invalidate drops the cached result.
func (p *NetworkProbe) Invalidate() {
	p.mu.Lock()
	p.known = false
	p.mu.Unlock()
}
