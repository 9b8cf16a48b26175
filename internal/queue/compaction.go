// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// Compactor periodically removes finished descriptors older than
// FinishedRetention and triggers BadgerDB garbage collection.
type Compactor struct {
	queue  *Queue
	config Config

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool

	// Stats
	lastRun      time.Time
	lastRemoved  int64
	totalRemoved int64
}

// NewCompactor creates a compaction manager for q.
func NewCompactor(q *Queue) *Compactor {
	return &Compactor{
		queue:  q,
		config: q.GetConfig(),
	}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().
		Dur("interval", c.config.CompactInterval).
		Dur("retention", c.config.FinishedRetention).
		Msg("Queue compactor started")
	return nil
}

// Stop gracefully stops the compaction loop.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Queue compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compact()
		}
	}
}

// RunNow performs a compaction synchronously and returns how many finished
// descriptors were removed.
func (c *Compactor) RunNow() int64 {
	return c.compact()
}

func (c *Compactor) compact() int64 {
	start := time.Now()
	cutoff := c.queue.now().Add(-c.config.FinishedRetention)

	removed, err := c.queue.deleteFinishedBefore(cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Queue compaction failed to delete finished descriptors")
	}

	if err := c.queue.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Queue compaction GC error")
	}

	// Refreshes the pending and size gauges
	if _, err := c.queue.Stats(context.Background()); err != nil {
		logging.Debug().Err(err).Msg("Queue compaction could not refresh stats")
	}

	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastRemoved = removed
	c.totalRemoved += removed
	c.mu.Unlock()

	RecordCompaction(removed)

	if removed > 0 {
		logging.Info().
			Int64("removed", removed).
			Dur("duration", time.Since(start)).
			Msg("Queue compaction removed finished descriptors")
	}
	return removed
}

// CompactionStats contains compaction statistics.
type CompactionStats struct {
	LastRun      time.Time
	LastRemoved  int64
	TotalRemoved int64
}

// GetStats returns compaction statistics.
func (c *Compactor) GetStats() CompactionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompactionStats{
		LastRun:      c.lastRun,
		LastRemoved:  c.lastRemoved,
		TotalRemoved: c.totalRemoved,
	}
}
