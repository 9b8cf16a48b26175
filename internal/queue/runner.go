// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// Worker executes descriptors of one tag. The returned error, if any, is
// kept as the descriptor's LastError.
type Worker interface {
	Run(ctx context.Context, d *Descriptor) (Result, error)
}

// WorkerFunc is a function type that implements Worker.
type WorkerFunc func(ctx context.Context, d *Descriptor) (Result, error)

// Run implements Worker.
func (f WorkerFunc) Run(ctx context.Context, d *Descriptor) (Result, error) {
	return f(ctx, d)
}

// Conditions reports the device state that descriptor constraints gate on.
type Conditions interface {
	NetworkAvailable(ctx context.Context) bool
	BatteryNotLow(ctx context.Context) bool
}

// Invalidator is implemented by Conditions that cache their answers. The
// runner invalidates after a run asks for a retry so the next constraint
// check looks at the device again.
type Invalidator interface {
	Invalidate()
}

// Constraint names used in logs and metrics
const (
	ConstraintNetwork = "network"
	ConstraintBattery = "battery"
)

// RunSummary counts what one pass over the due descriptors did.
type RunSummary struct {
	Succeeded   int
	Failed      int
	Rescheduled int
	Exhausted   int
	Deferred    int
	Skipped     int
	Interrupted int
}

// Total is the number of descriptors looked at.
func (s RunSummary) Total() int {
	return s.Succeeded + s.Failed + s.Rescheduled + s.Exhausted + s.Deferred + s.Skipped + s.Interrupted
}

type runOutcome int

const (
	runSucceeded runOutcome = iota
	runFailed
	runRescheduled
	runExhausted
	runDeferred
	runSkipped
	runInterrupted
)

func (s *RunSummary) add(o runOutcome) {
	switch o {
	case runSucceeded:
		s.Succeeded++
	case runFailed:
		s.Failed++
	case runRescheduled:
		s.Rescheduled++
	case runExhausted:
		s.Exhausted++
	case runDeferred:
		s.Deferred++
	case runSkipped:
		s.Skipped++
	case runInterrupted:
		s.Interrupted++
	}
}

// Runner executes due descriptors with a bounded pool of workers.
// It polls every PollInterval and wakes early whenever a descriptor is
// enqueued.
type Runner struct {
	queue       *Queue
	conditions  Conditions
	config      Config
	leaseHolder string

	workersMu sync.RWMutex
	workers   map[string]Worker

	// Control
	ctx    context.Context
	cancel context.CancelFunc

	// State - all protected by mu
	mu       sync.Mutex
	running  bool
	stopping bool          // true while Stop() is waiting for goroutine
	stopDone chan struct{} // closed when Stop() completes
}

// NewRunner creates a runner over q. A nil conditions treats every
// constraint as satisfied.
func NewRunner(q *Queue, conditions Conditions) *Runner {
	return &Runner{
		queue:       q,
		conditions:  conditions,
		config:      q.GetConfig(),
		leaseHolder: fmt.Sprintf("runner-%s", uuid.New().String()[:8]),
		workers:     make(map[string]Worker),
	}
}

// Register binds a worker to a tag, replacing any previous one.
func (r *Runner) Register(tag string, w Worker) {
	r.workersMu.Lock()
	defer r.workersMu.Unlock()
	r.workers[tag] = w
}

func (r *Runner) worker(tag string) Worker {
	r.workersMu.RLock()
	defer r.workersMu.RUnlock()
	return r.workers[tag]
}

// Start begins the background loop. It runs until Stop is called or ctx
// is canceled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()

	// Wait for any in-progress Stop() to complete
	for r.stopping {
		stopDone := r.stopDone
		r.mu.Unlock()
		<-stopDone
		r.mu.Lock()
	}

	if r.running {
		r.mu.Unlock()
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.stopDone = make(chan struct{})

	// Capture context and done channel to avoid races
	loopCtx := r.ctx
	done := r.stopDone

	r.mu.Unlock()

	go r.runWithContext(loopCtx, done)

	logging.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int("workers", r.config.Workers).
		Str("lease_holder", r.leaseHolder).
		Msg("Retry runner started")
	return nil
}

// Stop cancels in-flight runs and waits for the loop to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}

	r.cancel()
	r.running = false
	r.stopping = true
	stopDone := r.stopDone
	r.mu.Unlock()

	<-stopDone

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()

	logging.Info().Msg("Retry runner stopped")
}

// IsRunning returns whether the loop is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) runWithContext(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Descriptors left over from a previous process are due right away
	r.RunDue(ctx)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.queue.Wake():
		}
		r.RunDue(ctx)
	}
}

// RunDue executes every descriptor that is due now and waits for all of
// them to finish.
func (r *Runner) RunDue(ctx context.Context) RunSummary {
	var summary RunSummary

	due, err := r.queue.Due(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Retry runner: failed to list due descriptors")
		}
		return summary
	}
	if len(due) == 0 {
		return summary
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.config.Workers)

	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := r.process(ctx, d)
			mu.Lock()
			summary.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if summary.Total() > summary.Skipped {
		logging.Info().
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("rescheduled", summary.Rescheduled).
			Int("exhausted", summary.Exhausted).
			Int("deferred", summary.Deferred).
			Int("interrupted", summary.Interrupted).
			Msg("Retry runner pass complete")
	}
	return summary
}

// process runs a single descriptor under a durable lease.
func (r *Runner) process(ctx context.Context, d *Descriptor) runOutcome {
	claimed, err := r.queue.TryClaim(ctx, d.Key, r.leaseHolder)
	if err != nil {
		if !errors.Is(err, ErrDescriptorNotFound) && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Str("key", d.Key).Msg("Retry runner: error claiming descriptor")
		}
		return runSkipped
	}
	if !claimed {
		return runSkipped
	}

	// Bookkeeping must land even when shutdown cancels ctx mid-run
	opCtx := context.WithoutCancel(ctx)

	w := r.worker(d.Tag)
	if w == nil {
		logging.Error().Str("key", d.Key).Str("tag", d.Tag).Msg("Retry runner: no worker registered for tag")
		r.finish(opCtx, d, OutcomeFailed, "no worker registered for tag "+d.Tag)
		return runFailed
	}

	if constraint := r.unmetConstraint(ctx, d); constraint != "" {
		until := r.queue.now().Add(r.config.PollInterval)
		if err := r.queue.Defer(opCtx, d.Key, r.leaseHolder, until); err != nil {
			logging.Error().Err(err).Str("key", d.Key).Msg("Retry runner: failed to defer descriptor")
		}
		RecordDeferral(d.Tag, constraint)
		logging.Debug().Str("key", d.Key).Str("constraint", constraint).Msg("Retry runner: constraint unmet, deferred")
		return runDeferred
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.RunTimeout)
	runCtx = logging.ContextWithNewCorrelationID(runCtx)
	start := time.Now()
	result, runErr := w.Run(runCtx, d)
	cancel()
	RecordRun(d.Tag, result, time.Since(start).Seconds())

	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}

	// Shutdown interrupted the run. Only a retry request is read as the
	// cancellation itself; success and failure are verdicts and are kept.
	if ctx.Err() != nil && result == ResultRetryLater {
		if err := r.queue.Release(opCtx, d.Key); err != nil {
			logging.Warn().Err(err).Str("key", d.Key).Msg("Retry runner: error releasing lease")
		}
		return runInterrupted
	}

	switch result {
	case ResultSuccess:
		r.finish(opCtx, d, OutcomeSucceeded, "")
		return runSucceeded

	case ResultRetryLater:
		if inv, ok := r.conditions.(Invalidator); ok {
			inv.Invalidate()
		}
		if r.config.MaxAttempts > 0 && d.Attempts+1 >= r.config.MaxAttempts {
			logging.Warn().
				Str("key", d.Key).
				Int("attempts", d.Attempts+1).
				Int("max_attempts", r.config.MaxAttempts).
				Msg("Retry runner: descriptor exhausted its attempts")
			r.finish(opCtx, d, OutcomeExhausted, lastError)
			return runExhausted
		}
		next, err := r.queue.Reschedule(opCtx, d.Key, r.leaseHolder, lastError)
		if err != nil {
			logging.Error().Err(err).Str("key", d.Key).Msg("Retry runner: failed to reschedule descriptor")
			return runRescheduled
		}
		logging.Info().
			Str("key", d.Key).
			Int("attempts", next.Attempts).
			Time("next_run_at", next.NextRunAt).
			Str("last_error", lastError).
			Msg("Retry runner: descriptor rescheduled")
		return runRescheduled

	default:
		r.finish(opCtx, d, OutcomeFailed, lastError)
		return runFailed
	}
}

func (r *Runner) finish(ctx context.Context, d *Descriptor, outcome Outcome, lastError string) {
	if err := r.queue.Finish(ctx, d.Key, r.leaseHolder, outcome, lastError); err != nil {
		// The lease expires on its own and the descriptor runs again
		logging.Error().Err(err).Str("key", d.Key).Msg("Retry runner: failed to finish descriptor")
	}
}

// unmetConstraint returns the first constraint d requires that does not
// hold right now, or "".
func (r *Runner) unmetConstraint(ctx context.Context, d *Descriptor) string {
	if r.conditions == nil {
		return ""
	}
	if d.Constraints.RequiresNetwork && !r.conditions.NetworkAvailable(ctx) {
		return ConstraintNetwork
	}
	if d.Constraints.RequiresBatteryNotLow && !r.conditions.BatteryNotLow(ctx) {
		return ConstraintBattery
	}
	return ""
}
