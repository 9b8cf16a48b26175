// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package queue is the durable background work queue that runs deferred
submission retries.

A Descriptor carries only scheduling metadata: the tag of the record class,
the record's local id, the constraints gating execution, and the backoff
policy. The record itself stays in the record store.

# Storage

Descriptors live in BadgerDB:

	pending:<tag>:<id>   waiting or running
	finished:<tag>:<id>  terminal, kept for FinishedRetention

Enqueue is idempotent per key: while a descriptor is pending, enqueueing the
same tag and id again is a no-op. Together with the durable lease this means a
record is never submitted twice concurrently.

# Execution

	q, _ := queue.Open(cfg)
	_, _ = q.Recover(ctx)

	runner := queue.NewRunner(q, conditions)
	runner.Register("observation", worker)
	_ = runner.Start(ctx)
	defer runner.Stop()

For each due descriptor the runner claims the lease, checks constraints
(deferring without spending an attempt when unmet), runs the worker with
RunTimeout, and then finishes or reschedules it:

	ResultSuccess    -> finished:succeeded
	ResultFailure    -> finished:failed
	ResultRetryLater -> attempts+1, NextRunAt = now + Backoff.Delay(attempts)

With linear backoff the delay is MinInterval*attempts, clamped to
[MinInterval, MaxInterval]. MaxAttempts > 0 finishes a descriptor as
exhausted instead of rescheduling it forever.

# Maintenance

Recover clears leases left by a previous process. Compactor removes old
finished descriptors and runs value log GC.
*/
package queue
