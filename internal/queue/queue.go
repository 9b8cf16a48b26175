// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// Key prefixes for BadgerDB storage
const (
	prefixPending  = "pending:"
	prefixFinished = "finished:"
)

// Common errors
var (
	ErrQueueClosed        = errors.New("queue is closed")
	ErrEmptyKey           = errors.New("descriptor key cannot be empty")
	ErrEmptyTag           = errors.New("descriptor tag cannot be empty")
	ErrInvalidRecordID    = errors.New("record id must be positive")
	ErrDescriptorNotFound = errors.New("descriptor not found")
	ErrLeaseNotHeld       = errors.New("lease not held by caller")
)

// Queue is the durable retry descriptor queue backed by BadgerDB.
// A descriptor lives under pending:<key> until a worker finishes it, then
// under finished:<key> until compaction removes it.
type Queue struct {
	db     *badger.DB
	config Config
	now    func() time.Time

	// wake is signaled on every successful enqueue
	wake chan struct{}

	// Counters for stats
	enqueuedCount  atomic.Int64
	finishedCount  atomic.Int64
	duplicateCount atomic.Int64

	// State
	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the queue at cfg.Path.
func Open(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	return open(cfg)
}

// OpenForTesting opens a queue without validating intervals, so tests can use
// millisecond polls and backoffs. Do not use in production.
func OpenForTesting(cfg Config) (*Queue, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return open(cfg)
}

func open(cfg Config) (*Queue, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	} else {
		opts.Compression = options.None
	}

	// Badger's own logger is far too chatty for a queue of this size
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	q := &Queue{
		db:     db,
		config: cfg,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Int("workers", cfg.Workers).
		Dur("min_backoff", cfg.MinBackoff).
		Msg("Retry queue opened")

	return q, nil
}

// GetConfig returns the queue configuration.
func (q *Queue) GetConfig() Config {
	return q.config
}

// Wake returns a channel signaled after every new descriptor.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) checkOpen() error {
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Enqueue stores a new pending descriptor for req. It returns false without
// touching anything when a pending descriptor with the same key already
// exists, so a record can never have two runs in flight. A finished
// descriptor with the same key is replaced.
func (q *Queue) Enqueue(ctx context.Context, req Request) (bool, error) {
	if req.Tag == "" {
		return false, ErrEmptyTag
	}
	if req.RecordID <= 0 {
		return false, ErrInvalidRecordID
	}
	if strings.Contains(req.Tag, ":") {
		return false, fmt.Errorf("descriptor tag %q must not contain ':'", req.Tag)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return false, err
	}

	if req.Backoff.Policy == "" {
		req.Backoff.Policy = BackoffLinear
	}
	if req.Backoff.MinInterval <= 0 {
		req.Backoff.MinInterval = q.config.MinBackoff
	}
	if req.Backoff.MaxInterval <= 0 {
		req.Backoff.MaxInterval = q.config.MaxBackoff
	}

	key := req.Key()
	now := q.now()
	created := false

	err := q.txn(func(txn *badger.Txn) error {
		created = false
		_, err := txn.Get([]byte(prefixPending + key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing descriptor: %w", err)
		}

		d := &Descriptor{
			Key:         key,
			Tag:         req.Tag,
			RecordID:    req.RecordID,
			Constraints: req.Constraints,
			Backoff:     req.Backoff,
			NextRunAt:   now,
			CreatedAt:   now,
		}
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal descriptor: %w", err)
		}
		if err := txn.Delete([]byte(prefixFinished + key)); err != nil {
			return fmt.Errorf("delete finished descriptor: %w", err)
		}
		if err := txn.Set([]byte(prefixPending+key), data); err != nil {
			return fmt.Errorf("store descriptor: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		RecordEnqueueFailure(req.Tag)
		return false, err
	}

	if !created {
		q.duplicateCount.Add(1)
		RecordEnqueue(req.Tag, false)
		logging.Debug().Str("key", key).Msg("Descriptor already pending, enqueue ignored")
		return false, nil
	}

	q.enqueuedCount.Add(1)
	RecordEnqueue(req.Tag, true)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	logging.Debug().Str("key", key).Msg("Descriptor enqueued")
	return true, nil
}

// Get returns the pending descriptor with the given key.
func (q *Queue) Get(ctx context.Context, key string) (*Descriptor, error) {
	return q.get(ctx, prefixPending, key)
}

// GetFinished returns the finished descriptor with the given key.
func (q *Queue) GetFinished(ctx context.Context, key string) (*Descriptor, error) {
	return q.get(ctx, prefixFinished, key)
}

func (q *Queue) get(ctx context.Context, prefix, key string) (*Descriptor, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}

	var d Descriptor
	err := q.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrDescriptorNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns every pending descriptor ordered by NextRunAt.
func (q *Queue) List(ctx context.Context) ([]*Descriptor, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	return q.scan(ctx, prefixPending)
}

// ListFinished returns finished descriptors not yet compacted.
func (q *Queue) ListFinished(ctx context.Context) ([]*Descriptor, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	return q.scan(ctx, prefixFinished)
}

// Due returns pending descriptors that are ready to run at now and not
// leased, oldest NextRunAt first.
func (q *Queue) Due(ctx context.Context) ([]*Descriptor, error) {
	all, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	now := q.now()
	due := all[:0]
	for _, d := range all {
		if d.Due(now) {
			due = append(due, d)
		}
	}
	return due, nil
}

// scan must be called with q.mu held.
func (q *Queue) scan(ctx context.Context, prefix string) ([]*Descriptor, error) {
	var out []*Descriptor

	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var d Descriptor
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping malformed descriptor")
				continue
			}
			out = append(out, &d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *Descriptor) int {
		if c := a.NextRunAt.Compare(b.NextRunAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

// TryClaim takes the durable lease on a pending descriptor. It returns
// false when another holder has a live lease. A holder that already owns
// the lease extends it. The lease survives crashes and simply expires
// after LeaseDuration.
func (q *Queue) TryClaim(ctx context.Context, key, holder string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return false, err
	}

	now := q.now()
	claimed := false
	err := q.update(key, func(d *Descriptor) (bool, error) {
		claimed = false
		if d.Leased(now) && d.LeaseHolder != holder {
			return false, nil
		}
		d.LeaseHolder = holder
		d.LeaseExpiry = now.Add(q.config.LeaseDuration)
		claimed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// Release clears the lease without touching anything else. A descriptor
// that no longer exists is not an error.
func (q *Queue) Release(ctx context.Context, key string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	err := q.update(key, func(d *Descriptor) (bool, error) {
		d.LeaseHolder = ""
		d.LeaseExpiry = time.Time{}
		return true, nil
	})
	if errors.Is(err, ErrDescriptorNotFound) {
		return nil
	}
	return err
}

// Reschedule records a failed attempt and pushes NextRunAt out by the
// descriptor's backoff. The caller must hold the lease.
func (q *Queue) Reschedule(ctx context.Context, key, holder, lastError string) (*Descriptor, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}

	now := q.now()
	var out Descriptor
	err := q.update(key, func(d *Descriptor) (bool, error) {
		if d.LeaseHolder != holder {
			return false, ErrLeaseNotHeld
		}
		d.Attempts++
		d.LastAttemptAt = now
		d.LastError = lastError
		d.NextRunAt = now.Add(d.Backoff.Delay(d.Attempts))
		d.LeaseHolder = ""
		d.LeaseExpiry = time.Time{}
		out = *d
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Defer postpones a descriptor whose constraints are not met. No attempt is
// consumed. The caller must hold the lease.
func (q *Queue) Defer(ctx context.Context, key, holder string, until time.Time) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	return q.update(key, func(d *Descriptor) (bool, error) {
		if d.LeaseHolder != holder {
			return false, ErrLeaseNotHeld
		}
		d.NextRunAt = until
		d.LeaseHolder = ""
		d.LeaseExpiry = time.Time{}
		return true, nil
	})
}

// Finish moves a pending descriptor to the finished set. The caller must
// hold the lease.
func (q *Queue) Finish(ctx context.Context, key, holder string, outcome Outcome, lastError string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	now := q.now()
	var tag string
	err := q.txn(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPending + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrDescriptorNotFound
			}
			return err
		}

		var d Descriptor
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		}); err != nil {
			return fmt.Errorf("unmarshal descriptor: %w", err)
		}
		if d.LeaseHolder != holder {
			return ErrLeaseNotHeld
		}

		d.Outcome = outcome
		d.FinishedAt = now
		d.LastAttemptAt = now
		if lastError != "" {
			d.LastError = lastError
		}
		d.LeaseHolder = ""
		d.LeaseExpiry = time.Time{}
		tag = d.Tag

		data, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("marshal descriptor: %w", err)
		}
		if err := txn.Delete([]byte(prefixPending + key)); err != nil {
			return err
		}
		return txn.Set([]byte(prefixFinished+key), data)
	})
	if err != nil {
		return err
	}

	q.finishedCount.Add(1)
	RecordFinish(tag, outcome)
	return nil
}

// maxConflictRetries bounds how often a transaction is retried after
// losing an optimistic concurrency race.
const maxConflictRetries = 5

// txn runs fn in a read-write transaction, retrying on badger.ErrConflict.
func (q *Queue) txn(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = q.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// update applies fn to the pending descriptor in one transaction. fn returns
// false to skip the write. Must be called with q.mu held.
func (q *Queue) update(key string, fn func(d *Descriptor) (bool, error)) error {
	return q.txn(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPending + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrDescriptorNotFound
			}
			return err
		}

		var d Descriptor
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		}); err != nil {
			return fmt.Errorf("unmarshal descriptor: %w", err)
		}

		write, err := fn(&d)
		if err != nil || !write {
			return err
		}

		data, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("marshal descriptor: %w", err)
		}
		return txn.Set([]byte(prefixPending+key), data)
	})
}

// deleteFinishedBefore removes finished descriptors older than cutoff.
func (q *Queue) deleteFinishedBefore(cutoff time.Time) (int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return 0, err
	}

	var keys [][]byte
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFinished)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var d Descriptor
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				// Malformed finished entries have no value to anyone
				keys = append(keys, item.KeyCopy(nil))
				continue
			}
			if d.FinishedAt.Before(cutoff) {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := q.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete finished descriptor: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return int64(len(keys)), nil
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	Pending       int64     `json:"pending"`
	Leased        int64     `json:"leased"`
	Overdue       int64     `json:"overdue"`
	Finished      int64     `json:"finished"`
	Enqueued      int64     `json:"enqueued_since_start"`
	Duplicates    int64     `json:"duplicates_since_start"`
	Completed     int64     `json:"finished_since_start"`
	OldestPending time.Time `json:"oldest_pending,omitempty"`
	DBSizeBytes   int64     `json:"db_size_bytes"`
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pending, err := q.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	finished, err := q.ListFinished(ctx)
	if err != nil {
		return Stats{}, err
	}

	now := q.now()
	stats := Stats{
		Pending:    int64(len(pending)),
		Finished:   int64(len(finished)),
		Enqueued:   q.enqueuedCount.Load(),
		Duplicates: q.duplicateCount.Load(),
		Completed:  q.finishedCount.Load(),
	}
	for _, d := range pending {
		if d.Leased(now) {
			stats.Leased++
		} else if !d.NextRunAt.After(now) {
			stats.Overdue++
		}
		if stats.OldestPending.IsZero() || d.CreatedAt.Before(stats.OldestPending) {
			stats.OldestPending = d.CreatedAt
		}
	}

	q.mu.RLock()
	if !q.closed {
		lsm, vlog := q.db.Size()
		stats.DBSizeBytes = lsm + vlog
	}
	q.mu.RUnlock()

	UpdatePendingDescriptors(stats.Pending)
	UpdateDBSize(stats.DBSizeBytes)
	return stats, nil
}

// RunGC runs BadgerDB value log garbage collection until nothing is left
// to rewrite.
func (q *Queue) RunGC() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	for {
		err := q.db.RunValueLogGC(q.config.GCRatio)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return err
		}
	}
}

// Close closes the queue. It waits at most CloseTimeout for Badger to flush.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if q.config.CloseTimeout <= 0 {
		return q.db.Close()
	}

	done := make(chan error, 1)
	go func() {
		done <- q.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close badger db: %w", err)
		}
		logging.Info().Msg("Retry queue closed")
		return nil
	case <-time.After(q.config.CloseTimeout):
		return fmt.Errorf("close badger db: timed out after %v", q.config.CloseTimeout)
	}
}
