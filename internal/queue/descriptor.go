// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package queue

import (
	"math"
	"strconv"
	"time"
)

// Constraints gate when a descriptor may run.
type Constraints struct {
	RequiresNetwork       bool `json:"requires_network"`
	RequiresBatteryNotLow bool `json:"requires_battery_not_low"`
}

// BackoffPolicy selects how the delay grows between attempts.
type BackoffPolicy string

const (
	BackoffLinear      BackoffPolicy = "linear"
	BackoffExponential BackoffPolicy = "exponential"
)

// Backoff describes the retry delay of one descriptor.
type Backoff struct {
	Policy      BackoffPolicy `json:"policy"`
	MinInterval time.Duration `json:"min_interval"`
	MaxInterval time.Duration `json:"max_interval"`
}

// Delay returns the wait before the next run after the given number of
// failed attempts. The result is never below MinInterval and, when
// MaxInterval is set, never above it.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	var f float64
	switch b.Policy {
	case BackoffExponential:
		f = float64(b.MinInterval) * math.Pow(2, float64(attempts-1))
	default:
		f = float64(b.MinInterval) * float64(attempts)
	}

	if f >= math.MaxInt64 {
		if b.MaxInterval > 0 {
			return b.MaxInterval
		}
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(f)
	if d < b.MinInterval {
		d = b.MinInterval
	}
	if b.MaxInterval > 0 && d > b.MaxInterval {
		d = b.MaxInterval
	}
	return d
}

// Request asks for a descriptor to be enqueued.
type Request struct {
	Tag         string
	RecordID    int64
	Constraints Constraints
	Backoff     Backoff
}

// Key returns the descriptor key the request maps to.
func (r Request) Key() string {
	return DescriptorKey(r.Tag, r.RecordID)
}

// DescriptorKey builds the de-duplication key `<tag>:<recordID>`.
func DescriptorKey(tag string, recordID int64) string {
	return tag + ":" + strconv.FormatInt(recordID, 10)
}

// Outcome names how a finished descriptor ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeExhausted Outcome = "exhausted"
)

// Descriptor is the durable scheduling metadata for one deferred retry.
// It holds the record's identifier, never the record itself.
type Descriptor struct {
	Key           string      `json:"key"`
	Tag           string      `json:"tag"`
	RecordID      int64       `json:"record_id"`
	Constraints   Constraints `json:"constraints"`
	Backoff       Backoff     `json:"backoff"`
	Attempts      int         `json:"attempts"`
	NextRunAt     time.Time   `json:"next_run_at"`
	CreatedAt     time.Time   `json:"created_at"`
	LastAttemptAt time.Time   `json:"last_attempt_at,omitempty"`
	LastError     string      `json:"last_error,omitempty"`

	// Durable lease
	LeaseExpiry time.Time `json:"lease_expiry,omitempty"`
	LeaseHolder string    `json:"lease_holder,omitempty"`

	// Set once the descriptor leaves the pending set
	Outcome    Outcome   `json:"outcome,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Leased reports whether a live lease is held at now.
func (d *Descriptor) Leased(now time.Time) bool {
	return d.LeaseHolder != "" && now.Before(d.LeaseExpiry)
}

// Due reports whether the descriptor may be picked up at now.
func (d *Descriptor) Due(now time.Time) bool {
	return !d.NextRunAt.After(now) && !d.Leased(now)
}

// Result is what a worker reports after one execution.
type Result int

const (
	// ResultSuccess removes the descriptor.
	ResultSuccess Result = iota
	// ResultRetryLater reschedules with backoff.
	ResultRetryLater
	// ResultFailure removes the descriptor without further runs.
	ResultFailure
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRetryLater:
		return "retry_later"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}
