// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package submission

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/survey"
)

var (
	errConnRefused = errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	errRejected    = &remote.HTTPError{StatusCode: 422, Body: []byte(`{"error":"unknown beach"}`)}
)

// fakeSubmitter returns scripted outcomes in order, then the last one
// forever. onSend, when set, runs before each send.
type fakeSubmitter struct {
	mu       sync.Mutex
	outcomes []remote.Outcome
	sent     []survey.Record
	onSend   func(ctx context.Context, rec survey.Record)
}

func submitterReturning(outcomes ...remote.Outcome) *fakeSubmitter {
	return &fakeSubmitter{outcomes: outcomes}
}

func (f *fakeSubmitter) Send(ctx context.Context, rec survey.Record) remote.Outcome {
	if f.onSend != nil {
		f.onSend(ctx, rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, rec)
	if len(f.outcomes) == 0 {
		return remote.Succeeded("srv-default")
	}
	o := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return o
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeScheduler records ScheduleRetry calls.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (f *fakeScheduler) ScheduleRetry(_ context.Context, _ survey.Kind, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, id)
	return nil
}

func (f *fakeScheduler) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

// fakePhotos fails every upload with err when set.
type fakePhotos struct {
	mu       sync.Mutex
	err      error
	uploaded []survey.Photo
}

func (f *fakePhotos) UploadPhoto(_ context.Context, _ survey.Kind, _ string, p survey.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.uploaded = append(f.uploaded, p)
	return nil
}

// faultyStore wraps a real store and injects errors.
type faultyStore struct {
	*store.Store
	insertErr error
	loadErr   error
}

func (f *faultyStore) Insert(ctx context.Context, rec survey.Record) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	return f.Store.Insert(ctx, rec)
}

func (f *faultyStore) Load(ctx context.Context, kind survey.Kind, id int64) (survey.Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx, kind, id)
}

// fakeRegistry records registrations.
type fakeRegistry struct {
	workers map[string]queue.Worker
}

func (f *fakeRegistry) Register(tag string, w queue.Worker) {
	if f.workers == nil {
		f.workers = make(map[string]queue.Worker)
	}
	f.workers[tag] = w
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.OpenForTesting(queue.Config{
		Path:              filepath.Join(t.TempDir(), "queue"),
		Workers:           2,
		PollInterval:      10 * time.Millisecond,
		RunTimeout:        5 * time.Second,
		LeaseDuration:     30 * time.Second,
		MinBackoff:        time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		FinishedRetention: time.Hour,
		CompactInterval:   time.Minute,
		MemTableSize:      16 * 1024 * 1024,
		ValueLogFileSize:  16 * 1024 * 1024,
		NumCompactors:     2,
	})
	if err != nil {
		t.Fatalf("queue.OpenForTesting() error = %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func testObservation() *survey.Observation {
	lat, lon, temp := 61.0549, 28.1897, 11.5
	return &survey.Observation{
		Area:             "LAK",
		Beach:            "Valtaki",
		Observer:         "field-team-2",
		ObservedAt:       time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC),
		Latitude:         &lat,
		Longitude:        &lon,
		WaterTemperature: &temp,
		Notes:            "calm, light fog",
		Sightings: []survey.Sighting{
			{Species: "ringed seal", Count: 2, Behaviour: "hauled out", PhotoPath: "/photos/seal.jpg"},
			{Species: "grey heron", Count: 1},
			{Species: "common tern", Count: 14, PhotoPath: "/photos/terns.jpg"},
		},
	}
}

func testNestSurvey() *survey.NestSurvey {
	return &survey.NestSurvey{
		Area:       "LAK",
		Beach:      "Valtaki",
		Surveyor:   "field-team-2",
		SurveyedAt: time.Date(2026, 6, 2, 7, 15, 0, 0, time.UTC),
		Nests: []survey.Nest{
			{Label: "N1", Eggs: 3},
			{Label: "N2", Eggs: 1, Chicks: 2, PhotoPath: "/photos/n2.jpg"},
		},
	}
}
