// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/submission"
	"github.com/tomtom215/fieldsync/internal/survey"
)

const observationJSON = `{
	"area": "LAK",
	"beach": "Valtaki",
	"observer": "field-team-2",
	"observed_at": "2026-05-14T09:30:00Z",
	"latitude": 61.0549,
	"longitude": 28.1897,
	"ice_cover": false,
	"sightings": [
		{"species": "ringed seal", "count": 2},
		{"species": "common tern", "count": 14}
	]
}`

const nestSurveyJSON = `{
	"area": "LAK",
	"beach": "Valtaki",
	"surveyor": "field-team-2",
	"surveyed_at": "2026-06-02T07:15:00Z",
	"disturbed": false,
	"nests": [{"label": "N1", "eggs": 3, "chicks": 0, "predated": false}]
}`

// testEnv is a router over a real store and queue with a switchable remote.
type testEnv struct {
	router  http.Handler
	store   *store.Store
	queue   *queue.Queue
	outcome atomic.Value // remote.Outcome
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	q, err := queue.OpenForTesting(queue.Config{
		Path:             filepath.Join(t.TempDir(), "queue"),
		PollInterval:     time.Second,
		RunTimeout:       5 * time.Second,
		LeaseDuration:    time.Minute,
		MinBackoff:       10 * time.Second,
		MaxBackoff:       time.Hour,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 16 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("queue.OpenForTesting() error = %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	env := &testEnv{store: s, queue: q}
	env.outcome.Store(remote.Succeeded("srv-1"))

	submitter := remote.SubmitterFunc(func(context.Context, survey.Record) remote.Outcome {
		return env.outcome.Load().(remote.Outcome)
	})
	scheduler := submission.NewScheduler(q, 0, 0)
	svc := submission.NewService(s, submitter, scheduler, nil)
	reconciler := submission.NewReconciler(s, scheduler, 0)

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	env.router = NewRouter(NewHandler(svc, s, q, reconciler), NewChiMiddleware(cfg))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, resp
}

func receiptOf(t *testing.T, resp APIResponse) submission.Receipt {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	var r submission.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestSubmit_Delivered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", observationJSON)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	r := receiptOf(t, resp)
	if !r.Delivered || r.LocalID == 0 || r.RemoteID != "srv-1" {
		t.Errorf("receipt = %+v", r)
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("response meta lacks a request id")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestSubmit_QueuedWhenOffline(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.outcome.Store(remote.Unreachable(errors.New("connection refused")))

	rec, resp := env.do(t, http.MethodPost, "/api/v1/nest-surveys", nestSurveyJSON)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	r := receiptOf(t, resp)
	if !r.Queued || r.Kind != survey.KindNestSurvey {
		t.Errorf("receipt = %+v", r)
	}

	pending, err := env.queue.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].RecordID != r.LocalID {
		t.Errorf("pending = %+v, want one descriptor for %d", pending, r.LocalID)
	}
}

func TestSubmit_RemoteRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.outcome.Store(remote.Failed(&remote.HTTPError{StatusCode: 409, Body: []byte("duplicate")}))

	rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", observationJSON)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeRemoteRejected {
		t.Fatalf("error = %+v", resp.Error)
	}
	details, _ := resp.Error.Details.(map[string]interface{})
	if details["upstream_status"] != float64(409) {
		t.Errorf("details = %v, want upstream_status 409", details)
	}
}

func TestSubmit_ValidationFailed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := strings.Replace(observationJSON, `"area": "LAK"`, `"area": "lak"`, 1)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/observations", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", resp.Error)
	}

	counts, err := env.store.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[survey.KindObservation].Stored != 0 {
		t.Error("invalid record was stored")
	}
}

func TestSubmit_BadRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		ctype  string
		status int
	}{
		{"malformed json", `{"area": `, "application/json", http.StatusBadRequest},
		{"unknown field", `{"area": "LAK", "colour": "blue"}`, "application/json", http.StatusBadRequest},
		{"wrong content type", observationJSON, "text/plain", http.StatusUnsupportedMediaType},
		{"too large", `{"notes": "` + strings.Repeat("x", maxRecordBodyBytes) + `"}`, "application/json", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/observations", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ctype)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestGetRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/v1/observations", observationJSON)
	id := receiptOf(t, resp).LocalID

	rec, resp := env.do(t, http.MethodGet, "/api/v1/observations/"+strconv.FormatInt(id, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	raw, _ := json.Marshal(resp.Data)
	var view struct {
		Kind     survey.Kind        `json:"kind"`
		Record   survey.Observation `json:"record"`
		Delivery *store.Delivery    `json:"delivery"`
	}
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatal(err)
	}
	if view.Record.ID != id || view.Record.Beach != "Valtaki" || len(view.Record.Sightings) != 2 {
		t.Errorf("record = %+v", view.Record)
	}
	if view.Record.Sightings[0].ObservationID != id {
		t.Errorf("sighting parent = %d, want %d", view.Record.Sightings[0].ObservationID, id)
	}
	if view.Delivery == nil || view.Delivery.RemoteID != "srv-1" {
		t.Errorf("delivery = %+v", view.Delivery)
	}
}

func TestGetRecord_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/observations/42", http.StatusNotFound},
		{"/api/v1/nest-surveys/42", http.StatusNotFound},
		{"/api/v1/observations/abc", http.StatusBadRequest},
		{"/api/v1/observations/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec, _ := env.do(t, http.MethodGet, tt.path, "")
		if rec.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestQueueStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.outcome.Store(remote.Unreachable(errors.New("no route to host")))
	for range 3 {
		env.do(t, http.MethodPost, "/api/v1/observations", observationJSON)
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/queue?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	raw, _ := json.Marshal(resp.Data)
	var view QueueView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatal(err)
	}
	if view.Total != 3 || len(view.Pending) != 2 || view.Stats.Pending != 3 {
		t.Errorf("view = total %d, listed %d, stats %+v", view.Total, len(view.Pending), view.Stats)
	}

	if rec, _ := env.do(t, http.MethodGet, "/api/v1/queue?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// Saved but never queued, as after a crash between save and enqueue
	obs := &survey.Observation{Area: "LAK", Beach: "Valtaki", ObservedAt: time.Now().UTC()}
	id, err := env.store.Insert(ctx, obs)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/queue/reconcile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["scheduled"] != float64(1) {
		t.Errorf("data = %v, want scheduled 1", data)
	}
	if _, err := env.queue.Get(ctx, queue.DescriptorKey("observation", id)); err != nil {
		t.Errorf("descriptor not enqueued: %v", err)
	}
}

func TestReconcile_Disabled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	h := NewHandler(nil, env.store, env.queue, nil)
	router := NewRouter(h, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/reconcile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec, resp := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || !resp.Success {
			t.Errorf("GET %s = %d %s", path, rec.Code, rec.Body.String())
		}
	}

	_, resp := env.do(t, http.MethodGet, "/health", "")
	data, _ := resp.Data.(map[string]interface{})
	if data["status"] != "healthy" {
		t.Errorf("health = %v", data)
	}
}

func TestHealthReady_StoreClosed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_ = env.store.Close()

	rec, _ := env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	_, resp := env.do(t, http.MethodGet, "/health", "")
	data, _ := resp.Data.(map[string]interface{})
	if data["status"] != "degraded" {
		t.Errorf("health status = %v, want degraded", data["status"])
	}
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Error == nil {
		t.Errorf("unknown route = %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	env.router.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK || !strings.Contains(mrec.Body.String(), "fieldsync_") {
		t.Errorf("/metrics = %d", mrec.Code)
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/api/v1/queue", "")

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
