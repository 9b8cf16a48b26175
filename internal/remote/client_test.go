// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/session"
	"github.com/tomtom215/fieldsync/internal/survey"
)

func testRecord() *survey.Observation {
	return &survey.Observation{
		ID:         7,
		Area:       "LAK",
		Beach:      "Valtaki",
		ObservedAt: time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC),
		Sightings:  []survey.Sighting{{Species: "ringed seal", Count: 2}},
	}
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		InstallID:      "dev-1",
		RetryBaseDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, session.NewStaticProvider("device-token"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "https://x"}, nil); err == nil {
		t.Error("NewClient() without provider should fail")
	}
	if _, err := NewClient(Config{BaseURL: "ftp://x"}, session.NewStaticProvider("t")); err == nil {
		t.Error("NewClient() with ftp URL should fail")
	}
}

func TestSend_Success(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	var gotBody survey.Observation

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get(IdempotencyHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"srv-123"}`))
	}))
	defer srv.Close()

	outcome := newTestClient(t, srv.URL, nil).Send(context.Background(), testRecord())

	if !outcome.OK() {
		t.Fatalf("Send() = %v (%v), want success", outcome, outcome.Cause)
	}
	if outcome.RemoteID != "srv-123" {
		t.Errorf("RemoteID = %q", outcome.RemoteID)
	}
	if gotPath != "/api/v1/observations" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer device-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotKey != "observation-7-dev-1" {
		t.Errorf("Idempotency-Key = %q", gotKey)
	}
	if gotBody.Area != "LAK" || gotBody.Beach != "Valtaki" || len(gotBody.Sightings) != 1 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestSend_HTTPErrorIsOtherFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown area"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	outcome := newTestClient(t, srv.URL, nil).Send(context.Background(), testRecord())
	if !outcome.Terminal() {
		t.Fatalf("Send() = %v, want other failure", outcome)
	}
	var httpErr *HTTPError
	if !errors.As(outcome.Cause, &httpErr) || httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Cause = %v, want *HTTPError 422", outcome.Cause)
	}
	if !strings.Contains(string(httpErr.Body), "unknown area") {
		t.Errorf("Body = %q", httpErr.Body)
	}
}

func TestSend_UnreachableIsConnectivityFailure(t *testing.T) {
	// Grab a free port, then close the listener so nothing accepts on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	outcome := newTestClient(t, "http://"+addr, nil).Send(context.Background(), testRecord())
	if !outcome.Retryable() {
		t.Fatalf("Send() = %v (%v), want connectivity failure", outcome, outcome.Cause)
	}
}

func TestSend_TimeoutIsConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	outcome := c.Send(context.Background(), testRecord())
	if !outcome.Retryable() {
		t.Fatalf("Send() = %v (%v), want connectivity failure", outcome, outcome.Cause)
	}
}

func TestSend_SessionErrorIsOtherFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, session.NewStaticProvider(""))
	if err != nil {
		t.Fatal(err)
	}
	outcome := c.Send(context.Background(), testRecord())
	if !outcome.Terminal() || !errors.Is(outcome.Cause, session.ErrNoSession) {
		t.Fatalf("Send() = %v (%v), want other failure wrapping ErrNoSession", outcome, outcome.Cause)
	}
	if hits.Load() != 0 {
		t.Error("server should not be contacted without a session")
	}
}

func TestSend_RetriesThrottled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.MaxThrottleRetries = 3 })
	outcome := c.Send(context.Background(), testRecord())
	if !outcome.OK() {
		t.Fatalf("Send() = %v (%v), want success after throttling", outcome, outcome.Cause)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestSend_BreakerOpensOnConnectivityOnly(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := newTestClient(t, "http://"+addr, func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		if o := c.Send(context.Background(), testRecord()); !o.Retryable() {
			t.Fatalf("attempt %d = %v", i, o)
		}
	}
	o := c.Send(context.Background(), testRecord())
	if !o.Retryable() || !strings.Contains(o.Cause.Error(), "circuit breaker is open") {
		t.Errorf("after trip Send() = %v (%v), want open breaker", o, o.Cause)
	}

	// HTTP errors from a reachable server never trip it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c2 := newTestClient(t, srv.URL, func(cfg *Config) { cfg.BreakerFailures = 1 })
	for i := 0; i < 3; i++ {
		if o := c2.Send(context.Background(), testRecord()); !o.Terminal() {
			t.Fatalf("attempt %d = %v, want other failure", i, o)
		}
	}
}

func TestUploadPhoto(t *testing.T) {
	dir := t.TempDir()
	photoPath := filepath.Join(dir, "seal.jpg")
	if err := os.WriteFile(photoPath, []byte("jpegbytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	err := c.UploadPhoto(context.Background(), survey.KindNestSurvey, "srv-5", survey.Photo{Path: photoPath, ChildPosition: 1})
	if err != nil {
		t.Fatalf("UploadPhoto() error = %v", err)
	}
	if gotPath != "/api/v1/nest-surveys/srv-5/photos/1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "image/jpeg" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody != "jpegbytes" {
		t.Errorf("body = %q", gotBody)
	}

	if err := c.UploadPhoto(context.Background(), survey.KindNestSurvey, "", survey.Photo{Path: photoPath}); err == nil {
		t.Error("UploadPhoto() without remote id should fail")
	}
	if err := c.UploadPhoto(context.Background(), survey.KindNestSurvey, "srv-5", survey.Photo{Path: filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("UploadPhoto() of missing file should fail")
	}
}

func TestReadBodyForError_Truncates(t *testing.T) {
	big := strings.Repeat("x", maxErrorBodySize+10)
	got := readBodyForError(strings.NewReader(big))
	if !strings.HasSuffix(string(got), "(truncated)") {
		t.Error("expected truncation marker")
	}
}

func TestIdempotencyKey(t *testing.T) {
	tests := []struct {
		name      string
		installID string
		kind      survey.Kind
		localID   int64
		want      string
	}{
		{"observation with install", "dev-1", survey.KindObservation, 7, "observation-7-dev-1"},
		{"nest survey with install", "dev-1", survey.KindNestSurvey, 12, "nest_survey-12-dev-1"},
		{"no install", "", survey.KindObservation, 7, "observation-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "https://survey.example.org", func(cfg *Config) { cfg.InstallID = tt.installID })
			if got := c.IdempotencyKey(tt.kind, tt.localID); got != tt.want {
				t.Errorf("IdempotencyKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
