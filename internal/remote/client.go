// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/session"
	"github.com/tomtom215/fieldsync/internal/survey"
)

const maxErrorBodySize = 64 * 1024 // 64KB

// IdempotencyHeader carries a key unique per record and install, so the
// server can drop a resend whose first acknowledgement was lost.
const IdempotencyHeader = "Idempotency-Key"

// Config configures Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	InstallID string

	// RateLimit is requests per second; 0 disables pacing.
	RateLimit float64
	Burst     int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// MaxThrottleRetries bounds in-call retries of HTTP 429 responses.
	MaxThrottleRetries int
	RetryBaseDelay     time.Duration

	// HTTPClient overrides the default client; its Timeout is left as is.
	HTTPClient *http.Client
}

// Client talks HTTP/JSON to the central survey server.
//
//	client, err := remote.NewClient(remote.Config{BaseURL: "https://survey.example.org"}, sessions)
//	outcome := client.Send(ctx, obs)
type Client struct {
	baseURL        string
	installID      string
	sessions       session.Provider
	http           *http.Client
	limiter        *rate.Limiter
	breaker        *breaker
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient returns a client that authenticates with sessions.
func NewClient(cfg Config, sessions session.Provider) (*Client, error) {
	if sessions == nil {
		return nil, errors.New("remote: session provider is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = time.Second
	}
	maxRetries := cfg.MaxThrottleRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:        u.String(),
		installID:      cfg.InstallID,
		sessions:       sessions,
		http:           httpClient,
		limiter:        limiter,
		breaker:        newBreaker("remote-submitter", cfg.BreakerFailures, cfg.BreakerTimeout),
		maxRetries:     maxRetries,
		retryBaseDelay: retryBase,
	}, nil
}

type createResponse struct {
	ID string `json:"id"`
}

// Send posts rec to its collection. It never returns an error; the outcome
// carries the classification and cause.
func (c *Client) Send(ctx context.Context, rec survey.Record) Outcome {
	if rec == nil {
		return Failed(errors.New("remote: nil record"))
	}
	kind := rec.Kind()
	start := time.Now()
	outcome := c.send(ctx, rec)
	metrics.RecordRemoteSend(kind.String(), outcome.Status.String(), time.Since(start))

	logging.Ctx(ctx).Debug().
		Str("kind", kind.String()).
		Int64("local_id", rec.LocalID()).
		Str("status", outcome.Status.String()).
		Err(outcome.Cause).
		Msg("Remote send finished")
	return outcome
}

func (c *Client) send(ctx context.Context, rec survey.Record) Outcome {
	token, err := c.sessions.Token(ctx)
	if err != nil {
		return Failed(fmt.Errorf("session: %w", err))
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return Failed(fmt.Errorf("encode %s: %w", rec.Kind(), err))
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "v1", rec.Kind().Collection())
	if err != nil {
		return Failed(err)
	}

	var body []byte
	err = c.breaker.execute(func() error {
		resp, err := c.do(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set(IdempotencyHeader, c.IdempotencyKey(rec.Kind(), rec.LocalID()))
			return req, nil
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return err
	})
	if err != nil {
		return FromError(err)
	}

	var created createResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Remote accepted record but returned an unreadable body")
		}
	}
	return Succeeded(created.ID)
}

// UploadPhoto streams one photo to an already delivered record.
func (c *Client) UploadPhoto(ctx context.Context, kind survey.Kind, remoteID string, photo survey.Photo) error {
	if remoteID == "" {
		return errors.New("remote: photo upload needs the server record id")
	}
	token, err := c.sessions.Token(ctx)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "v1", kind.Collection(), remoteID, "photos", strconv.Itoa(photo.ChildPosition))
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(photo.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return c.breaker.execute(func() error {
		resp, err := c.do(ctx, func() (*http.Request, error) {
			f, err := os.Open(photo.Path)
			if err != nil {
				return nil, fmt.Errorf("open photo: %w", err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, f)
			if err != nil {
				f.Close()
				return nil, err
			}
			if info, statErr := f.Stat(); statErr == nil {
				req.ContentLength = info.Size()
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)
			return req, nil
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
}

// IdempotencyKey is stable for a record across every retry. It reads
// <kind>-<localID>-<install>, dropping the install suffix when none is set.
func (c *Client) IdempotencyKey(kind survey.Kind, localID int64) string {
	if c.installID == "" {
		return fmt.Sprintf("%s-%d", kind, localID)
	}
	return fmt.Sprintf("%s-%d-%s", kind, localID, c.installID)
}

// do paces the request and retries HTTP 429 with exponential backoff,
// honoring Retry-After. newReq is called once per attempt.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}
		_ = resp.Body.Close()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// wait blocks on the rate limiter. A wait that cannot finish before the
// deadline counts as a timeout.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// readBodyForError reads the response body for error reporting (max 64KB)
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

var (
	_ Submitter     = (*Client)(nil)
	_ PhotoUploader = (*Client)(nil)
)
