// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	gobreaker "github.com/sony/gobreaker/v2"
)

// HTTPError is a response from a reachable server with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

var connectivityErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ENETDOWN,
	syscall.ETIMEDOUT,
	syscall.EPIPE,
}

// Classify decides whether err means the server could not be reached.
// A nil error is StatusSuccess. Caller cancellation is StatusOtherFailure.
func Classify(err error) Status {
	if err == nil {
		return StatusSuccess
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return StatusOtherFailure
	}
	if errors.Is(err, context.Canceled) {
		return StatusOtherFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusConnectivityFailure
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return StatusConnectivityFailure
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusConnectivityFailure
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StatusConnectivityFailure
	}
	for _, errno := range connectivityErrnos {
		if errors.Is(err, errno) {
			return StatusConnectivityFailure
		}
	}
	// Connection dropped mid-response.
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return StatusConnectivityFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusConnectivityFailure
	}

	return StatusOtherFailure
}
