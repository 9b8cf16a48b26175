// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package remote sends survey records to the central server.
//
// A send never returns a bare error. It returns an Outcome whose Status says
// whether the server was reached: StatusConnectivityFailure is worth retrying
// later, StatusOtherFailure is not.
package remote

import (
	"context"

	"github.com/tomtom215/fieldsync/internal/survey"
)

// Status is the tag of an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusConnectivityFailure
	StatusOtherFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusConnectivityFailure:
		return "connectivity_failure"
	case StatusOtherFailure:
		return "other_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one send.
type Outcome struct {
	Status Status
	// RemoteID is the server's id for the record, set on success when the
	// server returns one.
	RemoteID string
	// Cause is nil on success.
	Cause error
}

// Succeeded returns a success outcome.
func Succeeded(remoteID string) Outcome {
	return Outcome{Status: StatusSuccess, RemoteID: remoteID}
}

// Unreachable returns a connectivity failure.
func Unreachable(cause error) Outcome {
	return Outcome{Status: StatusConnectivityFailure, Cause: cause}
}

// Failed returns a non-retryable failure.
func Failed(cause error) Outcome {
	return Outcome{Status: StatusOtherFailure, Cause: cause}
}

// FromError classifies err into an Outcome.
func FromError(err error) Outcome {
	switch Classify(err) {
	case StatusSuccess:
		return Succeeded("")
	case StatusConnectivityFailure:
		return Unreachable(err)
	default:
		return Failed(err)
	}
}

func (o Outcome) OK() bool { return o.Status == StatusSuccess }
func (o Outcome) Retryable() bool { return o.Status == StatusConnectivityFailure }
func (o Outcome) Terminal() bool { return o.Status == StatusOtherFailure }
func (o Outcome) String() string { return o.Status.String() }

// Submitter transmits a composite record.
type Submitter interface {
	Send(ctx context.Context, rec survey.Record) Outcome
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, rec survey.Record) Outcome

// Send calls f.
func (f SubmitterFunc) Send(ctx context.Context, rec survey.Record) Outcome { return f(ctx, rec) }

// PhotoUploader uploads media attached to an already delivered record.
type PhotoUploader interface {
	UploadPhoto(ctx context.Context, kind survey.Kind, remoteID string, photo survey.Photo) error
}
