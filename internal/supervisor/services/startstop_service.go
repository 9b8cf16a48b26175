// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/fieldsync/internal/queue"
)

// StartStopper is a component with a background loop controlled by Start and
// Stop. Satisfied by *queue.Runner and *queue.Compactor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// StartStopService adapts a StartStopper to suture.Service.
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService wraps component under the given service name.
func NewStartStopService(component StartStopper, name string) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// NewQueueRunnerService supervises the retry runner.
func NewQueueRunnerService(runner *queue.Runner) *StartStopService {
	return NewStartStopService(runner, "queue-runner")
}

// NewCompactorService supervises the finished-descriptor compactor.
func NewCompactorService(compactor *queue.Compactor) *StartStopService {
	return NewStartStopService(compactor, "queue-compactor")
}

// Serve implements suture.Service. It starts the component, blocks until ctx
// is canceled and stops it again.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *StartStopService) String() string {
	return s.name
}
