// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/device"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/session"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/submission"
)

// app holds the components every command shares. Fields are filled in the
// order they depend on each other; close releases whatever was opened.
type app struct {
	cfg *config.Config

	records    *store.Store
	queue      *queue.Queue
	client     *remote.Client
	scheduler  *submission.Scheduler
	service    *submission.Service
	reconciler *submission.Reconciler
}

// openApp opens the record store and retry queue and builds the submission
// use case on top of them.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	records, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a.records = records

	q, err := queue.Open(queueConfig(cfg))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open retry queue: %w", err)
	}
	a.queue = q

	if _, err := q.Recover(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("recover retry queue: %w", err)
	}

	client, err := remote.NewClient(remote.Config{
		BaseURL:         cfg.Remote.BaseURL,
		Timeout:         cfg.Remote.Timeout,
		InstallID:       cfg.Session.InstallID,
		RateLimit:       cfg.Remote.RateLimit,
		Burst:           cfg.Remote.Burst,
		BreakerFailures: cfg.Remote.BreakerFailures,
		BreakerTimeout:  cfg.Remote.BreakerTimeout,
	}, session.NewStaticProvider(cfg.Session.Token))
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client

	a.scheduler = submission.NewScheduler(q, cfg.Queue.MinBackoff, cfg.Queue.MaxBackoff)
	a.service = submission.NewService(records, client, a.scheduler, client)
	a.reconciler = submission.NewReconciler(records, a.scheduler, cfg.Submission.ReconcileGrace)

	return a, nil
}

// newRunner builds the retry runner gated on the device probes and registers
// one retry task per record kind.
func (a *app) newRunner() *queue.Runner {
	conditions := device.New(device.Config{
		ProbeAddress:      a.cfg.ProbeTarget(),
		ProbeTimeout:      a.cfg.Device.ProbeTimeout,
		ProbeCache:        a.cfg.Device.ProbeCache,
		BatteryPath:       a.cfg.Device.BatteryPath,
		BatteryLowPercent: a.cfg.Device.BatteryLowPercent,
	})

	runner := queue.NewRunner(a.queue, conditions)
	submission.RegisterTasks(runner, a.records, a.client, a.client)
	return runner
}

// close releases the queue before the store; either may be nil.
func (a *app) close() {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close retry queue: %w", err))
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close record store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Error during shutdown")
	}
}

func queueConfig(cfg *config.Config) queue.Config {
	qc := queue.DefaultConfig()
	qc.Path = cfg.Queue.Path
	qc.SyncWrites = cfg.Queue.SyncWrites
	qc.Workers = cfg.Queue.Workers
	qc.PollInterval = cfg.Queue.PollInterval
	qc.RunTimeout = cfg.Queue.RunTimeout
	qc.LeaseDuration = cfg.Queue.LeaseDuration
	qc.MinBackoff = cfg.Queue.MinBackoff
	qc.MaxBackoff = cfg.Queue.MaxBackoff
	qc.MaxAttempts = cfg.Queue.MaxAttempts
	qc.FinishedRetention = cfg.Queue.FinishedRetention
	qc.CompactInterval = cfg.Queue.CompactInterval
	return qc
}
