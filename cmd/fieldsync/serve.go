// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/api"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/queue"
	"github.com/tomtom215/fieldsync/internal/supervisor"
	"github.com/tomtom215/fieldsync/internal/supervisor/services"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the submission API and the background retry runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	cfg := opts.cfg
	logging.Info().Str("version", version).Msg("Starting fieldsync with supervisor tree")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	runner := a.newRunner()
	tree.AddDataService(services.NewCompactorService(queue.NewCompactor(a.queue)))
	tree.AddWorkerService(services.NewQueueRunnerService(runner))
	if cfg.Submission.ReconcileOnStart {
		tree.AddWorkerService(services.NewReconcileService(a.reconciler))
	}

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Server.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Server.RateLimitWindow

	handler := api.NewHandler(a.service, a.records, a.queue, a.reconciler)
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           api.NewRouter(handler, api.NewChiMiddleware(mwConfig)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Str("remote", cfg.Remote.BaseURL).
		Str("probe", cfg.ProbeTarget()).
		Bool("reconcile_on_start", cfg.Submission.ReconcileOnStart).
		Msg("Configuration loaded")

	err = tree.Serve(ctx)

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Fieldsync stopped")
	return nil
}
