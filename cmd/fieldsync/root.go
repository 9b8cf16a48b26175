// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalOptions are filled by persistent flags and PersistentPreRunE.
type globalOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline-durable submission of field survey records",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (overrides CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newSubmitCmd(opts),
		newQueueCmd(opts),
		newReconcileCmd(opts),
	)

	return root
}

// load reads configuration and initializes logging.
func (o *globalOptions) load() error {
	if o.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, o.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	o.cfg = cfg
	return nil
}
