// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Queue retries for stored records that were never delivered",
		Long: `Schedules a retry for every record that is neither delivered nor rejected
and older than RECONCILE_GRACE. Records rejected by the server are
never resubmitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			scheduled, err := a.reconciler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"scheduled": scheduled})
		},
	}
}
