// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/queue"
)

func newQueueCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the durable retry queue",
	}
	cmd.AddCommand(newQueueStatsCmd(opts), newQueueListCmd(opts))
	return cmd
}

func newQueueStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pending, leased and finished descriptor counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := queue.Open(queueConfig(opts.cfg))
			if err != nil {
				return err
			}
			defer q.Close()

			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newQueueListCmd(opts *globalOptions) *cobra.Command {
	var finished bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print retry descriptors as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := queue.Open(queueConfig(opts.cfg))
			if err != nil {
				return err
			}
			defer q.Close()

			list := q.List
			if finished {
				list = q.ListFinished
			}
			descriptors, err := list(cmd.Context())
			if err != nil {
				return err
			}
			if descriptors == nil {
				descriptors = []*queue.Descriptor{}
			}
			return printJSON(cmd.OutOrStdout(), descriptors)
		},
	}

	cmd.Flags().BoolVar(&finished, "finished", false, "list finished descriptors instead of pending ones")
	return cmd
}
