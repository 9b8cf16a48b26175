// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/survey"
)

func newSubmitCmd(opts *globalOptions) *cobra.Command {
	var (
		kind string
		file string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Save a record locally and send it, queueing a retry when offline",
		Long: `Reads one record as JSON from --file (or stdin with "-"), stores it and
sends it to the central server. A connectivity failure queues a retry that
the serve command will run later. The receipt is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := survey.ParseKind(kind)
			if err != nil {
				return err
			}
			rec, err := readRecord(cmd.InOrStdin(), file, k)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			receipt, err := a.service.Submit(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(survey.KindObservation), "record kind (observation, nest_survey)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", `JSON file to submit, "-" for stdin`)
	return cmd
}

// readRecord decodes one record of kind from path, or from stdin for "-".
func readRecord(stdin io.Reader, path string, kind survey.Kind) (survey.Record, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // path is an operator-supplied flag
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	rec, err := survey.New(kind)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return rec, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
