// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	snapshotFormat string
	snapshotWait   time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the controller's current state",
	Long: `Connect, wait for the first populated snapshot and print it.

Formats:
  json  - one JSON object, fields in arrival order
  yaml  - YAML mapping, fields in arrival order
  cbor  - CBOR map with deterministic encoding, written as raw bytes
  text  - key=value lines`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "json", "Output format: json, yaml, cbor or text")
	snapshotCmd.Flags().DurationVar(&snapshotWait, "wait", 5*time.Second, "How long to wait for the first frame")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}
	switch snapshotFormat {
	case "json", "yaml", "cbor", "text":
	default:
		return fmt.Errorf("unknown format %q", snapshotFormat)
	}

	m := newManager(nil)
	defer m.Stop()

	first := make(chan webasto.Snapshot, 1)
	sub := m.AddListener(connection.OnChange(func(s webasto.Snapshot) {
		if s.Len() == 0 {
			return
		}
		select {
		case first <- s:
		default:
		}
	}))
	defer sub.Unsubscribe()

	if err := connectManager(cmd.Context(), m); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotWait)
	defer cancel()

	select {
	case s := <-first:
		return writeSnapshot(os.Stdout, s, snapshotFormat)
	case <-ctx.Done():
		return fmt.Errorf("no frame from %s within %v", m.URL(), snapshotWait)
	}
}

func writeSnapshot(w io.Writer, s webasto.Snapshot, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "cbor":
		data, err := s.MarshalCBOR()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text":
		_, err := io.WriteString(w, webasto.FormatSnapshot(s))
		return err
	default:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
}
