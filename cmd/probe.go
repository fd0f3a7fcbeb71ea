// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
	probeCount   int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the controller accepts WebSocket sessions",
	Long: `Connect to the controller, send GET_SETTINGS and wait briefly for a reply.

A controller that accepts the session but stays silent is still reachable;
some firmware only pushes settings on change. Each probe opens and closes its
own session.

This is useful for verifying:
  - The host resolves and port 81 is open
  - The WebSocket handshake succeeds
  - The controller answers GET_SETTINGS

Exit codes:
  0 - All probes successful
  1 - Some probes failed
  2 - Connection error (every probe failed)`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", int(webasto.ProbeReplyTimeout/time.Second), "Seconds to wait for a reply")
	probeCmd.Flags().IntVar(&probeCount, "count", 1, "Number of probes to send")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	fmt.Printf("Webastostat - Connectivity Probe\n")
	fmt.Printf("Controller: %s\n", connection.URL(cfg.Host))
	fmt.Printf("Timeout: %d seconds per probe\n\n", probeTimeout)

	successCount := 0
	for i := 1; i <= probeCount; i++ {
		fmt.Printf("Probe %d/%d: ", i, probeCount)

		result, err := connection.Probe(cmd.Context(), cfg.Host, connection.ProbeOptions{
			ReplyTimeout: time.Duration(probeTimeout) * time.Second,
		})
		switch {
		case errors.Is(err, connection.ErrProbeTimeout):
			fmt.Printf("TIMEOUT (%v)\n", err)
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
		case result.Replied:
			fmt.Printf("REPLY %q, rtt=%v\n", webasto.Abbreviate(result.Reply, 60), result.RTT.Round(time.Millisecond))
			successCount++
		default:
			fmt.Printf("CONNECTED (no reply in %ds)\n", probeTimeout)
			successCount++
		}

		// Small delay between probes
		if i < probeCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Probe statistics ---\n")
	fmt.Printf("%d probes, %d reachable\n", probeCount, successCount)

	switch {
	case successCount == 0:
		os.Exit(2)
	case successCount < probeCount:
		os.Exit(1)
	}
	return nil
}
