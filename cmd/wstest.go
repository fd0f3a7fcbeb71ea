// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
)

var wsTestCmd = &cobra.Command{
	Use:   "ws_test",
	Short: "Test WebSocket session stability",
	Long: `Hold one session open to the controller without sending commands
other than the initial GET_SETTINGS.

Every frame received is logged with its size and format, and a heartbeat is
printed each second. The test fails as soon as the session drops. Useful for
debugging Wi-Fi or firmware stability issues.

Exit codes:
  0 - Test completed normally
  1 - Test failed (session dropped)
  2 - Connection error`,
	RunE: runWsTest,
}

var wsTestDuration int

func init() {
	rootCmd.AddCommand(wsTestCmd)
	wsTestCmd.Flags().IntVar(&wsTestDuration, "duration", 30, "Test duration in seconds")
}

func runWsTest(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	var framesReceived, bytesReceived atomic.Uint64
	m := newManager(func(raw string, frame webasto.Frame, err error) {
		framesReceived.Add(1)
		bytesReceived.Add(uint64(len(raw)))
		kind := "UNDECODABLE"
		if err == nil {
			kind = frame.Format.String()
		}
		fmt.Printf("[%s] Received %d bytes (%s): %s\n",
			time.Now().Format("15:04:05.000"), len(raw), kind, webasto.Abbreviate(raw, 60))
	})
	defer m.Stop()

	if !m.Connect(cmd.Context()) {
		fmt.Fprintf(os.Stderr, "Connection error: could not connect to %s\n", m.URL())
		m.Stop()
		os.Exit(2)
	}

	fmt.Printf("WebSocket Session Stability Test\n")
	fmt.Printf("Controller: %s\n", m.URL())
	fmt.Printf("Duration: %d seconds\n\n", wsTestDuration)
	fmt.Printf("Listening for frames...\n\n")

	start := time.Now()
	endTime := start.Add(time.Duration(wsTestDuration) * time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	printResults := func(result string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Second))
		fmt.Printf("Frames received: %d\n", framesReceived.Load())
		fmt.Printf("Bytes received: %d\n", bytesReceived.Load())
		fmt.Printf("Result: %s\n", result)
	}

	for time.Now().Before(endTime) {
		<-ticker.C
		if !m.IsConnected() {
			fmt.Printf("\n[%s] Session dropped (state: %s)\n",
				time.Now().Format("15:04:05.000"), m.State())
			printResults("FAILED (session dropped)")
			m.Stop()
			os.Exit(1)
		}
		fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
			time.Now().Format("15:04:05.000"), time.Until(endTime).Seconds())
	}

	printResults("PASSED (session stable)")
	return nil
}
