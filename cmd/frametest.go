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

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a decodable frame",
	Long: `Wait for a frame that decodes as JSON or a CURRENT_SETTINGS: line.

This command connects to the controller, requests its settings and waits for
any frame that decodes. Undecodable frames are counted and skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a decodable frame
  2 - Connection error

Useful for checking that the firmware speaks a supported protocol.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

type receivedFrame struct {
	raw   string
	frame webasto.Frame
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	var undecodable atomic.Int64
	frames := make(chan receivedFrame, 1)
	m := newManager(func(raw string, frame webasto.Frame, err error) {
		if err != nil {
			undecodable.Add(1)
			return
		}
		select {
		case frames <- receivedFrame{raw: raw, frame: frame}:
		default:
		}
	})
	defer m.Stop()

	fmt.Printf("Webastostat - Frame Test\n")
	fmt.Printf("Controller: %s\n", m.URL())
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for a decodable frame...\n\n")

	if !m.Connect(cmd.Context()) {
		fmt.Fprintf(os.Stderr, "Connection error: could not connect to %s\n", m.URL())
		m.Stop()
		os.Exit(2)
	}

	select {
	case f := <-frames:
		if n := undecodable.Load(); n > 0 {
			fmt.Printf("(skipped %d undecodable frames)\n", n)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Format: %s\n", f.frame.Format)
		fmt.Printf("  Length: %d bytes\n", len(f.raw))
		fmt.Printf("  Fields: %d\n", len(f.frame.Fields))
		fmt.Print(webasto.FormatFields(f.frame.Fields))
		m.Stop()
		os.Exit(0)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No decodable frame received within %d seconds\n", frameTestTimeout)
		m.Stop()
		os.Exit(1)
	}

	return nil
}
