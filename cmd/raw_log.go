// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every received frame in human-readable format",
	Long: `Continuously display controller frames as they arrive.

Each frame is shown with its timestamp, format (JSON or LEGACY) and the
decoded fields with their types. Frames that cannot be decoded are shown
with the decode error. The session is re-established automatically if the
controller drops it.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var mu sync.Mutex
	m := newManager(func(raw string, frame webasto.Frame, err error) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Print(webasto.FormatFrame(time.Now(), raw, frame, err))
	})
	defer m.Stop()

	fmt.Printf("Webastostat - Raw Frame Log\n")
	fmt.Printf("Controller: %s\n", m.URL())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := connectManager(ctx, m); err != nil {
		logger.WithError(err).Warn("Initial connection failed, retrying")
	}

	<-ctx.Done()

	stats := m.Stats()
	fmt.Printf("\n%s", stats.String())
	return nil
}
