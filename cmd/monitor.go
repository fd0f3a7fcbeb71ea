// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorPlain bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the controller's state as it changes",
	Long: `Connect to the controller and display its state live.

On an interactive terminal this shows a full-screen view with the current
fields, recently changed values highlighted, frame statistics and an event
log. Otherwise (or with --plain) each changed field is printed as a
timestamped key=value line, which is convenient for piping into other tools.

Decode errors are reported in both modes.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Print key=value lines even on a terminal")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}
	if monitorPlain || !isTerminal() {
		return runPlainMonitor(os.Stdout)
	}

	var p *tea.Program
	var ready sync.WaitGroup
	ready.Add(1)

	m := newManager(func(raw string, _ webasto.Frame, err error) {
		ready.Wait()
		p.Send(frameMsg{raw: raw, decodeErr: err})
	})
	defer m.Stop()

	p = tea.NewProgram(initialModel(m), tea.WithAltScreen())
	ready.Done()

	m.AddListener(connection.OnChange(func(s webasto.Snapshot) {
		p.Send(snapshotMsg{snapshot: s})
	}))

	// The manager logs to stderr, which would tear the alt screen
	logger.SetOutput(io.Discard)
	m.Connect(cmd.Context())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runPlainMonitor prints changed fields until interrupted
func runPlainMonitor(w io.Writer) error {
	ctx, stop := signalContext()
	defer stop()

	var mu sync.Mutex
	printer := &changePrinter{w: w, last: webasto.NewSnapshot()}

	m := newManager(func(raw string, _ webasto.Frame, err error) {
		if err != nil {
			mu.Lock()
			fmt.Fprintf(w, "[%s] decode error: %v\n", time.Now().Format("15:04:05.000"), err)
			mu.Unlock()
		}
	})
	defer m.Stop()

	m.AddListener(connection.OnChange(func(s webasto.Snapshot) {
		mu.Lock()
		printer.print(time.Now(), s)
		mu.Unlock()
	}))

	if err := connectManager(ctx, m); err != nil {
		logger.WithError(err).Warn("Initial connection failed, retrying")
	}

	<-ctx.Done()
	return nil
}

// changePrinter writes fields whose value differs from the last snapshot
// it printed
type changePrinter struct {
	w    io.Writer
	last webasto.Snapshot
}

func (p *changePrinter) print(ts time.Time, s webasto.Snapshot) {
	stamp := ts.Format("15:04:05.000")
	for k, v := range s.All() {
		if old, ok := p.last.Get(k); ok && old.Equal(v) {
			continue
		}
		fmt.Fprintf(p.w, "[%s] %s=%s\n", stamp, k, webasto.FormatValue(v))
	}
	p.last = s
}
