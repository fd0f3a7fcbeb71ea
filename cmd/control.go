// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the heater",
	Long: `Control the heater via an interactive terminal UI.

Features:
  - Live sensor and status display
  - Hot keys for every controller button
  - Settings editing with range checks
  - Save settings as a single SET: command
  - Session status and event logging
  - Automatic reconnection on connection loss

Settings edits are held as a draft until saved with 's'. Tab switches
between the settings list and the value input.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// controller is the manager as seen by the control TUI
type controller interface {
	sessionSource
	entities.Commander
	Snapshot() webasto.Snapshot
	IsConnected() bool
}

func runControl(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	var p *tea.Program
	var ready sync.WaitGroup
	ready.Add(1)

	m := newManager(func(raw string, _ webasto.Frame, err error) {
		if err == nil {
			return
		}
		ready.Wait()
		p.Send(frameMsg{raw: raw, decodeErr: err})
	})
	defer m.Stop()

	p = tea.NewProgram(initialControlModel(m, entities.NewDraft()), tea.WithAltScreen(), tea.WithMouseCellMotion())
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
