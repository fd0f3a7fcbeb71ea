// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send one command to the controller",
	Long: `Connect, send a single text command and disconnect.

The command is sent verbatim. Known commands:
  ENTER, UP, DOWN, FP, CF, GET_SETTINGS, RESET_SETTINGS, RESET_WIFI,
  REBOOT_ESP, RESET_FUEL_CONSUMPTION, LOG_ON, LOG_OFF,
  SET:pump_size=22,heater_target=195,...

A button key from the entity catalogue (for example toggle_burn) may be given
with --button instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

var sendButton bool

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendButton, "button", false, "Treat the argument as a button key")
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("a command is required")
	}

	command := strings.TrimSpace(args[0])
	if sendButton {
		e, ok := entities.Lookup(entities.KindButton, command)
		if !ok {
			return fmt.Errorf("%w: button %q", entities.ErrUnknownEntity, command)
		}
		if e.Command == "" {
			return fmt.Errorf("button %q needs settings; use the control or serve commands", command)
		}
		command = e.Command
	}
	if strings.HasPrefix(command, "SET:") {
		if _, err := webasto.ParseSetCommand(command); err != nil {
			return err
		}
	}

	m := newManager(nil)
	defer m.Stop()

	if err := connectManager(cmd.Context(), m); err != nil {
		return err
	}
	if !m.SendCommand(command) {
		return fmt.Errorf("%w: %s", connection.ErrNotConnected, command)
	}

	// Give the socket a moment to flush before closing
	time.Sleep(100 * time.Millisecond)
	fmt.Printf("Sent %s to %s\n", command, m.URL())
	return nil
}
