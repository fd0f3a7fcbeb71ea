// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// SerialConnection wraps the controller's USB-UART console
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// GetPassword retrieves the MQTT password from the environment or prompts
// the user
func GetPassword() (string, error) {
	if pw := os.Getenv("WEBASTO_MQTT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "MQTT password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// isTerminal reports whether stdout is an interactive terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newManager creates a connection manager for the configured host
func newManager(hook connection.FrameHook) *connection.Manager {
	return connection.New(cfg.Host, connection.Options{
		Logger:  logger,
		OnFrame: hook,
	})
}

// connectManager opens the first session. The manager keeps retrying in
// the background when it fails.
func connectManager(ctx context.Context, m *connection.Manager) error {
	if m.Connect(ctx) {
		return nil
	}
	return fmt.Errorf("could not connect to %s", m.URL())
}

// waitConnected polls until the manager has a session or timeout elapses
func waitConnected(ctx context.Context, m *connection.Manager, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for !m.IsConnected() {
		if m.State() == connection.StateDisconnected || time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
