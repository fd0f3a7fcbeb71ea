// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int
)

var uartLogCmd = &cobra.Command{
	Use:   "uart_log",
	Short: "Read the controller's serial console",
	Long: `Read the ESP8266 controller's USB-UART console line by line.

Lines that carry a protocol frame (a JSON object or CURRENT_SETTINGS:) are
decoded and shown with their fields; everything else is printed as console
output. Useful when the controller is not reachable over Wi-Fi.

Does not require --host.`,
	RunE: runUartLog,
}

func init() {
	rootCmd.AddCommand(uartLogCmd)
	uartLogCmd.Flags().StringVarP(&portName, "port", "p", "/dev/ttyUSB0", "Serial port device")
	uartLogCmd.Flags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")
}

func runUartLog(cmd *cobra.Command, args []string) error {
	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Webastostat - UART Console Log\n")
	fmt.Printf("Serial: %s @ %d baud\n", portName, baudRate)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := webasto.NewStatistics()
	err = scanConsole(conn, func(line string) {
		fmt.Print(formatConsoleLine(time.Now(), line, stats))
	})
	fmt.Printf("\n%s", stats.String())
	return err
}

// scanConsole calls fn for every non-empty line until r is exhausted
func scanConsole(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read serial: %w", err)
	}
	return nil
}

// formatConsoleLine decodes protocol frames embedded in console output. The
// firmware may prefix them with log text, so the frame starts at the first
// '{' or the legacy prefix.
func formatConsoleLine(ts time.Time, line string, stats *webasto.Statistics) string {
	start := strings.Index(line, webasto.LegacySettingsPrefix)
	if i := strings.IndexByte(line, '{'); i >= 0 && (start < 0 || i < start) {
		start = i
	}
	if start < 0 {
		return fmt.Sprintf("[%s] %s\n", ts.Format("15:04:05.000"), line)
	}

	raw := line[start:]
	frame, err := webasto.Decode(raw)
	stats.Update(frame, err)
	return webasto.FormatFrame(ts, raw, frame, err)
}
