// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Webastostat - Webasto ESP8266 Controller Client
//
// A CLI tool for monitoring and controlling a Webasto heater through its
// ESP8266 WebSocket controller, with an optional HTTP API and MQTT bridge.

package main

import (
	"os"

	"github.com/Thermoquad/webastostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
