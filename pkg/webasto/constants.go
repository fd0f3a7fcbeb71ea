// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package webasto implements the text protocol spoken by the ESP8266 Webasto
// heater controller over its WebSocket port.
//
// The controller pushes state either as JSON objects (current firmware) or as
// legacy "CURRENT_SETTINGS:key=value,..." lines (older firmware). Both are
// decoded into an ordered set of fields that is merged into a Snapshot.
// Outbound commands are plain text frames sent verbatim.
package webasto

import "time"

// Transport defaults
const (
	DefaultPort = 81
	URLTemplate = "ws://%s:%d/"
)

// Connection policy
const (
	ConnectTimeout       = 10 * time.Second
	ReconnectInterval    = 5 * time.Second
	MaxReconnectAttempts = 10
	ProbeReplyTimeout    = 5 * time.Second
)

// Frame prefixes
const (
	LegacySettingsPrefix = "CURRENT_SETTINGS:"
	settingsKey          = "settings"
	setCommandPrefix     = "SET:"
)

// Well-known field keys reported by the controller
const (
	FieldCurrentState = "currentState"
	FieldWifiStatus   = "wifi_status"
)

// WifiStatusConnected is the wifi_status value reported once the controller
// has joined a network (station mode).
const WifiStatusConnected = 3
