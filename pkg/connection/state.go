// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import "errors"

// State is the connection lifecycle state of a Manager
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateStopped // terminal
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Errors returned by this package. Use errors.Is to check for these.
var (
	ErrStopped      = errors.New("connection: manager stopped")
	ErrNotConnected = errors.New("connection: not connected")
	ErrProbeTimeout = errors.New("connection: probe timed out")
)
