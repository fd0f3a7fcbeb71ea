// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbridge

import "errors"

var (
	// ErrNotConnected is returned when publishing without a broker session
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed is returned when the broker refuses or times out
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish is not acknowledged
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the command subscriptions fail
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
)
