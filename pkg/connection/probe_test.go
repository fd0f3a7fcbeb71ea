// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_Reply(t *testing.T) {
	server := newDeviceServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil || string(msg) != "GET_SETTINGS" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("CURRENT_SETTINGS:pump_size=22"))
		_, _, _ = conn.ReadMessage()
	})

	result, err := Probe(context.Background(), "heater.local", ProbeOptions{
		Dialer: &redirectDialer{target: wsURL(server)},
	})
	require.NoError(t, err)
	assert.True(t, result.Replied)
	assert.Equal(t, "CURRENT_SETTINGS:pump_size=22", result.Reply)
}

func TestProbe_SilentDeviceIsReachable(t *testing.T) {
	server := newDeviceServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	result, err := Probe(context.Background(), "heater.local", ProbeOptions{
		Dialer:       &redirectDialer{target: wsURL(server)},
		ReplyTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.False(t, result.Replied)
	assert.Empty(t, result.Reply)
}

func TestProbe_Unreachable(t *testing.T) {
	_, err := Probe(context.Background(), "heater.local", ProbeOptions{Dialer: newFakeDialer()})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDialRefused)
}

func TestProbe_DialTimeout(t *testing.T) {
	_, err := Probe(context.Background(), "heater.local", ProbeOptions{
		Dialer:         &blockingDialer{entered: make(chan struct{})},
		ConnectTimeout: 20 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrProbeTimeout)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "ws://192.168.4.1:81/", URL("192.168.4.1"))
}

func TestWebSocketDialer_RejectsScheme(t *testing.T) {
	_, err := (&WebSocketDialer{}).Dial(context.Background(), "http://heater.local:81/")
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(99).String())
}
