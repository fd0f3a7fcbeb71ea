// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/gorilla/websocket"
)

// Conn is one open session with the controller. ReadMessage and WriteMessage
// may be called concurrently with each other but not with themselves.
type Conn interface {
	ReadMessage() (string, error)
	WriteMessage(msg string) error
	Close() error
}

// Dialer opens sessions. Tests substitute their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// URL returns the controller endpoint for host
func URL(host string) string {
	return fmt.Sprintf(webasto.URLTemplate, host, webasto.DefaultPort)
}

// WebSocketDialer dials the controller's raw WebSocket server
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial connects to wsURL. The controller speaks plain ws:// without
// subprotocols or authentication.
func (d *WebSocketDialer) Dial(ctx context.Context, wsURL string) (Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws://)", u.Scheme)
	}

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = webasto.ConnectTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return &webSocketConn{conn: conn}, nil
}

// webSocketConn adapts a gorilla connection to text-frame Conn semantics
type webSocketConn struct {
	conn *websocket.Conn
}

func (w *webSocketConn) ReadMessage() (string, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		// The controller only sends text frames
		if messageType != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

func (w *webSocketConn) WriteMessage(msg string) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (w *webSocketConn) Close() error {
	err := w.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
