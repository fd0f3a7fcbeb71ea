// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/gorilla/websocket"
)

var errDialRefused = errors.New("connection refused")

// ============================================================
// Fake Session
// ============================================================

type fakeConn struct {
	inbound   chan string
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	writes   []string
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (string, error) {
	select {
	case <-c.closed:
		return "", io.EOF
	default:
	}
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *fakeConn) WriteMessage(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.writes = append(c.writes, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push delivers a frame as if the controller sent it
func (c *fakeConn) push(msg string) {
	c.inbound <- msg
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// ============================================================
// Fake Dialer
// ============================================================

// fakeDialer hands out queued sessions and refuses when none are queued
type fakeDialer struct {
	conns chan *fakeConn

	mu    sync.Mutex
	dials int
	urls  []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.urls = append(d.urls, url)
	d.mu.Unlock()

	select {
	case c := <-d.conns:
		return c, nil
	default:
		return nil, errDialRefused
	}
}

func (d *fakeDialer) queue(c *fakeConn) {
	d.conns <- c
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// blockingDialer blocks until the dial context ends
type blockingDialer struct {
	entered chan struct{}
	once    sync.Once
}

func (d *blockingDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.once.Do(func() { close(d.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// redirectDialer sends every dial to a fixed test server URL
type redirectDialer struct {
	target string
}

func (d *redirectDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	return (&WebSocketDialer{HandshakeTimeout: time.Second}).Dial(ctx, d.target)
}

// ============================================================
// Fake Device
// ============================================================

// newDeviceServer starts a WebSocket server that runs handler for each
// session, standing in for the controller firmware
func newDeviceServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/"
}

// ============================================================
// Helpers
// ============================================================

func testOptions(d Dialer) Options {
	return Options{
		Dialer:               d,
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 3,
		ConnectTimeout:       time.Second,
		StopTimeout:          time.Second,
	}
}

// collect registers a listener that forwards snapshots to a channel
func collect(m *Manager) (Listener, chan webasto.Snapshot) {
	ch := make(chan webasto.Snapshot, 64)
	l := OnChange(func(s webasto.Snapshot) { ch <- s })
	m.AddListener(l)
	return l, ch
}

// waitFor receives snapshots until one satisfies cond
func waitFor(t *testing.T, ch <-chan webasto.Snapshot, cond func(webasto.Snapshot) bool) webasto.Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return webasto.Snapshot{}
		}
	}
}

func hasKey(key string) func(webasto.Snapshot) bool {
	return func(s webasto.Snapshot) bool {
		_, ok := s.Get(key)
		return ok
	}
}

// retriesExhausted reports that the reconnect loop has given up
func retriesExhausted(m *Manager) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateDisconnected && !m.reconnecting
}
