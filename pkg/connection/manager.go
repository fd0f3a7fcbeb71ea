// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package connection keeps a persistent session with a Webasto controller,
// maintains the decoded device snapshot and notifies listeners of changes.
package connection

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/sirupsen/logrus"
)

// DefaultStopTimeout bounds how long Stop waits for background goroutines
const DefaultStopTimeout = 2 * time.Second

// FrameHook observes every inbound frame before it is merged
type FrameHook func(raw string, frame webasto.Frame, err error)

// Options tune a Manager. Zero values select the controller defaults.
type Options struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	ConnectTimeout       time.Duration
	StopTimeout          time.Duration

	Dialer Dialer
	Logger logrus.FieldLogger

	// OnFrame is called from the receive goroutine for each frame,
	// including ones that fail to decode
	OnFrame FrameHook
}

func (o *Options) setDefaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = webasto.ReconnectInterval
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = webasto.MaxReconnectAttempts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = webasto.ConnectTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Dialer == nil {
		o.Dialer = &WebSocketDialer{HandshakeTimeout: o.ConnectTimeout}
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
}

// Manager owns the session with one controller.
//
// All methods are safe for concurrent use. Merges happen on the single
// receive goroutine in arrival order; listeners are notified after the merge
// is committed.
type Manager struct {
	host string
	url  string
	opts Options
	log  logrus.FieldLogger

	mu           sync.RWMutex
	state        State
	conn         Conn
	snapshot     webasto.Snapshot
	stats        webasto.Statistics
	attempts     int
	reconnecting bool
	stopped      bool

	wmu sync.Mutex // serializes frame writes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fanout *Fanout
}

// New creates a manager for host. Nothing is dialed until Connect.
func New(host string, opts Options) *Manager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger.WithFields(logrus.Fields{
		"component": "connection",
		"host":      host,
	})
	return &Manager{
		host:     host,
		url:      URL(host),
		opts:     opts,
		log:      log,
		state:    StateDisconnected,
		snapshot: webasto.NewSnapshot(),
		stats:    webasto.Statistics{StartTime: time.Now()},
		ctx:      ctx,
		cancel:   cancel,
		fanout:   NewFanout(log),
	}
}

// Host returns the configured controller host
func (m *Manager) Host() string { return m.host }

// URL returns the WebSocket endpoint
func (m *Manager) URL() string { return m.url }

// Connect makes one connection attempt bounded by the connect timeout. On
// failure it schedules background reconnection with a fresh retry budget and
// returns false. It returns false after Stop, and while a reconnection is
// already pending.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	switch {
	case m.stopped:
		m.mu.Unlock()
		return false
	case m.state == StateConnected:
		m.mu.Unlock()
		return true
	case m.state == StateConnecting || m.reconnecting:
		m.mu.Unlock()
		return false
	}
	// An explicit connect starts a fresh retry budget
	m.attempts = 0
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if m.dial(ctx) {
		return true
	}
	m.scheduleReconnect()
	return false
}

// dial performs one attempt. On success the session is installed, the
// reconnect counter reset, GET_SETTINGS sent and the receive loop started.
func (m *Manager) dial(ctx context.Context) bool {
	dctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	stopDial := context.AfterFunc(m.ctx, cancel)
	defer stopDial()

	m.log.WithField("url", m.url).Debug("dialing")
	conn, err := m.opts.Dialer.Dial(dctx, m.url)
	if err != nil {
		m.log.WithError(err).Warn("connect failed")
		m.mu.Lock()
		if !m.stopped {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = conn.Close()
		return false
	}
	m.conn = conn
	m.attempts = 0
	m.reconnecting = false
	m.stats.Connects++
	m.setStateLocked(StateConnected)
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info("connected")

	// A failed request surfaces as a read error on the closed session
	m.SendCommand(webasto.CmdGetSettings)

	go m.receive(conn)
	return true
}

func (m *Manager) receive(conn Conn) {
	defer m.wg.Done()
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(conn, err)
			return
		}
		m.handleFrame(raw)
	}
}

func (m *Manager) handleFrame(raw string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).Error("panic while handling frame")
		}
	}()

	frame, err := webasto.Decode(raw)
	if m.opts.OnFrame != nil {
		m.opts.OnFrame(raw, frame, err)
	}

	m.mu.Lock()
	m.stats.Update(frame, err)
	if err != nil {
		m.mu.Unlock()
		m.log.WithError(err).Debug("dropping frame")
		return
	}
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.snapshot.Merge(frame.Fields)
	committed := m.snapshot.Clone()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"format": frame.Format,
		"fields": len(frame.Fields),
	}).Trace("merged frame")
	m.fanout.Notify(committed)
}

func (m *Manager) handleReadError(conn Conn, err error) {
	m.mu.Lock()
	current := m.conn == conn
	if current {
		m.conn = nil
		if !m.stopped {
			m.setStateLocked(StateDisconnected)
		}
	}
	stopped := m.stopped
	m.mu.Unlock()

	_ = conn.Close()
	if stopped || !current {
		return
	}
	m.log.WithError(err).Warn("connection lost")
	m.scheduleReconnect()
}

// scheduleReconnect starts the reconnect loop unless one is running, the
// manager is stopped, or the retry budget is spent.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.reconnecting {
		return
	}
	if m.attempts >= m.opts.MaxReconnectAttempts {
		m.log.WithField("attempts", m.attempts).Error("giving up after max reconnect attempts")
		m.setStateLocked(StateDisconnected)
		return
	}
	m.reconnecting = true
	m.wg.Add(1)
	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		if m.stopped {
			m.reconnecting = false
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.opts.MaxReconnectAttempts {
			m.reconnecting = false
			m.setStateLocked(StateDisconnected)
			m.mu.Unlock()
			m.log.WithField("attempts", m.opts.MaxReconnectAttempts).Error("giving up after max reconnect attempts")
			return
		}
		m.attempts++
		attempt := m.attempts
		m.stats.ReconnectAttempts++
		m.setStateLocked(StateReconnecting)
		m.mu.Unlock()

		m.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     m.opts.MaxReconnectAttempts,
			"delay":   m.opts.ReconnectDelay,
		}).Info("reconnecting")

		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			m.mu.Lock()
			m.reconnecting = false
			m.mu.Unlock()
			return
		case <-timer.C:
		}

		m.mu.Lock()
		if m.stopped {
			m.reconnecting = false
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting)
		m.mu.Unlock()

		// On success dial clears the reconnecting flag itself
		if m.dial(m.ctx) {
			return
		}
	}
}

// SendCommand writes cmd verbatim as one text frame. It returns false
// without writing when not connected. A write failure drops the session
// and reconnection follows.
func (m *Manager) SendCommand(cmd string) bool {
	m.mu.RLock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.RUnlock()

	if !connected || conn == nil {
		m.log.WithField("command", cmd).Debug("not connected, command dropped")
		return false
	}

	m.wmu.Lock()
	err := conn.WriteMessage(cmd)
	m.wmu.Unlock()

	m.mu.Lock()
	if err != nil {
		m.stats.CommandFailures++
		if m.conn == conn && !m.stopped {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		m.log.WithError(err).WithField("command", cmd).Warn("send failed")
		_ = conn.Close()
		return false
	}
	m.stats.CommandsSent++
	m.mu.Unlock()

	m.log.WithField("command", cmd).Debug("sent")
	return true
}

// IsConnected reports whether the session is up
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns a copy of the latest device state
func (m *Manager) Snapshot() webasto.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Clone()
}

// Stats returns a copy of the frame and session counters
func (m *Manager) Stats() webasto.Statistics {
	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()
	stats.CalculateRates()
	return stats
}

// AddListener registers l for snapshot changes. Adding the same listener
// twice returns the same subscription.
func (m *Manager) AddListener(l Listener) *Subscription {
	return m.fanout.Add(l)
}

// RemoveListener unregisters l. Unknown listeners are ignored.
func (m *Manager) RemoveListener(l Listener) {
	m.fanout.Remove(l)
}

// ListenerCount returns the number of registered listeners
func (m *Manager) ListenerCount() int {
	return m.fanout.Len()
}

// Stop shuts the manager down for good: pending reconnects and dials are
// cancelled, the session is closed, and Stop waits a bounded time for the
// background goroutines to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.setStateLocked(StateStopped)
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		_ = conn.Close()
	}

	deadline := time.Now().Add(m.opts.StopTimeout)
	if !waitTimeout(&m.wg, m.opts.StopTimeout) {
		m.log.Warn("background goroutines did not exit before stop timeout")
	}
	if !m.fanout.Close(max(time.Until(deadline), 10*time.Millisecond)) {
		m.log.Warn("listeners still running at stop")
	}
	m.log.Info("stopped")
}

// setStateLocked must be called with mu held
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.log.WithFields(logrus.Fields{
		"from": m.state,
		"to":   s,
	}).Debug("state change")
	m.state = s
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
