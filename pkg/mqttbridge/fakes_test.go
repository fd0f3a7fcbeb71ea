// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbridge

import (
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// ============================================================
// Fake Broker Client
// ============================================================

type published struct {
	topic    string
	payload  string
	retained bool
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	publishes    []published
	handlers     map[string]pahomqtt.MessageHandler
	disconnected bool
	publishErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return newToken(nil)
}

func (c *fakeClient) Disconnect(_ uint) {
	c.mu.Lock()
	c.connected = false
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return newToken(c.publishErr)
	}
	c.publishes = append(c.publishes, published{topic: topic, payload: string(payload.([]byte)), retained: retained})
	return newToken(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
	return newToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return newToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.handlers, topic)
	}
	c.mu.Unlock()
	return newToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
}

func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// deliver routes a message to the handler subscribed with filter
func (c *fakeClient) deliver(filter, topic, payload string) {
	c.mu.Lock()
	h := c.handlers[filter]
	c.mu.Unlock()
	h(c, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func (c *fakeClient) all() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.publishes...)
}

// last returns the most recent payload published on topic
func (c *fakeClient) last(topic string) (string, bool) {
	msgs := c.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].topic == topic {
			return msgs[i].payload, true
		}
	}
	return "", false
}

func (c *fakeClient) count(topic string) int {
	n := 0
	for _, p := range c.all() {
		if p.topic == topic {
			n++
		}
	}
	return n
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qosAtLeastOnce }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// ============================================================
// Fake Heater
// ============================================================

type fakeSource struct {
	mu        sync.Mutex
	connected bool
	snapshot  webasto.Snapshot
	sent      []string
	refuse    bool
}

func newFakeSource(fields ...webasto.Field) *fakeSource {
	s := webasto.NewSnapshot()
	s.Merge(fields)
	return &fakeSource{connected: true, snapshot: s}
}

func (s *fakeSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSource) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *fakeSource) Snapshot() webasto.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

func (s *fakeSource) SendCommand(cmd string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse {
		return false
	}
	s.sent = append(s.sent, cmd)
	return true
}

func (s *fakeSource) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}
