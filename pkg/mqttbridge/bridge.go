// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttbridge mirrors the heater's entity catalogue onto an MQTT
// broker using Home Assistant discovery, and routes button presses and
// setting edits from the broker back to the controller.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	qosAtLeastOnce = 1

	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultSyncInterval   = 5 * time.Second
	disconnectQuiesceMs   = 1000
)

// Source is the heater side of the bridge
type Source interface {
	IsConnected() bool
	Snapshot() webasto.Snapshot
	SendCommand(cmd string) bool
}

// Options configure a Bridge
type Options struct {
	Broker   string
	Username string
	Password string
	ClientID string // generated when empty

	Topics Topics
	Device Device

	// SyncInterval is how often availability is reconciled with the
	// controller session
	SyncInterval time.Duration

	// Draft holds unsaved setting edits. Shared with other frontends so a
	// save from any of them includes every pending edit.
	Draft *entities.Draft

	Logger logrus.FieldLogger
}

// DefaultDevice describes the controller in discovery documents
func DefaultDevice(nodeID string) Device {
	return Device{
		Identifiers:  []string{nodeID},
		Name:         "Webasto Heater",
		Manufacturer: "Custom",
		Model:        "ESP8266 Webasto",
	}
}

// Bridge publishes heater state to MQTT. It implements the connection
// listener interface, so register it with the connection manager to
// receive snapshot updates.
type Bridge struct {
	client pahomqtt.Client
	source Source
	topics Topics
	device Device
	draft  *entities.Draft
	log    logrus.FieldLogger

	syncInterval time.Duration

	mu        sync.Mutex
	available *bool // last published availability
}

// New creates a bridge and its broker client. Nothing is sent until
// Connect.
func New(source Source, opts Options) *Bridge {
	b := newBridge(source, opts)
	b.client = pahomqtt.NewClient(b.clientOptions(opts))
	return b
}

func newBridge(source Source, opts Options) *Bridge {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.Draft == nil {
		opts.Draft = entities.NewDraft()
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Device.Name == "" {
		opts.Device = DefaultDevice(opts.Topics.NodeID)
	}

	return &Bridge{
		source:       source,
		topics:       opts.Topics,
		device:       opts.Device,
		draft:        opts.Draft,
		syncInterval: opts.SyncInterval,
		log:          opts.Logger.WithField("component", "mqtt"),
	}
}

func (b *Bridge) clientOptions(opts Options) *pahomqtt.ClientOptions {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "webastostat-" + uuid.NewString()
	}

	o := pahomqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(clientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	o.SetCleanSession(true)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectTimeout(defaultConnectTimeout)
	o.SetKeepAlive(60 * time.Second)

	// Broker marks the heater offline if the bridge dies
	o.SetWill(b.topics.Availability(), PayloadOffline, qosAtLeastOnce, true)

	o.SetOnConnectHandler(b.onConnect)
	o.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		b.log.WithError(err).Warn("Broker connection lost")
		b.mu.Lock()
		b.available = nil
		b.mu.Unlock()
	})
	return o
}

// Connect opens the broker session. Discovery, subscriptions and the first
// state document are sent from the connect handler, so they are repeated
// after every reconnect.
func (b *Bridge) Connect(ctx context.Context) error {
	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

func (b *Bridge) onConnect(_ pahomqtt.Client) {
	b.log.Info("Connected to broker")

	for _, filter := range b.topics.Subscriptions() {
		token := b.client.Subscribe(filter, qosAtLeastOnce, b.wrapHandler(b.handleMessage))
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			b.log.WithError(token.Error()).WithField("topic", filter).Error(ErrSubscribeFailed)
		}
	}

	if err := b.PublishDiscovery(); err != nil {
		b.log.WithError(err).Error("Failed to publish discovery")
	}
	b.syncAvailability(true)
	b.publishState(b.source.Snapshot())
}

// PublishDiscovery sends a retained config document for every entity
func (b *Bridge) PublishDiscovery() error {
	var errs []error
	for _, e := range entities.All() {
		payload, err := marshalDiscovery(e, b.topics, b.device)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.publish(b.topics.Discovery(e), payload, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
		}
	}
	return errors.Join(errs...)
}

// SnapshotChanged publishes the new state document
func (b *Bridge) SnapshotChanged(s webasto.Snapshot) {
	b.publishState(s)
	b.syncAvailability(false)
}

// Run reconciles availability with the controller session until ctx ends
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.syncAvailability(false)
		}
	}
}

// Close marks the heater offline and disconnects from the broker
func (b *Bridge) Close() {
	if b.client.IsConnected() {
		if err := b.publish(b.topics.Availability(), []byte(PayloadOffline), true); err != nil {
			b.log.WithError(err).Warn("Failed to publish offline status")
		}
	}
	b.client.Disconnect(disconnectQuiesceMs)
	b.log.Info("Disconnected from broker")
}

// syncAvailability publishes online or offline when the controller session
// changed since the last publish, or unconditionally when force is set
func (b *Bridge) syncAvailability(force bool) {
	online := b.source.IsConnected()

	b.mu.Lock()
	if !force && b.available != nil && *b.available == online {
		b.mu.Unlock()
		return
	}
	b.available = &online
	b.mu.Unlock()

	payload := PayloadOffline
	if online {
		payload = PayloadOnline
	}
	if err := b.publish(b.topics.Availability(), []byte(payload), true); err != nil {
		b.log.WithError(err).Warn("Failed to publish availability")
		b.mu.Lock()
		b.available = nil
		b.mu.Unlock()
	}
}

func (b *Bridge) publishState(s webasto.Snapshot) {
	states := entities.States(s)
	b.draft.Apply(states)

	payload, err := json.Marshal(states)
	if err != nil {
		b.log.WithError(err).Error("Failed to encode state")
		return
	}
	if err := b.publish(b.topics.State(), payload, true); err != nil && !errors.Is(err, ErrNotConnected) {
		b.log.WithError(err).Warn("Failed to publish state")
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	token := b.client.Publish(topic, qosAtLeastOnce, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (b *Bridge) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	kind, key, ok := b.topics.parse(msg.Topic())
	if !ok {
		b.log.WithField("topic", msg.Topic()).Debug("Ignoring message on unexpected topic")
		return
	}
	payload := strings.TrimSpace(string(msg.Payload()))
	log := b.log.WithFields(logrus.Fields{"kind": kind, "key": key})

	switch kind {
	case "command":
		if payload == "" {
			return
		}
		if !b.source.SendCommand(payload) {
			log.WithField("command", payload).Warn("Command not sent")
		}

	case string(entities.KindButton):
		cmd, err := entities.Press(b.source, key, b.draft, b.source.Snapshot())
		if err != nil {
			log.WithError(err).Warn("Button press failed")
			return
		}
		log.WithField("command", cmd).Info("Button pressed")
		if key == entities.KeySaveSettings {
			b.publishState(b.source.Snapshot())
		}

	case string(entities.KindNumber):
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			log.WithField("payload", payload).Warn("Setting value is not a number")
			return
		}
		if err := b.draft.Set(key, value); err != nil {
			log.WithError(err).Warn("Setting rejected")
			return
		}
		b.publishState(b.source.Snapshot())
	}
}

// wrapHandler keeps a faulty handler from taking down the client's router
func (b *Bridge) wrapHandler(h pahomqtt.MessageHandler) pahomqtt.MessageHandler {
	return func(c pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				b.log.WithFields(logrus.Fields{
					"topic": msg.Topic(),
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Panic in MQTT handler")
			}
		}()
		h(c, msg)
	}
}
