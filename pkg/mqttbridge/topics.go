// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbridge

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/webastostat/pkg/entities"
)

// Availability payloads
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
	PayloadPress   = "PRESS"
)

// Topics builds the bridge's topic names
type Topics struct {
	DiscoveryPrefix string
	TopicPrefix     string
	NodeID          string
}

func (t Topics) base() string {
	return t.TopicPrefix + "/" + t.NodeID
}

// Discovery returns the retained config topic for an entity.
//
// Example: homeassistant/sensor/webasto_heater/exhaust_temp/config
func (t Topics) Discovery(e entities.Entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, e.Kind, t.NodeID, e.Key)
}

// Availability returns the online/offline topic
func (t Topics) Availability() string {
	return t.base() + "/availability"
}

// State returns the topic carrying the JSON state document
func (t Topics) State() string {
	return t.base() + "/state"
}

// ButtonPress returns the command topic of a button
func (t Topics) ButtonPress(key string) string {
	return fmt.Sprintf("%s/button/%s/press", t.base(), key)
}

// NumberSet returns the command topic of a setting
func (t Topics) NumberSet(key string) string {
	return fmt.Sprintf("%s/number/%s/set", t.base(), key)
}

// Command returns the raw command passthrough topic
func (t Topics) Command() string {
	return t.base() + "/command"
}

// Subscriptions returns the filters the bridge listens on
func (t Topics) Subscriptions() []string {
	return []string{
		t.ButtonPress("+"),
		t.NumberSet("+"),
		t.Command(),
	}
}

// parse splits an inbound topic into platform and entity key. Raw commands
// report kind "command" and no key.
func (t Topics) parse(topic string) (kind, key string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base()+"/")
	if !found {
		return "", "", false
	}
	if rest == "command" {
		return "command", "", true
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", "", false
	}
	switch {
	case parts[0] == string(entities.KindButton) && parts[2] == "press":
		return parts[0], parts[1], true
	case parts[0] == string(entities.KindNumber) && parts[2] == "set":
		return parts[0], parts[1], true
	}
	return "", "", false
}
