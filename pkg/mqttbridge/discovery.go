// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbridge

import (
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/webastostat/pkg/entities"
)

// Device groups every entity under one device in the frontend
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	ConfigURL    string   `json:"configuration_url,omitempty"`
}

// DiscoveryConfig is the Home Assistant MQTT discovery document
type DiscoveryConfig struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	ObjectID            string   `json:"object_id"`
	Icon                string   `json:"icon,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	EntityCategory      string   `json:"entity_category,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	StateTopic          string   `json:"state_topic,omitempty"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	PayloadPress        string   `json:"payload_press,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	Min                 *float64 `json:"min,omitempty"`
	Max                 *float64 `json:"max,omitempty"`
	Step                *float64 `json:"step,omitempty"`
	Mode                string   `json:"mode,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	PayloadAvailable    string   `json:"payload_available"`
	PayloadNotAvailable string   `json:"payload_not_available"`
	Device              Device   `json:"device"`
}

// discoveryConfig builds the discovery document for e
func discoveryConfig(e entities.Entity, topics Topics, device Device) DiscoveryConfig {
	cfg := DiscoveryConfig{
		Name:                e.Name,
		UniqueID:            fmt.Sprintf("%s_%s", topics.NodeID, e.Key),
		ObjectID:            e.UniqueID(),
		Icon:                e.Icon,
		DeviceClass:         e.DeviceClass,
		EntityCategory:      string(e.Category),
		AvailabilityTopic:   topics.Availability(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		Device:              device,
	}

	switch e.Kind {
	case entities.KindSensor:
		cfg.StateTopic = topics.State()
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", e.Key)
		cfg.UnitOfMeasurement = e.Unit
		cfg.StateClass = e.StateClass
	case entities.KindBinarySensor:
		cfg.StateTopic = topics.State()
		cfg.ValueTemplate = fmt.Sprintf("{{ 'ON' if value_json.%s else 'OFF' }}", e.Key)
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"
	case entities.KindNumber:
		cfg.StateTopic = topics.State()
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", e.Key)
		cfg.CommandTopic = topics.NumberSet(e.Key)
		cfg.UnitOfMeasurement = e.Unit
		cfg.Min, cfg.Max, cfg.Step = &e.Min, &e.Max, &e.Step
		cfg.Mode = "slider"
	case entities.KindButton:
		cfg.CommandTopic = topics.ButtonPress(e.Key)
		cfg.PayloadPress = PayloadPress
	}
	return cfg
}

func marshalDiscovery(e entities.Entity, topics Topics, device Device) ([]byte, error) {
	return json.Marshal(discoveryConfig(e, topics, device))
}
