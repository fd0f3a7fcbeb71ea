// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package entities describes the controller as a set of home-automation
// entities (sensors, binary sensors, settings and buttons) and derives
// their states from a snapshot.
package entities

import "github.com/Thermoquad/webastostat/pkg/webasto"

// Kind is the entity platform
type Kind string

const (
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
	KindNumber       Kind = "number"
	KindButton       Kind = "button"
)

// Category groups entities the way home-automation frontends do
type Category string

const (
	CategoryNone       Category = ""
	CategoryDiagnostic Category = "diagnostic"
	CategoryConfig     Category = "config"
)

// Entity is one catalogue entry
type Entity struct {
	Key         string // stable object id
	Kind        Kind
	Name        string
	Icon        string
	Unit        string
	DeviceClass string
	StateClass  string
	Category    Category

	// Field is the snapshot key backing the entity. Derived entities and
	// buttons leave it empty.
	Field string

	// Number range
	Min, Max, Step float64

	// Command sent when a button is pressed. The save button has none and
	// builds a SET: command instead.
	Command string

	derive func(webasto.Snapshot) (any, bool)
}

// UniqueID returns the identifier used for discovery
func (e Entity) UniqueID() string {
	return "webasto_" + e.Key
}

// Well-known keys
const (
	KeyCurrentStateText    = "current_state_text"
	KeyWifiStatusText      = "wifi_status_text"
	KeyWifiConnectedStatus = "wifi_connected_status"
	KeySaveSettings        = "save_settings"
)

func sensor(field, name, unit, icon, deviceClass, stateClass string) Entity {
	return Entity{
		Key: field, Field: field, Kind: KindSensor, Name: name, Unit: unit,
		Icon: icon, DeviceClass: deviceClass, StateClass: stateClass,
	}
}

func binarySensor(field, name, icon, deviceClass string, category Category) Entity {
	return Entity{
		Key: field, Field: field, Kind: KindBinarySensor, Name: name,
		Icon: icon, DeviceClass: deviceClass, Category: category,
	}
}

func number(field, name string, min, max, step float64, icon, unit string) Entity {
	return Entity{
		Key: field, Field: field, Kind: KindNumber, Name: name,
		Min: min, Max: max, Step: step, Icon: icon, Unit: unit,
		Category: CategoryConfig,
	}
}

func button(key, name, icon, command string) Entity {
	return Entity{Key: key, Kind: KindButton, Name: name, Icon: icon, Command: command}
}

func diagnostic(e Entity) Entity {
	e.Category = CategoryDiagnostic
	return e
}

var catalogue = []Entity{
	// Sensors
	sensor("exhaust_temp", "Exhaust temperature", "°C", "mdi:thermometer", "temperature", "measurement"),
	sensor("fan_speed", "Fan speed", "%", "mdi:fan", "", "measurement"),
	sensor("fuel_rate_hz", "Fuel rate", "Hz", "mdi:fuel", "frequency", "measurement"),
	sensor("burn_mode", "Burn mode", "", "mdi:tune", "", ""),
	sensor("attempt", "Start attempt", "", "mdi:counter", "", ""),
	sensor("message", "Status", "", "mdi:information-outline", "", ""),
	diagnostic(sensor("wifi_ssid", "Wi-Fi SSID", "", "mdi:wifi-marker", "", "")),
	diagnostic(sensor("wifi_ip", "Wi-Fi IP address", "", "mdi:ip-network", "", "")),
	sensor("total_fuel_consumed_liters", "Fuel consumed", "L", "mdi:fuel", "volume", "total_increasing"),
	sensor("fuel_consumption_per_hour", "Estimated consumption per hour", "L/h", "mdi:fuel", "", "measurement"),
	{
		Key: KeyCurrentStateText, Kind: KindSensor, Name: "Current mode",
		Icon: "mdi:state-machine", derive: currentStateText,
	},
	{
		Key: KeyWifiStatusText, Kind: KindSensor, Name: "Wi-Fi status",
		Icon: "mdi:wifi-cog", Category: CategoryDiagnostic, derive: wifiStatusText,
	},

	// Binary sensors
	binarySensor("burn", "Burning", "mdi:fire", "running", CategoryNone),
	binarySensor("webasto_fail", "Heater fault", "mdi:alert-circle", "problem", CategoryNone),
	binarySensor("debug_glow_plug_on", "Glow plug", "mdi:lightbulb-on-outline", "light", CategoryDiagnostic),
	binarySensor("fuel_pumping_active", "Fuel priming", "mdi:pump", "running", CategoryNone),
	binarySensor("logging_enabled", "Logging enabled", "mdi:file-document-outline", "running", CategoryDiagnostic),
	{
		Key: KeyWifiConnectedStatus, Kind: KindBinarySensor, Name: "Wi-Fi connected",
		Icon: "mdi:wifi", DeviceClass: "connectivity", Category: CategoryDiagnostic,
		derive: wifiConnected,
	},

	// Settings, in the order the firmware expects them in SET:
	number("pump_size", "Pump size", 10, 100, 1, "mdi:pump", ""),
	number("heater_target", "Heater target temperature", 150, 250, 1, "mdi:thermometer-plus", "°C"),
	number("heater_min", "Heater minimum temperature", 140, 240, 1, "mdi:thermometer-minus", "°C"),
	number("heater_overheat", "Overheat temperature", 200, 300, 1, "mdi:thermometer-alert", "°C"),
	number("heater_warning", "Warning temperature", 180, 280, 1, "mdi:thermometer-lines", "°C"),
	number("max_pwm_fan", "Max fan PWM", 0, 255, 1, "mdi:fan-speed-1", ""),
	number("glow_brightness", "Glow plug brightness", 0, 255, 1, "mdi:lightbulb-on", ""),
	number("glow_fade_in_duration", "Glow plug fade-in time", 0, 60000, 100, "mdi:timer-outline", "ms"),
	number("glow_fade_out_duration", "Glow plug fade-out time", 0, 60000, 100, "mdi:timer-off-outline", "ms"),

	// Buttons
	button("toggle_burn", "Start / stop", "mdi:power", webasto.CmdEnter),
	button("up_mode", "Mode up", "mdi:arrow-up-bold", webasto.CmdUp),
	button("down_mode", "Mode down", "mdi:arrow-down-bold", webasto.CmdDown),
	button("fuel_pump", "Prime fuel pump", "mdi:pump", webasto.CmdFuelPump),
	button("clear_fail", "Clear fault", "mdi:alert-remove", webasto.CmdClearFail),
	button(KeySaveSettings, "Save settings", "mdi:content-save-outline", ""),
	button("reset_settings", "Reset settings", "mdi:restore", webasto.CmdResetSettings),
	button("load_settings", "Load settings", "mdi:download", webasto.CmdGetSettings),
	button("reset_wifi", "Reset Wi-Fi", "mdi:wifi-off", webasto.CmdResetWifi),
	button("reboot_esp", "Reboot controller", "mdi:restart", webasto.CmdRebootESP),
	button("reset_fuel_consumption", "Reset fuel consumption", "mdi:counter", webasto.CmdResetFuelConsumption),
	button("enable_logging", "Enable logging", "mdi:file-document-edit-outline", webasto.CmdLogOn),
	button("disable_logging", "Disable logging", "mdi:file-document-remove-outline", webasto.CmdLogOff),
}

// All returns every entity in catalogue order
func All() []Entity {
	out := make([]Entity, len(catalogue))
	copy(out, catalogue)
	return out
}

// OfKind returns the entities of one platform in catalogue order
func OfKind(kind Kind) []Entity {
	var out []Entity
	for _, e := range catalogue {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds an entity by platform and key
func Lookup(kind Kind, key string) (Entity, bool) {
	for _, e := range catalogue {
		if e.Kind == kind && e.Key == key {
			return e, true
		}
	}
	return Entity{}, false
}
