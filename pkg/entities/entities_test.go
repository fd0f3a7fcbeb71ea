// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package entities

import (
	"testing"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, frames ...string) webasto.Snapshot {
	t.Helper()
	s := webasto.NewSnapshot()
	for _, raw := range frames {
		frame, err := webasto.Decode(raw)
		require.NoError(t, err)
		s.Merge(frame.Fields)
	}
	return s
}

const fullSettings = "CURRENT_SETTINGS:pump_size=22,heater_target=195,heater_min=150," +
	"heater_overheat=250,heater_warning=230,max_pwm_fan=200,glow_brightness=128," +
	"glow_fade_in_duration=2500,glow_fade_out_duration=3000"

// ============================================================
// Catalogue
// ============================================================

func TestCatalogue_Counts(t *testing.T) {
	assert.Len(t, OfKind(KindSensor), 12)
	assert.Len(t, OfKind(KindBinarySensor), 6)
	assert.Len(t, OfKind(KindNumber), 9)
	assert.Len(t, OfKind(KindButton), 13)
}

func TestCatalogue_UniqueKeys(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range All() {
		id := string(e.Kind) + "/" + e.Key
		assert.False(t, seen[id], "duplicate entity %s", id)
		seen[id] = true
	}
}

func TestCatalogue_NumberRanges(t *testing.T) {
	tests := []struct {
		key            string
		min, max, step float64
	}{
		{"pump_size", 10, 100, 1},
		{"heater_target", 150, 250, 1},
		{"heater_min", 140, 240, 1},
		{"heater_overheat", 200, 300, 1},
		{"heater_warning", 180, 280, 1},
		{"max_pwm_fan", 0, 255, 1},
		{"glow_brightness", 0, 255, 1},
		{"glow_fade_in_duration", 0, 60000, 100},
		{"glow_fade_out_duration", 0, 60000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			e, ok := Lookup(KindNumber, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.min, e.Min)
			assert.Equal(t, tt.max, e.Max)
			assert.Equal(t, tt.step, e.Step)
			assert.Equal(t, CategoryConfig, e.Category)
		})
	}
}

func TestCatalogue_ButtonCommands(t *testing.T) {
	want := map[string]string{
		"toggle_burn":            "ENTER",
		"up_mode":                "UP",
		"down_mode":              "DOWN",
		"fuel_pump":              "FP",
		"clear_fail":             "CF",
		"reset_settings":         "RESET_SETTINGS",
		"load_settings":          "GET_SETTINGS",
		"reset_wifi":             "RESET_WIFI",
		"reboot_esp":             "REBOOT_ESP",
		"reset_fuel_consumption": "RESET_FUEL_CONSUMPTION",
		"enable_logging":         "LOG_ON",
		"disable_logging":        "LOG_OFF",
		KeySaveSettings:          "",
	}
	for key, cmd := range want {
		e, ok := Lookup(KindButton, key)
		require.True(t, ok, key)
		assert.Equal(t, cmd, e.Command, key)
	}
}

// ============================================================
// State Derivation
// ============================================================

func TestState_Sensors(t *testing.T) {
	s := snapshot(t, `{"exhaust_temp": 181.5, "fan_speed": 40, "message": "Heating", "attempt": "2", "burn_mode": null}`)

	tests := []struct {
		key      string
		expected any
		known    bool
	}{
		{"exhaust_temp", 181.5, true},
		{"fan_speed", int64(40), true},
		{"message", "Heating", true},
		{"attempt", "2", true},
		{"wifi_ip", nil, false},
		{"burn_mode", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			e, ok := Lookup(KindSensor, tt.key)
			require.True(t, ok)
			v, known := e.State(s)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestState_CurrentStateText(t *testing.T) {
	e, _ := Lookup(KindSensor, KeyCurrentStateText)

	tests := []struct {
		frame    string
		expected string
	}{
		{`{"currentState": 0}`, "HIGH"},
		{`{"currentState": 1}`, "MID"},
		{`{"currentState": 2}`, "LOW"},
		{`{"currentState": 2.0}`, "LOW"},
		{`{"currentState": 7}`, "Unknown"},
		{`{"currentState": "1"}`, "Unknown"},
		{`{"other": 1}`, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			v, ok := e.State(snapshot(t, tt.frame))
			assert.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestState_Wifi(t *testing.T) {
	text, _ := Lookup(KindSensor, KeyWifiStatusText)
	connected, _ := Lookup(KindBinarySensor, KeyWifiConnectedStatus)

	up := snapshot(t, `{"wifi_status": 3}`)
	v, _ := text.State(up)
	assert.Equal(t, "Connected", v)
	v, _ = connected.State(up)
	assert.Equal(t, true, v)

	setup := snapshot(t, `{"wifi_status": 1}`)
	v, _ = text.State(setup)
	assert.Equal(t, "AP setup", v)
	v, _ = connected.State(setup)
	assert.Equal(t, false, v)

	v, ok := connected.State(webasto.NewSnapshot())
	assert.True(t, ok)
	assert.Equal(t, false, v)
}

func TestState_BinarySensors(t *testing.T) {
	e, _ := Lookup(KindBinarySensor, "burn")

	tests := []struct {
		frame    string
		expected any
		known    bool
	}{
		{`{"burn": true}`, true, true},
		{`{"burn": 0}`, false, true},
		{`{"burn": 1}`, true, true},
		{`{"burn": "ON"}`, true, true},
		{`{"burn": "nope"}`, false, true},
		{`{"burn": 0.0}`, false, true},
		{`{"fan_speed": 1}`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			v, known := e.State(snapshot(t, tt.frame))
			assert.Equal(t, tt.known, known)
			if tt.known {
				assert.Equal(t, tt.expected, v)
			}
		})
	}
}

func TestState_NumbersClamped(t *testing.T) {
	e, _ := Lookup(KindNumber, "heater_target")

	v, ok := e.State(snapshot(t, `{"heater_target": 400}`))
	assert.True(t, ok)
	assert.Equal(t, 250.0, v)

	v, ok = e.State(snapshot(t, `{"heater_target": 100}`))
	assert.True(t, ok)
	assert.Equal(t, 150.0, v)

	v, ok = e.State(snapshot(t, `CURRENT_SETTINGS:heater_target=195`))
	assert.True(t, ok)
	assert.Equal(t, 195.0, v)

	_, ok = e.State(snapshot(t, `{"heater_target": "warm"}`))
	assert.False(t, ok)
}

func TestStates_ExcludesButtons(t *testing.T) {
	states := States(snapshot(t, `{"burn": true}`))
	assert.Equal(t, true, states["burn"])
	assert.Contains(t, states, "pump_size")
	assert.Nil(t, states["pump_size"])
	assert.NotContains(t, states, "toggle_burn")
	assert.Equal(t, "Unknown", states[KeyCurrentStateText])
}
