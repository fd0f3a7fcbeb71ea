// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package entities

import (
	"math"

	"github.com/Thermoquad/webastostat/pkg/webasto"
)

// Current mode names reported for currentState
var currentStateNames = map[int64]string{
	0: "HIGH",
	1: "MID",
	2: "LOW",
}

const (
	unknownStateText  = "Unknown"
	wifiConnectedText = "Connected"
	wifiAPSetupText   = "AP setup"
)

// State derives the entity's state from s. ok is false when the state is
// unknown. Buttons never have a state.
func (e Entity) State(s webasto.Snapshot) (any, bool) {
	if e.derive != nil {
		return e.derive(s)
	}
	if e.Field == "" {
		return nil, false
	}
	v, ok := s.Get(e.Field)
	if !ok {
		return nil, false
	}

	switch e.Kind {
	case KindSensor:
		return sensorValue(v)
	case KindBinarySensor:
		return v.Truthy()
	case KindNumber:
		f, ok := e.NumberValue(v)
		if !ok {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// NumberValue interprets v as this setting, clamped to the entity range
func (e Entity) NumberValue(v webasto.Value) (float64, bool) {
	f, ok := v.Float64()
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return math.Max(e.Min, math.Min(e.Max, f)), true
}

// States derives every stateful entity, keyed by entity key. Unknown states
// are reported as nil.
func States(s webasto.Snapshot) map[string]any {
	out := make(map[string]any, len(catalogue))
	for _, e := range catalogue {
		if e.Kind == KindButton {
			continue
		}
		v, ok := e.State(s)
		if !ok {
			v = nil
		}
		out[e.Key] = v
	}
	return out
}

func sensorValue(v webasto.Value) (any, bool) {
	switch v.Kind() {
	case webasto.KindInt, webasto.KindFloat:
		return v.Interface(), true
	case webasto.KindInvalid, webasto.KindNull:
		return nil, false
	default:
		return v.String(), true
	}
}

func wifiStatus(s webasto.Snapshot) (float64, bool) {
	v, ok := s.Get(webasto.FieldWifiStatus)
	if !ok || v.Kind() == webasto.KindString || v.Kind() == webasto.KindBool {
		return 0, false
	}
	return v.Float64()
}

func currentStateText(s webasto.Snapshot) (any, bool) {
	v, ok := s.Get(webasto.FieldCurrentState)
	if !ok {
		return unknownStateText, true
	}
	var n int64
	switch v.Kind() {
	case webasto.KindInt:
		n, _ = v.AsInt()
	case webasto.KindFloat:
		f, _ := v.Float64()
		if f != math.Trunc(f) {
			return unknownStateText, true
		}
		n = int64(f)
	default:
		return unknownStateText, true
	}
	if name, ok := currentStateNames[n]; ok {
		return name, true
	}
	return unknownStateText, true
}

func wifiStatusText(s webasto.Snapshot) (any, bool) {
	if status, ok := wifiStatus(s); ok && status == webasto.WifiStatusConnected {
		return wifiConnectedText, true
	}
	return wifiAPSetupText, true
}

func wifiConnected(s webasto.Snapshot) (any, bool) {
	status, ok := wifiStatus(s)
	return ok && status == webasto.WifiStatusConnected, true
}
