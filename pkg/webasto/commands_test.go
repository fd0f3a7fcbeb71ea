// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSetCommand(t *testing.T) {
	cmd, err := BuildSetCommand([]Setting{
		{Key: "pump_size", Value: 22},
		{Key: "heater_target", Value: 195},
		{Key: "max_pwm_fan", Value: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "SET:pump_size=22,heater_target=195,max_pwm_fan=0", cmd)
}

func TestBuildSetCommand_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		settings []Setting
	}{
		{"empty list", nil},
		{"empty key", []Setting{{Key: "", Value: 1}}},
		{"comma in key", []Setting{{Key: "a,b", Value: 1}}},
		{"equals in key", []Setting{{Key: "a=b", Value: 1}}},
		{"colon in key", []Setting{{Key: "SET:a", Value: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSetCommand(tt.settings)
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}

func TestParseSetCommand_RoundTrip(t *testing.T) {
	in := []Setting{
		{Key: "heater_min", Value: 150},
		{Key: "glow_fade_in_duration", Value: 2500},
		{Key: "heater_overheat", Value: -1},
	}
	cmd, err := BuildSetCommand(in)
	require.NoError(t, err)

	out, err := ParseSetCommand(cmd)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseSetCommand_Invalid(t *testing.T) {
	for _, cmd := range []string{"GET_SETTINGS", "SET:", "SET:a", "SET:a=x", "SET:=1"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := ParseSetCommand(cmd)
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}
