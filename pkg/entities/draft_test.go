// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package entities

import (
	"testing"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommander struct {
	connected bool
	sent      []string
}

func (r *recordingCommander) SendCommand(cmd string) bool {
	if !r.connected {
		return false
	}
	r.sent = append(r.sent, cmd)
	return true
}

func TestDraft_Set(t *testing.T) {
	d := NewDraft()

	require.NoError(t, d.Set("heater_target", 200.7))
	v, ok := d.Get("heater_target")
	assert.True(t, ok)
	assert.Equal(t, int64(200), v)

	assert.ErrorIs(t, d.Set("heater_target", 251), ErrOutOfRange)
	assert.ErrorIs(t, d.Set("pump_size", 9), ErrOutOfRange)
	assert.ErrorIs(t, d.Set("exhaust_temp", 100), ErrUnknownEntity)
	assert.Equal(t, 1, d.Len())

	d.Clear()
	assert.Zero(t, d.Len())
}

func TestDraft_SaveCommandFromSnapshot(t *testing.T) {
	d := NewDraft()
	cmd, err := d.SaveCommand(snapshot(t, fullSettings))
	require.NoError(t, err)
	assert.Equal(t, "SET:pump_size=22,heater_target=195,heater_min=150,heater_overheat=250,"+
		"heater_warning=230,max_pwm_fan=200,glow_brightness=128,"+
		"glow_fade_in_duration=2500,glow_fade_out_duration=3000", cmd)
}

func TestDraft_SaveCommandPrefersDraft(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.Set("pump_size", 30))
	require.NoError(t, d.Set("glow_fade_out_duration", 4000))

	cmd, err := d.SaveCommand(snapshot(t, fullSettings))
	require.NoError(t, err)

	settings, err := webasto.ParseSetCommand(cmd)
	require.NoError(t, err)
	require.Len(t, settings, 9)
	assert.Equal(t, webasto.Setting{Key: "pump_size", Value: 30}, settings[0])
	assert.Equal(t, webasto.Setting{Key: "glow_fade_out_duration", Value: 4000}, settings[8])
}

func TestDraft_SaveCommandClampsReported(t *testing.T) {
	d := NewDraft()
	cmd, err := d.SaveCommand(snapshot(t, fullSettings, `{"max_pwm_fan": 999}`))
	require.NoError(t, err)
	assert.Contains(t, cmd, "max_pwm_fan=255")
}

func TestDraft_SaveCommandMissing(t *testing.T) {
	d := NewDraft()
	_, err := d.SaveCommand(snapshot(t, "CURRENT_SETTINGS:pump_size=22"))
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "heater_target")

	// A full draft needs nothing from the snapshot
	for _, e := range OfKind(KindNumber) {
		require.NoError(t, d.Set(e.Key, e.Min))
	}
	_, err = d.SaveCommand(webasto.NewSnapshot())
	assert.NoError(t, err)
}

func TestPress(t *testing.T) {
	c := &recordingCommander{connected: true}

	cmd, err := Press(c, "toggle_burn", nil, webasto.NewSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "ENTER", cmd)

	_, err = Press(c, "self_destruct", nil, webasto.NewSnapshot())
	assert.ErrorIs(t, err, ErrUnknownEntity)

	assert.Equal(t, []string{"ENTER"}, c.sent)
}

func TestPress_SaveClearsDraft(t *testing.T) {
	c := &recordingCommander{connected: true}
	d := NewDraft()
	require.NoError(t, d.Set("pump_size", 40))

	cmd, err := Press(c, KeySaveSettings, d, snapshot(t, fullSettings))
	require.NoError(t, err)
	assert.Contains(t, cmd, "pump_size=40")
	assert.Zero(t, d.Len())
}

func TestPress_NotConnectedKeepsDraft(t *testing.T) {
	c := &recordingCommander{}
	d := NewDraft()
	require.NoError(t, d.Set("pump_size", 40))

	_, err := Press(c, KeySaveSettings, d, snapshot(t, fullSettings))
	assert.ErrorIs(t, err, ErrNotSent)
	assert.Equal(t, 1, d.Len())
}

func TestDraft_Apply(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.Set("heater_target", 210))

	states := States(snapshot(t, fullSettings))
	assert.Equal(t, 195.0, states["heater_target"])

	d.Apply(states)
	assert.Equal(t, 210.0, states["heater_target"])
	assert.Equal(t, 22.0, states["pump_size"])
}
