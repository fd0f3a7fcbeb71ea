// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WEBASTO_HOST", " 192.168.4.1 ")
	t.Setenv("WEBASTO_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("WEBASTO_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "192.168.4.1", cfg.Host)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.MQTT.Enabled())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webastostat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: heater.local
mqtt:
  broker: tcp://localhost:1883
  node_id: garage_heater
refresh:
  schedule: "*/5 * * * *"
`), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "heater.local", cfg.Host)
	assert.Equal(t, "garage_heater", cfg.MQTT.NodeID)
	assert.Equal(t, "webastostat", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "*/5 * * * *", cfg.Refresh.Schedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host  string
		valid bool
	}{
		{"192.168.4.1", true},
		{"heater.local", true},
		{"[fe80::1]", true},
		{"", false},
		{"ws://192.168.4.1", false},
		{"192.168.4.1:81", false},
		{"heater.local/ws", false},
		{"fe80::1", false},
		{"heater local", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Host: "heater.local",
			Log:  LogConfig{Level: "info", Format: "text"},
			HTTP: HTTPConfig{Listen: ":8080"},
			MQTT: MQTTConfig{DiscoveryPrefix: "homeassistant", TopicPrefix: "webastostat", NodeID: "webasto_heater"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad listen", func(c *Config) { c.HTTP.Listen = "8080" }},
		{"bad node id", func(c *Config) { c.MQTT.Broker = "tcp://b:1883"; c.MQTT.NodeID = "a/b" }},
		{"missing discovery prefix", func(c *Config) { c.MQTT.Broker = "tcp://b:1883"; c.MQTT.DiscoveryPrefix = "" }},
		{"bad schedule", func(c *Config) { c.Refresh.Schedule = "every minute" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
