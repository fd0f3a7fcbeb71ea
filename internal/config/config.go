// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads webastostat settings from flags, WEBASTO_*
// environment variables and an optional webastostat.yaml.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "WEBASTO"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Host    string        `mapstructure:"host"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Refresh RefreshConfig `mapstructure:"refresh"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

type MQTTConfig struct {
	Broker          string `mapstructure:"broker"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	TopicPrefix     string `mapstructure:"topic_prefix"`
	NodeID          string `mapstructure:"node_id"`
}

// Enabled reports whether a broker is configured
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type RefreshConfig struct {
	// Schedule is a standard five-field cron spec; empty disables refresh
	Schedule string `mapstructure:"schedule"`
}

// SetDefaults registers every key so environment overrides are seen by
// Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.topic_prefix", "webastostat")
	v.SetDefault("mqtt.node_id", "webasto_heater")
	v.SetDefault("refresh.schedule", "")
}

// Load reads configuration into a Config. configFile overrides the search
// for webastostat.yaml; a missing default file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("webastostat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "webastostat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	return &cfg, nil
}

var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks every setting, reporting all problems at once
func (c *Config) Validate() error {
	var problems []string

	if err := ValidateHost(c.Host); err != nil {
		problems = append(problems, err.Error())
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.HTTP.Listen != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			problems = append(problems, fmt.Sprintf("http.listen %q: %v", c.HTTP.Listen, err))
		}
	}

	if c.MQTT.Enabled() {
		if c.MQTT.DiscoveryPrefix == "" {
			problems = append(problems, "mqtt.discovery_prefix is required when mqtt.broker is set")
		}
		if c.MQTT.TopicPrefix == "" {
			problems = append(problems, "mqtt.topic_prefix is required when mqtt.broker is set")
		}
		if !nodeIDPattern.MatchString(c.MQTT.NodeID) {
			problems = append(problems, fmt.Sprintf("mqtt.node_id %q must match %s", c.MQTT.NodeID, nodeIDPattern))
		}
	}

	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("refresh.schedule %q: %v", c.Refresh.Schedule, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateHost checks that host is a bare hostname or IP address. The
// controller port and path are fixed, so neither may be given.
func ValidateHost(host string) error {
	switch {
	case host == "":
		return errors.New("host is required")
	case strings.Contains(host, "://"):
		return fmt.Errorf("host %q must not include a scheme", host)
	case strings.ContainsAny(host, "/?#"):
		return fmt.Errorf("host %q must not include a path", host)
	case strings.ContainsAny(host, " \t"):
		return fmt.Errorf("host %q must not contain whitespace", host)
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return fmt.Errorf("host %q must not include a port", host)
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return fmt.Errorf("IPv6 host %q must be bracketed", host)
	}
	return nil
}
