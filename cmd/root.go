// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/webastostat/internal/config"
	"github.com/Thermoquad/webastostat/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	configFile string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *logrus.Logger

	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "webastostat",
	Short: "Webasto ESP8266 controller client",
	Long: `Webastostat - A CLI tool for monitoring and controlling a Webasto heater
through its ESP8266 WebSocket controller.

The controller listens on ws://<host>:81/ and pushes JSON status frames, plus
legacy CURRENT_SETTINGS: frames on older firmware. Commands are plain text.

Configuration sources, highest precedence first:
  Flags:        --host 192.168.4.1 --log-level debug
  Environment:  WEBASTO_HOST, WEBASTO_LOG_LEVEL, WEBASTO_MQTT_BROKER, ...
  Config file:  ./webastostat.yaml or ~/.config/webastostat/webastostat.yaml

The MQTT password is read from WEBASTO_MQTT_PASSWORD or the config file, or
prompted interactively when a username is configured without one. A
--password flag is intentionally not provided to avoid leaking credentials
in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", "", "Controller hostname or IP address (no scheme or port)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	flags.String("log-format", "", "Log format: text or json (default text)")
	flags.StringVar(&configFile, "config", "", "Config file (default ./webastostat.yaml)")

	_ = v.BindPFlag("host", flags.Lookup("host"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(v, configFile)
	if err != nil {
		return err
	}

	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	return nil
}

// requireHost validates the loaded configuration for commands that talk to
// the controller
func requireHost() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w (set --host or WEBASTO_HOST)", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
