// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Thermoquad/webastostat/pkg/api"
	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/metrics"
	"github.com/Thermoquad/webastostat/pkg/mqttbridge"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived bridge: HTTP API, metrics and MQTT",
	Long: `Keep a session open to the controller and expose it to other systems.

Components:
  - HTTP API on http.listen (default :8080): /healthz, /api/snapshot,
    /api/entities, /api/commands, /api/buttons/:key/press, /api/settings
  - Prometheus metrics on /metrics
  - MQTT bridge with Home Assistant discovery, when mqtt.broker is set
  - Periodic GET_SETTINGS refresh, when refresh.schedule is set (cron syntax)

Settings edited through the API and MQTT share one draft, so a save from
either frontend includes every pending edit.

Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	serveCmd.Flags().String("refresh", "", "Cron schedule for GET_SETTINGS refresh, e.g. */5 * * * *")

	_ = v.BindPFlag("http.listen", serveCmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("mqtt.broker", serveCmd.Flags().Lookup("mqtt-broker"))
	_ = v.BindPFlag("refresh.schedule", serveCmd.Flags().Lookup("refresh"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signalContext()
	defer stop()

	mgr := newManager(nil)
	defer mgr.Stop()

	draft := entities.NewDraft()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(mgr, cfg.Host),
	)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	// HTTP API
	server := api.New(mgr, api.Options{
		Draft:       draft,
		Gatherer:    reg,
		HTTPMetrics: httpMetrics,
		Logger:      logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		logger.WithField("listen", cfg.HTTP.Listen).Info("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// MQTT bridge
	if cfg.MQTT.Enabled() {
		bridge, err := startBridge(ctx, mgr, draft)
		if err != nil {
			return err
		}
		defer bridge.Close()
	}

	// Settings refresh
	if cfg.Refresh.Schedule != "" {
		scheduler, err := newRefreshScheduler(mgr, cfg.Refresh.Schedule, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	if !mgr.Connect(ctx) {
		logger.WithField("url", mgr.URL()).Warn("Initial connection failed, retrying in background")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-httpErr:
		logger.WithError(runErr).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown incomplete")
	}
	return runErr
}

func startBridge(ctx context.Context, mgr *connection.Manager, draft *entities.Draft) (*mqttbridge.Bridge, error) {
	password := cfg.MQTT.Password
	if cfg.MQTT.Username != "" && password == "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, err
		}
	}

	bridge := mqttbridge.New(mgr, mqttbridge.Options{
		Broker:   cfg.MQTT.Broker,
		Username: cfg.MQTT.Username,
		Password: password,
		Topics: mqttbridge.Topics{
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			TopicPrefix:     cfg.MQTT.TopicPrefix,
			NodeID:          cfg.MQTT.NodeID,
		},
		Draft:  draft,
		Logger: logger,
	})

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bridge.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("mqtt %s: %w", cfg.MQTT.Broker, err)
	}

	mgr.AddListener(bridge)
	go bridge.Run(ctx)
	return bridge, nil
}

// newRefreshScheduler asks the controller for its settings on schedule
func newRefreshScheduler(sender entities.Commander, schedule string, log logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if !sender.SendCommand(webasto.CmdGetSettings) {
			log.Debug("Settings refresh skipped: not connected")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	return c, nil
}
