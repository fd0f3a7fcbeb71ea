// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes connection counters and snapshot fields as
// Prometheus metrics
package metrics

import (
	"strconv"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name
const Namespace = "webastostat"

// Source is the connection state read at scrape time
type Source interface {
	IsConnected() bool
	Stats() webasto.Statistics
	Snapshot() webasto.Snapshot
}

// Collector reads a Source on every scrape
type Collector struct {
	source Source

	connected         *prometheus.Desc
	frames            *prometheus.Desc
	decodeErrors      *prometheus.Desc
	reconnectAttempts *prometheus.Desc
	connects          *prometheus.Desc
	commands          *prometheus.Desc
	fieldValue        *prometheus.Desc
	lastFrame         *prometheus.Desc
}

// NewCollector creates a collector for source
func NewCollector(source Source, host string) *Collector {
	constLabels := prometheus.Labels{"host": host}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, labels, constLabels)
	}

	return &Collector{
		source:            source,
		connected:         desc("connected", "Whether the controller session is up (1) or not (0)"),
		frames:            desc("frames_total", "Frames decoded, by protocol format", "format"),
		decodeErrors:      desc("decode_errors_total", "Frames that could not be decoded"),
		reconnectAttempts: desc("reconnect_attempts_total", "Reconnection attempts made"),
		connects:          desc("connects_total", "Successful connections"),
		commands:          desc("commands_total", "Commands written, by result", "result"),
		fieldValue:        desc("field_value", "Latest numeric or boolean value reported for a field", "key"),
		lastFrame:         desc("last_frame_timestamp_seconds", "Unix time of the last received frame"),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.frames
	ch <- c.decodeErrors
	ch <- c.reconnectAttempts
	ch <- c.connects
	ch <- c.commands
	ch <- c.fieldValue
	ch <- c.lastFrame
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	connected := 0.0
	if c.source.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)

	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(stats.JSONFrames), webasto.FormatJSON.String())
	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(stats.LegacyFrames), webasto.FormatLegacy.String())
	ch <- prometheus.MustNewConstMetric(c.decodeErrors, prometheus.CounterValue, float64(stats.DecodeErrors))
	ch <- prometheus.MustNewConstMetric(c.reconnectAttempts, prometheus.CounterValue, float64(stats.ReconnectAttempts))
	ch <- prometheus.MustNewConstMetric(c.connects, prometheus.CounterValue, float64(stats.Connects))
	ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(stats.CommandsSent), "sent")
	ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(stats.CommandFailures), "failed")

	if !stats.LastFrameTime.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastFrame, prometheus.GaugeValue, unixSeconds(stats.LastFrameTime))
	}

	for key, v := range c.source.Snapshot().All() {
		if v.Kind() == webasto.KindString {
			continue
		}
		f, ok := v.Float64()
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.fieldValue, prometheus.GaugeValue, f, key)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// HTTPMetrics counts API requests
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates the request metrics and registers them with reg
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

// Observe records one finished request
func (m *HTTPMetrics) Observe(method, path string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
