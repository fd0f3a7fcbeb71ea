// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"time"

	"github.com/Thermoquad/webastostat/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"client_ip": c.ClientIP(),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithField("error", c.Errors.String()).Warn("HTTP request")
			return
		}
		entry.Debug("HTTP request")
	}
}

func requestMetrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			// Unrouted paths share one label to bound cardinality
			path = "unmatched"
		}

		c.Next()

		m.Observe(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
