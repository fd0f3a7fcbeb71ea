// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the heater snapshot, entity states and controls over
// HTTP, together with the Prometheus scrape endpoint.
package api

import (
	"net/http"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/metrics"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Heater is the connection manager as seen by the API
type Heater interface {
	IsConnected() bool
	State() connection.State
	Snapshot() webasto.Snapshot
	SendCommand(cmd string) bool
}

// Options configure a Server
type Options struct {
	// Draft holds unsaved setting edits, shared with other frontends
	Draft *entities.Draft

	// Gatherer backs /metrics. The route is not registered when nil.
	Gatherer prometheus.Gatherer

	// HTTPMetrics records request counts and latency when set
	HTTPMetrics *metrics.HTTPMetrics

	Logger logrus.FieldLogger
}

// Server routes API requests to a Heater
type Server struct {
	heater Heater
	draft  *entities.Draft
	log    logrus.FieldLogger
	engine *gin.Engine
}

// New builds the router
func New(heater Heater, opts Options) *Server {
	if opts.Draft == nil {
		opts.Draft = entities.NewDraft()
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = l
	}

	s := &Server{
		heater: heater,
		draft:  opts.Draft,
		log:    opts.Logger.WithField("component", "api"),
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.log))
	if opts.HTTPMetrics != nil {
		s.engine.Use(requestMetrics(opts.HTTPMetrics))
	}
	s.routes(opts.Gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", s.health)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	{
		api.GET("/snapshot", s.snapshot)
		api.GET("/entities", s.listEntities)
		api.POST("/commands", s.command)
		api.POST("/buttons/:key/press", s.press)
		api.GET("/settings", s.settings)
		api.PUT("/settings/:key", s.setSetting)
		api.DELETE("/settings", s.discardSettings)
		api.POST("/settings/save", s.saveSettings)
	}
}

// Handler returns the router for use with an http.Server
func (s *Server) Handler() http.Handler {
	return s.engine
}
