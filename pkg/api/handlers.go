// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
}

type entitiesResponse struct {
	Available bool             `json:"available"`
	States    map[string]any   `json:"states"`
	Pending   map[string]int64 `json:"pending"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Command string `json:"command"`
}

type settingRequest struct {
	Value *float64 `json:"value"`
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Connected: s.heater.IsConnected(),
		State:     s.heater.State().String(),
	}
	status := http.StatusOK
	if !resp.Connected {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) snapshot(c *gin.Context) {
	body, err := s.heater.Snapshot().MarshalJSON()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) listEntities(c *gin.Context) {
	states := entities.States(s.heater.Snapshot())
	s.draft.Apply(states)
	c.JSON(http.StatusOK, entitiesResponse{
		Available: s.heater.IsConnected(),
		States:    states,
		Pending:   s.draft.Values(),
	})
}

func (s *Server) command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		abort(c, http.StatusBadRequest, errors.New("command is required"))
		return
	}
	if !s.send(c, cmd) {
		return
	}
	c.JSON(http.StatusAccepted, commandResponse{Command: cmd})
}

// send reports 503 when there is no session and 502 when the write failed
func (s *Server) send(c *gin.Context, cmd string) bool {
	if !s.heater.IsConnected() {
		abort(c, http.StatusServiceUnavailable, connection.ErrNotConnected)
		return false
	}
	if !s.heater.SendCommand(cmd) {
		abort(c, http.StatusBadGateway, entities.ErrNotSent)
		return false
	}
	s.log.WithField("command", cmd).Info("Command sent")
	return true
}

func (s *Server) press(c *gin.Context) {
	key := c.Param("key")
	if !s.heater.IsConnected() {
		abort(c, http.StatusServiceUnavailable, connection.ErrNotConnected)
		return
	}

	cmd, err := entities.Press(s.heater, key, s.draft, s.heater.Snapshot())
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	s.log.WithFields(logrus.Fields{"button": key, "command": cmd}).Info("Button pressed")
	c.JSON(http.StatusAccepted, commandResponse{Command: cmd})
}

func (s *Server) settings(c *gin.Context) {
	c.JSON(http.StatusOK, s.draft.Values())
}

func (s *Server) setSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.Value == nil {
		abort(c, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	if err := s.draft.Set(c.Param("key"), *req.Value); err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, s.draft.Values())
}

func (s *Server) discardSettings(c *gin.Context) {
	s.draft.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) saveSettings(c *gin.Context) {
	if !s.heater.IsConnected() {
		abort(c, http.StatusServiceUnavailable, connection.ErrNotConnected)
		return
	}
	cmd, err := entities.Press(s.heater, entities.KeySaveSettings, s.draft, s.heater.Snapshot())
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	s.log.WithField("command", cmd).Info("Settings saved")
	c.JSON(http.StatusAccepted, commandResponse{Command: cmd})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrMissingSetting):
		return http.StatusConflict
	case errors.Is(err, entities.ErrNotSent):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
