// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/metrics"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHeater struct {
	mu        sync.Mutex
	connected bool
	refuse    bool
	snapshot  webasto.Snapshot
	sent      []string
}

func newFakeHeater(fields ...webasto.Field) *fakeHeater {
	s := webasto.NewSnapshot()
	s.Merge(fields)
	return &fakeHeater{connected: true, snapshot: s}
}

func (h *fakeHeater) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHeater) State() connection.State {
	if h.IsConnected() {
		return connection.StateConnected
	}
	return connection.StateReconnecting
}

func (h *fakeHeater) Snapshot() webasto.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot.Clone()
}

func (h *fakeHeater) SendCommand(cmd string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected || h.refuse {
		return false
	}
	h.sent = append(h.sent, cmd)
	return true
}

func (h *fakeHeater) Sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

func settingsFields() []webasto.Field {
	return []webasto.Field{
		{Key: "pump_size", Value: webasto.Int(22)},
		{Key: "heater_target", Value: webasto.Int(195)},
		{Key: "heater_min", Value: webasto.Int(190)},
		{Key: "heater_overheat", Value: webasto.Int(210)},
		{Key: "heater_warning", Value: webasto.Int(200)},
		{Key: "max_pwm_fan", Value: webasto.Int(255)},
		{Key: "glow_brightness", Value: webasto.Int(255)},
		{Key: "glow_fade_in_duration", Value: webasto.Int(5000)},
		{Key: "glow_fade_out_duration", Value: webasto.Int(10000)},
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newFakeHeater()
	s := New(h, Options{})

	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":true,"state":"connected"}`, w.Body.String())

	h.connected = false
	w = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"connected":false,"state":"reconnecting"}`, w.Body.String())
}

func TestSnapshot_PreservesOrder(t *testing.T) {
	s := New(newFakeHeater(
		webasto.Field{Key: "exhaust_temp", Value: webasto.Int(180)},
		webasto.Field{Key: "burn", Value: webasto.Bool(true)},
		webasto.Field{Key: "message", Value: webasto.String("OK")},
	), Options{})

	w := do(t, s, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"exhaust_temp":180,"burn":true,"message":"OK"}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestEntities_IncludesPendingEdits(t *testing.T) {
	draft := entities.NewDraft()
	require.NoError(t, draft.Set("heater_target", 205))
	s := New(newFakeHeater(settingsFields()...), Options{Draft: draft})

	w := do(t, s, http.MethodGet, "/api/entities", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp entitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	assert.Equal(t, 205.0, resp.States["heater_target"])
	assert.Equal(t, 22.0, resp.States["pump_size"])
	assert.Equal(t, map[string]int64{"heater_target": 205}, resp.Pending)
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		connected  bool
		refuse     bool
		wantStatus int
		wantSent   []string
	}{
		{"sent", `{"command":" UP "}`, true, false, http.StatusAccepted, []string{"UP"}},
		{"empty", `{"command":"  "}`, true, false, http.StatusBadRequest, nil},
		{"malformed", `{"command":`, true, false, http.StatusBadRequest, nil},
		{"disconnected", `{"command":"UP"}`, false, false, http.StatusServiceUnavailable, nil},
		{"write failed", `{"command":"UP"}`, true, true, http.StatusBadGateway, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHeater()
			h.connected = tt.connected
			h.refuse = tt.refuse
			s := New(h, Options{})

			w := do(t, s, http.MethodPost, "/api/commands", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantSent, h.Sent())
		})
	}
}

func TestPressButton(t *testing.T) {
	h := newFakeHeater()
	s := New(h, Options{})

	w := do(t, s, http.MethodPost, "/api/buttons/toggle_burn/press", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"command":"ENTER"}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/buttons/self_destruct/press", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{webasto.CmdEnter}, h.Sent())
}

func TestSettings_EditAndSave(t *testing.T) {
	h := newFakeHeater(settingsFields()...)
	draft := entities.NewDraft()
	s := New(h, Options{Draft: draft})

	w := do(t, s, http.MethodPut, "/api/settings/pump_size", `{"value":30}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pump_size":30}`, w.Body.String())

	w = do(t, s, http.MethodPut, "/api/settings/pump_size", `{"value":500}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPut, "/api/settings/pump_size", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPut, "/api/settings/wifi_ssid", `{"value":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/settings", "")
	assert.JSONEq(t, `{"pump_size":30}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/settings/save", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, h.Sent(), 1)
	assert.True(t, strings.HasPrefix(h.Sent()[0], "SET:pump_size=30,heater_target=195,"))
	assert.Zero(t, draft.Len())
}

func TestSettings_SaveWithUnknownSettings(t *testing.T) {
	h := newFakeHeater(webasto.Field{Key: "pump_size", Value: webasto.Int(22)})
	s := New(h, Options{})

	w := do(t, s, http.MethodPost, "/api/settings/save", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "heater_target")
	assert.Empty(t, h.Sent())
}

func TestSettings_SaveWhileDisconnected(t *testing.T) {
	h := newFakeHeater(settingsFields()...)
	h.connected = false
	draft := entities.NewDraft()
	require.NoError(t, draft.Set("pump_size", 30))
	s := New(h, Options{Draft: draft})

	w := do(t, s, http.MethodPost, "/api/settings/save", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 1, draft.Len())
}

func TestSettings_Discard(t *testing.T) {
	draft := entities.NewDraft()
	require.NoError(t, draft.Set("pump_size", 30))
	s := New(newFakeHeater(), Options{Draft: draft})

	w := do(t, s, http.MethodDelete, "/api/settings", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, draft.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	s := New(newFakeHeater(), Options{Gatherer: reg, HTTPMetrics: httpMetrics})

	do(t, s, http.MethodGet, "/healthz", "")
	do(t, s, http.MethodGet, "/no/such/route", "")

	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `webastostat_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
	assert.Contains(t, body, `webastostat_http_requests_total{method="GET",path="unmatched",status="404"} 1`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := New(newFakeHeater(), Options{})
	w := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
