// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	Uptime         float64 `json:"uptime_seconds"`
	Sessions       int     `json:"sessions"`
	GraphRunning   bool    `json:"graph_running"`
	Sources        int     `json:"sources"`
	ControlClients int     `json:"control_clients"`
	LoginEnabled   bool    `json:"login_enabled"`
}

// Health reports process status. The service is degraded when no source is
// registered, since no stream can start.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, running := h.sessions.State()
	sources := len(h.sources.List())

	status := "healthy"
	if sources == 0 {
		status = "degraded"
	}

	clients := 0
	if h.control != nil {
		clients = h.control.GetClientCount()
	}

	NewResponseWriter(w, r).Success(HealthStatus{
		Status:         status,
		Version:        h.version,
		Uptime:         time.Since(h.startTime).Seconds(),
		Sessions:       count,
		GraphRunning:   running,
		Sources:        sources,
		ControlClients: clients,
		LoginEnabled:   h.auth.Enabled(),
	})
}

// Sources lists the configured tuners with their current settings.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.sources.List())
}

// Sessions lists live streams.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.sessions.List())
}
