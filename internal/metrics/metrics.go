// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// Sessions and graph

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywave_sessions_active",
			Help: "Number of live streaming sessions",
		},
	)

	GraphRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywave_graph_running",
			Help: "1 while the shared processing graph is running",
		},
	)

	SessionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_session_operations_total",
			Help: "Session manager operations by outcome",
		},
		[]string{"operation", "result"}, // create, destroy, reconfigure, set_source, tune
	)

	GraphMutationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skywave_graph_mutation_duration_seconds",
			Help:    "Time spent holding the graph mutation lock",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// Stream bridge

	BridgeDroppedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywave_bridge_dropped_chunks_total",
			Help: "Encoded audio chunks dropped because a listener fell behind",
		},
	)

	StreamBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywave_stream_bytes_total",
			Help: "Audio bytes written to HTTP listeners",
		},
	)

	// Sources

	SourceReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_source_reconnects_total",
			Help: "Tuner connection attempts by source and outcome",
		},
		[]string{"source", "result"},
	)

	SourceReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_source_read_errors_total",
			Help: "Sample read failures by source",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skywave_circuit_breaker_state",
			Help: "Tuner dial circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_circuit_breaker_transitions_total",
			Help: "Tuner dial circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Control channel

	ControlClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywave_control_clients",
			Help: "Connected control websocket clients",
		},
	)

	ControlMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_control_messages_total",
			Help: "Control messages received by type",
		},
		[]string{"type"},
	)

	// HTTP

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywave_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywave_http_request_duration_seconds",
			Help:    "HTTP request latency. Stream requests measure the whole stream lifetime.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordSessionOperation counts a manager operation.
func RecordSessionOperation(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	SessionOperations.WithLabelValues(operation, result).Inc()
}

// SetGraphRunning mirrors the graph state.
func SetGraphRunning(running bool) {
	if running {
		GraphRunning.Set(1)
		return
	}
	GraphRunning.Set(0)
}

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSourceConnect counts a tuner dial attempt.
func RecordSourceConnect(source string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	SourceReconnects.WithLabelValues(source, result).Inc()
}
