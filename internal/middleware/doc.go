// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: UUID-based request tracking, propagated into the logging context
  - PrometheusMetrics: request count and latency by method, route and status

Both are chi-compatible func(http.Handler) http.Handler values:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper forwards Flush and Hijack and exposes Unwrap, so audio
streams keep flushing and the control websocket can still upgrade.
*/
package middleware
