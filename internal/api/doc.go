// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

/*
Package api serves Skywave over HTTP using the chi router.

Routes:

	GET  /{key}             live audio for one stream (audio/wav, unbounded)
	GET  /, /index.html     the web UI, served verbatim
	GET  /ws                control websocket
	POST /api/v1/login      admin credential check, returns a token
	GET  /api/v1/health     process status
	GET  /api/v1/sources    configured tuners
	GET  /api/v1/sessions   live streams
	GET  /metrics           Prometheus exposition

A stream request creates a session keyed by the path and destroys it when
the connection ends, on every exit path. Stream failures are answered with
a bare status code: 409 for a key already streaming, 503 when no capacity
or source is available, 500 otherwise. JSON endpoints use the APIResponse
envelope.

The stream loop never blocks the shared processing graph. It waits on the
stream bridge's ready channel and drops nothing itself; a listener that
falls behind loses the oldest buffered chunks inside the bridge.
*/
package api
