// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

/*
Package services provides suture.Service wrappers for Skywave components.

Each wrapper translates a component's lifecycle (ListenAndServe, a run
loop, a Close method) into suture's context-aware Serve and names itself
through fmt.Stringer for supervisor logs.

# Available Services

HTTPServerService wraps *http.Server. It serves TLS when a certificate
pair is configured and shuts the server down gracefully when its context
ends. Shutdown does not wait for open audio streams beyond the timeout.

ControlHubService runs the control channel hub's broadcast loop.

SessionManagerService holds the session manager open for the life of the
tree and tears every session down on shutdown.

SourceKeeperService keeps one networked tuner connected, retrying with a
fixed interval. The driver's circuit breaker decides when a retry actually
dials.
*/
package services
