// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

/*
Package websocket implements the control channel served on /ws.

Every connection is assigned a fresh stream key and receives a hello
message naming it. The browser then opens GET /<key> for audio and uses
the socket to steer that stream: source, demodulation mode, frequency
offset and, after an admin login, the tuner's hardware frequency.

Architecture:

	┌──────────┐   session events   ┌─────────────────┐
	│   Hub    │ ◄───────────────── │ session.Manager │
	└────┬─────┘                    └─────────────────┘
	     │ status, num_clients             ▲
	┌────┴─────┬─────────┐                 │ Reconfigure, SetSource, Tune
	│ Client1  │ Client2 │ ... ────────────┘
	└──────────┴─────────┘

Each client has two goroutines:
  - readPump: decodes commands and applies them through the hub
  - writePump: writes queued messages and keeps the connection alive with pings

Commands that arrive before the audio request has created the session are
kept on the client and replayed when the manager reports the session.

Envelope:

	{"type": "set_demod", "data": {"demod": "AM"}}

Server messages: hello, status, num_clients, auth, error.
Client messages: set_source, set_demod, set_offset, set_hw_freq, set_gain,
login, token, logout. set_hw_freq and set_gain need a logged-in client.

Thread Safety:

Sends to a client go through the hub so a client's channel is never
written after the hub closes it. Broadcasts go through a buffered channel
drained by RunWithContext; a client whose buffer is full is disconnected.
*/
package websocket
