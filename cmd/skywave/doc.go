// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Command skywave serves software defined radio audio to web browsers.
//
// Each listener opens a WAV stream under a random key and steers its own
// demodulator over a websocket control channel. Every listener on the same
// tuner shares one sample flow; the processing graph runs only while at
// least one stream is open.
//
// # Commands
//
//	skywave [serve]       run the server (default)
//	skywave sources       list configured tuners and probe rtl_tcp servers
//	skywave hash-password print a bcrypt hash for security.admin_password
//
// # Configuration
//
// Settings are layered with koanf, highest priority first:
//   - Environment variables (HTTP_PORT, ADMIN_PASSWORD, DEFAULT_MODE, ...)
//   - The YAML file given with --config or CONFIG_PATH, else skywave.yaml
//     in the working directory or /etc/skywave
//   - Built-in defaults
//
// A minimal file with one rtl_tcp tuner:
//
//	radio:
//	  sources:
//	    - label: hf
//	      driver: rtl_tcp
//	      address: 127.0.0.1:1234
//	      sample_rate: 2400000
//	      center_frequency: 7100000
//	      converter_offset: 0
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree: the HTTP server stops
// accepting connections, every session is destroyed and the processing
// graph stops.
package main
