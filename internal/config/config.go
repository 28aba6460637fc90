// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package config loads Skywave configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Stream     StreamConfig     `koanf:"stream"`
	Radio      RadioConfig      `koanf:"radio"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	IndexPath         string        `koanf:"index_path"`
	TLSCert           string        `koanf:"tls_cert"`
	TLSKey            string        `koanf:"tls_key"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	Environment       string        `koanf:"environment"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TLSEnabled reports whether both a certificate and a key are configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// StreamConfig controls stream keys and per-session buffering.
type StreamConfig struct {
	// KeyLength is the number of [a-z0-9] characters before the extension.
	KeyLength int `koanf:"key_length"`

	// Extension is the audio suffix of stream paths, including the dot.
	Extension string `koanf:"extension"`

	// PipeCapacity is the number of encoded audio chunks buffered per session
	// before the oldest is dropped.
	PipeCapacity int `koanf:"pipe_capacity"`

	// MaxSessions bounds concurrent streams. Further requests get 503.
	MaxSessions int `koanf:"max_sessions"`
}

// RadioConfig describes the signal chain and the tuner sources.
type RadioConfig struct {
	AudioRate     int    `koanf:"audio_rate"`
	Decimation    int    `koanf:"decimation"`
	MaxTaps       int    `koanf:"max_taps"`
	BlockSize     int    `koanf:"block_size"`
	// DefaultSource names the pool default. Empty selects the first source.
	DefaultSource string `koanf:"default_source"`

	// DefaultMode is applied to new streams; empty means WFM. NONE streams
	// stay silent until a control client picks a mode.
	DefaultMode string         `koanf:"default_mode"`
	Sources     []SourceConfig `koanf:"sources"`
}

// Mode names accepted by radio.default_mode.
var ModeNames = []string{"NONE", "WFM", "FM", "AM", "USB", "LSB", "CW"}

// Source driver names.
const (
	DriverSynthetic = "synthetic"
	DriverRTLTCP    = "rtl_tcp"
)

// SourceConfig is one tuner entry.
type SourceConfig struct {
	Label           string  `koanf:"label" validate:"required,label,max=32"`
	Driver          string  `koanf:"driver" validate:"required,oneof=synthetic rtl_tcp"`
	Address         string  `koanf:"address" validate:"required_if=Driver rtl_tcp"`
	SampleRate      float64 `koanf:"sample_rate" validate:"gt=0"`
	CenterFrequency float64 `koanf:"center_frequency" validate:"gte=0"`
	ConverterOffset float64 `koanf:"converter_offset"`
	Gain            float64 `koanf:"gain" validate:"gte=0"`
	Description     string  `koanf:"description" validate:"max=128"`
}

// SecurityConfig holds admin credentials and request limits.
type SecurityConfig struct {
	AdminUsername string        `koanf:"admin_username"`
	AdminPassword string        `koanf:"admin_password"`
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	CORSOrigins   []string      `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// LoginAttemptsPerMinute throttles control-channel logins per client.
	LoginAttemptsPerMinute int `koanf:"login_attempts_per_minute"`

	// ControlMessagesPerSecond throttles control-channel commands per client.
	ControlMessagesPerSecond int `koanf:"control_messages_per_second"`
}

// AdminEnabled reports whether privileged login is configured.
func (s SecurityConfig) AdminEnabled() bool {
	return s.AdminUsername != "" && s.AdminPassword != ""
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig enables persistence of tuner settings across restarts.
type StoreConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// SupervisorConfig tunes the suture service tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Source returns the source entry with the given label.
func (r RadioConfig) Source(label string) (SourceConfig, bool) {
	for _, s := range r.Sources {
		if s.Label == label {
			return s, true
		}
	}
	return SourceConfig{}, false
}
