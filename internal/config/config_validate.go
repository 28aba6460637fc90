// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/tomtom215/skywave/internal/validation"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStream(); err != nil {
		return err
	}
	if err := c.validateRadio(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.IndexPath == "" {
		return fmt.Errorf("INDEX_PATH is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}
	return nil
}

func (c *Config) validateStream() error {
	if c.Stream.KeyLength < 4 || c.Stream.KeyLength > 64 {
		return fmt.Errorf("STREAM_KEY_LENGTH must be between 4 and 64, got %d", c.Stream.KeyLength)
	}
	ext := c.Stream.Extension
	if len(ext) < 2 || !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext[1:], "./") {
		return fmt.Errorf("STREAM_EXTENSION must look like .wav, got %q", ext)
	}
	if c.Stream.PipeCapacity < 1 {
		return fmt.Errorf("PIPE_CAPACITY must be at least 1, got %d", c.Stream.PipeCapacity)
	}
	if c.Stream.MaxSessions < 1 {
		return fmt.Errorf("MAX_SESSIONS must be at least 1, got %d", c.Stream.MaxSessions)
	}
	return nil
}

func (c *Config) validateRadio() error {
	r := c.Radio
	if r.AudioRate < 8000 || r.AudioRate > 192000 {
		return fmt.Errorf("AUDIO_RATE must be between 8000 and 192000, got %d", r.AudioRate)
	}
	if r.Decimation < 1 {
		return fmt.Errorf("DECIMATION must be at least 1, got %d", r.Decimation)
	}
	if r.MaxTaps < 16 {
		return fmt.Errorf("MAX_TAPS must be at least 16, got %d", r.MaxTaps)
	}
	if r.BlockSize < 256 {
		return fmt.Errorf("BLOCK_SIZE must be at least 256, got %d", r.BlockSize)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("radio.sources must list at least one source")
	}

	seen := make(map[string]bool, len(r.Sources))
	for i := range r.Sources {
		src := &r.Sources[i]
		if verr := validation.ValidateStruct(src); verr != nil {
			return fmt.Errorf("radio.sources[%d]: %w", i, verr)
		}
		if seen[src.Label] {
			return fmt.Errorf("radio.sources[%d]: duplicate label %q", i, src.Label)
		}
		seen[src.Label] = true

		if src.Driver == DriverRTLTCP {
			if _, _, err := net.SplitHostPort(src.Address); err != nil {
				return fmt.Errorf("radio.sources[%d]: address %q: %w", i, src.Address, err)
			}
		}
		if src.SampleRate/float64(r.Decimation) < 8000 {
			return fmt.Errorf("radio.sources[%d]: sample_rate/decimation must be at least 8000", i)
		}
	}

	if r.DefaultSource != "" && !seen[r.DefaultSource] {
		return fmt.Errorf("DEFAULT_SOURCE %q is not a configured source", r.DefaultSource)
	}
	if r.DefaultMode != "" && !slices.Contains(ModeNames, strings.ToUpper(r.DefaultMode)) {
		return fmt.Errorf("DEFAULT_MODE must be one of %s, got %q", strings.Join(ModeNames, ", "), r.DefaultMode)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	if (s.AdminUsername == "") != (s.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	if s.AdminEnabled() {
		if len(s.AdminPassword) < 8 {
			return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
		}
		if len(s.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when admin login is enabled")
		}
	}
	if s.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if !s.RateLimitDisabled && (s.RateLimitReqs < 1 || s.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if s.LoginAttemptsPerMinute < 1 {
		return fmt.Errorf("LOGIN_ATTEMPTS must be at least 1")
	}
	if s.ControlMessagesPerSecond < 1 {
		return fmt.Errorf("CONTROL_MESSAGES_RATE must be at least 1")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
