// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"skywave.yaml",
	"skywave.yml",
	"/etc/skywave/skywave.yaml",
	"/etc/skywave/skywave.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8073,
			IndexPath:         "web/index.html",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			Environment:       "development",
		},
		Stream: StreamConfig{
			KeyLength:    8,
			Extension:    ".wav",
			PipeCapacity: 64,
			MaxSessions:  32,
		},
		Radio: RadioConfig{
			AudioRate:   24000,
			Decimation:  8,
			MaxTaps:     1025,
			BlockSize:   16384,
			DefaultMode: "WFM",
			Sources: []SourceConfig{
				{
					Label:           "synthetic",
					Driver:          DriverSynthetic,
					SampleRate:      240000,
					CenterFrequency: 100_000_000,
					Description:     "Built-in test signal",
				},
			},
		},
		Security: SecurityConfig{
			TokenTTL:                 12 * time.Hour,
			CORSOrigins:              []string{"*"},
			RateLimitReqs:            60,
			RateLimitWindow:          time.Minute,
			LoginAttemptsPerMinute:   5,
			ControlMessagesPerSecond: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path: "/data/skywave",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads configuration with these layers, lowest precedence first:
//  1. built-in defaults
//  2. YAML file at path, or the first of CONFIG_PATH and DefaultConfigPaths
//  3. mapped environment variables
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"index_path":            "server.index_path",
	"tls_cert":              "server.tls_cert",
	"tls_key":               "server.tls_key",
	"read_header_timeout":   "server.read_header_timeout",
	"shutdown_timeout":      "server.shutdown_timeout",
	"environment":           "server.environment",
	"stream_key_length":     "stream.key_length",
	"stream_extension":      "stream.extension",
	"pipe_capacity":         "stream.pipe_capacity",
	"max_sessions":          "stream.max_sessions",
	"audio_rate":            "radio.audio_rate",
	"decimation":            "radio.decimation",
	"max_taps":              "radio.max_taps",
	"block_size":            "radio.block_size",
	"default_source":        "radio.default_source",
	"default_mode":          "radio.default_mode",
	"admin_username":        "security.admin_username",
	"admin_password":        "security.admin_password",
	"jwt_secret":            "security.jwt_secret",
	"token_ttl":             "security.token_ttl",
	"cors_origins":          "security.cors_origins",
	"rate_limit_requests":   "security.rate_limit_reqs",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"login_attempts":        "security.login_attempts_per_minute",
	"control_messages_rate": "security.control_messages_per_second",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
	"store_enabled":         "store.enabled",
	"store_path":            "store.path",
}

// envTransformFunc maps known environment variable names to config paths.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
