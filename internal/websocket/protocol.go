// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package websocket

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/skywave/internal/source"
)

// Server to client message types.
const (
	TypeHello      = "hello"
	TypeStatus     = "status"
	TypeNumClients = "num_clients"
	TypeAuth       = "auth"
	TypeError      = "error"
)

// Client to server message types.
const (
	TypeSetSource = "set_source"
	TypeSetDemod  = "set_demod"
	TypeSetOffset = "set_offset"
	TypeSetHWFreq = "set_hw_freq"
	TypeSetGain   = "set_gain"
	TypeLogin     = "login"
	TypeToken     = "token"
	TypeLogout    = "logout"
)

// Error codes carried in error messages.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeUnknownType        = "unknown_type"
	CodeRateLimited        = "rate_limited"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeUnknownSource      = "unknown_source"
	CodeUnknownMode        = "unknown_mode"
	CodeOffsetOutOfRange   = "offset_out_of_range"
	CodeTuningConflict     = "tuning_conflict"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeLoginDisabled      = "login_disabled"
	CodeInternal           = "internal_error"
)

// Message is an outbound envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inbound is the envelope read from clients. Data is decoded per type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hello is the first message on every connection.
type Hello struct {
	StreamName      string        `json:"stream_name"`
	Sources         []source.Info `json:"sources"`
	SupportedDemods []string      `json:"supported_demods"`
	CurrentSource   string        `json:"current_source"`
	Privileged      bool          `json:"privileged"`
	LoginEnabled    bool          `json:"login_enabled"`
}

// Status describes the client's stream.
type Status struct {
	Source     string  `json:"source"`
	Demod      string  `json:"demod"`
	FreqOffset float64 `json:"freq_offset"`
	HWFreq     float64 `json:"hw_freq"`
	Gain       float64 `json:"gain"`
	Running    bool    `json:"running"`
}

// NumClients is broadcast whenever a stream starts or stops.
type NumClients struct {
	Count int `json:"count"`
}

// AuthState reports the client's privilege after login, token or logout.
type AuthState struct {
	Privileged bool       `json:"privileged"`
	Username   string     `json:"username,omitempty"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SetSourceRequest selects another tuner.
type SetSourceRequest struct {
	Source string `json:"source" validate:"required,label,max=32"`
}

// SetDemodRequest selects a demodulation mode by name.
type SetDemodRequest struct {
	Demod string `json:"demod" validate:"required,max=8"`
}

// SetOffsetRequest moves the receive window within the tuner band.
type SetOffsetRequest struct {
	FreqOffset *float64 `json:"freq_offset" validate:"required"`
}

// SetHWFreqRequest retunes the tuner. Privileged.
type SetHWFreqRequest struct {
	HWFreq float64 `json:"hw_freq" validate:"gt=0"`
}

// SetGainRequest changes the tuner gain in dB. Privileged.
type SetGainRequest struct {
	Gain *float64 `json:"gain" validate:"required,gte=0,lte=60"`
}

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// TokenRequest restores privilege from an earlier login.
type TokenRequest struct {
	Token string `json:"token" validate:"required,max=2048"`
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
