// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/validation"
)

const maxLoginBody = 4 * 1024

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the admin token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Login checks admin credentials and returns a token the control channel
// accepts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.auth.Enabled() {
		rw.Forbidden("admin login is not configured")
		return
	}

	var req LoginRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody))
	if err != nil {
		rw.BadRequest("failed to read request body")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		rw.BadRequest("request body must be a JSON object")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError("invalid login request", verr.Fields)
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logging.Ctx(r.Context()).Warn().Str("username", req.Username).Msg("Admin login failed")
			rw.Unauthorized("invalid username or password")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Admin login error")
		rw.InternalError("login failed")
		return
	}

	logging.Ctx(r.Context()).Info().Str("username", req.Username).Msg("Admin login")
	rw.Success(LoginResponse{
		Token:     token,
		ExpiresAt: expires,
		Username:  req.Username,
		Role:      auth.RoleAdmin,
	})
}
