// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package auth gates privileged control operations behind an admin login.
//
// Listening and per-stream tuning are open to everyone. Changing a tuner's
// hardware frequency or gain affects every listener on that tuner, so the
// control channel requires a successful Login (or a token from an earlier
// one) before it accepts those commands.
package auth

import (
	"errors"
	"time"

	"github.com/tomtom215/skywave/internal/config"
)

// ErrLoginDisabled is returned when no admin account is configured.
var ErrLoginDisabled = errors.New("admin login is not configured")

// Authenticator combines the credential check with token issuance.
type Authenticator struct {
	creds  CredentialChecker
	tokens *TokenManager
}

// New builds an Authenticator from the security section. When no admin
// account is configured the returned Authenticator rejects every login.
func New(cfg config.SecurityConfig) (*Authenticator, error) {
	if !cfg.AdminEnabled() {
		return &Authenticator{}, nil
	}
	creds, err := NewAdminCredentials(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &Authenticator{creds: creds, tokens: tokens}, nil
}

// NewWith assembles an Authenticator from parts.
func NewWith(creds CredentialChecker, tokens *TokenManager) *Authenticator {
	return &Authenticator{creds: creds, tokens: tokens}
}

// Enabled reports whether logins can succeed.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.creds != nil && a.tokens != nil
}

// Login checks credentials and returns a signed admin token.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrLoginDisabled
	}
	if !a.creds.Check(username, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.tokens.Issue(username, RoleAdmin)
}

// Verify validates a token issued by Login.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if !a.Enabled() {
		return nil, ErrLoginDisabled
	}
	return a.tokens.Validate(token)
}
