// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost used for stored password hashes.
const bcryptCost = 12

// ErrInvalidCredentials is returned when a username/password pair is rejected.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialChecker verifies a username and password.
type CredentialChecker interface {
	Check(username, password string) bool
}

// AdminCredentials holds the single privileged account.
type AdminCredentials struct {
	username     string
	passwordHash []byte
}

// NewAdminCredentials hashes password once at startup. A password that is
// already a bcrypt hash (as printed by "skywave hash-password") is used as is.
func NewAdminCredentials(username, password string) (*AdminCredentials, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	if isBcryptHash(password) {
		if _, err := bcrypt.Cost([]byte(password)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
		}
		return &AdminCredentials{username: username, passwordHash: []byte(password)}, nil
	}

	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters for security")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &AdminCredentials{username: username, passwordHash: []byte(hash)}, nil
}

// Check validates credentials in constant time with respect to the username.
func (c *AdminCredentials) Check(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
