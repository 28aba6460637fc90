// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/skywave/internal/session"
)

// ErrIndexMissing is returned when the static UI file cannot be loaded.
var ErrIndexMissing = errors.New("static index file missing")

// streamStatus maps a session.Create failure to the bare status code the
// stream endpoint answers with.
func streamStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoCapacity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
