// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package session

import "errors"

var (
	// ErrAlreadyExists is returned when a session for the key is live.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrNotFound is returned for keys without a live session.
	ErrNotFound = errors.New("session not found")

	// ErrNoCapacity is returned when the session limit is reached, no
	// source is registered or the manager is closed.
	ErrNoCapacity = errors.New("no capacity for another session")

	// ErrPipeCreationFailed is returned when the stream bridge or pipeline
	// cannot be allocated.
	ErrPipeCreationFailed = errors.New("stream pipe creation failed")

	// ErrGraphMutationFailed is returned when attaching or detaching a
	// pipeline fails.
	ErrGraphMutationFailed = errors.New("graph mutation failed")
)
