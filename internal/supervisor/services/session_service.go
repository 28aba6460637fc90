// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/skywave/internal/logging"
)

// SessionCloser matches *session.Manager's Close.
type SessionCloser interface {
	Close() error
}

// SessionManagerService closes the session manager when the tree stops.
// Closing stops the processing graph and ends every open stream.
type SessionManagerService struct {
	manager SessionCloser
	name    string
}

// NewSessionManagerService creates the wrapper.
func NewSessionManagerService(manager SessionCloser) *SessionManagerService {
	return &SessionManagerService{
		manager: manager,
		name:    "session-manager",
	}
}

// Serve implements suture.Service.
func (s *SessionManagerService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.manager.Close(); err != nil {
		logging.Error().Err(err).Msg("Session manager did not close cleanly")
		return fmt.Errorf("close session manager: %w", err)
	}
	return ctx.Err()
}

func (s *SessionManagerService) String() string {
	return s.name
}
