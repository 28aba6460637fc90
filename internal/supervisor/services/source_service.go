// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package services

import (
	"context"
	"time"

	"github.com/tomtom215/skywave/internal/logging"
)

// Connector matches source.Connector.
type Connector interface {
	Connect(ctx context.Context) error
	Connected() bool
}

// SourceKeeperService reconnects a networked tuner whenever its
// connection drops. Reads also reconnect on demand; the keeper makes sure
// a tuner nobody is listening to comes back before the next listener does.
type SourceKeeperService struct {
	conn     Connector
	label    string
	interval time.Duration
	name     string
}

// NewSourceKeeperService creates a keeper for the tuner named label.
func NewSourceKeeperService(label string, conn Connector, interval time.Duration) *SourceKeeperService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SourceKeeperService{
		conn:     conn,
		label:    label,
		interval: interval,
		name:     "source-keeper-" + label,
	}
}

// Serve implements suture.Service.
func (s *SourceKeeperService) Serve(ctx context.Context) error {
	log := logging.WithComponent("source-keeper").With().Str("source", s.label).Logger()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failing := false
	for {
		if !s.conn.Connected() {
			if err := s.conn.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if !failing {
					log.Warn().Err(err).Dur("retry", s.interval).Msg("Tuner unreachable")
				}
				failing = true
			} else if failing {
				log.Info().Msg("Tuner reachable again")
				failing = false
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SourceKeeperService) String() string {
	return s.name
}
