// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/config"
	"github.com/tomtom215/skywave/internal/session"
	"github.com/tomtom215/skywave/internal/source"
)

// Sessions is the part of the session manager the HTTP layer uses.
type Sessions interface {
	Create(key string) (*session.Session, error)
	Destroy(key string) error
	List() []session.Info
	State() (count int, running bool)
}

// Sources lists configured tuners.
type Sources interface {
	List() []source.Info
}

// ControlChannel serves the control websocket.
type ControlChannel interface {
	http.Handler
	GetClientCount() int
}

// Deps are the collaborators a Handler serves.
type Deps struct {
	Sessions Sessions
	Sources  Sources
	Auth     *auth.Authenticator
	Control  ControlChannel
	Index    *StaticFile
}

// Handler holds the HTTP handlers.
type Handler struct {
	sessions Sessions
	sources  Sources
	auth     *auth.Authenticator
	control  ControlChannel
	index    *StaticFile

	keyPattern *regexp.Regexp
	startTime  time.Time
	version    string
}

// NewHandler creates the handlers. Stream keys are keyLength characters of
// [a-z0-9] followed by the configured extension.
func NewHandler(cfg config.StreamConfig, version string, deps Deps) (*Handler, error) {
	if deps.Sessions == nil || deps.Sources == nil || deps.Index == nil {
		return nil, fmt.Errorf("api: sessions, sources and index are required")
	}
	pattern, err := regexp.Compile(fmt.Sprintf(`^[a-z0-9]{%d}%s$`, cfg.KeyLength, regexp.QuoteMeta(cfg.Extension)))
	if err != nil {
		return nil, fmt.Errorf("api: stream key pattern: %w", err)
	}
	return &Handler{
		sessions:   deps.Sessions,
		sources:    deps.Sources,
		auth:       deps.Auth,
		control:    deps.Control,
		index:      deps.Index,
		keyPattern: pattern,
		startTime:  time.Now(),
		version:    version,
	}, nil
}
