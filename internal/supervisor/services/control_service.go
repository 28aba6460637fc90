// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package services

import (
	"context"
)

// ContextHub matches *websocket.Hub's RunWithContext.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// ControlHubService runs the control channel hub. RunWithContext already
// follows the suture.Service contract; the wrapper adds a name.
type ControlHubService struct {
	hub  ContextHub
	name string
}

// NewControlHubService creates the wrapper.
func NewControlHubService(hub ContextHub) *ControlHubService {
	return &ControlHubService{
		hub:  hub,
		name: "control-hub",
	}
}

// Serve implements suture.Service.
func (c *ControlHubService) Serve(ctx context.Context) error {
	return c.hub.RunWithContext(ctx)
}

func (c *ControlHubService) String() string {
	return c.name
}
