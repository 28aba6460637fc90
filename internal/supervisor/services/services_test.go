// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*ControlHubService)(nil)
	_ suture.Service = (*SessionManagerService)(nil)
	_ suture.Service = (*SourceKeeperService)(nil)
)

type mockContextHub struct {
	runCount atomic.Int32
}

func (m *mockContextHub) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestControlHubService(t *testing.T) {
	hub := &mockContextHub{}
	svc := NewControlHubService(hub)
	if svc.String() != "control-hub" {
		t.Errorf("expected 'control-hub', got %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if hub.runCount.Load() != 1 {
		t.Errorf("expected 1 run, got %d", hub.runCount.Load())
	}
}

type mockCloser struct {
	closed atomic.Int32
	err    error
}

func (m *mockCloser) Close() error {
	m.closed.Add(1)
	return m.err
}

func TestSessionManagerService(t *testing.T) {
	tests := []struct {
		name     string
		closeErr error
		wantErr  error
	}{
		{"clean close", nil, context.Canceled},
		{"close error", errors.New("graph stuck"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer := &mockCloser{err: tt.closeErr}
			svc := NewSessionManagerService(closer)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- svc.Serve(ctx)
			}()

			time.Sleep(10 * time.Millisecond)
			if closer.closed.Load() != 0 {
				t.Fatal("manager closed before shutdown")
			}
			cancel()

			err := <-errCh
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.closeErr != nil && !errors.Is(err, tt.closeErr) {
				t.Errorf("expected close error, got %v", err)
			}
			if closer.closed.Load() != 1 {
				t.Errorf("expected 1 Close call, got %d", closer.closed.Load())
			}
		})
	}
}

// flakyConnector fails the first failures Connect calls.
type flakyConnector struct {
	failures  int32
	attempts  atomic.Int32
	connected atomic.Bool
}

func (f *flakyConnector) Connect(ctx context.Context) error {
	if f.attempts.Add(1) <= f.failures {
		return errors.New("connection refused")
	}
	f.connected.Store(true)
	return nil
}

func (f *flakyConnector) Connected() bool {
	return f.connected.Load()
}

func TestSourceKeeperService(t *testing.T) {
	t.Run("retries until connected", func(t *testing.T) {
		conn := &flakyConnector{failures: 2}
		svc := NewSourceKeeperService("remote", conn, 5*time.Millisecond)
		if svc.String() != "source-keeper-remote" {
			t.Errorf("unexpected name %q", svc.String())
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		deadline := time.Now().Add(2 * time.Second)
		for !conn.Connected() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if !conn.Connected() {
			t.Fatal("keeper never connected")
		}

		// Connected tuners are left alone.
		attempts := conn.attempts.Load()
		time.Sleep(30 * time.Millisecond)
		if conn.attempts.Load() != attempts {
			t.Errorf("expected no further attempts, got %d more", conn.attempts.Load()-attempts)
		}

		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("reconnects after a drop", func(t *testing.T) {
		conn := &flakyConnector{}
		svc := NewSourceKeeperService("remote", conn, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = svc.Serve(ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for conn.attempts.Load() < 1 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		conn.connected.Store(false)
		for conn.attempts.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if conn.attempts.Load() < 2 {
			t.Error("keeper did not reconnect after the connection dropped")
		}
	})

	t.Run("default interval", func(t *testing.T) {
		svc := NewSourceKeeperService("x", &flakyConnector{}, 0)
		if svc.interval != 5*time.Second {
			t.Errorf("expected 5s, got %v", svc.interval)
		}
	})
}
