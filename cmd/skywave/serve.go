// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/skywave/internal/api"
	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/graph"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/session"
	"github.com/tomtom215/skywave/internal/source"
	"github.com/tomtom215/skywave/internal/store"
	"github.com/tomtom215/skywave/internal/supervisor"
	"github.com/tomtom215/skywave/internal/supervisor/services"
	ws "github.com/tomtom215/skywave/internal/websocket"
)

func runServe(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.certFile != "" {
		cfg.Server.TLSCert = opts.certFile
	}
	if opts.keyFile != "" {
		cfg.Server.TLSKey = opts.keyFile
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return errors.New("TLS needs both a certificate and a key")
	}

	logging.Info().Str("version", version).Int("sources", len(cfg.Radio.Sources)).
		Str("default_mode", cfg.Radio.DefaultMode).Msg("Starting Skywave")

	// The index page is served from memory; a missing file is fatal.
	index, err := api.LoadStaticFile(cfg.Server.IndexPath)
	if err != nil {
		return err
	}

	pool, err := source.NewPoolFromConfig(cfg.Radio)
	if err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing sources")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing settings store")
			}
		}()
		restoreTuners(ctx, st, pool)
		persistTuning(ctx, st, pool)
	}

	scfg, err := session.ConfigFrom(cfg.Stream, cfg.Radio)
	if err != nil {
		return err
	}
	manager := session.New(scfg, graph.New(graph.WithBlockSize(cfg.Radio.BlockSize)), pool)

	authn, err := auth.New(cfg.Security)
	if err != nil {
		return err
	}
	if authn.Enabled() {
		logging.Info().Str("username", cfg.Security.AdminUsername).Msg("Admin login enabled")
	} else {
		logging.Info().Msg("Admin login disabled; hardware tuning is unavailable")
	}

	hub := ws.NewHub(ws.Config{
		KeyLength:         cfg.Stream.KeyLength,
		Extension:         cfg.Stream.Extension,
		AllowedOrigins:    cfg.Security.CORSOrigins,
		MessagesPerSecond: cfg.Security.ControlMessagesPerSecond,
		LoginsPerMinute:   cfg.Security.LoginAttemptsPerMinute,
	}, manager, pool, authn)
	defer hub.Close()

	handler, err := api.NewHandler(cfg.Stream, version, api.Deps{
		Sessions: manager,
		Sources:  pool,
		Auth:     authn,
		Control:  hub,
		Index:    index,
	})
	if err != nil {
		return err
	}
	mw := api.NewChiMiddleware(api.NewChiMiddlewareConfig(cfg.Security))
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is disabled")
	}

	// Streams are long-lived responses, so there is no WriteTimeout; the
	// stream handler sets a deadline per write instead.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw).SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logging.NewSlogHandler(), slog.LevelWarn),
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	for _, t := range pool.Tuners() {
		if conn, ok := t.Driver().(source.Connector); ok {
			tree.AddRadioService(services.NewSourceKeeperService(t.Label(), conn, 0))
		}
	}
	tree.AddRadioService(services.NewSessionManagerService(manager))
	tree.AddControlService(services.NewControlHubService(hub))

	httpSvc := services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)
	if cfg.Server.TLSEnabled() {
		httpSvc.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	}
	tree.AddAPIService(httpSvc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Str("addr", server.Addr).Bool("tls", cfg.Server.TLSEnabled()).
		Int("sources", pool.Len()).Msg("Starting supervisor tree")

	err = <-tree.ServeBackground(ctx)
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("Skywave stopped")
	return nil
}
