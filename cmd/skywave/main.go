// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/config"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/source"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	certFile   string
	keyFile    string
}

func main() {
	var opts options

	app := kingpin.New("skywave", "Multi-listener web SDR audio streaming.")
	app.Version(version)
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the YAML configuration file.").
		Short('f').
		Envar(config.ConfigPathEnvVar).
		StringVar(&opts.configPath)

	serve := app.Command("serve", "Run the server.").Default()
	serve.Flag("cert", "TLS certificate file. Overrides server.tls_cert.").
		Short('c').
		StringVar(&opts.certFile)
	serve.Flag("key", "TLS private key file. Overrides server.tls_key.").
		Short('k').
		StringVar(&opts.keyFile)

	sources := app.Command("sources", "List configured tuners and probe rtl_tcp servers.")
	probeTimeout := sources.Flag("timeout", "Probe timeout per server.").
		Default("3s").
		Duration()

	hash := app.Command("hash-password", "Print a bcrypt hash for security.admin_password.")
	password := hash.Arg("password", "Password to hash.").Required().String()

	var err error
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case serve.FullCommand():
		err = runServe(opts)
	case sources.FullCommand():
		err = runSources(opts, *probeTimeout)
	case hash.FullCommand():
		err = runHashPassword(*password)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("skywave failed")
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func runSources(opts options, timeout time.Duration) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	pool, err := source.NewPoolFromConfig(cfg.Radio)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(source.Scan(ctx, pool, timeout))
}

func runHashPassword(password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, hash)
	return err
}
