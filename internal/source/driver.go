// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package source owns the tuner hardware. Drivers talk to a device, Tuners
// wrap drivers with single-writer tuning arbitration, and the Pool keeps the
// labelled set of tuners created at startup.
package source

import (
	"context"
	"fmt"

	"github.com/tomtom215/skywave/internal/config"
)

// Driver is a tuner backend producing complex baseband samples.
type Driver interface {
	// Kind names the driver, e.g. "synthetic" or "rtl_tcp".
	Kind() string
	SampleRate() float64
	CenterFrequency() float64
	SetCenterFrequency(hz float64) error
	Gain() float64
	SetGain(db float64) error
	// ReadSamples blocks until samples are available or ctx is done.
	ReadSamples(ctx context.Context, buf []complex64) (int, error)
	Close() error
}

// Connector is implemented by drivers with a connection that can be
// established ahead of the first read.
type Connector interface {
	Connect(ctx context.Context) error
	Connected() bool
}

// NewDriver creates the driver described by a config entry.
func NewDriver(sc config.SourceConfig) (Driver, error) {
	switch sc.Driver {
	case config.DriverSynthetic:
		return NewSynthetic(SyntheticConfig{
			SampleRate:      sc.SampleRate,
			CenterFrequency: sc.CenterFrequency,
			Gain:            sc.Gain,
		}), nil
	case config.DriverRTLTCP:
		return NewRTLTCP(sc.Label, RTLTCPConfig{
			Address:         sc.Address,
			SampleRate:      sc.SampleRate,
			CenterFrequency: sc.CenterFrequency,
			Gain:            sc.Gain,
		}), nil
	default:
		return nil, fmt.Errorf("source %s: unknown driver %q", sc.Label, sc.Driver)
	}
}

// NewPoolFromConfig registers every configured source. The configured
// default source, or the first entry, becomes the pool default.
func NewPoolFromConfig(cfg config.RadioConfig) (*Pool, error) {
	pool := NewPool()
	for _, sc := range cfg.Sources {
		drv, err := NewDriver(sc)
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		if err := pool.Register(drv, sc.ConverterOffset, sc.Label, sc.Description); err != nil {
			_ = drv.Close()
			_ = pool.Close()
			return nil, err
		}
	}
	if cfg.DefaultSource != "" {
		if err := pool.SetDefault(cfg.DefaultSource); err != nil {
			_ = pool.Close()
			return nil, err
		}
	}
	return pool, nil
}
