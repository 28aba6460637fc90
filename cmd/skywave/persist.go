// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package main

import (
	"context"
	"errors"

	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/source"
	"github.com/tomtom215/skywave/internal/store"
)

// settingsStore is the part of the store the server uses.
type settingsStore interface {
	Save(ctx context.Context, ts store.TunerSettings) error
	Load(ctx context.Context, label string) (store.TunerSettings, error)
}

// restoreTuners applies the last saved frequency and gain to each tuner.
func restoreTuners(ctx context.Context, st settingsStore, pool *source.Pool) {
	for _, t := range pool.Tuners() {
		ts, err := st.Load(ctx, t.Label())
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			logging.Warn().Err(err).Str("source", t.Label()).Msg("Could not load tuner settings")
			continue
		}
		if err := t.Restore(ts.Frequency, ts.Gain); err != nil {
			logging.Warn().Err(err).Str("source", t.Label()).Msg("Could not restore tuner settings")
			continue
		}
		logging.Info().Str("source", t.Label()).Float64("hw_freq", ts.Frequency).
			Float64("gain", ts.Gain).Msg("Restored tuner settings")
	}
}

// persistTuning saves every tuning change made through the pool.
func persistTuning(ctx context.Context, st settingsStore, pool *source.Pool) {
	pool.OnTune(func(label string, hwFreq, gain float64) {
		err := st.Save(ctx, store.TunerSettings{Label: label, Frequency: hwFreq, Gain: gain})
		if err != nil {
			logging.Warn().Err(err).Str("source", label).Msg("Could not save tuner settings")
		}
	})
}
