// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/skywave/internal/source"
	"github.com/tomtom215/skywave/internal/store"
)

func newPool(t *testing.T, offset float64) *source.Pool {
	t.Helper()
	pool := source.NewPool()
	drv := source.NewSynthetic(source.SyntheticConfig{SampleRate: 240000, CenterFrequency: 100e6})
	require.NoError(t, pool.Register(drv, offset, "hf", ""))
	return pool
}

func TestTuningSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.Open(dir)
	require.NoError(t, err)

	pool := newPool(t, 0)
	persistTuning(ctx, st, pool)
	tuner, err := pool.Get("hf")
	require.NoError(t, err)
	require.NoError(t, tuner.Tune("listener", 101.5e6))
	require.NoError(t, tuner.SetGain("listener", 20))
	require.NoError(t, st.Close())

	st, err = store.Open(dir)
	require.NoError(t, err)
	defer st.Close()

	fresh := newPool(t, 0)
	restoreTuners(ctx, st, fresh)
	restored, err := fresh.Get("hf")
	require.NoError(t, err)
	assert.Equal(t, 101.5e6, restored.HardwareFrequency())
	assert.Equal(t, 20.0, restored.Gain())
	assert.Empty(t, restored.Owner())
}

func TestRestoreWithoutSettings(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	pool := newPool(t, 0)
	restoreTuners(context.Background(), st, pool)
	tuner, err := pool.Get("hf")
	require.NoError(t, err)
	assert.Equal(t, 100e6, tuner.HardwareFrequency())
}

func TestRestoreHonoursConverterOffset(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Save(context.Background(), store.TunerSettings{Label: "hf", Frequency: 225e6}))

	pool := newPool(t, 125e6)
	restoreTuners(context.Background(), st, pool)
	tuner, err := pool.Get("hf")
	require.NoError(t, err)
	assert.Equal(t, 225e6, tuner.HardwareFrequency())
	assert.Equal(t, 100e6, tuner.Driver().CenterFrequency())
}
