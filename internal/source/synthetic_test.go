// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"context"
	"math"
	"math/cmplx"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// carrierLevel correlates samples with a tone at rel Hz.
func carrierLevel(samples []complex64, rel, rate float64) float64 {
	var acc complex128
	for i, s := range samples {
		acc += complex128(s) * cmplx.Rect(1, -2*math.Pi*rel*float64(i)/rate)
	}
	return cmplx.Abs(acc) / float64(len(samples))
}

func TestSyntheticCarriers(t *testing.T) {
	s := newSynth(100e6)
	buf := make([]complex64, 48000)
	n, err := s.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	assert.InDelta(t, 0.1, carrierLevel(buf, -50_000, 240000), 0.02, "AM carrier")
	assert.Less(t, carrierLevel(buf, 70_000, 240000), 0.01, "empty spectrum")

	require.NoError(t, s.SetCenterFrequency(100e6-30_000))
	_, err = s.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, carrierLevel(buf, -20_000, 240000), 0.02,
		"AM carrier keeps its absolute frequency")

	require.NoError(t, s.SetCenterFrequency(100e6+100_000))
	_, err = s.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	// -150 kHz would alias to +90 kHz if it were not dropped.
	assert.Less(t, carrierLevel(buf, 90_000, 240000), 0.01, "AM carrier left the passband")
}

func TestSyntheticSettings(t *testing.T) {
	s := newSynth(100e6)
	assert.Equal(t, "synthetic", s.Kind())
	assert.Error(t, s.SetCenterFrequency(0))
	assert.Equal(t, 100e6, s.CenterFrequency())

	require.NoError(t, s.SetGain(20))
	assert.Equal(t, 20.0, s.Gain())
	assert.NoError(t, s.Close())
}

func TestSyntheticPacing(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{SampleRate: 240000, CenterFrequency: 100e6})
	buf := make([]complex64, 24000)

	start := time.Now()
	_, err := s.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	_, err = s.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadSamples(ctx, buf)
	assert.ErrorIs(t, err, context.Canceled)
}
