// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sync"
	"time"
)

// SyntheticConfig configures the built-in test signal generator.
type SyntheticConfig struct {
	SampleRate      float64
	CenterFrequency float64
	Gain            float64
	// Unpaced makes ReadSamples return immediately instead of at the
	// sample rate.
	Unpaced bool
}

type carrierKind int

const (
	carrierFM carrierKind = iota
	carrierAM
	carrierCW
)

// carrier is a test transmitter at a fixed absolute frequency.
type carrier struct {
	kind  carrierKind
	freq  float64
	tone  float64
	depth float64

	phase     float64
	tonePhase float64
}

// Synthetic generates a few modulated carriers plus noise, paced at the
// sample rate. Carriers keep their absolute frequency when retuned.
type Synthetic struct {
	rate    float64
	unpaced bool

	mu       sync.Mutex
	center   float64
	gain     float64
	carriers []carrier
	rng      *rand.Rand

	start    time.Time
	produced int64
}

// NewSynthetic creates a generator with an FM carrier 25 kHz above the
// initial center, an AM carrier 50 kHz below it and a keyed CW carrier
// 10 kHz above it.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	c := cfg.CenterFrequency
	return &Synthetic{
		rate:    cfg.SampleRate,
		unpaced: cfg.Unpaced,
		center:  c,
		gain:    cfg.Gain,
		carriers: []carrier{
			{kind: carrierFM, freq: c + 25_000, tone: 1_000, depth: 3_000},
			{kind: carrierAM, freq: c - 50_000, tone: 440, depth: 0.5},
			{kind: carrierCW, freq: c + 10_000, tone: 2, depth: 1},
		},
		rng: rand.New(rand.NewPCG(uint64(c), 0x5eed)),
	}
}

func (s *Synthetic) Kind() string        { return "synthetic" }
func (s *Synthetic) SampleRate() float64 { return s.rate }

func (s *Synthetic) CenterFrequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

func (s *Synthetic) SetCenterFrequency(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("synthetic: invalid frequency %.0f", hz)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = hz
	return nil
}

func (s *Synthetic) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

func (s *Synthetic) SetGain(db float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = db
	return nil
}

// ReadSamples fills buf and, unless unpaced, waits until those samples are
// due in real time. Pacing state is only touched by the single reader the
// graph allows per source.
func (s *Synthetic) ReadSamples(ctx context.Context, buf []complex64) (int, error) {
	if !s.unpaced {
		if err := s.pace(ctx, len(buf)); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	amp := 0.1 * math.Pow(10, s.gain/20)
	for i := range buf {
		var v complex128
		for j := range s.carriers {
			v += s.carriers[j].next(s.center, s.rate)
		}
		noise := complex(s.rng.NormFloat64(), s.rng.NormFloat64()) * 0.02
		buf[i] = complex64(v*complex(amp, 0) + noise)
	}
	return len(buf), nil
}

func (s *Synthetic) pace(ctx context.Context, n int) error {
	now := time.Now()
	if s.start.IsZero() || now.Sub(s.due()) > time.Second {
		s.start = now
		s.produced = 0
	}
	s.produced += int64(n)
	wait := time.Until(s.due())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Synthetic) due() time.Time {
	return s.start.Add(time.Duration(float64(s.produced) / s.rate * float64(time.Second)))
}

func (s *Synthetic) Close() error { return nil }

func (c *carrier) next(center, rate float64) complex128 {
	rel := c.freq - center
	if math.Abs(rel) >= rate/2 {
		return 0
	}
	mod := math.Sin(c.tonePhase)
	c.tonePhase = math.Mod(c.tonePhase+2*math.Pi*c.tone/rate, 2*math.Pi)

	amp := 1.0
	inst := rel
	switch c.kind {
	case carrierFM:
		inst += c.depth * mod
	case carrierAM:
		amp = 1 + c.depth*mod
	case carrierCW:
		if mod < 0 {
			amp = 0
		}
	}
	c.phase = math.Mod(c.phase+2*math.Pi*inst/rate, 2*math.Pi)
	return cmplx.Rect(amp, c.phase)
}
