// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package pipeline builds the per-listener processing chain: a frequency
// translator, a demodulator, a resampler and a WAV sink feeding the stream
// bridge. Every structural change runs inside a graph transaction.
package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/skywave/internal/bridge"
	"github.com/tomtom215/skywave/internal/dsp"
	"github.com/tomtom215/skywave/internal/graph"
)

var (
	// ErrUnknownMode is returned for modes outside the mode table.
	ErrUnknownMode = errors.New("unknown demodulation mode")

	// ErrOffsetOutOfRange is returned when an offset lies outside the
	// source bandwidth.
	ErrOffsetOutOfRange = errors.New("frequency offset out of range")

	// ErrAttached is returned by Attach on an attached pipeline.
	ErrAttached = errors.New("pipeline already attached")

	// ErrNotAttached is returned by Detach on a detached pipeline.
	ErrNotAttached = errors.New("pipeline not attached")
)

// Source is a graph source with a known sample rate.
type Source interface {
	graph.Source
	SampleRate() float64
}

// Config fixes the rates of a pipeline.
type Config struct {
	InputRate  float64
	AudioRate  int
	Decimation int
	MaxTaps    int
}

type chain struct {
	xlate    *xlateNode
	demod    *demodNode
	resample *resampleNode
}

// Pipeline is one listener's processing chain. It is not safe for concurrent
// use; the session manager serializes access.
type Pipeline struct {
	name string
	cfg  Config
	sink *Sink

	src      Source
	mode     Mode
	offset   float64
	attached bool
	chain    *chain
}

// New creates a detached pipeline in ModeNone writing to w.
func New(name string, cfg Config, w *bridge.Writer) (*Pipeline, error) {
	if cfg.InputRate <= 0 || cfg.AudioRate <= 0 {
		return nil, fmt.Errorf("pipeline %s: invalid rates in=%v audio=%d", name, cfg.InputRate, cfg.AudioRate)
	}
	if cfg.Decimation < 1 {
		cfg.Decimation = 1
	}
	sink, err := NewSink(name+"/sink", cfg.AudioRate, w)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}
	return &Pipeline{name: name, cfg: cfg, sink: sink}, nil
}

// Name returns the pipeline name, normally the stream key.
func (p *Pipeline) Name() string { return p.name }

// Mode returns the current demodulation mode.
func (p *Pipeline) Mode() Mode { return p.mode }

// CenterFrequency returns the configured offset from the source center, in Hz.
func (p *Pipeline) CenterFrequency() float64 { return p.offset }

// Source returns the bound source, or nil.
func (p *Pipeline) Source() Source { return p.src }

// InputRate returns the sample rate of the bound source.
func (p *Pipeline) InputRate() float64 { return p.cfg.InputRate }

// IsReady reports whether a source is bound.
func (p *Pipeline) IsReady() bool { return p.src != nil }

// IsRunning reports whether the pipeline is attached to the graph.
func (p *Pipeline) IsRunning() bool { return p.attached }

// Attach binds src and connects the chain for the current mode.
func (p *Pipeline) Attach(tx *graph.Tx, src Source) error {
	if p.attached {
		return ErrAttached
	}
	if math.Abs(p.offset) > src.SampleRate()/2 {
		return fmt.Errorf("%w: %.0f Hz at %.0f S/s", ErrOffsetOutOfRange, p.offset, src.SampleRate())
	}

	prevSrc, prevRate, prevChain := p.src, p.cfg.InputRate, p.chain
	tx.OnRollback(func() {
		p.src, p.cfg.InputRate, p.chain, p.attached = prevSrc, prevRate, prevChain, false
	})

	p.src = src
	p.cfg.InputRate = src.SampleRate()
	c, err := p.build(p.mode)
	if err != nil {
		return err
	}
	if err := p.connect(tx, c); err != nil {
		return err
	}
	p.chain = c
	p.attached = true
	return nil
}

// Detach disconnects the chain. The source stays bound.
func (p *Pipeline) Detach(tx *graph.Tx) error {
	if !p.attached {
		return ErrNotAttached
	}
	prevChain := p.chain
	tx.OnRollback(func() {
		p.chain, p.attached = prevChain, true
	})

	if err := p.disconnect(tx, p.chain); err != nil {
		return err
	}
	p.chain = nil
	p.attached = false
	return nil
}

// SetMode replaces the translator and demodulator with the ones for m. The
// offset is preserved. An unknown mode leaves the pipeline unchanged.
func (p *Pipeline) SetMode(tx *graph.Tx, m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownMode, m)
	}

	var next *chain
	if p.attached {
		c, err := p.build(m)
		if err != nil {
			return err
		}
		next = c
	}

	prevMode, prevChain := p.mode, p.chain
	tx.OnRollback(func() {
		p.mode, p.chain = prevMode, prevChain
	})

	if p.attached {
		if err := p.disconnect(tx, p.chain); err != nil {
			return err
		}
		if err := p.connect(tx, next); err != nil {
			return err
		}
	}
	p.mode = m
	p.chain = next
	return nil
}

// SetCenterFrequency moves the translator to hz relative to the source
// center.
func (p *Pipeline) SetCenterFrequency(tx *graph.Tx, hz float64) error {
	if math.IsNaN(hz) || math.Abs(hz) > p.cfg.InputRate/2 {
		return fmt.Errorf("%w: %.0f Hz at %.0f S/s", ErrOffsetOutOfRange, hz, p.cfg.InputRate)
	}

	prev := p.offset
	tx.OnRollback(func() {
		p.offset = prev
		if p.chain != nil {
			p.chain.xlate.x.SetCenter(prev)
		}
	})

	p.offset = hz
	if p.chain != nil {
		p.chain.xlate.x.SetCenter(hz)
	}
	return nil
}

// SetSource rebinds the pipeline to src. When attached the chain is rebuilt
// for the new sample rate, keeping mode and offset.
func (p *Pipeline) SetSource(tx *graph.Tx, src Source) error {
	if !p.attached {
		if math.Abs(p.offset) > src.SampleRate()/2 {
			return fmt.Errorf("%w: %.0f Hz at %.0f S/s", ErrOffsetOutOfRange, p.offset, src.SampleRate())
		}
		prevSrc, prevRate := p.src, p.cfg.InputRate
		tx.OnRollback(func() {
			p.src, p.cfg.InputRate = prevSrc, prevRate
		})
		p.src = src
		p.cfg.InputRate = src.SampleRate()
		return nil
	}

	if err := p.Detach(tx); err != nil {
		return err
	}
	return p.Attach(tx, src)
}

// decimationFor picks the largest decimation not above the configured one
// that keeps the mode's passband below the intermediate Nyquist rate.
func (p *Pipeline) decimationFor(spec modeSpec) int {
	d := p.cfg.Decimation
	for d > 1 && p.cfg.InputRate/float64(d) < 2*spec.edge() {
		d--
	}
	return d
}

// build creates the chain for m. ModeNone has no chain.
func (p *Pipeline) build(m Mode) (*chain, error) {
	if m == ModeNone {
		return nil, nil
	}
	spec, ok := modeTable[m]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, m)
	}

	rate := p.cfg.InputRate
	var (
		taps []complex64
		err  error
	)
	switch spec.filter {
	case bandPass:
		taps, err = dsp.ComplexBandPass(1, rate, spec.low, spec.high, spec.transition, p.cfg.MaxTaps)
	default:
		// narrow sources cannot pass the full broadcast FM channel
		cutoff := min(spec.high, rate/2-spec.transition)
		var lp []float32
		lp, err = dsp.LowPass(1, rate, cutoff, spec.transition, p.cfg.MaxTaps)
		taps = dsp.RealToComplex(lp)
	}
	if err != nil {
		return nil, fmt.Errorf("design %v filter: %w", m, err)
	}

	decim := p.decimationFor(spec)
	x, err := dsp.NewXlater(taps, decim, rate, p.offset)
	if err != nil {
		return nil, err
	}
	mid := x.OutputRate()

	var d dsp.Demodulator
	switch spec.demod {
	case discriminator:
		d = dsp.NewFMDemod(mid, spec.deviation)
	case envelope:
		d = dsp.NewAMDemod(mid)
	case product:
		d = dsp.NewProductDetector(mid, spec.bfo)
	}

	r, err := dsp.NewResampler(int(math.Round(mid)), p.cfg.AudioRate)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s/%s", p.name, m)
	return &chain{
		xlate:    &xlateNode{name: prefix + "/xlate", x: x},
		demod:    &demodNode{name: prefix + "/demod", mode: m, d: d},
		resample: &resampleNode{name: prefix + "/resample", r: r},
	}, nil
}

func (p *Pipeline) connect(tx *graph.Tx, c *chain) error {
	if c == nil {
		return nil
	}
	edges := [][2]graph.Node{
		{c.resample, p.sink},
		{c.demod, c.resample},
		{c.xlate, c.demod},
		{p.src, c.xlate},
	}
	for _, e := range edges {
		if err := tx.Connect(e[0], e[1]); err != nil {
			return fmt.Errorf("connect %s -> %s: %w", e[0].Name(), e[1].Name(), err)
		}
	}
	return nil
}

func (p *Pipeline) disconnect(tx *graph.Tx, c *chain) error {
	if c == nil {
		return nil
	}
	edges := [][2]graph.Node{
		{p.src, c.xlate},
		{c.xlate, c.demod},
		{c.demod, c.resample},
		{c.resample, p.sink},
	}
	for _, e := range edges {
		if err := tx.Disconnect(e[0], e[1]); err != nil {
			return fmt.Errorf("disconnect %s -> %s: %w", e[0].Name(), e[1].Name(), err)
		}
	}
	return nil
}
