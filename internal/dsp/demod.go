// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package dsp

import (
	"math"
	"math/cmplx"
)

// Demodulator turns baseband complex samples into audio.
type Demodulator interface {
	Demodulate(in []complex64) []float32
}

// FMDemod is a quadrature discriminator. A tone at the full deviation comes
// out at amplitude 1.
type FMDemod struct {
	gain float64
	last complex64
	out  []float32
}

// NewFMDemod creates a discriminator for the given input rate and deviation.
func NewFMDemod(sampleRate, deviation float64) *FMDemod {
	return &FMDemod{gain: sampleRate / (2 * math.Pi * deviation), last: 1}
}

// Gain returns the discriminator gain.
func (d *FMDemod) Gain() float64 { return d.gain }

func (d *FMDemod) Demodulate(in []complex64) []float32 {
	d.out = resizeFloat(d.out, len(in))
	last := d.last
	for i, s := range in {
		p := complex128(s) * cmplx.Conj(complex128(last))
		d.out[i] = float32(d.gain * cmplx.Phase(p))
		last = s
	}
	d.last = last
	return d.out
}

// AMDemod is an envelope detector with a tracking DC removal. Output is
// normalized to the carrier level so a fully modulated carrier peaks at 1.
type AMDemod struct {
	alpha float64
	dc    float64
	out   []float32
}

// NewAMDemod creates an envelope detector. The DC tracker follows the
// carrier with a time constant of roughly 50ms.
func NewAMDemod(sampleRate float64) *AMDemod {
	return &AMDemod{alpha: 1 / (0.05 * sampleRate)}
}

func (d *AMDemod) Demodulate(in []complex64) []float32 {
	d.out = resizeFloat(d.out, len(in))
	for i, s := range in {
		m := cmplx.Abs(complex128(s))
		if d.dc == 0 {
			d.dc = m
		}
		d.dc += (m - d.dc) * d.alpha
		if d.dc < 1e-9 {
			d.out[i] = 0
			continue
		}
		d.out[i] = float32((m - d.dc) / d.dc)
	}
	return d.out
}

// ProductDetector recovers single-sideband and CW audio from a signal that
// has already been band-limited to one side of the carrier. A non-zero beat
// frequency shifts the passband up so a carrier at 0 Hz becomes audible.
type ProductDetector struct {
	rot    complex128
	rotInc complex128
	beat   bool
	agc    float64
	decay  float64
	out    []float32
}

// NewProductDetector creates a detector. bfo is the beat oscillator offset
// in Hz; zero disables it.
func NewProductDetector(sampleRate, bfo float64) *ProductDetector {
	return &ProductDetector{
		rot:    1,
		rotInc: cmplx.Rect(1, 2*math.Pi*bfo/sampleRate),
		beat:   bfo != 0,
		decay:  math.Exp(-1 / (0.5 * sampleRate)),
	}
}

func (d *ProductDetector) Demodulate(in []complex64) []float32 {
	d.out = resizeFloat(d.out, len(in))
	for i, s := range in {
		v := complex128(s)
		if d.beat {
			v *= d.rot
			d.rot *= d.rotInc
		}
		mag := cmplx.Abs(v)
		d.agc *= d.decay
		if mag > d.agc {
			d.agc = mag
		}
		if d.agc < 1e-9 {
			d.out[i] = 0
			continue
		}
		d.out[i] = float32(0.8 * real(v) / d.agc)
	}
	if d.beat {
		d.rot /= complex(cmplx.Abs(d.rot), 0)
	}
	return d.out
}

func resizeFloat(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
