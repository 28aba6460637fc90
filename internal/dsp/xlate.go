// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Xlater shifts a signal at Center Hz down to 0 Hz, filters it with baseband
// taps and decimates. It keeps filter history between calls so blocks can be
// processed back to back.
type Xlater struct {
	proto      []complex64
	taps       []complex64
	decim      int
	sampleRate float64
	center     float64

	rot    complex128
	rotInc complex128

	work []complex64
	next int
	out  []complex64
}

// NewXlater creates a translating filter. taps are the baseband prototype.
func NewXlater(taps []complex64, decim int, sampleRate, center float64) (*Xlater, error) {
	if len(taps) == 0 {
		return nil, fmt.Errorf("dsp: xlater needs taps")
	}
	if decim < 1 {
		return nil, fmt.Errorf("dsp: decimation must be positive, got %d", decim)
	}
	x := &Xlater{
		proto:      taps,
		decim:      decim,
		sampleRate: sampleRate,
		rot:        1,
		work:       make([]complex64, len(taps)-1),
		next:       len(taps) - 1,
	}
	x.SetCenter(center)
	return x, nil
}

// SetCenter retunes the filter to center Hz.
func (x *Xlater) SetCenter(center float64) {
	x.center = center
	w := 2 * math.Pi * center / x.sampleRate

	x.taps = make([]complex64, len(x.proto))
	for k, v := range x.proto {
		x.taps[k] = v * complex64(cmplx.Rect(1, w*float64(k)))
	}
	x.rotInc = cmplx.Rect(1, -w*float64(x.decim))
}

// Center returns the current translation frequency.
func (x *Xlater) Center() float64 {
	return x.center
}

// OutputRate is the sample rate after decimation.
func (x *Xlater) OutputRate() float64 {
	return x.sampleRate / float64(x.decim)
}

// Process filters in and returns the decimated baseband output. The result is
// reused by the next call.
func (x *Xlater) Process(in []complex64) []complex64 {
	ntaps := len(x.taps)
	x.work = append(x.work, in...)
	x.out = x.out[:0]

	i := x.next
	for ; i < len(x.work); i += x.decim {
		var acc complex64
		window := x.work[i-ntaps+1 : i+1]
		for k, t := range x.taps {
			acc += t * window[ntaps-1-k]
		}
		x.out = append(x.out, acc*complex64(x.rot))
		x.rot *= x.rotInc
	}
	// keep the rotator on the unit circle
	x.rot /= complex(cmplx.Abs(x.rot), 0)

	keep := ntaps - 1
	x.next = i - (len(x.work) - keep)
	copy(x.work, x.work[len(x.work)-keep:])
	x.work = x.work[:keep]
	return x.out
}
