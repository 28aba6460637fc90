// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package dsp

import (
	"fmt"

	"github.com/oov/audio/resampler"
)

const resampleQuality = 10

// Resampler converts mono float audio between integer sample rates.
type Resampler struct {
	r       *resampler.Resampler
	inRate  int
	outRate int
	out     []float32
	scratch []float32
}

// NewResampler creates a mono resampler.
func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("dsp: invalid resample rates %d -> %d", inRate, outRate)
	}
	return &Resampler{
		r:       resampler.New(1, inRate, outRate, resampleQuality),
		inRate:  inRate,
		outRate: outRate,
	}, nil
}

// Rates returns the input and output sample rates.
func (r *Resampler) Rates() (in, out int) {
	return r.inRate, r.outRate
}

// Process resamples in. The returned slice is reused by the next call.
func (r *Resampler) Process(in []float32) []float32 {
	if r.inRate == r.outRate {
		r.out = append(r.out[:0], in...)
		return r.out
	}

	chunk := len(in)*r.outRate/r.inRate + 16
	if cap(r.out) < chunk {
		r.out = make([]float32, 0, chunk)
	}
	r.out = r.out[:0]

	if len(r.scratch) < chunk {
		r.scratch = make([]float32, chunk)
	}
	buf := r.scratch[:chunk]
	for len(in) > 0 {
		read, written := r.r.ProcessFloat32(0, in, buf)
		r.out = append(r.out, buf[:written]...)
		if read == 0 && written == 0 {
			break
		}
		in = in[read:]
	}
	return r.out
}
