// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package dsp holds the signal-processing primitives used by demodulation
// pipelines: windowed-sinc filter design, a frequency-translating decimating
// FIR, demodulators and an audio resampler.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// hammingAttenuation is the stop-band attenuation in dB of a Hamming window,
// used to size filters from their transition width.
const hammingAttenuation = 53

// TapCount returns the odd number of taps needed for a Hamming-windowed
// filter with the given transition width, capped at maxTaps.
func TapCount(sampleRate, transition float64, maxTaps int) int {
	n := int(math.Ceil(hammingAttenuation * sampleRate / (22 * transition)))
	if maxTaps > 0 && n > maxTaps {
		n = maxTaps
	}
	if n < 3 {
		n = 3
	}
	if n%2 == 0 {
		n--
	}
	return n
}

// LowPass designs a real low-pass filter with unity DC gain times gain.
func LowPass(gain, sampleRate, cutoff, transition float64, maxTaps int) ([]float32, error) {
	if sampleRate <= 0 || cutoff <= 0 || transition <= 0 {
		return nil, fmt.Errorf("dsp: invalid low-pass parameters rate=%v cutoff=%v transition=%v",
			sampleRate, cutoff, transition)
	}
	if cutoff >= sampleRate/2 {
		return nil, fmt.Errorf("dsp: cutoff %v must be below Nyquist %v", cutoff, sampleRate/2)
	}

	n := TapCount(sampleRate, transition, maxTaps)
	mid := (n - 1) / 2
	wc := 2 * math.Pi * cutoff / sampleRate

	taps := make([]float64, n)
	var sum float64
	for i := range taps {
		k := float64(i - mid)
		var v float64
		if i == mid {
			v = wc / math.Pi
		} else {
			v = math.Sin(wc*k) / (math.Pi * k)
		}
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = v * w
		sum += taps[i]
	}

	out := make([]float32, n)
	for i, v := range taps {
		out[i] = float32(gain * v / sum)
	}
	return out, nil
}

// ComplexBandPass designs a complex filter passing [low, high] Hz. Negative
// frequencies are allowed, which is how the lower sideband is selected.
func ComplexBandPass(gain, sampleRate, low, high, transition float64, maxTaps int) ([]complex64, error) {
	if high <= low {
		return nil, fmt.Errorf("dsp: band-pass high %v must exceed low %v", high, low)
	}
	half := (high - low) / 2
	center := (high + low) / 2

	lp, err := LowPass(gain, sampleRate, half, transition, maxTaps)
	if err != nil {
		return nil, err
	}

	mid := (len(lp) - 1) / 2
	out := make([]complex64, len(lp))
	for i, v := range lp {
		phase := 2 * math.Pi * center / sampleRate * float64(i-mid)
		out[i] = complex64(complex(float64(v), 0) * cmplx.Rect(1, phase))
	}
	return out, nil
}

// RealToComplex widens real taps.
func RealToComplex(taps []float32) []complex64 {
	out := make([]complex64, len(taps))
	for i, v := range taps {
		out[i] = complex(v, 0)
	}
	return out
}
