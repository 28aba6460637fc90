// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// Mode is a demodulation mode.
type Mode int

const (
	ModeNone Mode = iota
	ModeWFM
	ModeFM
	ModeAM
	ModeUSB
	ModeLSB
	ModeCW
)

var modeNames = map[Mode]string{
	ModeNone: "NONE",
	ModeWFM:  "WFM",
	ModeFM:   "FM",
	ModeAM:   "AM",
	ModeUSB:  "USB",
	ModeLSB:  "LSB",
	ModeCW:   "CW",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is a known mode, NONE included.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == want {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Demodulators lists the modes that produce audio, in display order.
func Demodulators() []Mode {
	return []Mode{ModeWFM, ModeFM, ModeAM, ModeUSB, ModeLSB, ModeCW}
}

type filterKind int

const (
	lowPass filterKind = iota
	bandPass
)

type demodKind int

const (
	discriminator demodKind = iota
	envelope
	product
)

// modeSpec describes the channel filter and demodulator for one mode. For a
// low-pass filter only high is used.
type modeSpec struct {
	filter     filterKind
	low, high  float64
	transition float64
	demod      demodKind
	deviation  float64
	bfo        float64
}

// edge is the highest frequency the channel filter lets through, which sets
// the minimum intermediate sample rate.
func (s modeSpec) edge() float64 {
	return max(math.Abs(s.low), math.Abs(s.high)) + s.transition
}

var modeTable = map[Mode]modeSpec{
	ModeWFM: {filter: lowPass, high: 75_000, transition: 25_000, demod: discriminator, deviation: 75_000},
	ModeFM:  {filter: lowPass, high: 4_000, transition: 2_000, demod: discriminator, deviation: 5_000},
	ModeAM:  {filter: lowPass, high: 5_000, transition: 1_000, demod: envelope},
	ModeUSB: {filter: bandPass, low: 1, high: 5_000, transition: 1_000, demod: product},
	ModeLSB: {filter: bandPass, low: -5_000, high: -1, transition: 1_000, demod: product},
	ModeCW:  {filter: bandPass, low: 1, high: 500, transition: 500, demod: product, bfo: 600},
}
