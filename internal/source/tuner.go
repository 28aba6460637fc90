// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/skywave/internal/graph"
	"github.com/tomtom215/skywave/internal/logging"
)

// ErrTuningConflict is returned when another owner holds the tuning claim.
var ErrTuningConflict = errors.New("tuner is controlled by another client")

// Info describes a registered source.
type Info struct {
	Label       string  `json:"label"`
	Driver      string  `json:"driver"`
	Offset      float64 `json:"converter_offset"`
	SampleRate  float64 `json:"sample_rate"`
	Center      float64 `json:"center_frequency"`
	Gain        float64 `json:"gain"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
}

// Tuner is a labelled driver shared by every pipeline bound to it. Any
// listener may read from it; only the claim owner may retune it.
type Tuner struct {
	label       string
	description string
	offset      float64
	drv         Driver
	pool        *Pool

	mu    sync.Mutex
	owner string
}

var _ graph.Source = (*Tuner)(nil)

func (t *Tuner) Name() string             { return t.label }
func (t *Tuner) InputKind() graph.Kind    { return graph.KindNone }
func (t *Tuner) OutputKind() graph.Kind   { return graph.KindComplex }
func (t *Tuner) SampleRate() float64      { return t.drv.SampleRate() }
func (t *Tuner) Label() string            { return t.label }
func (t *Tuner) Description() string      { return t.description }
func (t *Tuner) ConverterOffset() float64 { return t.offset }
func (t *Tuner) Driver() Driver           { return t.drv }

func (t *Tuner) ReadSamples(ctx context.Context, buf []complex64) (int, error) {
	return t.drv.ReadSamples(ctx, buf)
}

// HardwareFrequency is the frequency shown to listeners: the tuner center
// plus the converter offset.
func (t *Tuner) HardwareFrequency() float64 {
	return t.drv.CenterFrequency() + t.offset
}

// Gain returns the driver gain in dB.
func (t *Tuner) Gain() float64 {
	return t.drv.Gain()
}

// Owner returns the current claim holder, or "".
func (t *Tuner) Owner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}

// Tune claims the tuner for owner and sets the hardware frequency. The claim
// is only taken when the driver accepts the new frequency.
func (t *Tuner) Tune(owner string, hz float64) error {
	if err := t.tune(owner, hz); err != nil {
		return err
	}
	logging.Info().Str("source", t.label).Str("owner", owner).Float64("hw_freq", hz).Msg("Tuner retuned")
	t.pool.notifyTune(t)
	return nil
}

func (t *Tuner) tune(owner string, hz float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkClaimLocked(owner); err != nil {
		return err
	}
	center := hz - t.offset
	if center <= 0 {
		return fmt.Errorf("tune %s: frequency %.0f Hz is below the converter offset", t.label, hz)
	}
	if err := t.drv.SetCenterFrequency(center); err != nil {
		return fmt.Errorf("tune %s: %w", t.label, err)
	}
	t.owner = owner
	return nil
}

// SetGain claims the tuner for owner and sets the gain.
func (t *Tuner) SetGain(owner string, db float64) error {
	if err := t.setGain(owner, db); err != nil {
		return err
	}
	t.pool.notifyTune(t)
	return nil
}

func (t *Tuner) setGain(owner string, db float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkClaimLocked(owner); err != nil {
		return err
	}
	if err := t.drv.SetGain(db); err != nil {
		return fmt.Errorf("set gain %s: %w", t.label, err)
	}
	t.owner = owner
	return nil
}

// Release drops the claim if owner holds it.
func (t *Tuner) Release(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owner == owner {
		t.owner = ""
	}
}

// Restore applies saved settings without taking a claim.
func (t *Tuner) Restore(hwFreq, gain float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hwFreq > t.offset {
		if err := t.drv.SetCenterFrequency(hwFreq - t.offset); err != nil {
			return err
		}
	}
	return t.drv.SetGain(gain)
}

// Info returns a snapshot of the tuner.
func (t *Tuner) Info() Info {
	return Info{
		Label:       t.label,
		Driver:      t.drv.Kind(),
		Offset:      t.offset,
		SampleRate:  t.drv.SampleRate(),
		Center:      t.HardwareFrequency(),
		Gain:        t.drv.Gain(),
		Description: t.description,
		Owner:       t.Owner(),
	}
}

func (t *Tuner) checkClaimLocked(owner string) error {
	if owner == "" {
		return fmt.Errorf("tune %s: owner required", t.label)
	}
	if t.owner != "" && t.owner != owner {
		return fmt.Errorf("%w: %s", ErrTuningConflict, t.label)
	}
	return nil
}
