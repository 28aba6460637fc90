// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned for unknown labels.
	ErrNotFound = errors.New("source not found")

	// ErrAlreadyRegistered is returned when a label is taken.
	ErrAlreadyRegistered = errors.New("source already registered")
)

// TuneFunc observes successful tuning changes.
type TuneFunc func(label string, hwFreq, gain float64)

// Pool is the set of tuners known to the process.
type Pool struct {
	mu     sync.RWMutex
	tuners map[string]*Tuner
	order  []string
	def    string
	onTune TuneFunc
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{tuners: make(map[string]*Tuner)}
}

// Register adds drv under label. The first registered source is the default.
func (p *Pool) Register(drv Driver, offset float64, label, description string) error {
	if label == "" {
		return fmt.Errorf("register source: empty label")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tuners[label]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, label)
	}
	p.tuners[label] = &Tuner{
		label:       label,
		description: description,
		offset:      offset,
		drv:         drv,
		pool:        p,
	}
	p.order = append(p.order, label)
	if p.def == "" {
		p.def = label
	}
	return nil
}

// Get returns the tuner registered under label.
func (p *Pool) Get(label string) (*Tuner, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tuners[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	return t, nil
}

// Default returns the default tuner.
func (p *Pool) Default() (*Tuner, error) {
	p.mu.RLock()
	def := p.def
	p.mu.RUnlock()
	if def == "" {
		return nil, ErrNotFound
	}
	return p.Get(def)
}

// SetDefault changes the default tuner.
func (p *Pool) SetDefault(label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tuners[label]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	p.def = label
	return nil
}

// Len returns the number of registered tuners.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tuners)
}

// Tuners returns the tuners in registration order.
func (p *Pool) Tuners() []*Tuner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Tuner, 0, len(p.order))
	for _, label := range p.order {
		out = append(out, p.tuners[label])
	}
	return out
}

// List describes every tuner in registration order.
func (p *Pool) List() []Info {
	tuners := p.Tuners()
	out := make([]Info, 0, len(tuners))
	for _, t := range tuners {
		out = append(out, t.Info())
	}
	return out
}

// Labels returns the registered labels in registration order.
func (p *Pool) Labels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// OnTune registers fn to observe tuning changes.
func (p *Pool) OnTune(fn TuneFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTune = fn
}

func (p *Pool) notifyTune(t *Tuner) {
	p.mu.RLock()
	fn := p.onTune
	p.mu.RUnlock()
	if fn != nil {
		fn(t.label, t.HardwareFrequency(), t.drv.Gain())
	}
}

// Close closes every driver.
func (p *Pool) Close() error {
	var errs []error
	for _, t := range p.Tuners() {
		if err := t.drv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t.label, err))
		}
	}
	return errors.Join(errs...)
}
