// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package session maps stream keys to live demodulation pipelines.
//
// The Manager owns the key to session map and the active count. Every change
// to either happens under its mutex, and every graph mutation is nested
// inside that mutex through Graph.Mutate. The graph runs exactly while at
// least one session exists.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skywave/internal/bridge"
	"github.com/tomtom215/skywave/internal/config"
	"github.com/tomtom215/skywave/internal/graph"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/metrics"
	"github.com/tomtom215/skywave/internal/pipeline"
	"github.com/tomtom215/skywave/internal/source"
)

// Config holds the per-session settings.
type Config struct {
	PipeCapacity int
	MaxSessions  int
	AudioRate    int
	Decimation   int
	MaxTaps      int
	DefaultMode  pipeline.Mode
}

// ConfigFrom derives session settings from the stream and radio config
// sections. An empty default mode selects WFM.
func ConfigFrom(stream config.StreamConfig, radio config.RadioConfig) (Config, error) {
	mode := pipeline.ModeWFM
	if radio.DefaultMode != "" {
		var err error
		if mode, err = pipeline.ParseMode(radio.DefaultMode); err != nil {
			return Config{}, err
		}
	}
	return Config{
		PipeCapacity: stream.PipeCapacity,
		MaxSessions:  stream.MaxSessions,
		AudioRate:    radio.AudioRate,
		Decimation:   radio.Decimation,
		MaxTaps:      radio.MaxTaps,
		DefaultMode:  mode,
	}, nil
}

// Reconfig carries optional pipeline changes. Nil fields are left alone.
type Reconfig struct {
	Mode   *pipeline.Mode
	Offset *float64
}

// Session is one live stream.
type Session struct {
	key     string
	created time.Time
	reader  *bridge.Reader
	writer  *bridge.Writer
	pipe    *pipeline.Pipeline
	tuner   *source.Tuner
}

// Key returns the stream key.
func (s *Session) Key() string { return s.key }

// Reader returns the read end of the session's stream bridge.
func (s *Session) Reader() *bridge.Reader { return s.reader }

// Created returns the creation time.
func (s *Session) Created() time.Time { return s.created }

// Info is a snapshot of a session.
type Info struct {
	Key           string    `json:"key"`
	Source        string    `json:"source"`
	Mode          string    `json:"demod"`
	Offset        float64   `json:"freq_offset"`
	HardwareFreq  float64   `json:"hw_freq"`
	Gain          float64   `json:"gain"`
	Running       bool      `json:"running"`
	Created       time.Time `json:"created"`
	BytesWritten  uint64    `json:"bytes_written"`
	DroppedChunks uint64    `json:"dropped_chunks"`
}

// Manager owns every live session.
type Manager struct {
	cfg   Config
	graph *graph.Graph
	pool  *source.Pool
	log   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	obsMu     sync.RWMutex
	observers map[int]func(Event)
	nextObs   int
}

// New creates a manager. The graph must be stopped and used by nothing else.
func New(cfg Config, g *graph.Graph, pool *source.Pool) *Manager {
	if cfg.PipeCapacity < 1 {
		cfg.PipeCapacity = 1
	}
	return &Manager{
		cfg:       cfg,
		graph:     g,
		pool:      pool,
		log:       logging.WithComponent("session"),
		sessions:  make(map[string]*Session),
		observers: make(map[int]func(Event)),
	}
}

// Create starts a session for key bound to the default source.
func (m *Manager) Create(key string) (*Session, error) {
	s, count, err := m.create(key)
	metrics.RecordSessionOperation("create", err)
	if err != nil {
		return nil, err
	}
	m.emit(Event{Type: EventCreated, Key: key, Count: count})
	return s, nil
}

func (m *Manager) create(key string) (*Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, 0, fmt.Errorf("%w: manager closed", ErrNoCapacity)
	}
	if _, ok := m.sessions[key]; ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, 0, fmt.Errorf("%w: limit of %d sessions reached", ErrNoCapacity, m.cfg.MaxSessions)
	}
	tuner, err := m.pool.Default()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNoCapacity, err)
	}

	r, w, err := bridge.New(m.cfg.PipeCapacity)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrPipeCreationFailed, err)
	}
	closePipe := func() {
		_ = w.Close()
		_ = r.Close()
	}

	p, err := pipeline.New(key, pipeline.Config{
		InputRate:  tuner.SampleRate(),
		AudioRate:  m.cfg.AudioRate,
		Decimation: m.cfg.Decimation,
		MaxTaps:    m.cfg.MaxTaps,
	}, w)
	if err != nil {
		closePipe()
		return nil, 0, fmt.Errorf("%w: %w", ErrPipeCreationFailed, err)
	}

	err = m.graph.Mutate(func(tx *graph.Tx) error {
		if err := p.Attach(tx, tuner); err != nil {
			return err
		}
		return p.SetMode(tx, m.cfg.DefaultMode)
	})
	if err != nil {
		closePipe()
		return nil, 0, fmt.Errorf("%w: attach %s: %w", ErrGraphMutationFailed, key, err)
	}

	s := &Session{
		key:     key,
		created: time.Now(),
		reader:  r,
		writer:  w,
		pipe:    p,
		tuner:   tuner,
	}
	m.sessions[key] = s

	if len(m.sessions) == 1 {
		if err := m.graph.Start(); err != nil {
			delete(m.sessions, key)
			_ = m.graph.Mutate(p.Detach)
			closePipe()
			return nil, 0, fmt.Errorf("%w: start graph: %w", ErrGraphMutationFailed, err)
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))

	m.log.Info().Str("stream_key", key).Str("source", tuner.Label()).
		Int("active", len(m.sessions)).Msg("Session created")
	return s, len(m.sessions), nil
}

// Destroy tears down the session for key.
func (m *Manager) Destroy(key string) error {
	count, err := m.destroy(key)
	metrics.RecordSessionOperation("destroy", err)
	if err != nil {
		return err
	}
	m.emit(Event{Type: EventDestroyed, Key: key, Count: count})
	return nil
}

func (m *Manager) destroy(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	m.teardownLocked(s)
	return len(m.sessions), nil
}

// teardownLocked must be called with mu held.
func (m *Manager) teardownLocked(s *Session) {
	if err := m.graph.Mutate(s.pipe.Detach); err != nil && !errors.Is(err, pipeline.ErrNotAttached) {
		m.log.Error().Err(err).Str("stream_key", s.key).Msg("Failed to detach pipeline")
	}
	delete(m.sessions, s.key)
	_ = s.writer.Close()
	_ = s.reader.Close()
	s.tuner.Release(s.key)

	if len(m.sessions) == 0 && m.graph.Running() {
		if err := m.graph.Stop(); err != nil {
			m.log.Error().Err(err).Msg("Failed to stop graph")
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))

	stats := s.writer.Stats()
	m.log.Info().Str("stream_key", s.key).Uint64("bytes", stats.BytesWritten).
		Uint64("dropped", stats.DroppedChunks).Dur("duration", time.Since(s.created)).
		Int("active", len(m.sessions)).Msg("Session destroyed")
}

// Reconfigure applies mode and offset changes in one graph transaction. The
// stream itself is untouched.
func (m *Manager) Reconfigure(key string, rc Reconfig) error {
	info, err := m.reconfigure(key, rc)
	metrics.RecordSessionOperation("reconfigure", err)
	if err != nil {
		return err
	}
	m.emit(Event{Type: EventUpdated, Key: key, Info: info})
	return nil
}

func (m *Manager) reconfigure(key string, rc Reconfig) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if rc.Mode != nil && !rc.Mode.Valid() {
		return Info{}, fmt.Errorf("%w: %v", pipeline.ErrUnknownMode, *rc.Mode)
	}

	err := m.graph.Mutate(func(tx *graph.Tx) error {
		if rc.Offset != nil {
			if err := s.pipe.SetCenterFrequency(tx, *rc.Offset); err != nil {
				return err
			}
		}
		if rc.Mode != nil {
			return s.pipe.SetMode(tx, *rc.Mode)
		}
		return nil
	})
	if err != nil {
		return Info{}, wrapPipelineErr(err)
	}
	return s.info(), nil
}

// SetSource moves the session to another tuner, keeping mode and offset.
func (m *Manager) SetSource(key, label string) error {
	info, err := m.setSource(key, label)
	metrics.RecordSessionOperation("set_source", err)
	if err != nil {
		return err
	}
	m.emit(Event{Type: EventUpdated, Key: key, Info: info})
	return nil
}

func (m *Manager) setSource(key, label string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	tuner, err := m.pool.Get(label)
	if err != nil {
		return Info{}, err
	}
	if tuner == s.tuner {
		return s.info(), nil
	}

	if err := m.graph.Mutate(func(tx *graph.Tx) error {
		return s.pipe.SetSource(tx, tuner)
	}); err != nil {
		return Info{}, wrapPipelineErr(err)
	}
	s.tuner.Release(key)
	s.tuner = tuner
	return s.info(), nil
}

// Tune retunes the session's tuner on behalf of the session. Another session
// holding the tuner claim gets source.ErrTuningConflict.
func (m *Manager) Tune(key string, hwFreq float64) error {
	info, err := m.tune(key, func(t *source.Tuner) error { return t.Tune(key, hwFreq) })
	metrics.RecordSessionOperation("tune", err)
	if err != nil {
		return err
	}
	m.emit(Event{Type: EventUpdated, Key: key, Info: info})
	return nil
}

// SetGain changes the gain of the session's tuner under the same claim as
// Tune.
func (m *Manager) SetGain(key string, db float64) error {
	info, err := m.tune(key, func(t *source.Tuner) error { return t.SetGain(key, db) })
	metrics.RecordSessionOperation("set_gain", err)
	if err != nil {
		return err
	}
	m.emit(Event{Type: EventUpdated, Key: key, Info: info})
	return nil
}

// tune runs fn against the session's tuner without holding the session map,
// since drivers talk to hardware and tuning observers persist settings. A
// claim taken by a session that went away in the meantime is handed back.
func (m *Manager) tune(key string, fn func(*source.Tuner) error) (Info, error) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	tuner := s.tuner
	m.mu.Unlock()

	if err := fn(tuner); err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[key]
	if !ok {
		tuner.Release(key)
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if s.tuner != tuner {
		tuner.Release(key)
	}
	return s.info(), nil
}

// Get returns a snapshot of the session for key.
func (m *Manager) Get(key string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.info(), nil
}

// List returns snapshots of all sessions ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// State returns the session count and graph state as one consistent pair.
func (m *Manager) State() (count int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), m.graph.Running()
}

// Close destroys every session and stops the graph. Later creates fail with
// ErrNoCapacity. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	keys := make([]string, 0, len(m.sessions))
	for key, s := range m.sessions {
		keys = append(keys, key)
		m.teardownLocked(s)
	}
	var err error
	if m.graph.Running() {
		err = m.graph.Stop()
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.emit(Event{Type: EventDestroyed, Key: key})
	}
	m.log.Info().Int("sessions", len(keys)).Msg("Session manager closed")
	return err
}

func (s *Session) info() Info {
	stats := s.writer.Stats()
	return Info{
		Key:           s.key,
		Source:        s.tuner.Label(),
		Mode:          s.pipe.Mode().String(),
		Offset:        s.pipe.CenterFrequency(),
		HardwareFreq:  s.tuner.HardwareFrequency(),
		Gain:          s.tuner.Gain(),
		Running:       s.pipe.IsRunning(),
		Created:       s.created,
		BytesWritten:  stats.BytesWritten,
		DroppedChunks: stats.DroppedChunks,
	}
}

func wrapPipelineErr(err error) error {
	if errors.Is(err, pipeline.ErrUnknownMode) || errors.Is(err, pipeline.ErrOffsetOutOfRange) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGraphMutationFailed, err)
}
