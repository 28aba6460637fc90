// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/metrics"
)

// rtl_tcp command codes.
const (
	cmdSetFrequency  = 0x01
	cmdSetSampleRate = 0x02
	cmdSetGainMode   = 0x03
	cmdSetGain       = 0x04
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultReadTimeout = 2 * time.Second
	maxReadSamples     = 16384
)

// RTLTCPConfig configures a connection to an rtl_tcp server.
type RTLTCPConfig struct {
	Address         string
	SampleRate      float64
	CenterFrequency float64
	Gain            float64
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	// BreakerTimeout is how long the dial breaker stays open.
	BreakerTimeout time.Duration
}

// RTLTCP streams 8-bit IQ samples from an rtl_tcp server. Connection
// attempts go through a circuit breaker so a dead dongle is not hammered.
type RTLTCP struct {
	label   string
	cfg     RTLTCPConfig
	breaker *gobreaker.CircuitBreaker[*rtlConn]

	mu     sync.Mutex
	conn   *rtlConn
	center float64
	gain   float64

	raw []byte
}

type rtlConn struct {
	net.Conn
	r      *bufio.Reader
	header Header
}

// NewRTLTCP creates a driver. It does not connect until the first read or
// an explicit Connect.
func NewRTLTCP(label string, cfg RTLTCPConfig) *RTLTCP {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	d := &RTLTCP{
		label:  label,
		cfg:    cfg,
		center: cfg.CenterFrequency,
		gain:   cfg.Gain,
	}
	d.breaker = newDialBreaker("rtl_tcp-"+label, cfg.BreakerTimeout)
	return d
}

func newDialBreaker(name string, timeout time.Duration) *gobreaker.CircuitBreaker[*rtlConn] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[*rtlConn](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Tuner circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (d *RTLTCP) Kind() string        { return "rtl_tcp" }
func (d *RTLTCP) SampleRate() float64 { return d.cfg.SampleRate }

func (d *RTLTCP) CenterFrequency() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.center
}

func (d *RTLTCP) Gain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

// SetCenterFrequency records hz and sends it if connected. A new connection
// always receives the current settings.
func (d *RTLTCP) SetCenterFrequency(hz float64) error {
	if hz <= 0 || hz > 0xFFFFFFFF {
		return fmt.Errorf("rtl_tcp: frequency %.0f Hz out of range", hz)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.center = hz
	if d.conn == nil {
		return nil
	}
	return d.sendLocked(cmdSetFrequency, uint32(hz))
}

// SetGain sets a manual gain in dB. Zero selects automatic gain.
func (d *RTLTCP) SetGain(db float64) error {
	if db < 0 {
		return fmt.Errorf("rtl_tcp: negative gain %.1f", db)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gain = db
	if d.conn == nil {
		return nil
	}
	return d.sendGainLocked()
}

// Connected reports whether a connection is open.
func (d *RTLTCP) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Header returns the dongle header of the current connection.
func (d *RTLTCP) Header() (Header, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return Header{}, false
	}
	return d.conn.header, true
}

// Connect opens the connection if needed.
func (d *RTLTCP) Connect(ctx context.Context) error {
	_, err := d.connection(ctx)
	return err
}

func (d *RTLTCP) connection(ctx context.Context) (*rtlConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}

	c, err := d.breaker.Execute(func() (*rtlConn, error) {
		return d.dial(ctx)
	})
	if !errBreakerOpen(err) {
		metrics.RecordSourceConnect(d.label, err)
	}
	if err != nil {
		return nil, fmt.Errorf("rtl_tcp %s: %w", d.cfg.Address, err)
	}
	d.conn = c

	if err := d.configureLocked(); err != nil {
		d.dropLocked()
		return nil, err
	}
	logging.Info().Str("source", d.label).Str("address", d.cfg.Address).
		Str("tuner", c.header.TunerName()).Uint32("gains", c.header.GainCount).
		Msg("Connected to rtl_tcp")
	return c, nil
}

func (d *RTLTCP) dial(ctx context.Context) (*rtlConn, error) {
	dialer := net.Dialer{Timeout: d.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Address)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(d.cfg.DialTimeout))
	r := bufio.NewReaderSize(conn, 2*maxReadSamples)
	h, err := ReadHeader(r)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &rtlConn{Conn: conn, r: r, header: h}, nil
}

func (d *RTLTCP) configureLocked() error {
	if err := d.sendLocked(cmdSetSampleRate, uint32(d.cfg.SampleRate)); err != nil {
		return err
	}
	if err := d.sendLocked(cmdSetFrequency, uint32(d.center)); err != nil {
		return err
	}
	return d.sendGainLocked()
}

func (d *RTLTCP) sendGainLocked() error {
	if d.gain == 0 {
		return d.sendLocked(cmdSetGainMode, 0)
	}
	if err := d.sendLocked(cmdSetGainMode, 1); err != nil {
		return err
	}
	return d.sendLocked(cmdSetGain, uint32(math.Round(d.gain*10)))
}

func (d *RTLTCP) sendLocked(cmd byte, arg uint32) error {
	var msg [5]byte
	msg[0] = cmd
	binary.BigEndian.PutUint32(msg[1:], arg)
	_ = d.conn.SetWriteDeadline(time.Now().Add(d.cfg.ReadTimeout))
	if _, err := d.conn.Write(msg[:]); err != nil {
		d.dropLocked()
		return fmt.Errorf("rtl_tcp %s: send command %#x: %w", d.label, cmd, err)
	}
	return nil
}

func (d *RTLTCP) dropLocked() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

// ReadSamples reads up to len(buf) samples, connecting first if needed. A
// failed read drops the connection so the next call reconnects.
func (d *RTLTCP) ReadSamples(ctx context.Context, buf []complex64) (int, error) {
	c, err := d.connection(ctx)
	if err != nil {
		return 0, err
	}

	n := min(len(buf), maxReadSamples)
	if cap(d.raw) < 2*n {
		d.raw = make([]byte, 2*maxReadSamples)
	}
	raw := d.raw[:2*n]

	_ = c.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetReadDeadline(time.Now())
	})
	_, err = io.ReadFull(c.r, raw)
	stop()
	if err != nil {
		d.mu.Lock()
		if d.conn == c {
			d.dropLocked()
		}
		d.mu.Unlock()
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("rtl_tcp %s: read: %w", d.label, err)
	}

	for i := range n {
		buf[i] = complex(u8ToFloat(raw[2*i]), u8ToFloat(raw[2*i+1]))
	}
	return n, nil
}

func u8ToFloat(b byte) float32 {
	return (float32(b) - 127.5) / 127.5
}

// Close drops the connection.
func (d *RTLTCP) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked()
	return nil
}

// errBreakerOpen reports whether err came from an open dial breaker.
func errBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
