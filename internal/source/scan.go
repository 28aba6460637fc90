// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrBadMagic is returned when a server does not speak rtl_tcp.
var ErrBadMagic = errors.New("not an rtl_tcp server")

const headerSize = 12

var headerMagic = [4]byte{'R', 'T', 'L', '0'}

var tunerNames = map[uint32]string{
	1: "E4000",
	2: "FC0012",
	3: "FC0013",
	4: "FC2580",
	5: "R820T",
	6: "R828D",
}

// Header is the dongle description an rtl_tcp server sends on connect.
type Header struct {
	TunerType uint32 `json:"tuner_type"`
	GainCount uint32 `json:"gain_count"`
}

// TunerName returns the tuner chip name.
func (h Header) TunerName() string {
	if name, ok := tunerNames[h.TunerType]; ok {
		return name
	}
	return "unknown"
}

// ReadHeader reads and checks the 12-byte rtl_tcp greeting.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("read rtl_tcp header: %w", err)
	}
	if [4]byte(raw[:4]) != headerMagic {
		return Header{}, fmt.Errorf("%w: magic %q", ErrBadMagic, raw[:4])
	}
	return Header{
		TunerType: binary.BigEndian.Uint32(raw[4:8]),
		GainCount: binary.BigEndian.Uint32(raw[8:12]),
	}, nil
}

// Probe dials an rtl_tcp server, reads its header and hangs up.
func Probe(ctx context.Context, address string, timeout time.Duration) (Header, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Header{}, err
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	return ReadHeader(conn)
}

// ScanResult is the outcome of probing one configured source.
type ScanResult struct {
	Info   Info    `json:"info"`
	Header *Header `json:"header,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Scan probes every rtl_tcp source in the pool. Other drivers are reported
// as-is.
func Scan(ctx context.Context, p *Pool, timeout time.Duration) []ScanResult {
	var out []ScanResult
	for _, t := range p.Tuners() {
		res := ScanResult{Info: t.Info()}
		if drv, ok := t.Driver().(*RTLTCP); ok {
			h, err := Probe(ctx, drv.cfg.Address, timeout)
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Header = &h
			}
		}
		out = append(out, res)
	}
	return out
}
