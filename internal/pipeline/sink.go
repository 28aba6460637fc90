// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package pipeline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tomtom215/skywave/internal/bridge"
	"github.com/tomtom215/skywave/internal/graph"
)

const (
	bitDepth      = 16
	wavHeaderSize = 44
	pcmFormat     = 1

	// streamingSize marks RIFF and data chunk sizes as unknown.
	streamingSize = 0xFFFFFFFF
)

var errUnseekable = errors.New("stream is not seekable")

// chunkBuffer collects encoder output for one block. The encoder only seeks
// when finalizing a file, which a live stream never does.
type chunkBuffer struct {
	bytes.Buffer
}

func (c *chunkBuffer) Seek(int64, int) (int64, error) {
	return 0, errUnseekable
}

// Sink encodes audio blocks as 16-bit mono PCM and writes them to the
// stream bridge. The WAV header is installed as the bridge preamble.
type Sink struct {
	name   string
	w      *bridge.Writer
	enc    *wav.Encoder
	out    *chunkBuffer
	buf    *audio.IntBuffer
	format *audio.Format
}

// NewSink creates a sink for audio at rate Hz.
func NewSink(name string, rate int, w *bridge.Writer) (*Sink, error) {
	s := &Sink{
		name:   name,
		w:      w,
		out:    &chunkBuffer{},
		format: &audio.Format{NumChannels: 1, SampleRate: rate},
	}
	s.enc = wav.NewEncoder(s.out, rate, bitDepth, 1, pcmFormat)
	s.buf = &audio.IntBuffer{Format: s.format, SourceBitDepth: bitDepth}

	if err := s.enc.Write(s.buf); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	header := s.out.Bytes()
	if len(header) != wavHeaderSize {
		return nil, fmt.Errorf("unexpected wav header size %d", len(header))
	}
	binary.LittleEndian.PutUint32(header[4:8], streamingSize)
	binary.LittleEndian.PutUint32(header[40:44], streamingSize)
	w.SetPreamble(header)
	s.out.Reset()
	return s, nil
}

func (s *Sink) Name() string           { return s.name }
func (s *Sink) InputKind() graph.Kind  { return graph.KindReal }
func (s *Sink) OutputKind() graph.Kind { return graph.KindNone }

// Process encodes one block. It fails with bridge.ErrClosed once the stream
// is gone.
func (s *Sink) Process(in graph.Buffer) (graph.Buffer, error) {
	if len(in.F) == 0 {
		return graph.Buffer{}, nil
	}
	if cap(s.buf.Data) < len(in.F) {
		s.buf.Data = make([]int, len(in.F))
	}
	s.buf.Data = s.buf.Data[:len(in.F)]
	for i, v := range in.F {
		s.buf.Data[i] = int(math.Round(float64(clamp(v)) * math.MaxInt16))
	}

	s.out.Reset()
	if err := s.enc.Write(s.buf); err != nil {
		return graph.Buffer{}, fmt.Errorf("encode audio: %w", err)
	}
	if _, err := s.w.Write(s.out.Bytes()); err != nil {
		return graph.Buffer{}, err
	}
	return graph.Buffer{}, nil
}

func clamp(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
