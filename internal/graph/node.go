// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package graph

import "context"

// Kind is the sample type on a port.
type Kind int

const (
	KindNone Kind = iota
	KindComplex
	KindReal
)

func (k Kind) String() string {
	switch k {
	case KindComplex:
		return "complex"
	case KindReal:
		return "real"
	default:
		return "none"
	}
}

// Buffer carries one block between nodes. C is used for KindComplex ports
// and F for KindReal ports.
type Buffer struct {
	C []complex64
	F []float32
}

// Len returns the number of samples in the buffer.
func (b Buffer) Len() int {
	if b.C != nil {
		return len(b.C)
	}
	return len(b.F)
}

// Node is anything that can appear in the topology.
type Node interface {
	Name() string
	InputKind() Kind
	OutputKind() Kind
}

// Processor consumes one block and returns its output. A sink returns an
// empty Buffer. Process must not modify in, because a block may fan out to
// several processors. The returned buffer may alias internal storage that
// stays valid until the next call.
type Processor interface {
	Node
	Process(in Buffer) (Buffer, error)
}

// Source produces complex samples. ReadSamples blocks at most until ctx is
// done and may return 0 samples without error.
type Source interface {
	Node
	ReadSamples(ctx context.Context, buf []complex64) (int, error)
}
