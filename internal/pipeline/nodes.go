// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package pipeline

import (
	"github.com/tomtom215/skywave/internal/dsp"
	"github.com/tomtom215/skywave/internal/graph"
)

type xlateNode struct {
	name string
	x    *dsp.Xlater
}

func (n *xlateNode) Name() string           { return n.name }
func (n *xlateNode) InputKind() graph.Kind  { return graph.KindComplex }
func (n *xlateNode) OutputKind() graph.Kind { return graph.KindComplex }

func (n *xlateNode) Process(in graph.Buffer) (graph.Buffer, error) {
	return graph.Buffer{C: n.x.Process(in.C)}, nil
}

type demodNode struct {
	name string
	mode Mode
	d    dsp.Demodulator
}

func (n *demodNode) Name() string           { return n.name }
func (n *demodNode) InputKind() graph.Kind  { return graph.KindComplex }
func (n *demodNode) OutputKind() graph.Kind { return graph.KindReal }

func (n *demodNode) Process(in graph.Buffer) (graph.Buffer, error) {
	return graph.Buffer{F: n.d.Demodulate(in.C)}, nil
}

type resampleNode struct {
	name string
	r    *dsp.Resampler
}

func (n *resampleNode) Name() string           { return n.name }
func (n *resampleNode) InputKind() graph.Kind  { return graph.KindReal }
func (n *resampleNode) OutputKind() graph.Kind { return graph.KindReal }

func (n *resampleNode) Process(in graph.Buffer) (graph.Buffer, error) {
	return graph.Buffer{F: n.r.Process(in.F)}, nil
}

// IsDemodulator reports whether n is a pipeline demodulator node.
func IsDemodulator(n graph.Node) bool {
	_, ok := n.(*demodNode)
	return ok
}

// IsTranslator reports whether n is a pipeline frequency translator node.
func IsTranslator(n graph.Node) bool {
	_, ok := n.(*xlateNode)
	return ok
}
