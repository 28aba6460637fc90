// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package graph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSource struct {
	name     string
	reads    atomic.Int64
	inflight atomic.Int32
	overlap  atomic.Bool
}

func (s *testSource) Name() string     { return s.name }
func (s *testSource) InputKind() Kind  { return KindNone }
func (s *testSource) OutputKind() Kind { return KindComplex }

func (s *testSource) ReadSamples(ctx context.Context, buf []complex64) (int, error) {
	if s.inflight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inflight.Add(-1)

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	for i := range buf {
		buf[i] = complex(1, 0)
	}
	s.reads.Add(1)
	return len(buf), nil
}

// scale is a complex -> complex processor.
type scale struct{ name string }

func (p *scale) Name() string     { return p.name }
func (p *scale) InputKind() Kind  { return KindComplex }
func (p *scale) OutputKind() Kind { return KindComplex }
func (p *scale) Process(in Buffer) (Buffer, error) {
	out := make([]complex64, len(in.C))
	for i, v := range in.C {
		out[i] = v * 2
	}
	return Buffer{C: out}, nil
}

// toReal is a complex -> real processor.
type toReal struct{ name string }

func (p *toReal) Name() string     { return p.name }
func (p *toReal) InputKind() Kind  { return KindComplex }
func (p *toReal) OutputKind() Kind { return KindReal }
func (p *toReal) Process(in Buffer) (Buffer, error) {
	out := make([]float32, len(in.C))
	for i, v := range in.C {
		out[i] = real(v)
	}
	return Buffer{F: out}, nil
}

type sink struct {
	name    string
	blocks  atomic.Int64
	last    atomic.Value
	failing bool
	panics  bool
}

func (s *sink) Name() string     { return s.name }
func (s *sink) InputKind() Kind  { return KindReal }
func (s *sink) OutputKind() Kind { return KindNone }
func (s *sink) Process(in Buffer) (Buffer, error) {
	if s.panics {
		panic("boom")
	}
	if s.failing {
		return Buffer{}, errors.New("sink failed")
	}
	s.blocks.Add(1)
	s.last.Store(in.F[0])
	return Buffer{}, nil
}

func TestConnectValidation(t *testing.T) {
	g := New()
	src := &testSource{name: "src"}
	a, b := &scale{name: "a"}, &scale{name: "b"}
	snk := &sink{name: "sink"}

	tests := []struct {
		name string
		fn   func(tx *Tx) error
		want error
	}{
		{"kind mismatch", func(tx *Tx) error { return tx.Connect(src, snk) }, ErrKindMismatch},
		{"not processor", func(tx *Tx) error { return tx.Connect(a, src) }, ErrNotProcessor},
		{"duplicate", func(tx *Tx) error {
			require.NoError(t, tx.Connect(src, a))
			return tx.Connect(src, a)
		}, ErrEdgeExists},
		{"cycle", func(tx *Tx) error {
			require.NoError(t, tx.Connect(a, b))
			return tx.Connect(b, a)
		}, ErrCycle},
		{"self loop", func(tx *Tx) error { return tx.Connect(a, a) }, ErrCycle},
		{"missing edge", func(tx *Tx) error { return tx.Disconnect(src, a) }, ErrNoEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Mutate(tt.fn)
			assert.ErrorIs(t, err, tt.want)
			g.View(func(v View) {
				assert.Empty(t, v.Nodes(), "failed mutation must leave no edges")
			})
		})
	}
}

func TestMutateRollback(t *testing.T) {
	g := New()
	src := &testSource{name: "src"}
	a := &scale{name: "a"}
	conv := &toReal{name: "conv"}

	require.NoError(t, g.Mutate(func(tx *Tx) error { return tx.Connect(src, a) }))

	restored := false
	boom := errors.New("boom")
	err := g.Mutate(func(tx *Tx) error {
		tx.OnRollback(func() { restored = true })
		require.NoError(t, tx.Disconnect(src, a))
		require.NoError(t, tx.Connect(src, conv))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, restored)

	g.View(func(v View) {
		assert.True(t, v.Connected(src, a))
		assert.False(t, v.Connected(src, conv))
	})
}

func TestTxUnusableAfterMutate(t *testing.T) {
	g := New()
	var leaked *Tx
	require.NoError(t, g.Mutate(func(tx *Tx) error {
		leaked = tx
		return nil
	}))
	assert.ErrorIs(t, leaked.Connect(&testSource{name: "s"}, &scale{name: "a"}), ErrTxDone)
}

func TestStartStop(t *testing.T) {
	g := New(WithBlockSize(64))
	assert.Equal(t, Stopped, g.State())
	assert.ErrorIs(t, g.Stop(), ErrNotRunning)

	require.NoError(t, g.Start())
	assert.True(t, g.Running())
	assert.ErrorIs(t, g.Start(), ErrAlreadyRunning)

	require.NoError(t, g.Stop())
	assert.False(t, g.Running())
	g.Wait()
}

func TestSampleFlow(t *testing.T) {
	g := New(WithBlockSize(64))
	src := &testSource{name: "src"}
	a := &scale{name: "a"}
	conv := &toReal{name: "conv"}
	snk := &sink{name: "sink"}

	require.NoError(t, g.Mutate(func(tx *Tx) error {
		if err := tx.Connect(src, a); err != nil {
			return err
		}
		if err := tx.Connect(a, conv); err != nil {
			return err
		}
		return tx.Connect(conv, snk)
	}))

	require.NoError(t, g.Start())
	require.Eventually(t, func() bool { return snk.blocks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float32(2), snk.last.Load())

	require.NoError(t, g.Stop())
	after := snk.blocks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, snk.blocks.Load(), "no blocks after Stop returns")
}

func TestConnectWhileRunningStartsFlow(t *testing.T) {
	g := New(WithBlockSize(16))
	require.NoError(t, g.Start())
	defer func() { _ = g.Stop() }()

	src := &testSource{name: "src"}
	conv := &toReal{name: "conv"}
	snk := &sink{name: "sink"}

	require.NoError(t, g.Mutate(func(tx *Tx) error {
		if err := tx.Connect(conv, snk); err != nil {
			return err
		}
		return tx.Connect(src, conv)
	}))
	require.Eventually(t, func() bool { return snk.blocks.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, g.Mutate(func(tx *Tx) error { return tx.Disconnect(src, conv) }))
	time.Sleep(20 * time.Millisecond)

	before := src.reads.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, src.reads.Load(), "source without edges must not be read")
}

func TestRestartedFlowNeverOverlaps(t *testing.T) {
	g := New(WithBlockSize(16))
	require.NoError(t, g.Start())
	defer func() { _ = g.Stop() }()

	src := &testSource{name: "src"}
	a, b := &toReal{name: "a"}, &toReal{name: "b"}
	snkA, snkB := &sink{name: "sa"}, &sink{name: "sb"}
	require.NoError(t, g.Mutate(func(tx *Tx) error {
		if err := tx.Connect(a, snkA); err != nil {
			return err
		}
		return tx.Connect(b, snkB)
	}))

	for i := range 30 {
		from, to := Node(a), Node(b)
		if i%2 == 1 {
			from, to = b, a
		}
		require.NoError(t, g.Mutate(func(tx *Tx) error {
			if tx.Connected(src, from) {
				if err := tx.Disconnect(src, from); err != nil {
					return err
				}
			}
			return tx.Connect(src, to)
		}))
		if i%5 == 4 {
			require.NoError(t, g.Mutate(func(tx *Tx) error { return tx.Disconnect(src, to) }))
		}
		time.Sleep(time.Millisecond)
	}

	assert.False(t, src.overlap.Load(), "two flows read the same source at once")
}

func TestFanOutIsolatesFailures(t *testing.T) {
	g := New(WithBlockSize(16))
	src := &testSource{name: "src"}
	good := &sink{name: "good"}
	bad := &sink{name: "bad", panics: true}
	failing := &sink{name: "failing", failing: true}
	c1, c2, c3 := &toReal{name: "c1"}, &toReal{name: "c2"}, &toReal{name: "c3"}

	require.NoError(t, g.Mutate(func(tx *Tx) error {
		for _, pair := range [][2]Node{{src, c1}, {src, c2}, {src, c3}, {c1, bad}, {c2, failing}, {c3, good}} {
			if err := tx.Connect(pair[0], pair[1]); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, g.Start())
	defer func() { _ = g.Stop() }()

	require.Eventually(t, func() bool { return good.blocks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), failing.blocks.Load())
}

func TestViewReachable(t *testing.T) {
	g := New()
	src := &testSource{name: "src"}
	a := &scale{name: "a"}
	conv := &toReal{name: "conv"}
	snk := &sink{name: "sink"}

	require.NoError(t, g.Mutate(func(tx *Tx) error {
		_ = tx.Connect(src, a)
		_ = tx.Connect(a, conv)
		return tx.Connect(conv, snk)
	}))

	g.View(func(v View) {
		assert.ElementsMatch(t, []Node{a, conv, snk}, v.Reachable(src))
		assert.Len(t, v.Nodes(), 4)
		assert.Equal(t, []Node{a}, v.Downstream(src))
	})
}
