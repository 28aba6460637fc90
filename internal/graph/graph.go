// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package graph is the shared sample-processing engine.
//
// A Graph holds typed nodes joined by directed edges. While running it drives
// one sample-flow goroutine per connected Source: the goroutine reads a block
// with no lock held, then pushes it through every downstream Processor while
// holding the graph's read lock.
//
// Structural changes are only possible inside Mutate, which holds the write
// lock. A change is therefore never observed half-applied by sample flow, and
// a failed Mutate rolls back every edge change it made.
//
//	err := g.Mutate(func(tx *graph.Tx) error {
//	    if err := tx.Connect(src, xlate); err != nil {
//	        return err
//	    }
//	    return tx.Connect(xlate, demod)
//	})
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/metrics"
)

var (
	ErrAlreadyRunning = errors.New("graph: already running")
	ErrNotRunning     = errors.New("graph: not running")
	ErrKindMismatch   = errors.New("graph: port kinds do not match")
	ErrNotProcessor   = errors.New("graph: destination is not a processor")
	ErrEdgeExists     = errors.New("graph: edge already exists")
	ErrNoEdge         = errors.New("graph: no such edge")
	ErrCycle          = errors.New("graph: edge would create a cycle")
	ErrTxDone         = errors.New("graph: transaction already finished")
)

// State is the lifecycle state of a Graph.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

const (
	defaultBlockSize = 16384
	readRetryDelay   = 250 * time.Millisecond
)

// Option configures a Graph.
type Option func(*Graph)

// WithBlockSize sets the number of samples read from a source per block.
func WithBlockSize(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.blockSize = n
		}
	}
}

type flow struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Graph is the process-wide processing engine. The zero value is not usable;
// call New.
type Graph struct {
	// life serializes Start and Stop.
	life sync.Mutex

	// mu is the mutation lock. Sample flow holds it for reading.
	mu    sync.RWMutex
	edges map[Node][]Node
	// parents counts incoming edges, so Nodes can include pure sinks.
	parents map[Node]int
	state   State
	ctx     context.Context
	cancel  context.CancelFunc
	flows   map[Source]*flow
	// retiring holds the done channel of the last cancelled flow per source,
	// so a restarted flow never reads concurrently with its predecessor.
	retiring map[Source]chan struct{}
	stopped  chan struct{}

	wg        sync.WaitGroup
	blockSize int
	log       zerolog.Logger
}

// New creates a stopped, empty graph.
func New(opts ...Option) *Graph {
	stopped := make(chan struct{})
	close(stopped)
	g := &Graph{
		edges:     make(map[Node][]Node),
		parents:   make(map[Node]int),
		flows:     make(map[Source]*flow),
		retiring:  make(map[Source]chan struct{}),
		stopped:   stopped,
		blockSize: defaultBlockSize,
		log:       logging.WithComponent("graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start begins sample flow for every source that has a downstream edge.
func (g *Graph) Start() error {
	g.life.Lock()
	defer g.life.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Running {
		return ErrAlreadyRunning
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.stopped = make(chan struct{})
	g.state = Running

	g.reconcileFlowsLocked()

	metrics.SetGraphRunning(true)
	g.log.Info().Int("flows", len(g.flows)).Msg("Graph started")
	return nil
}

// Stop halts sample flow and blocks until every in-flight block has been
// processed. It must not be called from inside Mutate.
func (g *Graph) Stop() error {
	g.life.Lock()
	defer g.life.Unlock()

	g.mu.Lock()
	if g.state != Running {
		g.mu.Unlock()
		return ErrNotRunning
	}
	g.state = Stopped
	g.cancel()
	clear(g.flows)
	clear(g.retiring)
	stopped := g.stopped
	g.mu.Unlock()

	g.wg.Wait()
	close(stopped)

	metrics.SetGraphRunning(false)
	g.log.Info().Msg("Graph stopped")
	return nil
}

// Wait blocks until the graph is stopped.
func (g *Graph) Wait() {
	g.mu.RLock()
	ch := g.stopped
	g.mu.RUnlock()
	<-ch
}

// State returns the current lifecycle state.
func (g *Graph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Running reports whether the graph is running.
func (g *Graph) Running() bool {
	return g.State() == Running
}

// Mutate runs fn with the mutation lock held. If fn returns an error every
// edge change it made is undone and its rollback hooks run in reverse order.
func (g *Graph) Mutate(fn func(tx *Tx) error) error {
	start := time.Now()
	g.mu.Lock()
	defer func() {
		g.mu.Unlock()
		metrics.GraphMutationDuration.Observe(time.Since(start).Seconds())
	}()

	tx := &Tx{View: View{g: g}, g: g}
	err := fn(tx)
	if err != nil {
		tx.rollback()
	}
	tx.done = true
	if g.state == Running {
		g.reconcileFlowsLocked()
	}
	return err
}

// View runs fn with a read-only view of the topology. Sample flow keeps
// running, structural changes wait.
func (g *Graph) View(fn func(v View)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(View{g: g})
}

// reconcileFlowsLocked runs one flow per source with downstream edges. Flows
// change only when a transaction finishes, so a source whose edges are
// swapped inside one transaction keeps its flow.
func (g *Graph) reconcileFlowsLocked() {
	for src := range g.flows {
		if len(g.edges[src]) == 0 {
			g.stopFlowLocked(src)
		}
	}
	for n, down := range g.edges {
		if src, ok := n.(Source); ok && len(down) > 0 {
			g.startFlowLocked(src)
		}
	}
}

// startFlowLocked must be called with mu held for writing while running.
func (g *Graph) startFlowLocked(src Source) {
	if _, ok := g.flows[src]; ok {
		return
	}
	prev := g.retiring[src]
	delete(g.retiring, src)

	ctx, cancel := context.WithCancel(g.ctx)
	f := &flow{cancel: cancel, done: make(chan struct{})}
	g.flows[src] = f
	g.wg.Add(1)
	go g.runFlow(ctx, src, prev, f.done)
}

// stopFlowLocked must be called with mu held for writing.
func (g *Graph) stopFlowLocked(src Source) {
	if f, ok := g.flows[src]; ok {
		f.cancel()
		g.retiring[src] = f.done
		delete(g.flows, src)
	}
}

func (g *Graph) runFlow(ctx context.Context, src Source, prev <-chan struct{}, done chan struct{}) {
	defer g.wg.Done()
	defer close(done)
	if prev != nil {
		<-prev
	}

	buf := make([]complex64, g.blockSize)
	log := g.log.With().Str("source", src.Name()).Logger()
	log.Debug().Msg("Sample flow started")
	defer log.Debug().Msg("Sample flow stopped")

	for {
		n, err := src.ReadSamples(ctx, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			metrics.SourceReadErrors.WithLabelValues(src.Name()).Inc()
			log.Warn().Err(err).Msg("Source read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if n == 0 {
			continue
		}

		g.mu.RLock()
		g.push(src, Buffer{C: buf[:n]})
		g.mu.RUnlock()
	}
}

// push must be called with mu held.
func (g *Graph) push(from Node, in Buffer) {
	for _, n := range g.edges[from] {
		p := n.(Processor)
		out, err := safeProcess(p, in)
		if err != nil {
			g.log.Debug().Err(err).Str("node", p.Name()).Msg("Node failed to process block")
			continue
		}
		if out.Len() > 0 {
			g.push(p, out)
		}
	}
}

func safeProcess(p Processor, in Buffer) (out Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", p.Name(), r)
		}
	}()
	return p.Process(in)
}
