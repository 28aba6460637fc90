// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package graph

import (
	"fmt"
	"slices"
)

// View is a read-only snapshot of the topology, valid only inside the
// callback that received it.
type View struct {
	g *Graph
}

// Downstream returns the nodes fed by n.
func (v View) Downstream(n Node) []Node {
	return slices.Clone(v.g.edges[n])
}

// Connected reports whether the edge from -> to exists.
func (v View) Connected(from, to Node) bool {
	return slices.Contains(v.g.edges[from], to)
}

// Nodes returns every node that has at least one edge.
func (v View) Nodes() []Node {
	nodes := make([]Node, 0, len(v.g.edges)+len(v.g.parents))
	for n := range v.g.edges {
		nodes = append(nodes, n)
	}
	for n := range v.g.parents {
		if _, ok := v.g.edges[n]; !ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Reachable returns every node reachable from n, excluding n.
func (v View) Reachable(n Node) []Node {
	var out []Node
	seen := map[Node]bool{n: true}
	queue := []Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range v.g.edges[cur] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				queue = append(queue, d)
			}
		}
	}
	return out
}

// Running reports the graph state.
func (v View) Running() bool {
	return v.g.state == Running
}

type undo struct {
	connect  bool
	from, to Node
}

// Tx is a structural change in progress. It is only valid inside the Mutate
// callback that received it.
type Tx struct {
	View
	g          *Graph
	log        []undo
	onRollback []func()
	done       bool
}

// Connect adds the edge from -> to. The output kind of from must equal the
// input kind of to.
func (tx *Tx) Connect(from, to Node) error {
	if tx.done {
		return ErrTxDone
	}
	if err := tx.connect(from, to); err != nil {
		return err
	}
	tx.log = append(tx.log, undo{connect: true, from: from, to: to})
	return nil
}

// Disconnect removes the edge from -> to.
func (tx *Tx) Disconnect(from, to Node) error {
	if tx.done {
		return ErrTxDone
	}
	if err := tx.disconnect(from, to); err != nil {
		return err
	}
	tx.log = append(tx.log, undo{connect: false, from: from, to: to})
	return nil
}

// OnRollback registers fn to run if the Mutate callback fails. Nodes whose own
// state changes inside a transaction use it to restore that state.
func (tx *Tx) OnRollback(fn func()) {
	tx.onRollback = append(tx.onRollback, fn)
}

func (tx *Tx) connect(from, to Node) error {
	g := tx.g
	if _, ok := to.(Processor); !ok {
		return fmt.Errorf("%w: %s", ErrNotProcessor, to.Name())
	}
	if from.OutputKind() == KindNone || from.OutputKind() != to.InputKind() {
		return fmt.Errorf("%w: %s (%s) -> %s (%s)", ErrKindMismatch,
			from.Name(), from.OutputKind(), to.Name(), to.InputKind())
	}
	if slices.Contains(g.edges[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrEdgeExists, from.Name(), to.Name())
	}
	if from == to || slices.Contains(tx.Reachable(to), from) {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, from.Name(), to.Name())
	}

	g.edges[from] = append(g.edges[from], to)
	g.parents[to]++
	return nil
}

func (tx *Tx) disconnect(from, to Node) error {
	g := tx.g
	down := g.edges[from]
	i := slices.Index(down, to)
	if i < 0 {
		return fmt.Errorf("%w: %s -> %s", ErrNoEdge, from.Name(), to.Name())
	}

	down = slices.Delete(down, i, i+1)
	if len(down) == 0 {
		delete(g.edges, from)
	} else {
		g.edges[from] = down
	}

	if g.parents[to]--; g.parents[to] <= 0 {
		delete(g.parents, to)
	}
	return nil
}

func (tx *Tx) rollback() {
	for i := len(tx.log) - 1; i >= 0; i-- {
		u := tx.log[i]
		var err error
		if u.connect {
			err = tx.disconnect(u.from, u.to)
		} else {
			err = tx.connect(u.from, u.to)
		}
		if err != nil {
			tx.g.log.Error().Err(err).Msg("Graph rollback step failed")
		}
	}
	for i := len(tx.onRollback) - 1; i >= 0; i-- {
		tx.onRollback[i]()
	}
	tx.log = nil
	tx.onRollback = nil
}
