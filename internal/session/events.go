// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package session

// EventType classifies manager events.
type EventType int

const (
	EventCreated EventType = iota
	EventDestroyed
	EventUpdated
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	default:
		return "updated"
	}
}

// Event reports a session change. Count is set for create and destroy, Info
// for updates.
type Event struct {
	Type  EventType
	Key   string
	Count int
	Info  Info
}

// Subscribe registers fn for every event. Observers run on the goroutine
// that caused the change, after the manager lock is released, so they may
// call back into the manager. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

func (m *Manager) emit(ev Event) {
	m.obsMu.RLock()
	fns := make([]func(Event), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
