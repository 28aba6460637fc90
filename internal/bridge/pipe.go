// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

// Package bridge connects a pipeline sink, driven by the graph's sample-flow
// goroutine, to an HTTP response writer, driven by the connection goroutine.
//
// The pipe is a bounded queue of encoded chunks. Writes never block: when the
// queue is full the oldest chunk is discarded. Reads never block either and
// report ErrWouldBlock while the queue is empty, so the transport decides how
// to wait (normally on Reader.Ready).
//
//	r, w := bridge.New(64)
//	w.SetPreamble(header)
//	w.Write(chunk)           // graph goroutine
//	n, err := r.Read(buf)    // HTTP goroutine
package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tomtom215/skywave/internal/metrics"
)

var (
	// ErrWouldBlock means the pipe is open but holds no data yet. It is not
	// end of stream.
	ErrWouldBlock = errors.New("bridge: read would block")

	// ErrClosed is returned by Write after either end closed, and by Read
	// after the reader itself closed.
	ErrClosed = errors.New("bridge: pipe closed")

	// ErrReadFailed wraps the cause passed to Writer.CloseWithError.
	ErrReadFailed = errors.New("bridge: read failed")
)

type pipe struct {
	mu sync.Mutex

	ring  [][]byte
	head  int
	count int

	// current is the unread remainder of the chunk being delivered.
	current []byte

	preamble     []byte
	preambleSent bool

	writerClosed bool
	readerClosed bool
	failure      error

	ready chan struct{}

	dropped uint64
	written uint64
}

// Reader is the HTTP side of a pipe.
type Reader struct {
	p    *pipe
	once sync.Once
}

// Writer is the sink side of a pipe.
type Writer struct {
	p    *pipe
	once sync.Once
}

// New allocates a pipe holding at most capacity chunks.
func New(capacity int) (*Reader, *Writer, error) {
	if capacity < 1 {
		return nil, nil, fmt.Errorf("bridge: capacity must be positive, got %d", capacity)
	}
	p := &pipe{
		ring:  make([][]byte, capacity),
		ready: make(chan struct{}, 1),
	}
	return &Reader{p: p}, &Writer{p: p}, nil
}

// notify must be called with mu held.
func (p *pipe) notify() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// SetPreamble sets bytes every reader receives before any chunk. A container
// header goes here so that chunk drops can never remove it. It must be called
// before the reader has consumed anything.
func (w *Writer) SetPreamble(b []byte) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preamble = append([]byte(nil), b...)
	p.notify()
}

// Write enqueues a copy of b as one chunk. It never blocks. If the queue is
// full the oldest chunk is dropped.
func (w *Writer) Write(b []byte) (int, error) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writerClosed || p.readerClosed {
		return 0, ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}

	if p.count == len(p.ring) {
		p.ring[p.head] = nil
		p.head = (p.head + 1) % len(p.ring)
		p.count--
		p.dropped++
		metrics.BridgeDroppedChunks.Inc()
	}
	p.ring[(p.head+p.count)%len(p.ring)] = append([]byte(nil), b...)
	p.count++
	p.written += uint64(len(b))
	p.notify()
	return len(b), nil
}

// Close marks end of stream. Queued data stays readable. Close is idempotent.
func (w *Writer) Close() error {
	return w.CloseWithError(nil)
}

// CloseWithError closes the writer. A non-nil err makes the next Read fail
// with ErrReadFailed and discards queued data.
func (w *Writer) CloseWithError(err error) error {
	w.once.Do(func() {
		p := w.p
		p.mu.Lock()
		defer p.mu.Unlock()
		p.writerClosed = true
		p.failure = err
		p.notify()
	})
	return nil
}

// Read copies buffered data into b without blocking.
//
// It returns ErrWouldBlock when no data is queued and the writer is open,
// io.EOF once the writer closed and everything was read, and an error
// wrapping ErrReadFailed when the writer failed.
func (r *Reader) Read(b []byte) (int, error) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readerClosed {
		return 0, ErrClosed
	}
	if p.failure != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadFailed, p.failure)
	}
	if len(b) == 0 {
		return 0, nil
	}

	n := 0
	if !p.preambleSent && len(p.preamble) > 0 {
		c := copy(b, p.preamble)
		p.preamble = p.preamble[c:]
		n += c
		if len(p.preamble) > 0 {
			return n, nil
		}
		p.preambleSent = true
	}

	for n < len(b) {
		if len(p.current) == 0 {
			if p.count == 0 {
				break
			}
			p.current = p.ring[p.head]
			p.ring[p.head] = nil
			p.head = (p.head + 1) % len(p.ring)
			p.count--
		}
		c := copy(b[n:], p.current)
		p.current = p.current[c:]
		n += c
	}

	if n > 0 {
		return n, nil
	}
	if p.writerClosed {
		return 0, io.EOF
	}
	return 0, ErrWouldBlock
}

// Ready returns a channel that receives after new data arrives or the pipe
// closes. A receive is a hint to call Read again, not a guarantee of data.
func (r *Reader) Ready() <-chan struct{} {
	return r.p.ready
}

// Buffered returns the number of queued chunks.
func (r *Reader) Buffered() int {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Close releases the reader. Later writes fail with ErrClosed. Close is
// idempotent.
func (r *Reader) Close() error {
	r.once.Do(func() {
		p := r.p
		p.mu.Lock()
		defer p.mu.Unlock()
		p.readerClosed = true
		for i := range p.ring {
			p.ring[i] = nil
		}
		p.count = 0
		p.current = nil
		p.notify()
	})
	return nil
}

// Stats reports total bytes accepted and chunks dropped.
type Stats struct {
	BytesWritten  uint64
	DroppedChunks uint64
}

// Stats returns counters for the pipe.
func (w *Writer) Stats() Stats {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{BytesWritten: p.written, DroppedChunks: p.dropped}
}
