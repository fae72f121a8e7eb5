// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package queue implements the per-queue-id FIFO storage backing the
// QUEUE channel handler: a concurrent queue with a blocking Get, shared
// across whatever publishers and pull workers reference the same queue
// id (SPEC_FULL.md §3, §5).
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Put and by a blocked Get once the queue has
// been closed. It implements the graceful-shutdown poison mechanism
// called for in spec.md §9: a Get blocked when Close is called returns
// this error instead of hanging forever.
var ErrClosed = errors.New("queue: closed")

// FIFO is a blocking, multi-producer/multi-consumer queue of payloads.
// The zero value is not usable; construct with New.
type FIFO struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

// New returns an empty FIFO.
func New() *FIFO {
	f := &FIFO{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Put appends payload to the tail of the queue and wakes one blocked
// Get, if any. Put on a closed queue returns ErrClosed; payload is
// dropped rather than queued.
func (f *FIFO) Put(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.items = append(f.items, payload)
	f.cond.Signal()
	return nil
}

// Get blocks until the queue is non-empty, then removes and returns the
// head payload. Get returns ErrClosed, without a payload, if the queue
// is closed while Get is waiting or is already closed when Get is
// called with nothing buffered.
func (f *FIFO) Get() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.items) == 0 && f.closed {
		return nil, ErrClosed
	}
	payload := f.items[0]
	f.items = f.items[1:]
	return payload, nil
}

// Close poisons the queue: every Get blocked on it wakes and returns
// ErrClosed, and every subsequent Put returns ErrClosed. Payloads that
// were already buffered are kept: a Get after Close still returns them
// in order and returns ErrClosed only once the queue is empty.
func (f *FIFO) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Len reports the number of currently buffered, unread payloads. It
// exists for tests asserting the published=pulled+buffered invariant
// (SPEC_FULL.md §8); callers must not rely on Len staying accurate past
// the instant it's read under concurrent Put/Get.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Registry maps queue ids to FIFOs, creating a queue on first reference
// as spec.md §3 requires ("created on first reference — never explicitly
// destroyed").
type Registry struct {
	mu     sync.Mutex
	queues map[uint64]*FIFO
}

// NewRegistry returns an empty queue registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[uint64]*FIFO)}
}

// GetOrCreate returns the FIFO for qID, creating it if this is the
// first reference.
func (r *Registry) GetOrCreate(qID uint64) *FIFO {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[qID]
	if !ok {
		q = New()
		r.queues[qID] = q
	}
	return q
}

// CloseAll closes every queue ever referenced. It's called from the
// broker's shutdown path so that pull workers blocked in Get are
// released (spec.md §9 "graceful shutdown").
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		q.Close()
	}
}

// Len reports how many distinct queue ids have been referenced. Used by
// tests only.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
