// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"fmt"
	"sync"

	"github.com/nexusmq/msgbroker/queue"
	"github.com/nexusmq/msgbroker/wire"
)

// Queue commands, big-endian minimal-length unsigned per SPEC_FULL §6.
const (
	cmdPublish uint64 = 1
	cmdPullMsg uint64 = 2
)

// QueueHandler is the ChannelHandler for ChannelQueue: PUBLISH appends
// to a queue and replies with nothing; PULL_MSG is handed to a
// per-connection worker goroutine so the blocking Get never runs on the
// reactor (SPEC_FULL.md §4.5).
type QueueHandler struct {
	registry *queue.Registry
	outbox   chan<- Envelope

	mu      sync.Mutex
	workers map[any]*pullWorker
}

type pullWorker struct {
	reqs chan uint64
}

// NewQueueHandler returns a QueueHandler backed by registry, funneling
// PULL_MSG replies onto outbox. outbox is typically the broker's
// per-tick drain channel (SPEC_FULL.md §5).
func NewQueueHandler(registry *queue.Registry, outbox chan<- Envelope) *QueueHandler {
	return &QueueHandler{
		registry: registry,
		outbox:   outbox,
		workers:  make(map[any]*pullWorker),
	}
}

// Handle interprets fields as (command, queue_id, ...args).
func (h *QueueHandler) Handle(connID any, fields [][]byte) (reply [][]byte, err error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("dispatch: queue frame needs command and queue id: %w", ErrBadCommand)
	}
	cmd := wire.IntFromBytes(fields[0])
	qid := wire.IntFromBytes(fields[1])
	args := fields[2:]

	switch cmd {
	case cmdPublish:
		if len(args) != 1 {
			return nil, fmt.Errorf("dispatch: PUBLISH wants exactly one payload field: %w", ErrBadCommand)
		}
		if err := h.registry.GetOrCreate(qid).Put(args[0]); err != nil {
			return nil, fmt.Errorf("dispatch: publish to queue %d: %w", qid, err)
		}
		return nil, nil
	case cmdPullMsg:
		if len(args) != 0 {
			return nil, fmt.Errorf("dispatch: PULL_MSG takes no extra fields: %w", ErrBadCommand)
		}
		h.spawnPull(connID, qid)
		return nil, nil
	default:
		return nil, fmt.Errorf("dispatch: command %d: %w", cmd, ErrBadCommand)
	}
}

// spawnPull enqueues a pull request for qid on connID's worker,
// starting the worker lazily on the first request so a connection that
// never pulls never gets a goroutine.
func (h *QueueHandler) spawnPull(connID any, qid uint64) {
	h.mu.Lock()
	w, ok := h.workers[connID]
	if !ok {
		w = &pullWorker{reqs: make(chan uint64, 8)}
		h.workers[connID] = w
		go h.runWorker(connID, w)
	}
	h.mu.Unlock()
	w.reqs <- qid
}

// runWorker serves pull requests for one connection serially: at most
// one blocking Get in flight per connection, queued requests wait
// their turn. The loop ends when OnConnectionClosed or Shutdown closes
// w.reqs.
func (h *QueueHandler) runWorker(connID any, w *pullWorker) {
	for qid := range w.reqs {
		payload, err := h.registry.GetOrCreate(qid).Get()
		if err != nil {
			// Queue was closed out from under a blocked pull (broker
			// shutdown poisoning every queue); nothing to reply with.
			continue
		}
		h.outbox <- Envelope{ConnID: connID, Fields: [][]byte{payload}}
	}
}

// OnConnectionClosed stops and releases connID's pull worker, if any.
func (h *QueueHandler) OnConnectionClosed(connID any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.workers[connID]; ok {
		delete(h.workers, connID)
		close(w.reqs)
	}
}

// Shutdown stops every outstanding pull worker.
func (h *QueueHandler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, w := range h.workers {
		delete(h.workers, connID)
		close(w.reqs)
	}
}
