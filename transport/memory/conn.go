// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nexusmq/msgbroker/transport"
)

// buffer is a byte queue with optional read/write notification hooks,
// grounded on io_memory.py's ConnectionBuffer.
type buffer struct {
	mu      sync.Mutex
	queue   []byte
	onRead  func(hasMoreData bool)
	onWrite func(numBytesWritten int)
}

func (b *buffer) take(p []byte) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return 0, false
	}
	n := copy(p, b.queue)
	b.queue = b.queue[n:]
	if cb := b.onRead; cb != nil {
		cb(len(b.queue) > 0)
	}
	return n, true
}

func (b *buffer) put(p []byte) {
	b.mu.Lock()
	b.queue = append(b.queue, p...)
	b.mu.Unlock()
	if cb := b.onWrite; cb != nil {
		cb(len(p))
	}
}

func (b *buffer) setOnRead(cb func(bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRead = cb
}

func (b *buffer) setOnWrite(cb func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWrite = cb
}

// party is one side of a paired in-memory connection: reads come from
// its own buffer, writes go to its counterparty's buffer. Grounded on
// io_memory.py's _ConnectionParty.
type party struct {
	id           uuid.UUID
	own          *buffer
	counterparty *buffer
}

func (p *party) ID() any { return p.id }

// Read returns whatever is currently queued, up to len(b), or
// transport.ErrWouldBlock if nothing is available yet — matching the
// non-blocking-read contract the tcp.conn also implements, rather than
// io_memory.py's stricter "exactly num bytes or BlockingIOError".
func (p *party) Read(b []byte) (int, error) {
	n, ok := p.own.take(b)
	if !ok {
		return 0, transport.ErrWouldBlock
	}
	return n, nil
}

// Write enqueues p on the counterparty's buffer, which is indivisible
// and always succeeds: an in-memory pair never blocks on write.
func (p *party) Write(b []byte) (int, error) {
	p.counterparty.put(b)
	return len(b), nil
}

// Close is a no-op: an in-memory pair holds no OS resource to release.
func (p *party) Close() error { return nil }

func (p *party) registerOnRead(cb func(hasMoreData bool)) {
	p.own.setOnRead(cb)
}

func (p *party) registerOnWrite(cb func(numBytesWritten int)) {
	p.own.setOnWrite(cb)
}

// newPair creates the two ends of one in-memory connection, each with
// its own id, matching io_memory.py's _Connection.
func newPair() (initiator, acceptor *party) {
	initiatorBuf := &buffer{}
	acceptorBuf := &buffer{}
	initiator = &party{id: uuid.New(), own: initiatorBuf, counterparty: acceptorBuf}
	acceptor = &party{id: uuid.New(), own: acceptorBuf, counterparty: initiatorBuf}
	return initiator, acceptor
}
