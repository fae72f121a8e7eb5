// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memory

import (
	"sync"
	"time"

	"github.com/nexusmq/msgbroker/transport"
)

// Manager is the in-memory transport.Manager test double, grounded on
// io_memory.py's InMemoryConnectionManager: it tracks which connections
// currently have buffered data by hooking each party's own read/write
// notifications rather than polling an OS readiness set.
type Manager struct {
	mu         sync.Mutex
	withData   map[any]struct{}
	newParties []*party
	closedIDs  []any
}

// NewManager registers endpointID on transport so that Transport.Connect
// calls routed to it hand this Manager the acceptor side of the pair.
func NewManager(endpointID any, transport *Transport) *Manager {
	m := &Manager{withData: make(map[any]struct{})}
	transport.RegisterOnConnectionRequest(endpointID, m.onConnectionRequest)
	return m
}

// Open is a no-op: registration already happened in NewManager, matching
// io_memory.py's InMemoryConnectionManager.__enter__.
func (m *Manager) Open() error { return nil }

// Close is a no-op; an in-memory pair has no OS resource to release.
func (m *Manager) Close() error { return nil }

func (m *Manager) onConnectionRequest(p *party) {
	m.mu.Lock()
	m.newParties = append(m.newParties, p)
	m.mu.Unlock()

	id := p.ID()
	p.registerOnRead(func(hasMoreData bool) {
		if !hasMoreData {
			m.mu.Lock()
			delete(m.withData, id)
			m.mu.Unlock()
		}
	})
	p.registerOnWrite(func(numBytesWritten int) {
		if numBytesWritten == 0 {
			return
		}
		m.mu.Lock()
		m.withData[id] = struct{}{}
		m.mu.Unlock()
	})
}

// GetActivity reports every connection accepted and every id with
// unread buffered bytes since the last call. timeout is accepted for
// interface compatibility but ignored: unlike a socket poller, an
// in-memory manager has nothing to wait on.
func (m *Manager) GetActivity(_ time.Duration) (transport.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var act transport.Activity
	for _, p := range m.newParties {
		act.New = append(act.New, p)
	}
	m.newParties = nil

	for id := range m.withData {
		act.ReadableIDs = append(act.ReadableIDs, id)
	}

	act.ClosedIDs = m.closedIDs
	m.closedIDs = nil

	return act, nil
}
