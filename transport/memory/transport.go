// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package memory implements the in-memory transport.Manager test
// double described in spec.md §4.6: a Transport registry pairs up two
// byte buffers per connection so tests can drive the broker without a
// real socket.
//
// Grounded on msglib/ios/io_memory.py: a Transport maps endpoint ids to
// connection-request callbacks, Connect creates a paired connection
// (initiator/acceptor), and each party's buffer is readable only by
// its owner and writable only by its counterparty.
package memory

import (
	"sync"

	"github.com/nexusmq/msgbroker/transport"
)

// Transport is a registry of endpoints that can accept connections.
// One Transport is typically shared between a test's client and server
// sides.
type Transport struct {
	mu                  sync.Mutex
	onConnectionRequest map[any]func(*party)
}

// NewTransport returns an empty connection-request registry.
func NewTransport() *Transport {
	return &Transport{onConnectionRequest: make(map[any]func(*party))}
}

// RegisterOnConnectionRequest arranges for callback to be invoked with
// the acceptor side of every connection made to endpointID via Connect.
// It's how a Manager (below) advertises itself as a connection target.
func (t *Transport) RegisterOnConnectionRequest(endpointID any, callback func(*party)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnectionRequest[endpointID] = callback
}

// Connect creates a paired connection to endpointID and returns the
// initiator side; the registered callback for endpointID receives the
// acceptor side synchronously, matching io_memory.py's
// @contextmanager connect.
func (t *Transport) Connect(endpointID any) (transport.Connection, error) {
	t.mu.Lock()
	cb, ok := t.onConnectionRequest[endpointID]
	t.mu.Unlock()
	if !ok {
		return nil, errNoSuchEndpoint(endpointID)
	}
	initiator, acceptor := newPair()
	cb(acceptor)
	return initiator, nil
}
