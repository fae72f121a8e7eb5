// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package dispatch implements the stateless channel-type dispatcher
// and the QUEUE channel handler (SPEC_FULL.md §4.5): the dispatcher
// peels the first field of an inbound frame as a big-endian unsigned
// channel-type tag and routes the rest to whatever ChannelHandler is
// registered for it.
package dispatch

import (
	"fmt"

	"github.com/nexusmq/msgbroker/wire"
)

// ChannelType tags select a registered handler. QUEUE is the only one
// this repository ships.
const ChannelQueue uint64 = 1

// Envelope is an asynchronous reply produced off the reactor goroutine
// (a PULL_MSG worker) and funneled back to the broker's outbound
// channel for the named connection, per SPEC_FULL.md §4.5/§5.
type Envelope struct {
	ConnID any
	Fields [][]byte
}

// ChannelHandler processes the fields of a frame following the
// channel-type tag and optionally returns a synchronous reply. A
// handler that needs to reply asynchronously (PULL_MSG) returns
// (nil, nil) and funnels its reply through the Envelope channel it was
// constructed with instead.
type ChannelHandler interface {
	Handle(connID any, fields [][]byte) (reply [][]byte, err error)
}

// connectionAware is implemented by channel handlers that need to
// release per-connection state (QueueHandler's pull worker) when a
// connection closes.
type connectionAware interface {
	OnConnectionClosed(connID any)
}

// shutdownAware is implemented by channel handlers that hold
// goroutines needing to be released on broker shutdown.
type shutdownAware interface {
	Shutdown()
}

// Dispatcher routes frames to registered ChannelHandlers by tag. It
// holds no per-connection state of its own — the handler interface the
// broker drives (OnNewConnection/OnConnectionClosed/OnMessage) is
// satisfied here purely by forwarding, matching SPEC_FULL.md's
// description of the dispatcher as stateless.
type Dispatcher struct {
	handlers map[uint64]ChannelHandler
}

// NewDispatcher returns a Dispatcher with no channels registered.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[uint64]ChannelHandler)}
}

// Register associates channelType with h. Registering the same tag
// twice replaces the previous handler.
func (d *Dispatcher) Register(channelType uint64, h ChannelHandler) {
	d.handlers[channelType] = h
}

// OnNewConnection is a no-op: the dispatcher and its channel handlers
// don't need to observe connection arrival.
func (d *Dispatcher) OnNewConnection(_ any) {}

// OnConnectionClosed forwards to every registered handler that cares,
// releasing any per-connection worker state (e.g. QueueHandler's pull
// worker for connID).
func (d *Dispatcher) OnConnectionClosed(connID any) {
	for _, h := range d.handlers {
		if ca, ok := h.(connectionAware); ok {
			ca.OnConnectionClosed(connID)
		}
	}
}

// Shutdown releases every handler's background goroutines. Called
// once from the broker's scoped exit path.
func (d *Dispatcher) Shutdown() {
	for _, h := range d.handlers {
		if sa, ok := h.(shutdownAware); ok {
			sa.Shutdown()
		}
	}
}

// OnMessage reads fields[0] as the channel-type tag and routes
// fields[1:] to its handler.
func (d *Dispatcher) OnMessage(connID any, fields [][]byte) (reply [][]byte, err error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("dispatch: empty frame: %w", ErrUnknownChannel)
	}
	tag := wire.IntFromBytes(fields[0])
	h, ok := d.handlers[tag]
	if !ok {
		return nil, fmt.Errorf("dispatch: channel type %d: %w", tag, ErrUnknownChannel)
	}
	return h.Handle(connID, fields[1:])
}
