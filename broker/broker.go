// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package broker implements the reactor loop described in
// SPEC_FULL.md §4.4: drive a transport.Manager each tick, maintain the
// live-connections table, decode every complete frame a readable
// connection's single Read call produced, dispatch each to a Handler,
// and write back any replies.
package broker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmq/msgbroker/dispatch"
	"github.com/nexusmq/msgbroker/logging"
	"github.com/nexusmq/msgbroker/transport"
	"github.com/nexusmq/msgbroker/wire"
)

// Handler is the broker's single collaborator, consuming connection
// lifecycle events and frames. *dispatch.Dispatcher satisfies this.
type Handler interface {
	OnNewConnection(connID any)
	OnConnectionClosed(connID any)
	OnMessage(connID any, fields [][]byte) (reply [][]byte, err error)
}

// Options configures a Broker. The zero value is usable: a nop logger,
// the wire package's default max field length, and no shutdown hook.
type Options struct {
	Logger      *zap.Logger
	MaxFieldLen int
	// ShutdownHook runs once, after the manager is closed, from Close.
	// Wire registry.CloseAll/dispatcher.Shutdown here so blocked pull
	// workers are released (SPEC_FULL.md §5 poison/shutdown wiring).
	ShutdownHook func()
}

type Option func(*Options)

func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithMaxFieldLen(n int) Option { return func(o *Options) { o.MaxFieldLen = n } }

func WithShutdownHook(f func()) Option { return func(o *Options) { o.ShutdownHook = f } }

// Broker drives one transport.Manager and one Handler.
type Broker struct {
	manager transport.Manager
	handler Handler
	outbox  <-chan dispatch.Envelope
	log     *zap.Logger

	maxFieldLen  int
	shutdownHook func()

	connections map[any]transport.Connection
	decoders    map[any]*wire.Decoder
	readBuf     []byte

	closed bool
}

// New returns a Broker driving manager and handler. outbox is drained
// at the start of every tick for asynchronous replies (PULL_MSG
// workers); pass nil if handler never produces any.
func New(manager transport.Manager, handler Handler, outbox <-chan dispatch.Envelope, opts ...Option) *Broker {
	o := Options{MaxFieldLen: wire.DefaultMaxFieldLen}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker{
		manager:      manager,
		handler:      handler,
		outbox:       outbox,
		log:          logging.OrNop(o.Logger),
		maxFieldLen:  o.MaxFieldLen,
		shutdownHook: o.ShutdownHook,
		connections:  make(map[any]transport.Connection),
		decoders:     make(map[any]*wire.Decoder),
		readBuf:      make([]byte, 64*1024),
	}
}

// Open arms the underlying manager.
func (b *Broker) Open() error {
	return b.manager.Open()
}

// Close releases every live connection, then the manager, then runs
// the shutdown hook, in that order, regardless of exit path —
// mirroring the teacher's scoped resource release discipline. Once
// Close has run, Tick and Run return ErrClosed instead of polling a
// manager that may no longer be armed.
func (b *Broker) Close() error {
	b.closed = true
	for id, c := range b.connections {
		if err := c.Close(); err != nil {
			b.log.Error("broker: close connection", zap.Any("conn_id", id), zap.Error(err))
		}
	}
	b.connections = make(map[any]transport.Connection)
	b.decoders = make(map[any]*wire.Decoder)

	err := b.manager.Close()
	if b.shutdownHook != nil {
		b.shutdownHook()
	}
	return err
}

// Run calls Tick in a loop with the given poll timeout until ctx is
// cancelled, at which point it returns ctx.Err().
func (b *Broker) Run(ctx context.Context, tickTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.Tick(tickTimeout); err != nil {
			return err
		}
	}
}

// Tick runs one reactor iteration: drain async replies, poll the
// manager, then process new, readable, and closed connections in that
// fixed order (SPEC_FULL.md §4.4). Readable connections are processed
// before closed ones specifically so that a fd reported both readable
// and closed in the same readiness event (EPOLLIN|EPOLLHUP) has its
// final in-flight frame read before its Connection is closed.
func (b *Broker) Tick(timeout time.Duration) error {
	if b.closed {
		return ErrClosed
	}

	b.drainOutbox()

	act, err := b.manager.GetActivity(timeout)
	if err != nil {
		return fmt.Errorf("broker: get activity: %w", err)
	}

	for _, c := range act.New {
		id := c.ID()
		b.connections[id] = c
		b.decoders[id] = wire.NewDecoder(b.maxFieldLen)
		b.handler.OnNewConnection(id)
		b.log.Debug("new connection", zap.Any("conn_id", id))
	}

	for _, id := range act.ReadableIDs {
		b.processReadable(id)
	}

	for _, id := range act.ClosedIDs {
		conn, present := b.connections[id]
		if !present {
			// An earlier frame error on this id already dropped it and
			// fired OnConnectionClosed this tick; the manager's HUP
			// report for the same id must not fire it twice.
			continue
		}
		delete(b.connections, id)
		delete(b.decoders, id)
		if err := conn.Close(); err != nil {
			b.log.Error("broker: close connection", zap.Any("conn_id", id), zap.Error(err))
		}
		b.handler.OnConnectionClosed(id)
		b.log.Debug("connection closed", zap.Any("conn_id", id))
	}

	return nil
}

// drainOutbox writes every buffered asynchronous reply before polling
// for new activity, so a PULL_MSG reply goes out promptly instead of
// waiting for that connection to show up in ReadableIDs again.
func (b *Broker) drainOutbox() {
	if b.outbox == nil {
		return
	}
	for {
		select {
		case env := <-b.outbox:
			b.writeReply(env.ConnID, env.Fields)
		default:
			return
		}
	}
}

// processReadable reads once from conn — which may return several
// pipelined frames' worth of bytes at once, since a batching or
// pipelining peer can write more than one frame before the reactor
// gets around to polling again — then decodes and dispatches every
// complete frame the decoder can produce from what's now buffered,
// writing back each reply in turn. Anything left over (a trailing
// partial frame) stays in the decoder for the next readable tick. A
// read, decode or dispatch error drops the connection from the live
// table: the tick aborts for that connection, not the whole broker
// (DESIGN.md records this reading of SPEC_FULL.md's error table).
func (b *Broker) processReadable(id any) {
	conn, ok := b.connections[id]
	if !ok {
		return
	}
	dec, ok := b.decoders[id]
	if !ok {
		return
	}

	n, err := conn.Read(b.readBuf)
	if err != nil {
		if err == transport.ErrWouldBlock {
			return
		}
		b.dropConnection(id, fmt.Errorf("broker: read conn %v: %w", id, err))
		return
	}
	dec.Feed(b.readBuf[:n])

	for {
		fields, ok, err := dec.Decode()
		if err != nil {
			b.dropConnection(id, fmt.Errorf("broker: decode frame on conn %v: %w", id, err))
			return
		}
		if !ok {
			break // partial frame; wait for more bytes on a later tick.
		}

		reply, err := b.handler.OnMessage(id, fields)
		if err != nil {
			b.dropConnection(id, fmt.Errorf("broker: dispatch on conn %v: %w", id, err))
			return
		}
		if len(reply) > 0 {
			b.writeReply(id, reply)
		}

		if _, stillOpen := b.connections[id]; !stillOpen {
			return // the reply write above failed and dropped us mid-loop.
		}
	}
	b.log.Debug("frame buffer drained", zap.Any("conn_id", id), zap.Int("buffered", dec.Buffered()))
}

func (b *Broker) writeReply(id any, fields [][]byte) {
	conn, ok := b.connections[id]
	if !ok {
		return // connection closed before its async reply arrived.
	}
	if _, err := conn.Write(wire.Serialize(fields)); err != nil {
		b.dropConnection(id, fmt.Errorf("broker: write conn %v: %w", id, err))
	}
}

func (b *Broker) dropConnection(id any, err error) {
	b.log.Error("broker: dropping connection", zap.Any("conn_id", id), zap.Error(err))
	conn, present := b.connections[id]
	delete(b.connections, id)
	delete(b.decoders, id)
	if present {
		if cerr := conn.Close(); cerr != nil {
			b.log.Error("broker: close connection", zap.Any("conn_id", id), zap.Error(cerr))
		}
	}
	b.handler.OnConnectionClosed(id)
}

// Connections returns the number of currently tracked connections,
// satisfying SPEC_FULL.md §8's "connections cardinality" invariant for
// tests.
func (b *Broker) Connections() int {
	return len(b.connections)
}
