// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport defines the connection-manager contract shared by
// every concrete transport (transport/tcp's readiness-poller manager,
// transport/memory's in-memory test double). SPEC_FULL.md §4.3/§4.6.
package transport

import (
	"errors"
	"time"
)

// ErrUnexpectedReadinessEvent is fatal: the manager observed a readiness
// event combination it doesn't know how to classify.
var ErrUnexpectedReadinessEvent = errors.New("transport: unexpected readiness event")

// ErrWouldBlock is returned by Connection.Read when no bytes are
// currently available; when some are, Read returns those instead. The
// broker treats it as "try again next tick", not a hard error, and
// never passes it to the wire decoder.
var ErrWouldBlock = errors.New("transport: would block")

// Connection is a bidirectional byte pipe with a stable identity for
// the lifetime of the connection. ID is deliberately `any`: a TCP
// connection's id is its OS file descriptor (an int), while the
// in-memory transport's id is a uuid.UUID (SPEC_FULL.md §4.6) — both
// are opaque, hashable values per spec.md §3's data model, so Connection
// doesn't commit to one concrete type.
type Connection interface {
	ID() any
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// Close releases whatever resource backs the connection (a raw fd
	// for transport/tcp; a no-op for transport/memory, which owns
	// nothing the OS needs released). The broker calls it once it has
	// finished reading any final in-flight frame, never before.
	Close() error
}

// Activity is the per-tick report produced by Manager.GetActivity: three
// consumed-once ordered sequences (spec.md §3's invariants —
// an id reported in New never reappears there; ClosedIDs is a subset of
// ids previously reported in New; ReadableIDs and ClosedIDs may overlap
// within one tick).
type Activity struct {
	New         []Connection
	ReadableIDs []any
	ClosedIDs   []any
}

// Manager is the scoped connection-manager contract. Open acquires
// resources (binds/arms the listener, or registers with the transport
// registry); Close releases them unconditionally, mirroring the
// teacher's enter/exit resource-scoping convention used throughout
// framer for reader/writer lifetimes.
type Manager interface {
	Open() error
	Close() error

	// GetActivity polls for activity with the given timeout (zero means
	// a non-blocking probe) and returns one tick's worth of new,
	// readable and closed connection ids. Returned sequences are not
	// retained by the manager.
	GetActivity(timeout time.Duration) (Activity, error)
}
