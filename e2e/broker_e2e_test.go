// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package e2e drives the broker end to end over the in-memory
// transport, exercising the five broker properties from spec.md §8
// (property 4 only in part, see below).
package e2e

import (
	"time"

	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusmq/msgbroker/broker"
	"github.com/nexusmq/msgbroker/dispatch"
	"github.com/nexusmq/msgbroker/queue"
	"github.com/nexusmq/msgbroker/transport"
	"github.com/nexusmq/msgbroker/transport/memory"
	"github.com/nexusmq/msgbroker/wire"
)

const endpointID = "broker"

type testBroker struct {
	b   *broker.Broker
	tr  *memory.Transport
	reg *queue.Registry
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	tr := memory.NewTransport()
	mgr := memory.NewManager(endpointID, tr)
	reg := queue.NewRegistry()
	outbox := make(chan dispatch.Envelope, 64)
	qh := dispatch.NewQueueHandler(reg, outbox)
	d := dispatch.NewDispatcher()
	d.Register(dispatch.ChannelQueue, qh)

	b := broker.New(mgr, d, outbox, broker.WithShutdownHook(func() {
		d.Shutdown()
		reg.CloseAll()
	}))
	require.NoError(t, b.Open())
	t.Cleanup(func() { _ = b.Close() })
	return &testBroker{b: b, tr: tr, reg: reg}
}

func (tb *testBroker) connect(t *testing.T) transport.Connection {
	t.Helper()
	conn, err := tb.tr.Connect(endpointID)
	require.NoError(t, err)
	require.NoError(t, tb.b.Tick(0))
	return conn
}

func (tb *testBroker) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, tb.b.Tick(0))
}

func publishFrame(qid uint64, payload string) []byte {
	return wire.Serialize([][]byte{
		wire.IntToBytes(dispatch.ChannelQueue), {1}, wire.IntToBytes(qid), []byte(payload),
	})
}

func pullFrame(qid uint64) []byte {
	return wire.Serialize([][]byte{
		wire.IntToBytes(dispatch.ChannelQueue), {2}, wire.IntToBytes(qid),
	})
}

// readReply polls conn + ticks the broker until one full reply frame
// has arrived, or fails the test after a timeout.
func readReply(t *testing.T, tb *testBroker, conn transport.Connection) [][]byte {
	t.Helper()
	dec := wire.NewDecoder(0)
	deadline := time.Now().Add(2 * time.Second)
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		tb.tick(t)
		n, err := conn.Read(buf)
		if err == nil {
			dec.Feed(buf[:n])
			if fields, ok, derr := dec.Decode(); ok {
				require.NoError(t, derr)
				return fields
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for reply")
	return nil
}

// Property 1: publish then pull round trip.
func TestPublishThenPullRoundTrip(t *testing.T) {
	tb := newTestBroker(t)
	connA := tb.connect(t)
	connB := tb.connect(t)

	_, err := connA.Write(publishFrame(0, "foo"))
	require.NoError(t, err)
	tb.tick(t)

	_, err = connB.Write(pullFrame(0))
	require.NoError(t, err)

	reply := readReply(t, tb, connB)
	require.Equal(t, [][]byte{[]byte("foo")}, reply)
}

// Property 2: two publishes on one queue, pulled in FIFO order.
func TestFIFOOrderAcrossTwoPublishes(t *testing.T) {
	tb := newTestBroker(t)
	connA := tb.connect(t)
	connB := tb.connect(t)

	_, err := connA.Write(publishFrame(0, "foo"))
	require.NoError(t, err)
	tb.tick(t)
	_, err = connA.Write(publishFrame(0, "bar"))
	require.NoError(t, err)
	tb.tick(t)

	_, err = connB.Write(pullFrame(0))
	require.NoError(t, err)
	first := readReply(t, tb, connB)
	require.Equal(t, [][]byte{[]byte("foo")}, first)

	_, err = connB.Write(pullFrame(0))
	require.NoError(t, err)
	second := readReply(t, tb, connB)
	require.Equal(t, [][]byte{[]byte("bar")}, second)
}

// Property 3: queue isolation — pulls on q=1 never observe q=0 payloads.
func TestQueueIsolation(t *testing.T) {
	tb := newTestBroker(t)
	connA := tb.connect(t)
	connB := tb.connect(t)

	_, err := connA.Write(publishFrame(0, "zero"))
	require.NoError(t, err)
	tb.tick(t)
	_, err = connA.Write(publishFrame(1, "one"))
	require.NoError(t, err)
	tb.tick(t)

	_, err = connB.Write(pullFrame(1))
	require.NoError(t, err)
	reply := readReply(t, tb, connB)
	require.Equal(t, [][]byte{[]byte("one")}, reply)
}

// Property 4 (partial): connections table cardinality tracks accepted
// connections. The in-memory transport has no explicit close path to
// drive a HUP-equivalent event, so the "on_connection_closed observed
// exactly once" half of this property is not exercised by any test;
// it rests on the tcp manager's HUP reporting and the broker's own
// closed-id bookkeeping.
func TestConnectionsCardinalityTracksAccepted(t *testing.T) {
	tb := newTestBroker(t)
	tb.connect(t)
	require.Equal(t, 1, tb.b.Connections())
	tb.connect(t)
	require.Equal(t, 2, tb.b.Connections())
}

// Property 5: PULL_MSG on an empty queue blocks until a later PUBLISH.
func TestPullBlocksUntilLaterPublish(t *testing.T) {
	tb := newTestBroker(t)
	connA := tb.connect(t)
	connB := tb.connect(t)

	_, err := connB.Write(pullFrame(5))
	require.NoError(t, err)
	tb.tick(t)

	buf := make([]byte, 64)
	_, err = connB.Read(buf)
	require.Error(t, err, "pull must not reply before a publish arrives")

	_, err = connA.Write(publishFrame(5, "late"))
	require.NoError(t, err)

	reply := readReply(t, tb, connB)
	require.Equal(t, [][]byte{[]byte("late")}, reply)
}

// Invariant: published = pulled + currently buffered, observed via the
// registry directly.
func TestPublishedEqualsPulledPlusBuffered(t *testing.T) {
	tb := newTestBroker(t)
	connA := tb.connect(t)
	connB := tb.connect(t)

	_, err := connA.Write(publishFrame(9, "a"))
	require.NoError(t, err)
	tb.tick(t)
	_, err = connA.Write(publishFrame(9, "b"))
	require.NoError(t, err)
	tb.tick(t)
	_, err = connA.Write(publishFrame(9, "c"))
	require.NoError(t, err)
	tb.tick(t)

	require.Equal(t, 3, tb.reg.GetOrCreate(9).Len())

	_, err = connB.Write(pullFrame(9))
	require.NoError(t, err)
	_ = readReply(t, tb, connB)

	require.Equal(t, 2, tb.reg.GetOrCreate(9).Len())
}
