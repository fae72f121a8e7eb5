// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import (
	"bytes"
	"testing"
	"time"

	"github.com/nexusmq/msgbroker/dispatch"
	"github.com/nexusmq/msgbroker/queue"
	"github.com/nexusmq/msgbroker/transport/memory"
	"github.com/nexusmq/msgbroker/wire"
)

const endpointID = "broker"

func newTestBroker(t *testing.T) (*Broker, *memory.Transport) {
	t.Helper()
	tr := memory.NewTransport()
	mgr := memory.NewManager(endpointID, tr)

	reg := queue.NewRegistry()
	outbox := make(chan dispatch.Envelope, 16)
	qh := dispatch.NewQueueHandler(reg, outbox)
	d := dispatch.NewDispatcher()
	d.Register(dispatch.ChannelQueue, qh)

	b := New(mgr, d, outbox, WithShutdownHook(func() {
		d.Shutdown()
		reg.CloseAll()
	}))
	if err := b.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, tr
}

func publishFrame(qid uint64, payload string) []byte {
	return wire.Serialize([][]byte{{1}, {1}, {byte(qid)}, []byte(payload)})
}

func pullFrame(qid uint64) []byte {
	return wire.Serialize([][]byte{{1}, {2}, {byte(qid)}})
}

func TestPublishThenPullEndToEnd(t *testing.T) {
	b, tr := newTestBroker(t)

	connA, err := tr.Connect(endpointID)
	if err != nil {
		t.Fatalf("connect A: %v", err)
	}
	if err := b.Tick(0); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if _, err := connA.Write(publishFrame(0, "foo")); err != nil {
		t.Fatalf("write publish: %v", err)
	}
	if err := b.Tick(0); err != nil {
		t.Fatalf("tick: %v", err)
	}

	connB, err := tr.Connect(endpointID)
	if err != nil {
		t.Fatalf("connect B: %v", err)
	}
	if err := b.Tick(0); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if _, err := connB.Write(pullFrame(0)); err != nil {
		t.Fatalf("write pull: %v", err)
	}

	var reply [][]byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := b.Tick(0); err != nil {
			t.Fatalf("tick: %v", err)
		}
		buf := make([]byte, 256)
		n, err := connB.Read(buf)
		if err == nil {
			got, derr := wire.Deserialize(bytes.NewReader(buf[:n]))
			if derr != nil {
				t.Fatalf("decode reply: %v", derr)
			}
			reply = got
			break
		}
		time.Sleep(time.Millisecond)
	}
	if reply == nil {
		t.Fatal("never received pull reply")
	}
	if len(reply) != 1 || string(reply[0]) != "foo" {
		t.Fatalf("want [foo], got %v", reply)
	}
}

func TestNewConnectionIsTracked(t *testing.T) {
	b, tr := newTestBroker(t)

	_, err := tr.Connect(endpointID)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := b.Tick(0); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := b.Connections(); got != 1 {
		t.Fatalf("want 1 connection, got %d", got)
	}

	// The in-memory transport has no explicit close; this test only
	// verifies the new-connection bookkeeping side of the invariant.
}
