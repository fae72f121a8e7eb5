// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package client implements the broker's external convenience
// wrappers (SPEC_FULL.md §1/§6 boundary): publish, pull-subscribe, and
// an acknowledgement stub. It talks to the broker purely over the wire
// protocol via a net.Conn obtained from netaddr.Connect — it has no
// access to broker internals.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/nexusmq/msgbroker/dispatch"
	"github.com/nexusmq/msgbroker/netaddr"
	"github.com/nexusmq/msgbroker/wire"
)

// Client is a thin wrapper around one TCP connection to a broker.
type Client struct {
	conn net.Conn
}

// Dial connects to a broker listening on ip:port. readTimeout, if
// positive, bounds every subsequent Read (see netaddr.Connect).
func Dial(ip netaddr.IPv6, port int, readTimeout time.Duration) (*Client, error) {
	conn, err := netaddr.Connect(ip, port, readTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func qidField(qid uint64) []byte {
	return wire.IntToBytes(qid)
}

// PublishToQueue sends a PUBLISH frame for qid carrying payload. There
// is no acknowledgement: per SPEC_FULL.md §7, PUBLISH has no
// client-visible failure path beyond a connection error.
func (c *Client) PublishToQueue(qid uint64, payload []byte) error {
	frame := wire.Serialize([][]byte{
		wire.IntToBytes(dispatch.ChannelQueue),
		{1}, // PUBLISH
		qidField(qid),
		payload,
	})
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("client: publish to queue %d: %w", qid, err)
	}
	return nil
}

// AckableQMsg is a pulled message together with a no-op Ack, matching
// the original client's undefined acknowledgement semantics (see
// SPEC_FULL.md §9 open question — ack semantics are intentionally left
// unimplemented beyond this stub).
type AckableQMsg struct {
	Payload []byte
}

// Ack is a no-op. Intent (at-least-once vs. at-most-once with a future
// ack wire message) is undefined upstream; this stub exists only so
// callers can write ack-shaped code without it doing anything yet.
func (m AckableQMsg) Ack() {}

// PullSubscribe sends one PULL_MSG for qid and blocks (subject to the
// client's read timeout, if any) for the single reply frame.
func (c *Client) PullSubscribe(qid uint64) (AckableQMsg, error) {
	frame := wire.Serialize([][]byte{
		wire.IntToBytes(dispatch.ChannelQueue),
		{2}, // PULL_MSG
		qidField(qid),
	})
	if _, err := c.conn.Write(frame); err != nil {
		return AckableQMsg{}, fmt.Errorf("client: pull from queue %d: %w", qid, err)
	}
	reply, err := wire.Deserialize(c.conn)
	if err != nil {
		return AckableQMsg{}, fmt.Errorf("client: pull reply from queue %d: %w", qid, err)
	}
	if len(reply) != 1 {
		return AckableQMsg{}, fmt.Errorf("client: pull reply from queue %d: want 1 field, got %d", qid, len(reply))
	}
	return AckableQMsg{Payload: reply[0]}, nil
}
