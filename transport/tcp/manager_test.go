// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd || netbsd || openbsd

package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/nexusmq/msgbroker/netaddr"
)

func loopback(t *testing.T) netaddr.IPv6 {
	t.Helper()
	ip, err := netaddr.FromString("::1")
	if err != nil {
		t.Fatalf("parse ::1: %v", err)
	}
	return ip
}

func TestAcceptAndReadWrite(t *testing.T) {
	ip := loopback(t)
	mgr := NewManager(ip, 0)

	// Port 0 would pick an ephemeral port via the OS, but this manager
	// binds a fixed port field directly; use a high, likely-free port
	// instead of relying on getsockname to discover an OS-assigned one.
	mgr.port = 19171
	if err := mgr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer mgr.Close()

	dialDone := make(chan error, 1)
	var client net.Conn
	go func() {
		c, err := net.Dial("tcp6", "[::1]:19171")
		client = c
		dialDone <- err
	}()

	var newID any
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		act, err := mgr.GetActivity(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("get activity: %v", err)
		}
		if len(act.New) == 1 {
			newID = act.New[0].ID()
			break
		}
	}
	if newID == nil {
		t.Fatal("never observed a new connection")
	}
	if err := <-dialDone; err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	var readable bool
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		act, err := mgr.GetActivity(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("get activity: %v", err)
		}
		for _, id := range act.ReadableIDs {
			if id == newID {
				readable = true
			}
		}
		if readable {
			break
		}
	}
	if !readable {
		t.Fatal("never observed readable server connection")
	}
}

func TestUnexpectedReadinessEventIsImpossibleOnLoopback(t *testing.T) {
	// Regression guard: a freshly opened manager with only its listener
	// registered must never misclassify the listener itself.
	ip := loopback(t)
	mgr := NewManager(ip, 19172)
	if err := mgr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer mgr.Close()

	act, err := mgr.GetActivity(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if len(act.New) != 0 || len(act.ReadableIDs) != 0 || len(act.ClosedIDs) != 0 {
		t.Fatalf("expected no activity on an idle listener, got %+v", act)
	}
}
