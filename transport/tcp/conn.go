// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd || netbsd || openbsd

// Package tcp implements the TCP connection manager described in
// SPEC_FULL.md §4.3: a non-blocking listening socket plus an OS
// readiness poller (epoll on Linux, kqueue on BSD/darwin), both
// satisfying the shared transport.Manager contract.
//
// The manager talks to raw file descriptors via golang.org/x/sys/unix
// rather than net.Listener/net.Conn, mirroring the original
// implementation's direct use of Python's socket module: a connection's
// id is its fileno, and readiness is polled explicitly rather than
// hidden behind the runtime's network poller.
package tcp

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nexusmq/msgbroker/netaddr"
)

// conn is a non-blocking socket connection identified by its file
// descriptor, implementing transport.Connection.
type conn struct {
	fd int
}

func (c *conn) ID() any { return c.fd }

// Read issues one non-blocking recv and returns whatever it got. EAGAIN
// (no data available) surfaces as transport.ErrWouldBlock so the broker
// can defer to the next tick instead of treating it as end of stream.
func (c *conn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errWouldBlock
		}
		return 0, fmt.Errorf("tcp: read fd %d: %w", c.fd, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("tcp: read fd %d: %w", c.fd, errEOF)
	}
	return n, nil
}

// Write issues blocking-style writes, retrying on EAGAIN, matching the
// original's reliance on socket.sendall's all-or-error contract.
func (c *conn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			return total, fmt.Errorf("tcp: write fd %d: %w", c.fd, err)
		}
		total += n
	}
	return total, nil
}

// Close releases the file descriptor. The manager unregisters the fd
// from its readiness set on HUP/ERR but leaves it open so the broker
// can still read a final in-flight frame; Close is what actually tears
// the socket down, called once that read has happened.
func (c *conn) Close() error {
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("tcp: close fd %d: %w", c.fd, err)
	}
	return nil
}

func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// listen opens a non-blocking IPv6 listening socket bound to ip:port
// with SO_REUSEADDR and backlog 10, per spec.md §4.3.
func listen(ip netaddr.IPv6, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("tcp: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp: setsockopt SO_REUSEADDR: %w", err)
	}
	sa := &unix.SockaddrInet6{Port: port}
	for i, q := range ip {
		sa.Addr[i*2] = byte(q >> 8)
		sa.Addr[i*2+1] = byte(q)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp: bind: %w", err)
	}
	if err := unix.Listen(fd, 10); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp: listen: %w", err)
	}
	if err := setNonblocking(fd); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp: set listener non-blocking: %w", err)
	}
	return fd, nil
}

func accept(listenFd int) (int, error) {
	nfd, _, err := unix.Accept(listenFd)
	if err != nil {
		return -1, err
	}
	if err := setNonblocking(nfd); err != nil {
		unix.Close(nfd)
		return -1, fmt.Errorf("tcp: set accepted conn non-blocking: %w", err)
	}
	return nfd, nil
}
