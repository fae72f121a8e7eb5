// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package tcp

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nexusmq/msgbroker/netaddr"
	"github.com/nexusmq/msgbroker/transport"
)

// Manager is the epoll-backed transport.Manager: one listening socket
// plus a level-triggered epoll set holding the listener and every
// accepted connection, per spec.md §4.3.
type Manager struct {
	ip   netaddr.IPv6
	port int

	mu         sync.Mutex
	listenFd   int
	epfd       int
	registered map[int]struct{}
}

// NewManager returns a Manager bound to ip:port once Open is called.
func NewManager(ip netaddr.IPv6, port int) *Manager {
	return &Manager{ip: ip, port: port}
}

// Open binds and arms the listener, matching the teacher's
// enter-allocates/exit-releases resource scoping.
func (m *Manager) Open() error {
	fd, err := listen(m.ip, m.port)
	if err != nil {
		return err
	}
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("tcp: epoll_create1: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		unix.Close(fd)
		unix.Close(epfd)
		return fmt.Errorf("tcp: epoll_ctl listener: %w", err)
	}
	m.listenFd = fd
	m.epfd = epfd
	m.registered = map[int]struct{}{fd: {}}
	return nil
}

// Close unregisters every fd and closes the epoll set and listener,
// regardless of how many connections are still accepted — the broker's
// live-connections table is responsible for tearing down individual
// connections it knows about; Close here guarantees the OS resources
// this manager owns are released.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fd := range m.registered {
		_ = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	m.registered = nil
	epErr := unix.Close(m.epfd)
	lErr := unix.Close(m.listenFd)
	if epErr != nil {
		return fmt.Errorf("tcp: close epoll: %w", epErr)
	}
	if lErr != nil {
		return fmt.Errorf("tcp: close listener: %w", lErr)
	}
	return nil
}

// GetActivity polls the epoll set once and classifies every event per
// spec.md §4.3: a readable listener accepts one connection; a readable
// client fd is reported in ReadableIDs; HUP/ERR on a client fd is
// unregistered from the epoll set and reported in ClosedIDs, but the fd
// itself is left open — the broker processes ReadableIDs before
// ClosedIDs each tick, so a final in-flight frame is delivered before it
// calls Connection.Close on the same id; anything else is
// ErrUnexpectedReadinessEvent.
func (m *Manager) GetActivity(timeout time.Duration) (transport.Activity, error) {
	msec := int(timeout / time.Millisecond)
	if timeout > 0 && msec == 0 {
		msec = 1
	}

	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(m.epfd, events, msec)
	if err != nil {
		if err == unix.EINTR {
			return transport.Activity{}, nil
		}
		return transport.Activity{}, fmt.Errorf("tcp: epoll_wait: %w", err)
	}

	var act transport.Activity
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		ev := events[i]
		fd := int(ev.Fd)

		if fd == m.listenFd {
			nfd, aerr := accept(m.listenFd)
			if aerr != nil {
				continue // no pending connection or accept raced; not fatal.
			}
			if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, nfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(nfd)}); err != nil {
				unix.Close(nfd)
				continue
			}
			m.registered[nfd] = struct{}{}
			act.New = append(act.New, &conn{fd: nfd})
			continue
		}

		processed := false
		if ev.Events&unix.EPOLLIN != 0 {
			act.ReadableIDs = append(act.ReadableIDs, fd)
			processed = true
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			// Unregister only; the fd stays open until the broker has
			// had a chance to read any final in-flight frame and calls
			// Connection.Close itself.
			_ = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			delete(m.registered, fd)
			act.ClosedIDs = append(act.ClosedIDs, fd)
			processed = true
		}
		if !processed {
			return transport.Activity{}, transport.ErrUnexpectedReadinessEvent
		}
	}
	return act, nil
}
