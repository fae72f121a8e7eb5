// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build darwin || freebsd || netbsd || openbsd

package tcp

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nexusmq/msgbroker/netaddr"
	"github.com/nexusmq/msgbroker/transport"
)

// Manager is the kqueue-backed transport.Manager, the BSD/darwin
// equivalent of the Linux epoll Manager. It satisfies the exact same
// transport.Manager contract (spec.md §4.3 is explicit that "any
// equivalent [to epoll] is acceptable").
type Manager struct {
	ip   netaddr.IPv6
	port int

	mu         sync.Mutex
	listenFd   int
	kq         int
	registered map[int]struct{}
}

// NewManager returns a Manager bound to ip:port once Open is called.
func NewManager(ip netaddr.IPv6, port int) *Manager {
	return &Manager{ip: ip, port: port}
}

func (m *Manager) Open() error {
	fd, err := listen(m.ip, m.port)
	if err != nil {
		return err
	}
	kq, err := unix.Kqueue()
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("tcp: kqueue: %w", err)
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{readEvent(fd, unix.EV_ADD)}, nil, nil); err != nil {
		unix.Close(fd)
		unix.Close(kq)
		return fmt.Errorf("tcp: kevent register listener: %w", err)
	}
	m.listenFd = fd
	m.kq = kq
	m.registered = map[int]struct{}{fd: {}}
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fd := range m.registered {
		_, _ = unix.Kevent(m.kq, []unix.Kevent_t{readEvent(fd, unix.EV_DELETE)}, nil, nil)
	}
	m.registered = nil
	kErr := unix.Close(m.kq)
	lErr := unix.Close(m.listenFd)
	if kErr != nil {
		return fmt.Errorf("tcp: close kqueue: %w", kErr)
	}
	if lErr != nil {
		return fmt.Errorf("tcp: close listener: %w", lErr)
	}
	return nil
}

func (m *Manager) GetActivity(timeout time.Duration) (transport.Activity, error) {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	events := make([]unix.Kevent_t, 64)
	n, err := unix.Kevent(m.kq, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return transport.Activity{}, nil
		}
		return transport.Activity{}, fmt.Errorf("tcp: kevent wait: %w", err)
	}

	var act transport.Activity
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		ev := events[i]
		fd := int(ev.Ident)

		if fd == m.listenFd {
			nfd, aerr := accept(m.listenFd)
			if aerr != nil {
				continue
			}
			if _, err := unix.Kevent(m.kq, []unix.Kevent_t{readEvent(nfd, unix.EV_ADD)}, nil, nil); err != nil {
				unix.Close(nfd)
				continue
			}
			m.registered[nfd] = struct{}{}
			act.New = append(act.New, &conn{fd: nfd})
			continue
		}

		processed := false
		if ev.Filter == unix.EVFILT_READ {
			act.ReadableIDs = append(act.ReadableIDs, fd)
			processed = true
		}
		if ev.Flags&unix.EV_EOF != 0 {
			// Unregister only; the fd stays open until the broker has
			// had a chance to read any final in-flight frame and calls
			// Connection.Close itself.
			_, _ = unix.Kevent(m.kq, []unix.Kevent_t{readEvent(fd, unix.EV_DELETE)}, nil, nil)
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

func readEvent(fd int, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  flags,
	}
}
