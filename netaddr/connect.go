// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netaddr

import (
	"fmt"
	"net"
	"time"
)

// Connect opens a stream socket to ip:port. An optional read timeout
// (zero means no timeout) is applied via SetReadDeadline on every
// subsequent Read, matching the original client connect routine's
// socket.settimeout semantics.
func Connect(ip IPv6, port int, readTimeout time.Duration) (net.Conn, error) {
	addr := fmt.Sprintf("[%s]:%d", colonHex(ip), port)
	conn, err := net.Dial("tcp6", addr)
	if err != nil {
		return nil, fmt.Errorf("netaddr: connect %s: %w", addr, err)
	}
	if readTimeout > 0 {
		return &timeoutConn{Conn: conn, timeout: readTimeout}, nil
	}
	return conn, nil
}

// colonHex renders the address in the lowercase form net.Dial's
// resolver expects inside a bracketed host; display formatting (the
// uppercase form required by §4.2) lives in IPv6.String.
func colonHex(a IPv6) string {
	return net.IP{
		byte(a[0] >> 8), byte(a[0]), byte(a[1] >> 8), byte(a[1]),
		byte(a[2] >> 8), byte(a[2]), byte(a[3] >> 8), byte(a[3]),
		byte(a[4] >> 8), byte(a[4]), byte(a[5] >> 8), byte(a[5]),
		byte(a[6] >> 8), byte(a[6]), byte(a[7] >> 8), byte(a[7]),
	}.String()
}

// timeoutConn applies a fixed read deadline before every Read, giving
// callers a settimeout-style blocking read with a bound.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
