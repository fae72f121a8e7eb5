// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd || netbsd || openbsd

package tcp

import (
	"errors"

	"github.com/nexusmq/msgbroker/transport"
)

var errWouldBlock = transport.ErrWouldBlock

// errEOF marks a zero-byte, no-error read as a closed connection; it's
// wrapped rather than exported since callers only ever see it through
// Read's %w-wrapped error.
var errEOF = errors.New("tcp: connection closed")
