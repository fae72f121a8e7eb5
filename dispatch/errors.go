// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package dispatch

import "errors"

var (
	// ErrUnknownChannel reports a frame whose channel-type tag has no
	// registered handler.
	ErrUnknownChannel = errors.New("dispatch: unknown channel type")

	// ErrBadCommand reports an unknown queue command, or one called
	// with the wrong number of arguments.
	ErrBadCommand = errors.New("dispatch: bad command")
)
