// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the broker's wire codec: a self-describing
// variable-length field encoding used for every frame exchanged between
// clients and the broker.
//
// Design and semantics:
//   - Self-describing: a two-bit tag on the leading byte of each field
//     selects short/medium/long form; no external schema is needed to
//     decode a frame.
//   - One primitive, two levels: the same field encoding is used both for
//     the frame's field count and for each field inside the frame.
//   - Non-blocking first: Decoder is built to be fed bytes incrementally
//     as they arrive from a non-blocking socket and reports "not enough
//     data yet" as a plain boolean rather than an error, so a caller on a
//     reactor loop can defer a connection to the next tick without
//     treating a partial frame as a protocol violation.
package wire

import "errors"

var (
	// ErrMalformedFrame is returned by Deserialize when the underlying
	// reader ends (or errors) in the middle of a frame.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrLengthOverflow is returned when a field or frame declares a
	// length larger than the configured maximum.
	ErrLengthOverflow = errors.New("wire: length exceeds maximum frame size")
)
