// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import "io"

// Serialize encodes an ordered sequence of byte fields as a frame: the
// field-encoded field count followed by the field encoding of each field
// in order.
func Serialize(fields [][]byte) []byte {
	out := appendField(nil, IntToBytes(uint64(len(fields))))
	for _, f := range fields {
		out = appendField(out, f)
	}
	return out
}

// Deserialize reads exactly one frame from r: the field-encoded count,
// then that many fields. It fails with ErrMalformedFrame on any short
// read or underlying error before the frame is complete, and with
// ErrLengthOverflow if a declared field length exceeds DefaultMaxFieldLen.
//
// Deserialize is the direct, blocking counterpart to Serialize used for
// round-tripping and by callers (tests, the client package) that already
// have a connection whose Read blocks until n bytes are available. The
// broker's reactor does not use Deserialize directly: non-blocking
// sockets may not have a whole frame buffered yet, which Deserialize
// would misreport as ErrMalformedFrame. The reactor instead uses Decoder
// (decoder.go), which distinguishes "not enough data yet" from a real
// protocol error.
func Deserialize(r io.Reader) ([][]byte, error) {
	return DeserializeLimit(r, DefaultMaxFieldLen)
}

// DeserializeLimit is Deserialize with an explicit field-length bound.
func DeserializeLimit(r io.Reader, maxFieldLen int) ([][]byte, error) {
	countField, err := readField(r, maxFieldLen)
	if err != nil {
		return nil, err
	}
	n := IntFromBytes(countField)
	if maxFieldLen > 0 && n > uint64(maxFieldLen) {
		return nil, ErrLengthOverflow
	}
	fields := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		f, err := readField(r, maxFieldLen)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// readField decodes one field by issuing blocking reads on r, per the
// §4.1 decode algorithm: read the header byte, then the declared number
// of length bytes (medium/long form), then the payload.
func readField(r io.Reader, maxFieldLen int) ([]byte, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ErrMalformedFrame
	}
	h := hdr[0]
	if h <= shortFormMax {
		return []byte{h}, nil
	}

	lenField := int(h & lenMask)
	lenBytes := make([]byte, lenField)
	if _, err := io.ReadFull(r, lenBytes); err != nil {
		return nil, ErrMalformedFrame
	}

	var payloadLen uint64
	if h&0x40 == 0 {
		// Medium form: the length bytes are the field itself.
		return lenBytes, nil
	}
	payloadLen = IntFromBytes(lenBytes)
	if maxFieldLen > 0 && payloadLen > uint64(maxFieldLen) {
		return nil, ErrLengthOverflow
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ErrMalformedFrame
		}
	}
	return payload, nil
}
