// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

// Decoder parses frames out of a byte buffer that the caller grows by
// appending freshly-read bytes, one Feed at a time. It implements the
// partial-frame-across-ticks policy chosen in SPEC_FULL.md §4.1: an
// incomplete frame is never an error, it just waits for the next Feed.
//
// This mirrors the teacher's framer's own non-blocking discipline
// (readStream's incremental offset/retry state machine) but trades its
// persistent parse cursor for a simpler full-reparse-from-the-buffer-start
// approach, since broker command frames are small (a handful of fields)
// and re-walking them on every tick is cheap compared to a syscall.
type Decoder struct {
	buf         []byte
	maxFieldLen int
}

// NewDecoder returns a Decoder that rejects any declared field length
// above maxFieldLen. maxFieldLen <= 0 means DefaultMaxFieldLen.
func NewDecoder(maxFieldLen int) *Decoder {
	if maxFieldLen <= 0 {
		maxFieldLen = DefaultMaxFieldLen
	}
	return &Decoder{maxFieldLen: maxFieldLen}
}

// Feed appends freshly-read bytes to the decoder's buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Buffered reports how many undecoded bytes are currently held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Decode attempts to parse one whole frame from the front of the
// buffer.
//
//   - (fields, true, nil): a frame was decoded; the consumed bytes are
//     dropped from the internal buffer.
//   - (nil, false, nil): not enough bytes are buffered yet for a whole
//     frame; the caller should Feed more and retry on the next
//     readable tick.
//   - (nil, false, err): ErrLengthOverflow — a declared length exceeds
//     maxFieldLen. This is a hard per-connection failure; the caller
//     aborts processing for that connection (it cannot resynchronize
//     with a corrupt length prefix).
func (d *Decoder) Decode() (fields [][]byte, ok bool, err error) {
	pos := 0

	countField, np, complete, err := tryReadField(d.buf, pos, d.maxFieldLen)
	if err != nil {
		return nil, false, err
	}
	if !complete {
		return nil, false, nil
	}
	pos = np

	n := IntFromBytes(countField)
	if n > uint64(d.maxFieldLen) {
		return nil, false, ErrLengthOverflow
	}

	out := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		var f []byte
		f, pos, complete, err = tryReadField(d.buf, pos, d.maxFieldLen)
		if err != nil {
			return nil, false, err
		}
		if !complete {
			return nil, false, nil
		}
		out = append(out, f)
	}

	d.buf = append([]byte(nil), d.buf[pos:]...)
	return out, true, nil
}

// tryReadField decodes one field from b starting at pos. complete is
// false when b doesn't yet hold enough bytes; err is non-nil only for
// ErrLengthOverflow, which is reported as soon as the length is known
// even if the payload bytes haven't all arrived yet.
func tryReadField(b []byte, pos, maxFieldLen int) (field []byte, newPos int, complete bool, err error) {
	if pos >= len(b) {
		return nil, pos, false, nil
	}
	h := b[pos]
	if h <= shortFormMax {
		return []byte{h}, pos + 1, true, nil
	}

	lenField := int(h & lenMask)
	if pos+1+lenField > len(b) {
		return nil, pos, false, nil
	}
	lenBytes := b[pos+1 : pos+1+lenField]

	if h&0x40 == 0 {
		field = append([]byte(nil), lenBytes...)
		return field, pos + 1 + lenField, true, nil
	}

	payloadLen := IntFromBytes(lenBytes)
	if maxFieldLen > 0 && payloadLen > uint64(maxFieldLen) {
		return nil, pos, false, ErrLengthOverflow
	}
	start := pos + 1 + lenField
	end := start + int(payloadLen)
	if end < start || end > len(b) {
		return nil, pos, false, nil
	}
	field = append([]byte(nil), b[start:end]...)
	return field, end, true, nil
}
