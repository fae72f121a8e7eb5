// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

// Field form tags, the top two bits of the header byte. This file holds
// the encoding side of the one-field primitive (appendField) and the
// integer helpers; decoding lives in frame.go and decoder.go.
const (
	shortFormMax = 0x7F // header byte with top bit clear: 1-byte field verbatim.
	mediumTag    = 0x80 // 0b10xx_xxxx: low six bits are the field length (<=63).
	longTag      = 0xC0 // 0b11xx_xxxx: low six bits are len(len_bytes).
	formMask     = 0xC0
	lenMask      = 0x3F

	maxMediumLen = 63 // medium form covers 0..63 bytes inclusive.
)

// DefaultMaxFieldLen bounds the payload length accepted for a single
// field (and, by extension, the field count of a frame) absent an
// explicit override. It exists purely to reject corrupt or hostile
// length prefixes before allocating; it is not a protocol constant.
const DefaultMaxFieldLen = 1 << 24 // 16 MiB

// IntToBytes encodes a non-negative integer as the minimum-length
// big-endian unsigned byte string. Zero encodes as a single 0x00 byte
// (length 1, never length 0) per the wire grammar's integer rule.
func IntToBytes(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var tmp [8]byte
	n := 0
	for v > 0 {
		tmp[n] = byte(v)
		v >>= 8
		n++
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = tmp[n-1-i]
	}
	return out
}

// IntFromBytes decodes a big-endian unsigned integer over the whole of b.
func IntFromBytes(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// appendField appends the field encoding of field to dst and returns the
// extended slice. It never fails and applies no maxFieldLen bound;
// neither does Serialize. Length bounds are enforced only on the
// decoding side (Deserialize, Decoder).
func appendField(dst, field []byte) []byte {
	n := len(field)
	if n == 1 && field[0] <= shortFormMax {
		return append(dst, field[0])
	}
	if n <= maxMediumLen {
		dst = append(dst, mediumTag|byte(n))
		return append(dst, field...)
	}
	lenBytes := IntToBytes(uint64(n))
	dst = append(dst, longTag|byte(len(lenBytes)))
	dst = append(dst, lenBytes...)
	return append(dst, field...)
}
