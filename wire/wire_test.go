// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"testing"
)

// byteReader mirrors tests/test_message_parsing.py's ByteReader: a
// reader that hands back at most len(p) of its remaining bytes per Read
// and errors once it has none left.
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, errors.New("byteReader: out of bytes")
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func TestZeroFieldFrame(t *testing.T) {
	msg := []byte{0}
	fields, err := Deserialize(&byteReader{b: msg})
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 0 {
		t.Fatalf("got %v, want empty", fields)
	}
	if got := Serialize(fields); !bytes.Equal(got, msg) {
		t.Fatalf("Serialize(%v) = %x, want %x", fields, got, msg)
	}
}

func TestOneFieldLowValue(t *testing.T) {
	for _, field := range []byte{0x00, 0x7F} {
		msg := []byte{1, field}
		fields, err := Deserialize(&byteReader{b: msg})
		if err != nil {
			t.Fatal(err)
		}
		want := [][]byte{{field}}
		if !equalFields(fields, want) {
			t.Fatalf("got %v, want %v", fields, want)
		}
		if got := Serialize(fields); !bytes.Equal(got, msg) {
			t.Fatalf("Serialize = %x, want %x", got, msg)
		}
	}
}

func TestOneFieldMidValue(t *testing.T) {
	cases := []struct {
		header byte
		field  []byte
	}{
		{0x81, []byte{0x80}},
		{0xBF, bytes.Repeat([]byte{0xFF}, 63)},
	}
	for _, c := range cases {
		msg := append([]byte{1, c.header}, c.field...)
		fields, err := Deserialize(&byteReader{b: msg})
		if err != nil {
			t.Fatal(err)
		}
		want := [][]byte{c.field}
		if !equalFields(fields, want) {
			t.Fatalf("got %v, want %v", fields, want)
		}
		if got := Serialize(fields); !bytes.Equal(got, msg) {
			t.Fatalf("Serialize = %x, want %x", got, msg)
		}
	}
}

func TestOneFieldHighValue(t *testing.T) {
	field := append(bytes.Repeat([]byte{0xFF}, 63), 0x00)
	msg := append([]byte{1, 0xC1, 0x40}, field...)
	fields, err := Deserialize(&byteReader{b: msg})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]byte{field}
	if !equalFields(fields, want) {
		t.Fatalf("got %v, want %v", fields, want)
	}
	if got := Serialize(fields); !bytes.Equal(got, msg) {
		t.Fatalf("Serialize = %x, want %x", got, msg)
	}
}

func Test300FieldFrame(t *testing.T) {
	msg := append([]byte{0x82, 0x01, 0x2C}, bytes.Repeat([]byte{3}, 300)...)
	fields, err := Deserialize(&byteReader{b: msg})
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 300 {
		t.Fatalf("got %d fields, want 300", len(fields))
	}
	for _, f := range fields {
		if !bytes.Equal(f, []byte{3}) {
			t.Fatalf("field = %x, want 03", f)
		}
	}
	if got := Serialize(fields); !bytes.Equal(got, msg) {
		t.Fatalf("Serialize = %x, want %x", got, msg)
	}
	if len(msg) != 303 {
		t.Fatalf("fixture length = %d, want 303", len(msg))
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][][]byte{
		nil,
		{{0x00}},
		{{0x7F}, {0x80}, {1, 2, 3}},
		{bytes.Repeat([]byte{9}, 1000)},
	}
	for _, fields := range cases {
		wire := Serialize(fields)
		got, err := Deserialize(bytes.NewReader(wire))
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if !equalFields(got, fields) && !(len(got) == 0 && len(fields) == 0) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, fields)
		}
	}
}

func TestDeserializeMalformedOnShortRead(t *testing.T) {
	_, err := Deserialize(bytes.NewReader([]byte{2, 0x00})) // declares 2 fields, only 1 present
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("got %v, want ErrMalformedFrame", err)
	}
}

func TestDeserializeLengthOverflow(t *testing.T) {
	// Declares a field of (1<<24)+1 bytes, one above DefaultMaxFieldLen.
	over := IntToBytes(DefaultMaxFieldLen + 1)
	header := append([]byte{0xC0 | byte(len(over))}, over...)
	msg := append([]byte{1}, header...)
	_, err := Deserialize(bytes.NewReader(msg))
	if !errors.Is(err, ErrLengthOverflow) {
		t.Fatalf("got %v, want ErrLengthOverflow", err)
	}
}

func TestIntToBytesZero(t *testing.T) {
	if got := IntToBytes(0); !bytes.Equal(got, []byte{0}) {
		t.Fatalf("IntToBytes(0) = %x, want 00", got)
	}
}

func TestIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 255, 256, 65535, 65536, 1 << 40} {
		b := IntToBytes(v)
		if got := IntFromBytes(b); got != v {
			t.Fatalf("IntFromBytes(IntToBytes(%d)) = %d", v, got)
		}
	}
}

func equalFields(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
