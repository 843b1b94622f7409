// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file ../LICENSE.md.

package varint

import (
	"bytes"
	"testing"
)

var cases = []struct {
	valid bool
	s     string
	v     uint64
}{
	{true, "\x00", 0},
	{true, "\x01", 1},
	{true, "\x7f", 127},
	{true, "\x81\x00", 128},
	{true, "\x82\x7f", 383},
	{true, "\x85\xa7\x1e", 86942},
	{false, "", 0},
	{false, "\x80", 0},
	{false, "\xff", 0},
	{false, "\x85\xa7", 0},
}

func TestReadU31(t *testing.T) {
	for _, tc := range cases {
		v, n, err := ReadU31([]byte(tc.s))
		if !tc.valid {
			if err != ErrEndOfData {
				t.Errorf("ReadU31(%q): want ErrEndOfData, got v=%d n=%d err=%v", tc.s, v, n, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ReadU31(%q): unexpected error %v", tc.s, err)
			continue
		}
		if uint64(v) != tc.v || n != len(tc.s) {
			t.Errorf("ReadU31(%q) = (%d, %d), want (%d, %d)", tc.s, v, n, tc.v, len(tc.s))
		}
	}
}

func TestReadU31DoesNotConsumeOnEndOfData(t *testing.T) {
	_, n, err := ReadU31([]byte{0x80, 0x80})
	if err != ErrEndOfData {
		t.Fatalf("want ErrEndOfData, got %v", err)
	}
	if n != 0 {
		t.Fatalf("want n == 0 on ErrEndOfData, got %d", n)
	}
}

func TestReadU31Overflow(t *testing.T) {
	// 4 continuation bytes followed by a terminator: 35 one-bits, a value >= 2^31.
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x7f}
	if _, _, err := ReadU31(data); err != ErrOverflow {
		t.Fatalf("want ErrOverflow, got %v", err)
	}
}

func TestAppendU31RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 383, 86942, 1<<31 - 1} {
		enc := AppendU31(nil, v)
		got, n, err := ReadU31(enc)
		if err != nil {
			t.Fatalf("AppendU31(%d) = %x, ReadU31 failed: %v", v, enc, err)
		}
		if got != v || n != len(enc) {
			t.Fatalf("round trip of %d: got %d (n=%d, len=%d)", v, got, n, len(enc))
		}
	}
}

func TestAppendU31Minimal(t *testing.T) {
	for _, tc := range cases {
		if !tc.valid {
			continue
		}
		enc := AppendU31(nil, uint32(tc.v))
		if !bytes.Equal(enc, []byte(tc.s)) {
			t.Errorf("AppendU31(%d) = %x, want %x", tc.v, enc, []byte(tc.s))
		}
		if Len(tc.v) != len(tc.s) {
			t.Errorf("Len(%d) = %d, want %d", tc.v, Len(tc.v), len(tc.s))
		}
	}
}

func TestReadU64WidthAllowsLargerValues(t *testing.T) {
	// A value that overflows 31 bits is fine at 63-bit width.
	enc := AppendU64(nil, 1<<40)
	v, n, err := ReadU64(enc)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if v != 1<<40 || n != len(enc) {
		t.Fatalf("ReadU64 = (%d, %d), want (%d, %d)", v, n, uint64(1<<40), len(enc))
	}
	if _, _, err := ReadU31(enc); err != ErrOverflow {
		t.Fatalf("ReadU31 on a >31-bit value: want ErrOverflow, got %v", err)
	}
}
