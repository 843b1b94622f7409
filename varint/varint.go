// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file ../LICENSE.md.

// Package varint implements the 7-bit, big-endian, continuation-bit variable-length integer encoding used
// throughout VCDIFF (RFC 3284 §2): each byte holds 7 bits of the value, most-significant group first, with
// the top bit of a byte set iff another byte follows.
package varint

import "errors"

// ErrOverflow is returned when a varint would need more bits than the caller's declared width, or ran past
// the maximum number of continuation bytes for that width without terminating.
var ErrOverflow = errors.New("varint: value overflows declared width")

// ErrEndOfData is returned when data ends before a terminating (high-bit-clear) byte is found.  Callers
// reading from a chunked stream should treat this as "come back with more bytes"; no bytes of data have
// been consumed when this error is returned.
var ErrEndOfData = errors.New("varint: need more data")

// MaxLen31 is the maximum number of bytes a value representable in 31 bits can occupy.
const MaxLen31 = 5

// MaxLen64 is the maximum number of bytes a value representable in 63 bits (the widest width this package
// supports, used only for the optional Adler-32 checksum field) can occupy.
const MaxLen64 = 9

// ReadU31 decodes a variable-length integer that must fit in 31 unsigned bits, as used for every VCDIFF
// size and address field. It returns the decoded value and the number of bytes consumed. If data does not
// contain a complete encoding, it returns ErrEndOfData and n == 0: the caller must not advance its cursor.
// If the encoding would need more than 31 bits, or runs past MaxLen31 bytes without terminating, it returns
// ErrOverflow.
func ReadU31(data []byte) (value uint32, n int, err error) {
	v, n, err := read(data, 31)
	return uint32(v), n, err
}

// ReadU64 decodes a variable-length integer that must fit in 63 unsigned bits. It is used only for the
// optional Adler-32 checksum field, which the wire format allows to be wider than a 31-bit size or address.
func ReadU64(data []byte) (value uint64, n int, err error) {
	return read(data, 63)
}

func read(data []byte, maxBits uint) (value uint64, n int, err error) {
	maxBytes := int((maxBits + 6) / 7)
	var v uint64
	for n = 0; ; n++ {
		if n == len(data) {
			return 0, 0, ErrEndOfData
		}
		if n >= maxBytes {
			return 0, 0, ErrOverflow
		}
		b := data[n]
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			n++
			break
		}
	}
	if maxBits < 64 && v >= (uint64(1)<<maxBits) {
		return 0, 0, ErrOverflow
	}
	return v, n, nil
}

// AppendU31 appends the minimal-length varint encoding of value to dst and returns the extended slice.
// value must fit in 31 unsigned bits; callers that need the wider checksum encoding should use AppendU64.
func AppendU31(dst []byte, value uint32) []byte {
	return AppendU64(dst, uint64(value))
}

// AppendU64 appends the minimal-length varint encoding of value to dst and returns the extended slice. A
// value of zero is encoded as the single byte 0x00, matching every other length: no encoding ever contains
// a leading zero-value continuation group.
func AppendU64(dst []byte, value uint64) []byte {
	var buf [MaxLen64]byte
	n := putBytes(buf[:], value)
	return append(dst, buf[:n]...)
}

// Len returns the number of bytes AppendU64 would emit for value.
func Len(value uint64) int {
	var buf [MaxLen64]byte
	return putBytes(buf[:], value)
}

func putBytes(buf []byte, value uint64) int {
	if value == 0 {
		buf[0] = 0
		return 1
	}
	var groups [MaxLen64]byte
	n := 0
	for value > 0 {
		groups[n] = byte(value & 0x7f)
		value >>= 7
		n++
	}
	for i := 0; i < n; i++ {
		b := groups[n-1-i]
		if i != n-1 {
			b |= 0x80
		}
		buf[i] = b
	}
	return n
}
