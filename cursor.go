// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import "github.com/thomasmey/j-vcdiff/varint"

// cursor is the non-destructive parsing cursor described in spec.md §4.B. It reads forward over a byte
// slice that the cursor does not own, tracking only a position. Every consume* method either advances pos
// and returns success, or returns errEndOfData / a *DecodeError and leaves pos exactly where it was — so a
// caller that abandons a cursor after a failed read can simply discard it and retry later with more bytes,
// without having to undo anything.
//
// This plays the role the huffman.Decoder's held-bits state plays in the teacher (go/huffman/decoder.go):
// "make as much progress as the input allows, and report exactly how far you got."
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) cursor {
	return cursor{data: data}
}

// Pos returns the number of bytes this cursor has successfully consumed so far.
func (c *cursor) Pos() int { return c.pos }

// Remaining returns the unconsumed tail of the cursor's input.
func (c *cursor) Remaining() []byte { return c.data[c.pos:] }

func (c *cursor) peekByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, errEndOfData
	}
	return c.data[c.pos], nil
}

func (c *cursor) consumeByte() (byte, error) {
	b, err := c.peekByte()
	if err != nil {
		return 0, err
	}
	c.pos++
	return b, nil
}

// consumeFixed returns the next n bytes and advances past them, or returns errEndOfData (advancing
// nothing) if fewer than n bytes remain.
func (c *cursor) consumeFixed(n int) ([]byte, error) {
	if len(c.data)-c.pos < n {
		return nil, errEndOfData
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// consumeVarintU31 reads one VCDIFF size/address varint (spec.md §4.A). On ErrEndOfData it returns
// errEndOfData without advancing; on ErrOverflow it returns a *DecodeError of kind ErrMalformedVarint.
func (c *cursor) consumeVarintU31() (uint32, error) {
	v, n, err := varint.ReadU31(c.Remaining())
	if err == varint.ErrEndOfData {
		return 0, errEndOfData
	}
	if err != nil {
		return 0, newError(ErrMalformedVarint, c.pos, err.Error())
	}
	c.pos += n
	return v, nil
}

// consumeVarintU64 reads a wide varint, used only for the optional Adler-32 checksum field.
func (c *cursor) consumeVarintU64() (uint64, error) {
	v, n, err := varint.ReadU64(c.Remaining())
	if err == varint.ErrEndOfData {
		return 0, errEndOfData
	}
	if err != nil {
		return 0, newError(ErrMalformedVarint, c.pos, err.Error())
	}
	c.pos += n
	return v, nil
}
