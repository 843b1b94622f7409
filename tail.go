// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

// tailBuffer holds the unparsed suffix of the most recent DecodeChunk call: whatever bytes remained after
// the header/window/instruction parsers made all the progress they could. Unlike go/Dust/bufman's
// Reassembly, which reassembles into a fixed-capacity buffer sized for one known structure, a delta's
// unparsed tail has no fixed size: a window header, a varint, or an opcode's inline data can each be
// arbitrarily (if boundedly, per spec.md §5) larger than a single chunk, so the tail must grow to fit
// whatever was left over.
type tailBuffer struct {
	buf []byte
}

// prepend returns chunk with any held tail bytes placed in front of it, and clears the held tail. The
// returned slice is always a fresh copy when a tail is held, so the caller may freely mutate or retain it
// without aliasing tailBuffer's internal state.
func (t *tailBuffer) prepend(chunk []byte) []byte {
	if len(t.buf) == 0 {
		return chunk
	}
	combined := make([]byte, len(t.buf)+len(chunk))
	copy(combined, t.buf)
	copy(combined[len(t.buf):], chunk)
	t.buf = nil
	return combined
}

// keep replaces the held tail with a copy of remaining, the suffix left over after a DecodeChunk call made
// all the progress it could.
func (t *tailBuffer) keep(remaining []byte) {
	if len(remaining) == 0 {
		t.buf = nil
		return
	}
	t.buf = append(t.buf[:0], remaining...)
}

// Len reports how many bytes are currently held.
func (t *tailBuffer) Len() int { return len(t.buf) }
