// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import (
	"testing"

	"github.com/thomasmey/j-vcdiff/varint"
)

// findOpcode linear-scans the default code table for a single-sub-instruction opcode with the given literal
// fields, so tests never hardcode a numeric opcode that would silently go stale if the generator in
// codetable_default.go were reshuffled.
func findOpcode(t *testing.T, inst Inst, size, mode uint8) byte {
	t.Helper()
	table := DefaultCodeTable()
	for op := 0; op < 256; op++ {
		e := table.Lookup(byte(op))
		if e.Inst1 == inst && e.Size1 == size && e.Mode1 == mode && e.Inst2 == NoOp {
			return byte(op)
		}
	}
	t.Fatalf("no default-table opcode for inst=%v size=%d mode=%d", inst, size, mode)
	return 0
}

func fileHeaderBytes(version, indicator byte) []byte {
	return []byte{magicBytes[0], magicBytes[1], magicBytes[2], version, indicator}
}

// buildWindow assembles one window's bytes, computing the delta-encoding-length field from the section
// slices it is given rather than a hand-counted literal, so the construction cannot drift out of sync with
// parseWindowHeader's own consistency check.
func buildWindow(winIndicator byte, hasSrc bool, srcLen, srcPos, targetWindowSize uint32, data, instr, addr []byte, checksum *uint64) []byte {
	var headerFields []byte
	headerFields = varint.AppendU31(headerFields, targetWindowSize)
	headerFields = append(headerFields, 0) // delta indicator: no secondary compression
	headerFields = varint.AppendU31(headerFields, uint32(len(data)))
	headerFields = varint.AppendU31(headerFields, uint32(len(instr)))
	headerFields = varint.AppendU31(headerFields, uint32(len(addr)))
	if checksum != nil {
		headerFields = varint.AppendU64(headerFields, *checksum)
	}
	deltaEncodingLength := uint32(len(headerFields)) + uint32(len(data)) + uint32(len(instr)) + uint32(len(addr))

	var buf []byte
	buf = append(buf, winIndicator)
	if hasSrc {
		buf = varint.AppendU31(buf, srcLen)
		buf = varint.AppendU31(buf, srcPos)
	}
	buf = varint.AppendU31(buf, deltaEncodingLength)
	buf = append(buf, headerFields...)
	buf = append(buf, data...)
	buf = append(buf, instr...)
	buf = append(buf, addr...)
	return buf
}

func decodeOneShot(t *testing.T, dictionary, delta []byte) []byte {
	t.Helper()
	d := NewDecoder()
	if err := d.Start(dictionary); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sink := &BufferSink{}
	if err := d.DecodeChunk(delta, sink); err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return sink.Bytes
}

// TestMinimalAdd mirrors scenario S1: an ADD-only window against an empty dictionary.
func TestMinimalAdd(t *testing.T) {
	opAdd4 := findOpcode(t, Add, 4, 0)
	delta := append(fileHeaderBytes(0x00, 0), buildWindow(0, false, 0, 0, 4, []byte("abcd"), []byte{opAdd4}, nil, nil)...)

	got := decodeOneShot(t, nil, delta)
	if string(got) != "abcd" {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

// TestCopyFromSource mirrors scenario S2: a COPY against a VCD_SOURCE segment.
func TestCopyFromSource(t *testing.T) {
	opCopy4Self := findOpcode(t, Copy, 4, 0)
	instr := []byte{opCopy4Self}
	addr := varint.AppendU31(nil, 0)
	delta := append(fileHeaderBytes(0x00, 0), buildWindow(vcdSource, true, 8, 0, 4, nil, instr, addr, nil)...)

	got := decodeOneShot(t, []byte("abcdefgh"), delta)
	if string(got) != "abcd" {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

// TestScenarioS2LiteralOpcode decodes spec.md §8 scenario S2 using the literal opcode byte 0x23 it names,
// rather than findOpcode's dynamic lookup, so a future reshuffle of buildDefaultCodeTable's COPY ordering
// that drifts away from the spec's pinned opcode value would be caught here even though every other test in
// this file resolves opcodes dynamically and would not notice.
func TestScenarioS2LiteralOpcode(t *testing.T) {
	instr := []byte{0x23} // COPY size=4 mode=0 (SELF), per spec.md's literal anchor for the default table
	addr := varint.AppendU31(nil, 0)
	delta := append(fileHeaderBytes(0x00, 0), buildWindow(vcdSource, true, 8, 0, 4, nil, instr, addr, nil)...)

	got := decodeOneShot(t, []byte("abcdefgh"), delta)
	if string(got) != "abcd" {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

// TestSelfReferentialCopy mirrors scenario S3: a COPY whose size exceeds the source segment, so later bytes
// of the copy read back bytes the same COPY just wrote.
func TestSelfReferentialCopy(t *testing.T) {
	opCopy5Self := findOpcode(t, Copy, 5, 0)
	instr := []byte{opCopy5Self}
	addr := varint.AppendU31(nil, 0)
	delta := append(fileHeaderBytes(0x00, 0), buildWindow(vcdSource, true, 1, 0, 5, nil, instr, addr, nil)...)

	got := decodeOneShot(t, []byte("A"), delta)
	if string(got) != "AAAAA" {
		t.Fatalf("got %q, want %q", got, "AAAAA")
	}
}

// interleavedHelloBody builds the single interleaved instruction stream for scenario S4: a COPY(1, SELF)
// pulling 'H' from the source segment, followed by an ADD(4) of inline data "ello".
func interleavedHelloBody(t *testing.T) []byte {
	opCopyVar := findOpcode(t, Copy, 0, 0)
	opAdd4 := findOpcode(t, Add, 4, 0)

	var instr []byte
	instr = append(instr, opCopyVar)
	instr = varint.AppendU31(instr, 1) // COPY size, read from the stream since the opcode's size is 0
	instr = varint.AppendU31(instr, 0) // SELF address
	instr = append(instr, opAdd4)
	instr = append(instr, "ello"...)
	return instr
}

// TestInterleaved mirrors scenario S4.
func TestInterleaved(t *testing.T) {
	instr := interleavedHelloBody(t)
	delta := append(fileHeaderBytes('S', 0), buildWindow(vcdSource, true, 1, 0, 5, nil, instr, nil, nil)...)

	got := decodeOneShot(t, []byte("H"), delta)
	if string(got) != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}

// TestChunkingInvariance delivers the same interleaved delta from TestInterleaved one byte at a time and
// checks the concatenated sink output still matches the one-shot result, per spec.md §8 property 2.
func TestChunkingInvariance(t *testing.T) {
	instr := interleavedHelloBody(t)
	delta := append(fileHeaderBytes('S', 0), buildWindow(vcdSource, true, 1, 0, 5, nil, instr, nil, nil)...)

	d := NewDecoder()
	if err := d.Start([]byte("H")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sink := &BufferSink{}
	for i := 0; i < len(delta); i++ {
		if err := d.DecodeChunk(delta[i:i+1], sink); err != nil {
			t.Fatalf("DecodeChunk at byte %d: %v", i, err)
		}
	}
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if string(sink.Bytes) != "Hello" {
		t.Fatalf("got %q, want %q", sink.Bytes, "Hello")
	}
}

// TestChecksumMismatch mirrors scenario S5: the same interleaved window, but with VCD_CHECKSUM set and a
// deliberately wrong checksum value.
func TestChecksumMismatch(t *testing.T) {
	instr := interleavedHelloBody(t)
	badChecksum := uint64(0xBADBAD)
	delta := append(fileHeaderBytes('S', 0), buildWindow(vcdSource|vcdChecksum, true, 1, 0, 5, nil, instr, nil, &badChecksum)...)

	d := NewDecoder()
	if err := d.Start([]byte("H")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := d.DecodeChunk(delta, &BufferSink{})
	if err == nil {
		t.Fatal("want ChecksumMismatch, got nil")
	}
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrChecksumMismatch {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

// TestBadMagicFailsAtFirstMismatchingByte checks the fall-through magic check described in spec.md §9:
// delivered one byte at a time, a bad-magic delta must fail as soon as the offending byte arrives rather
// than waiting for all three magic bytes to accumulate.
func TestBadMagicFailsAtFirstMismatchingByte(t *testing.T) {
	delta := []byte{0xD6, 0xFF, 0xC4, 0x00, 0x00}

	d := NewDecoder()
	if err := d.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.DecodeChunk(delta[:1], &BufferSink{}); err != nil {
		t.Fatalf("first byte: want OK (more needed), got %v", err)
	}
	err := d.DecodeChunk(delta[1:2], &BufferSink{})
	if err == nil {
		t.Fatal("want BadMagic on the second byte, got nil")
	}
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

// TestPrefixMonotonicity checks spec.md §8 property 4 over two back-to-back windows delivered in one
// DecodeChunk call: each sink write only ever appends to what the sink has already seen.
func TestPrefixMonotonicity(t *testing.T) {
	opAdd3 := findOpcode(t, Add, 3, 0)
	w1 := buildWindow(0, false, 0, 0, 3, []byte("foo"), []byte{opAdd3}, nil, nil)
	w2 := buildWindow(0, false, 0, 0, 3, []byte("bar"), []byte{opAdd3}, nil, nil)
	delta := append(fileHeaderBytes(0x00, 0), append(w1, w2...)...)

	d := NewDecoder()
	if err := d.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var seen []byte
	var writes [][]byte
	sink := SinkFunc(func(p []byte) error {
		writes = append(writes, append([]byte{}, p...))
		seen = append(seen, p...)
		return nil
	})

	if err := d.DecodeChunk(delta, sink); err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if string(seen) != "foobar" {
		t.Fatalf("got %q, want %q", seen, "foobar")
	}
	// Each window's bytes arrive as their own sink call, strictly extending what came before: "foo" then
	// "bar", never interleaved or reordered.
	if len(writes) != 2 || string(writes[0]) != "foo" || string(writes[1]) != "bar" {
		t.Fatalf("got writes %q, want [\"foo\" \"bar\"]", writes)
	}
}

// TestCustomCodeTable exercises component H: a header with VCD_CODETABLE set, an embedded delta that
// reconstructs the default table's own serialized image (so the installed table's semantics are known), and
// a window decoded afterward using that newly installed table.
func TestCustomCodeTable(t *testing.T) {
	// The default table's own opcode 0 is a reserved double-NOOP, which ParseCodeTable rejects for any
	// caller-supplied (custom) table. The embedded delta's dictionary is always the unpatched default image
	// (spec.md §4.H), so build a target that ADDs one literal replacement byte for opcode 0 and COPYs the
	// untouched remainder straight from the dictionary.
	dictImage := DefaultCodeTable().serialize()

	opAdd1 := findOpcode(t, Add, 1, 0)
	opCopyVar := findOpcode(t, Copy, 0, 0)
	embeddedInstr := append([]byte{opAdd1}, opCopyVar)
	embeddedInstr = append(embeddedInstr, varint.AppendU31(nil, uint32(len(dictImage)-1))...)
	embeddedData := []byte{byte(Add)}
	embeddedAddr := varint.AppendU31(nil, 1) // SELF address 1: the untouched remainder of the dictionary
	embeddedWindow := buildWindow(vcdSource, true, uint32(len(dictImage)), 0, uint32(len(dictImage)), embeddedData, embeddedInstr, embeddedAddr, nil)
	embeddedDelta := append(fileHeaderBytes(0x00, 0), embeddedWindow...)

	var outer []byte
	outer = append(outer, fileHeaderBytes(0x00, vcdCodeTable)...)
	outer = varint.AppendU31(outer, 0) // s_near
	outer = varint.AppendU31(outer, 0) // s_same
	outer = append(outer, embeddedDelta...)

	opAdd3 := findOpcode(t, Add, 3, 0)
	outer = append(outer, buildWindow(0, false, 0, 0, 3, []byte("xyz"), []byte{opAdd3}, nil, nil)...)

	got := decodeOneShot(t, nil, outer)
	if string(got) != "xyz" {
		t.Fatalf("got %q, want %q", got, "xyz")
	}
}

// TestVcdTargetDisallowedByDefault checks that a VCD_TARGET window is rejected unless WithVCDTarget was
// given.
func TestVcdTargetDisallowedByDefault(t *testing.T) {
	opAdd3 := findOpcode(t, Add, 3, 0)
	delta := append(fileHeaderBytes(0x00, 0), buildWindow(vcdTarget, true, 0, 0, 3, []byte("xyz"), []byte{opAdd3}, nil, nil)...)

	d := NewDecoder()
	if err := d.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := d.DecodeChunk(delta, &BufferSink{})
	if err == nil {
		t.Fatal("want VcdTargetDisallowed, got nil")
	}
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != ErrVcdTargetDisallowed {
		t.Fatalf("got %v, want ErrVcdTargetDisallowed", err)
	}
}

// TestPoisonedDecoderRejectsFurtherCalls checks that once an error occurs, the decoder stays poisoned.
func TestPoisonedDecoderRejectsFurtherCalls(t *testing.T) {
	d := NewDecoder()
	if err := d.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.DecodeChunk([]byte{0x00, 0x00, 0x00}, &BufferSink{}); err == nil {
		t.Fatal("want BadMagic, got nil")
	}
	if err := d.DecodeChunk([]byte{0xD6, 0xC3, 0xC4, 0x00, 0x00}, &BufferSink{}); err == nil {
		t.Fatal("want LifecycleViolation on a poisoned decoder, got nil")
	}
}
