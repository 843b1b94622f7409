// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

// Inst names the instruction family an opcode slot selects, per RFC 3284 §4.3.
type Inst uint8

const (
	NoOp Inst = iota
	Add
	Run
	Copy
)

func (i Inst) String() string {
	switch i {
	case NoOp:
		return "NOOP"
	case Add:
		return "ADD"
	case Run:
		return "RUN"
	case Copy:
		return "COPY"
	default:
		return "???"
	}
}

// CodeTableEntry is the decoded form of one byte of the serialized code table: the pair of sub-instructions
// one opcode expands to. A zero Size on ADD, COPY, or RUN means "the size is not implied by the opcode and
// must be read as a varint from the instruction stream"; NoOp's Size and Mode are unused.
type CodeTableEntry struct {
	Inst1, Inst2 Inst
	Size1, Size2 uint8
	Mode1, Mode2 uint8
}

// serializedCodeTableSize is the wire length of a code table: six parallel 256-entry byte arrays
// (inst1, inst2, size1, size2, mode1, mode2), per spec.md §3 / RFC 3284 §5.4.
const serializedCodeTableSize = 6 * 256

// CodeTable maps each of the 256 possible opcode bytes to the one or two sub-instructions it expands to.
type CodeTable struct {
	entries [256]CodeTableEntry
}

// Lookup returns the decoded entry for opcode.
func (t *CodeTable) Lookup(opcode byte) CodeTableEntry {
	return t.entries[opcode]
}

// serialize packs the table back into the 1536-byte wire layout ParseCodeTable reads, the layout a custom
// code table takes as its embedded delta's target (spec.md §4.H).
func (t *CodeTable) serialize() []byte {
	buf := make([]byte, serializedCodeTableSize)
	for op, e := range t.entries {
		buf[0*256+op] = byte(e.Inst1)
		buf[1*256+op] = byte(e.Inst2)
		buf[2*256+op] = e.Size1
		buf[3*256+op] = e.Size2
		buf[4*256+op] = e.Mode1
		buf[5*256+op] = e.Mode2
	}
	return buf
}

// ParseCodeTable decodes a 1536-byte serialized code table (the target of the custom-code-table embedded
// delta, spec.md §4.H) and validates it: every opcode's inst codes must be in range, and no opcode may
// specify NoOp for both sub-instructions, since such an opcode could never be emitted by a conforming
// encoder and accepting it would let a crafted delta smuggle a byte-for-byte identical but semantically
// empty instruction past the executor.
func ParseCodeTable(buf []byte) (*CodeTable, error) {
	if len(buf) != serializedCodeTableSize {
		return nil, newError(ErrMalformedHeader, -1, "custom code table has the wrong length")
	}

	inst1 := buf[0*256 : 1*256]
	inst2 := buf[1*256 : 2*256]
	size1 := buf[2*256 : 3*256]
	size2 := buf[3*256 : 4*256]
	mode1 := buf[4*256 : 5*256]
	mode2 := buf[5*256 : 6*256]

	t := &CodeTable{}
	for op := 0; op < 256; op++ {
		i1, i2 := Inst(inst1[op]), Inst(inst2[op])
		if i1 > Copy || i2 > Copy {
			return nil, newError(ErrBadOpcode, op, "instruction code out of range")
		}
		if i1 == NoOp && i2 == NoOp {
			return nil, newError(ErrBadOpcode, op, "opcode encodes two NOOPs")
		}
		t.entries[op] = CodeTableEntry{
			Inst1: i1, Inst2: i2,
			Size1: size1[op], Size2: size2[op],
			Mode1: mode1[op], Mode2: mode2[op],
		}
	}
	return t, nil
}
