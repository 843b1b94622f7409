// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import "fmt"

// ErrorKind discriminates the fatal error conditions a Decoder can report.  Every ErrorKind is fatal to the
// decode in progress; there is no recoverable error short of constructing a new Decoder.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrBadMagic
	ErrUnsupportedVersion
	ErrUnsupportedFeature
	ErrMalformedVarint
	ErrMalformedHeader
	ErrSizeLimitExceeded
	ErrBadAddress
	ErrBadOpcode
	ErrSectionLengthMismatch
	ErrChecksumMismatch
	ErrLifecycleViolation
	ErrVcdTargetDisallowed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBadMagic:
		return "bad magic"
	case ErrUnsupportedVersion:
		return "unsupported version"
	case ErrUnsupportedFeature:
		return "unsupported feature"
	case ErrMalformedVarint:
		return "malformed varint"
	case ErrMalformedHeader:
		return "malformed header"
	case ErrSizeLimitExceeded:
		return "size limit exceeded"
	case ErrBadAddress:
		return "bad address"
	case ErrBadOpcode:
		return "bad opcode"
	case ErrSectionLengthMismatch:
		return "section length mismatch"
	case ErrChecksumMismatch:
		return "checksum mismatch"
	case ErrLifecycleViolation:
		return "lifecycle violation"
	case ErrVcdTargetDisallowed:
		return "VCD_TARGET disallowed"
	default:
		return "unknown error"
	}
}

// DecodeError describes a fatal problem encountered while decoding a delta.  Offset is the position at
// which the problem was detected, relative to the structure being parsed at the time (the file header, the
// current window header, or a window's instruction or address section; for a code-table error it is the
// opcode number), or -1 if no single offset applies.  Detail is a human-readable elaboration; it is not part
// of the stable contract and should not be matched on.
type DecodeError struct {
	Kind   ErrorKind
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("vcdiff: %s", e.Kind)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("vcdiff: %s at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("vcdiff: %s: %s", e.Kind, e.Detail)
}

func newError(kind ErrorKind, offset int, detail string) *DecodeError {
	return &DecodeError{Kind: kind, Offset: offset, Detail: detail}
}

// errEndOfData is the internal restart signal described in spec.md §4.B and §4.E.  It is never returned
// from a public Decoder method; DecodeChunk translates it into "keep the tail, report success".
var errEndOfData = newError(ErrUnknown, -1, "end of data")

func isEndOfData(err error) bool {
	return err == errEndOfData
}
