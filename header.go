// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import "fmt"

// Delta file header flag bits, from the indicator byte (RFC 3284 §4.1).
const (
	vcdDecompress = 0x01
	vcdCodeTable  = 0x02
)

// Window indicator flag bits (RFC 3284 §4.3).
const (
	vcdSource   = 0x01
	vcdTarget   = 0x02
	vcdChecksum = 0x04
)

var magicBytes = [3]byte{0xD6, 0xC3, 0xC4}

// fileHeader is the five fixed bytes every delta opens with, per spec.md §3.
type fileHeader struct {
	version            byte
	interleaved        bool
	hasCustomCodeTable bool
}

// parseHeader reads the magic, version, and indicator bytes from data. It returns the number of bytes
// consumed only when err is nil; on errEndOfData the caller must not advance its own position, since data
// may be a prefix that a later chunk completes.
//
// The magic check compares one byte at a time rather than consuming all three at once, so that a delta
// delivered one byte per DecodeChunk call still fails at the first mismatching byte instead of waiting for
// three bytes to accumulate — the behavior spec.md §9 calls out from the original's ReadDeltaFileHeader.
func parseHeader(data []byte) (fileHeader, int, error) {
	c := newCursor(data)

	for i, want := range magicBytes {
		b, err := c.consumeByte()
		if err != nil {
			return fileHeader{}, 0, err
		}
		if b != want {
			return fileHeader{}, 0, newError(ErrBadMagic, i, fmt.Sprintf("byte %d: got 0x%02X, want 0x%02X", i, b, want))
		}
	}

	version, err := c.consumeByte()
	if err != nil {
		return fileHeader{}, 0, err
	}
	if version != 0x00 && version != 'S' {
		return fileHeader{}, 0, newError(ErrUnsupportedVersion, c.Pos()-1, fmt.Sprintf("version byte 0x%02X", version))
	}

	indicator, err := c.consumeByte()
	if err != nil {
		return fileHeader{}, 0, err
	}
	if indicator&vcdDecompress != 0 {
		return fileHeader{}, 0, newError(ErrUnsupportedFeature, c.Pos()-1, "VCD_DECOMPRESS is not supported")
	}

	h := fileHeader{
		version:            version,
		interleaved:        version == 'S',
		hasCustomCodeTable: indicator&vcdCodeTable != 0,
	}
	return h, c.Pos(), nil
}
