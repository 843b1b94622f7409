// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import "fmt"

// sourceSegment describes the VCD_SOURCE / VCD_TARGET segment a window's COPY instructions may reference.
type sourceSegment struct {
	present    bool
	fromTarget bool // true for VCD_TARGET (a view into the already-decoded target), false for VCD_SOURCE (the dictionary)
	length     uint32
	position   uint32
}

// windowHeader is the parsed, but not yet executed, per-window record described in spec.md §3.
type windowHeader struct {
	indicator        byte
	source           sourceSegment
	targetWindowSize uint32
	hasChecksum      bool
	checksum         uint64
	dataLen          uint32
	instrLen         uint32
	addrLen          uint32
	interleaved      bool
}

// parseWindowHeader reads one window's header fields, per RFC 3284 §4.3 and the interleaved/checksum
// extension in spec.md §6. It does not validate the source segment against the actual dictionary or target
// buffer length, nor the window size against any configured limit; those checks need state parseWindowHeader
// does not have and are applied by the driver once the header is in hand.
func parseWindowHeader(data []byte, version byte) (windowHeader, int, error) {
	c := newCursor(data)

	indicator, err := c.consumeByte()
	if err != nil {
		return windowHeader{}, 0, err
	}

	hasSource := indicator&vcdSource != 0
	hasTarget := indicator&vcdTarget != 0
	if hasSource && hasTarget {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos()-1, "Win_Indicator sets both VCD_SOURCE and VCD_TARGET")
	}

	var seg sourceSegment
	if hasSource || hasTarget {
		seg.present = true
		seg.fromTarget = hasTarget
		length, err := c.consumeVarintU31()
		if err != nil {
			return windowHeader{}, 0, err
		}
		pos, err := c.consumeVarintU31()
		if err != nil {
			return windowHeader{}, 0, err
		}
		seg.length = length
		seg.position = pos
	}

	deltaEncodingLength, err := c.consumeVarintU31()
	if err != nil {
		return windowHeader{}, 0, err
	}
	headerStart := c.Pos()

	targetWindowSize, err := c.consumeVarintU31()
	if err != nil {
		return windowHeader{}, 0, err
	}

	deltaIndicator, err := c.consumeByte()
	if err != nil {
		return windowHeader{}, 0, err
	}
	if deltaIndicator != 0 {
		return windowHeader{}, 0, newError(ErrUnsupportedFeature, c.Pos()-1, "secondary compression is not supported")
	}

	dataLen, err := c.consumeVarintU31()
	if err != nil {
		return windowHeader{}, 0, err
	}
	instrLen, err := c.consumeVarintU31()
	if err != nil {
		return windowHeader{}, 0, err
	}
	addrLen, err := c.consumeVarintU31()
	if err != nil {
		return windowHeader{}, 0, err
	}

	var checksum uint64
	hasChecksum := version == 'S' && indicator&vcdChecksum != 0
	if indicator&vcdChecksum != 0 && version != 'S' {
		return windowHeader{}, 0, newError(ErrUnsupportedFeature, c.Pos()-1, "VCD_CHECKSUM outside an 'S' delta")
	}
	if hasChecksum {
		checksum, err = c.consumeVarintU64()
		if err != nil {
			return windowHeader{}, 0, err
		}
	}

	headerFieldsLen := uint32(c.Pos() - headerStart)
	if deltaEncodingLength < headerFieldsLen {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos(),
			fmt.Sprintf("delta encoding length %d is shorter than the header fields it must contain", deltaEncodingLength))
	}
	// dataLen, instrLen, and addrLen are each independently bounded to 31 bits (spec.md §4.A), but three of
	// them summed can still overflow a uint32 (e.g. 2^31-1 + 2^31-1 + 2 wraps to 0). Bound each one against
	// what remains by subtraction instead of ever adding the three together, mirroring
	// checkWindowSizeLimits's overflow-safe comparisons.
	remaining := deltaEncodingLength - headerFieldsLen
	if dataLen > remaining {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos(), "data section length exceeds delta encoding length")
	}
	remaining -= dataLen
	if instrLen > remaining {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos(), "instructions section length exceeds delta encoding length")
	}
	remaining -= instrLen
	if addrLen > remaining {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos(), "addresses section length exceeds delta encoding length")
	}
	remaining -= addrLen
	if remaining != 0 {
		return windowHeader{}, 0, newError(ErrMalformedHeader, c.Pos(),
			fmt.Sprintf("delta encoding length %d does not match header+section lengths", deltaEncodingLength))
	}

	interleaved := version == 'S' && dataLen == 0 && addrLen == 0

	w := windowHeader{
		indicator:        indicator,
		source:           seg,
		targetWindowSize: targetWindowSize,
		hasChecksum:      hasChecksum,
		checksum:         checksum,
		dataLen:          dataLen,
		instrLen:         instrLen,
		addrLen:          addrLen,
		interleaved:      interleaved,
	}
	return w, c.Pos(), nil
}
