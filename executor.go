// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import (
	"hash/adler32"

	"github.com/thomasmey/j-vcdiff/addrcache"
)

// executeWindow runs one window's instruction stream to completion against source (the window's
// VCD_SOURCE/VCD_TARGET segment) and returns the freshly produced target bytes.
//
// body holds exactly w.dataLen+w.instrLen+w.addrLen bytes: the data, instructions, and addresses sections
// back to back, in that order, per RFC 3284 §4.3. Because the caller only invokes executeWindow once all of
// a window's body bytes have arrived, there is no END_OF_DATA case here to roll back from — spec.md §9's
// observation that "rewind on END_OF_DATA collapses to do not advance the outer cursor" is realized one
// level up, by the driver simply not attempting a window until its full body is buffered.
func executeWindow(w windowHeader, table *CodeTable, cache *addrcache.Cache, source []byte, body []byte) ([]byte, error) {
	// Widen to uint64 before summing: each of dataLen, instrLen, addrLen is independently bounded to 31
	// bits, but a direct uint32 sum of three such values can still wrap (e.g. 2^31-1 + 2^31-1 + 2 wraps to
	// 0), which would then pass this check vacuously and panic on the slicing below.
	if uint64(len(body)) != uint64(w.dataLen)+uint64(w.instrLen)+uint64(w.addrLen) {
		return nil, newError(ErrSectionLengthMismatch, -1, "window body length does not match declared section lengths")
	}

	// dataLen and instrLen are widened to int (64 bits on every platform this decoder targets) before
	// adding, for the same reason: the check above guarantees their true sum fits in len(body), but a
	// uint32 addition of the two would wrap before that bound could be observed.
	dataLen, instrLen := int(w.dataLen), int(w.instrLen)
	dataSec := body[:dataLen]
	instrSec := body[dataLen : dataLen+instrLen]
	addrSec := body[dataLen+instrLen:]

	instrC := newCursor(instrSec)
	var dataC, addrC *cursor
	if w.interleaved {
		// In interleaved format the data and address bytes are inline in the instruction stream at their
		// reference sites, so all three roles share one cursor position.
		dataC, addrC = &instrC, &instrC
	} else {
		d := newCursor(dataSec)
		a := newCursor(addrSec)
		dataC, addrC = &d, &a
	}

	sourceLen := uint32(len(source))
	out := make([]byte, 0, w.targetWindowSize)

	type sub struct {
		inst Inst
		size uint8
		mode uint8
	}

	for instrC.Pos() < len(instrSec) {
		opcode, err := instrC.consumeByte()
		if err != nil {
			return nil, sectionErr(err)
		}
		entry := table.Lookup(opcode)

		for _, s := range [2]sub{{entry.Inst1, entry.Size1, entry.Mode1}, {entry.Inst2, entry.Size2, entry.Mode2}} {
			if s.inst == NoOp {
				continue
			}

			size := uint32(s.size)
			if size == 0 {
				size, err = instrC.consumeVarintU31()
				if err != nil {
					return nil, sectionErr(err)
				}
			}

			switch s.inst {
			case Add:
				chunk, err := dataC.consumeFixed(int(size))
				if err != nil {
					return nil, sectionErr(err)
				}
				out = append(out, chunk...)

			case Run:
				b, err := dataC.consumeByte()
				if err != nil {
					return nil, sectionErr(err)
				}
				for i := uint32(0); i < size; i++ {
					out = append(out, b)
				}

			case Copy:
				here := sourceLen + uint32(len(out))
				addr, n, err := cache.DecodeAddress(addrC.Remaining(), here, int(s.mode))
				if err != nil {
					return nil, addrErr(err, addrC.Pos())
				}
				if _, err := addrC.consumeFixed(n); err != nil {
					return nil, sectionErr(err)
				}
				cache.Update(addr)

				for i := uint32(0); i < size; i++ {
					idx := addr + i
					var b byte
					if idx < sourceLen {
						b = source[idx]
					} else {
						// Byte-by-byte, not a block copy: when idx-sourceLen lands in the portion of out
						// written earlier in this same COPY, the read must observe that write.
						b = out[idx-sourceLen]
					}
					out = append(out, b)
				}
			}

			if uint32(len(out)) > w.targetWindowSize {
				return nil, newError(ErrSizeLimitExceeded, instrC.Pos(), "window produced more bytes than its declared target_window_size")
			}
		}
	}

	// In interleaved mode dataC and addrC alias instrC (same cursor, same underlying instruction stream), so
	// their position is instrC's and has no relation to len(dataSec)/len(addrSec), which are always 0 for an
	// interleaved window (spec.md §6) — only the already-exhausted instruction stream needs checking there.
	if !w.interleaved && (dataC.Pos() != len(dataSec) || addrC.Pos() != len(addrSec)) {
		return nil, newError(ErrSectionLengthMismatch, -1, "data or address section left unconsumed bytes")
	}
	if uint32(len(out)) != w.targetWindowSize {
		return nil, newError(ErrSectionLengthMismatch, -1, "window produced fewer bytes than its declared target_window_size")
	}

	if w.hasChecksum {
		if uint64(adler32.Checksum(out)) != w.checksum {
			return nil, newError(ErrChecksumMismatch, -1, "Adler-32 checksum does not match")
		}
	}

	return out, nil
}

// sectionErr turns a truncated-section condition into a fatal error. executeWindow is only ever called with
// a complete window body, so running out of bytes mid-structure here means the declared section lengths
// lied about what they contained, not that more input is needed.
func sectionErr(err error) error {
	if isEndOfData(err) {
		return newError(ErrSectionLengthMismatch, -1, "section exhausted mid-structure")
	}
	return err
}

func addrErr(err error, offset int) error {
	switch err {
	case addrcache.ErrEndOfData:
		return newError(ErrSectionLengthMismatch, offset, "address section exhausted mid-varint")
	case addrcache.ErrInvalidMode:
		return newError(ErrBadOpcode, offset, "invalid address mode")
	case addrcache.ErrAddressOutOfRange:
		return newError(ErrBadAddress, offset, err.Error())
	default:
		return newError(ErrMalformedVarint, offset, err.Error())
	}
}
