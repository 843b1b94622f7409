// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file ../LICENSE.md.

// Package addrcache implements the VCDIFF address cache of RFC 3284 §5.3: the NEAR and SAME auxiliary
// tables that let an encoder express a COPY address as a small offset from a recently used address, rather
// than as a full address into the (possibly large) source-plus-target range.
package addrcache

import (
	"errors"

	"github.com/thomasmey/j-vcdiff/varint"
)

// ErrEndOfData is returned when the address byte stream ends before a mode's encoding is complete. As with
// package varint, no bytes are considered consumed when this is returned.
var ErrEndOfData = varint.ErrEndOfData

// ErrInvalidMode is returned for a mode byte that names neither SELF, HERE, nor a NEAR or SAME slot
// configured for this cache.
var ErrInvalidMode = errors.New("addrcache: invalid mode")

// ErrAddressOutOfRange is returned when a decoded address does not satisfy 0 <= address < here, or (for
// HERE mode) when the encoded backward distance exceeds here.
var ErrAddressOutOfRange = errors.New("addrcache: decoded address out of range")

// Mode identifiers, per RFC 3284 §5.3. NEAR and SAME modes occupy a contiguous range starting right after
// HERE, sized according to the cache's configured s_near and s_same.
const (
	Self = 0
	Here = 1
	// NEAR modes begin at 2 and run for s_near values.
	// SAME modes begin at 2+s_near and run for s_same values.
)

// MaxCacheSize is the largest value RFC 3284 permits for either s_near or s_same.
const MaxCacheSize = 255

// Cache holds the NEAR and SAME address tables for a single VCDIFF delta. It is shared across every window
// of that delta, and is never reset mid-delta.
type Cache struct {
	sNear, sSame int
	near         []uint32
	same         []uint32
	nextNear     int
	lastMode     byte
}

// New constructs a Cache with sNear NEAR slots and sSame groups of 256 SAME slots. Both sizes must be in
// [0, MaxCacheSize], and together with SELF and HERE must not name more than 256 distinct modes (a mode
// value has to fit in a single byte).
func New(sNear, sSame int) (*Cache, error) {
	if sNear < 0 || sNear > MaxCacheSize || sSame < 0 || sSame > MaxCacheSize {
		return nil, errors.New("addrcache: cache size out of range")
	}
	if 2+sNear+sSame > 256 {
		return nil, errors.New("addrcache: combined cache sizes exceed 256 modes")
	}
	c := &Cache{
		sNear: sNear,
		sSame: sSame,
		near:  make([]uint32, sNear),
		same:  make([]uint32, sSame*256),
	}
	return c, nil
}

// SNear and SSame return the configured cache sizes, needed by a driver that is about to swap code tables
// and must know how many modes the current cache actually serves.
func (c *Cache) SNear() int { return c.sNear }
func (c *Cache) SSame() int { return c.sSame }

// NumModes returns the total number of distinct mode values this cache recognizes: SELF, HERE, the NEAR
// slots, and the SAME slots.
func (c *Cache) NumModes() int {
	return 2 + c.sNear + c.sSame
}

// LastMode returns the mode byte of the most recent successful DecodeAddress call. The vcdiff decoder does
// not call it: its custom-code-table hand-off keeps using the same Cache, so the recorded mode carries over
// unchanged.
func (c *Cache) LastMode() byte { return c.lastMode }

// DecodeAddress decodes one COPY address, given the current "here" address (spec.md §3: source_segment_size
// plus bytes already decoded into the current target window) and the instruction's mode byte. It returns
// the decoded address and the number of bytes of data consumed. If data does not hold a complete encoding
// for this mode, it returns ErrEndOfData and n == 0.
//
// DecodeAddress does not update the cache; call Update with the validated address afterward. Splitting the
// two steps lets a caller validate and commit the COPY's other side effects atomically with the cache
// update (see Cache.Update's doc comment and the "address-cache law" in spec.md §8).
func (c *Cache) DecodeAddress(data []byte, here uint32, mode int) (addr uint32, n int, err error) {
	nearStart, sameStart, sameEnd := 2, 2+c.sNear, 2+c.sNear+c.sSame

	switch {
	case mode == Self:
		v, consumed, err := varint.ReadU31(data)
		if err != nil {
			return 0, 0, err
		}
		addr, n = v, consumed

	case mode == Here:
		d, consumed, err := varint.ReadU31(data)
		if err != nil {
			return 0, 0, err
		}
		if d > here {
			return 0, 0, ErrAddressOutOfRange
		}
		addr, n = here-d, consumed

	case mode >= nearStart && mode < sameStart:
		idx := mode - nearStart
		d, consumed, err := varint.ReadU31(data)
		if err != nil {
			return 0, 0, err
		}
		addr, n = c.near[idx]+d, consumed

	case mode >= sameStart && mode < sameEnd:
		idx := mode - sameStart
		if len(data) < 1 {
			return 0, 0, ErrEndOfData
		}
		b := data[0]
		addr, n = c.same[idx*256+int(b)], 1

	default:
		return 0, 0, ErrInvalidMode
	}

	if addr >= here {
		return 0, 0, ErrAddressOutOfRange
	}
	c.lastMode = byte(mode)
	return addr, n, nil
}

// Update records addr as the most recently decoded address, per RFC 3284 §5.3: it becomes the new
// round-robin NEAR slot, and is also written into its SAME slot. Both updates are skipped if the
// respective cache size is zero. Update must be called exactly once per successfully decoded COPY address,
// after any other validation of that COPY has passed, so that an instruction later rejected for an
// unrelated reason does not pollute the cache.
func (c *Cache) Update(addr uint32) {
	if c.sNear > 0 {
		c.near[c.nextNear] = addr
		c.nextNear = (c.nextNear + 1) % c.sNear
	}
	if c.sSame > 0 {
		c.same[int(addr)%(c.sSame*256)] = addr
	}
}
