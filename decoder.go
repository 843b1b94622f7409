// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

import "github.com/thomasmey/j-vcdiff/addrcache"

// phase tracks which structure the driver is currently trying to consume, per spec.md §3's lifecycle.
type phase int

const (
	phaseHeader phase = iota
	phaseCodeTableSizes
	phaseCodeTableBody
	phaseWindows
)

// Decoder is a streaming VCDIFF decoder. A Decoder decodes exactly one delta: once Start has been called,
// a Decoder must not be reused for a second delta even after Finish, and any error poisons it permanently.
// Construct one with NewDecoder, arm it with Start, feed it input with DecodeChunk, and close it out with
// Finish.
type Decoder struct {
	config Config

	started   bool
	poisoned  bool
	complete  bool
	phase     phase
	header    fileHeader

	dictionary []byte
	table      *CodeTable
	cache      *addrcache.Cache

	target        []byte // retained target history; only populated when config.AllowVcdTarget
	totalProduced uint64

	tail tailBuffer

	// Custom code table sub-decoder state (spec.md §4.H), live only while phase == phaseCodeTableSizes or
	// phaseCodeTableBody.
	codeTableInner *Decoder
	codeTableImage []byte
}

// NewDecoder constructs a Decoder with the given options applied over the defaults in spec.md §4.G.
func NewDecoder(opts ...Option) *Decoder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Decoder{config: cfg}
}

// Start arms the decoder with its dictionary (source) bytes, which are borrowed for the life of the decode
// and must not be modified by the caller until Finish returns.
func (d *Decoder) Start(dictionary []byte) error {
	if d.started {
		return d.poison(newError(ErrLifecycleViolation, -1, "Start called on an already-started decoder"))
	}
	d.started = true
	d.dictionary = dictionary
	d.table = DefaultCodeTable()

	cache, err := addrcache.New(DefaultSNear, DefaultSSame)
	if err != nil {
		return d.poison(newError(ErrMalformedHeader, -1, err.Error()))
	}
	d.cache = cache
	return nil
}

func (d *Decoder) poison(err error) error {
	d.poisoned = true
	log.Errorf("decode failed, decoder poisoned: %v", err)
	return err
}

// DecodeChunk feeds the decoder the next slice of delta bytes, in any size down to a single byte. Bytes
// that cannot yet be interpreted because a structure is incomplete are retained internally and combined
// with the next call's bytes; DecodeChunk only returns an error when the delta is definitively malformed,
// at which point the decoder is poisoned and every subsequent call returns LifecycleViolation.
func (d *Decoder) DecodeChunk(data []byte, sink Sink) error {
	if !d.started {
		return d.poison(newError(ErrLifecycleViolation, -1, "DecodeChunk called before Start"))
	}
	if d.poisoned {
		return newError(ErrLifecycleViolation, -1, "DecodeChunk called on a poisoned decoder")
	}
	if d.complete {
		return d.poison(newError(ErrLifecycleViolation, -1, "DecodeChunk called after Finish"))
	}

	buf := d.tail.prepend(data)
	consumed, err := d.drive(buf, sink)
	if err != nil {
		return d.poison(err)
	}
	d.tail.keep(buf[consumed:])
	return nil
}

// drive makes as much progress through buf as possible, dispatching to the header parser, the optional
// custom-code-table sub-decoder, and the window loop in turn. It returns the number of leading bytes of buf
// it was able to fully interpret; the driver's non-destructive cursor discipline (spec.md §9) means any
// byte beyond the returned count is left untouched for a future call to retry once more input arrives.
func (d *Decoder) drive(buf []byte, sink Sink) (int, error) {
	pos := 0
	for {
		switch d.phase {
		case phaseHeader:
			h, n, err := parseHeader(buf[pos:])
			if err != nil {
				if isEndOfData(err) {
					return pos, nil
				}
				return pos, err
			}
			d.header = h
			pos += n
			if h.hasCustomCodeTable {
				d.phase = phaseCodeTableSizes
			} else {
				d.phase = phaseWindows
			}

		case phaseCodeTableSizes:
			n, err := d.enterCustomCodeTable(buf[pos:])
			if err != nil {
				if isEndOfData(err) {
					return pos, nil
				}
				return pos, err
			}
			pos += n
			d.phase = phaseCodeTableBody

		case phaseCodeTableBody:
			n, done, err := d.driveCustomCodeTable(buf[pos:])
			if err != nil {
				return pos, err
			}
			if !done {
				return pos + n, nil
			}
			pos += n
			d.phase = phaseWindows

		case phaseWindows:
			if d.config.HasPlannedTargetSize && d.totalProduced >= d.config.PlannedTargetSize {
				return pos, nil
			}
			n, err := d.driveOneWindow(buf[pos:], sink)
			if err != nil {
				if isEndOfData(err) {
					return pos, nil
				}
				return pos, err
			}
			if n == 0 {
				return pos, nil
			}
			pos += n
		}
	}
}

// enterCustomCodeTable reads the two cache-size varints that follow a header with VCD_CODETABLE set,
// installs the outer decoder's new address cache, and spawns the recursive sub-decoder described in
// spec.md §4.H.
func (d *Decoder) enterCustomCodeTable(buf []byte) (int, error) {
	c := newCursor(buf)
	sNear, err := c.consumeVarintU31()
	if err != nil {
		return 0, err
	}
	sSame, err := c.consumeVarintU31()
	if err != nil {
		return 0, err
	}

	cache, err := addrcache.New(int(sNear), int(sSame))
	if err != nil {
		return 0, newError(ErrMalformedHeader, c.Pos(), err.Error())
	}
	d.cache = cache

	inner := NewDecoder(WithPlannedTargetFileSize(serializedCodeTableSize))
	if err := inner.Start(DefaultCodeTable().serialize()); err != nil {
		return 0, err
	}
	d.codeTableInner = inner
	d.codeTableImage = nil

	return c.Pos(), nil
}

// driveCustomCodeTable feeds buf to the recursive sub-decoder. It returns the number of bytes of buf the
// sub-decoder has taken responsibility for (which may be all of buf, even if it has not yet produced a
// complete table) and done=true once the 1536-byte table image is complete, parsed, and installed.
func (d *Decoder) driveCustomCodeTable(buf []byte) (n int, done bool, err error) {
	collect := SinkFunc(func(p []byte) error {
		d.codeTableImage = append(d.codeTableImage, p...)
		return nil
	})
	if err := d.codeTableInner.DecodeChunk(buf, collect); err != nil {
		return 0, false, err
	}
	if len(d.codeTableImage) < serializedCodeTableSize {
		return len(buf), false, nil
	}

	table, err := ParseCodeTable(d.codeTableImage)
	if err != nil {
		return 0, false, err
	}
	if err := d.codeTableInner.Finish(); err != nil {
		return 0, false, err
	}

	// d.cache was already replaced with the custom-sized cache in enterCustomCodeTable and is the same
	// object throughout, so its last_mode carries over the boundary with no extra bookkeeping.
	log.Debugf("custom code table installed (s_near=%d s_same=%d)", d.cache.SNear(), d.cache.SSame())
	d.table = table
	consumedByInner := len(buf) - d.codeTableInner.UnconsumedInputSize()
	d.codeTableInner = nil
	d.codeTableImage = nil
	return consumedByInner, true, nil
}

// driveOneWindow attempts to parse and, if its full body is available, execute exactly one window. If the
// window header is not yet fully present in buf it returns 0 and errEndOfData; if the header is complete but
// the body is not, it returns 0 and a nil error. drive treats both as "wait for more input".
func (d *Decoder) driveOneWindow(buf []byte, sink Sink) (int, error) {
	wh, headerLen, err := parseWindowHeader(buf, d.header.version)
	if err != nil {
		return 0, err
	}

	source, err := d.resolveSourceSegment(wh.source)
	if err != nil {
		return 0, err
	}

	if err := d.checkWindowSizeLimits(wh.targetWindowSize); err != nil {
		return 0, err
	}

	// dataLen, instrLen, and addrLen are each independently bounded to 31 bits, but summed directly in a
	// uint32 they can wrap (e.g. 2^31-1 + 2^31-1 + 2 wraps to 0), which would then slice buf short and panic
	// deeper in executeWindow. Widen to uint64 before summing, where the sum of three sub-2^31 values can
	// never overflow, and bound it against the available input before ever using it as a slice length.
	bodyLen64 := uint64(wh.dataLen) + uint64(wh.instrLen) + uint64(wh.addrLen)
	if bodyLen64 > uint64(len(buf)-headerLen) {
		return 0, nil
	}
	bodyLen := int(bodyLen64)
	body := buf[headerLen : headerLen+bodyLen]

	out, err := executeWindow(wh, d.table, d.cache, source, body)
	if err != nil {
		return 0, err
	}

	if d.config.AllowVcdTarget {
		d.target = append(d.target, out...)
	}
	if err := sink.Write(out); err != nil {
		return 0, err
	}
	d.totalProduced += uint64(len(out))

	return headerLen + bodyLen, nil
}

func (d *Decoder) resolveSourceSegment(seg sourceSegment) ([]byte, error) {
	if !seg.present {
		return nil, nil
	}
	if seg.fromTarget {
		if !d.config.AllowVcdTarget {
			return nil, newError(ErrVcdTargetDisallowed, -1, "VCD_TARGET window seen but allow_vcd_target is false")
		}
		if uint64(seg.position)+uint64(seg.length) > uint64(len(d.target)) {
			return nil, newError(ErrMalformedHeader, -1, "VCD_TARGET segment extends past the decoded target")
		}
		return d.target[seg.position : seg.position+seg.length], nil
	}
	if uint64(seg.position)+uint64(seg.length) > uint64(len(d.dictionary)) {
		return nil, newError(ErrMalformedHeader, -1, "VCD_SOURCE segment extends past the dictionary")
	}
	return d.dictionary[seg.position : seg.position+seg.length], nil
}

func (d *Decoder) checkWindowSizeLimits(targetWindowSize uint32) error {
	if targetWindowSize > d.config.MaxTargetWindowSize {
		return newError(ErrSizeLimitExceeded, -1, "target_window_size exceeds max_target_window_size")
	}
	if uint64(targetWindowSize) > d.config.MaxTargetFileSize-d.totalProduced {
		return newError(ErrSizeLimitExceeded, -1, "window would exceed max_target_file_size")
	}
	if d.config.HasPlannedTargetSize && uint64(targetWindowSize) > d.config.PlannedTargetSize-d.totalProduced {
		return newError(ErrSizeLimitExceeded, -1, "window would overflow planned_target_file_size")
	}
	return nil
}

// Finish closes out the decode. It succeeds only if a header was seen, no window or custom code table is
// mid-parse, and either every delivered byte has been consumed or the planned target size has been met
// exactly (in which case any leftover bytes belong to whatever encloses this delta, not to it).
func (d *Decoder) Finish() error {
	if d.poisoned {
		return newError(ErrLifecycleViolation, -1, "Finish called on a poisoned decoder")
	}
	if d.phase == phaseHeader {
		return d.poison(newError(ErrLifecycleViolation, -1, "Finish called before the delta header was parsed"))
	}
	if d.phase == phaseCodeTableSizes || d.phase == phaseCodeTableBody {
		return d.poison(newError(ErrLifecycleViolation, -1, "Finish called while a custom code table is still mid-parse"))
	}
	if d.tail.Len() > 0 {
		metPlan := d.config.HasPlannedTargetSize && d.totalProduced == d.config.PlannedTargetSize
		if !metPlan {
			return d.poison(newError(ErrLifecycleViolation, -1, "Finish called with an incomplete window or unconsumed trailing bytes"))
		}
	}
	d.complete = true
	return nil
}

// UnconsumedInputSize reports how many bytes delivered to DecodeChunk have not yet been interpreted: either
// because they form an incomplete structure awaiting more input, or because planned_target_file_size was
// reached and the remainder belongs to an enclosing delta.
func (d *Decoder) UnconsumedInputSize() int {
	return d.tail.Len()
}
