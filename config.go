// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

const (
	// DefaultMaxTargetFileSize is the per-decode target size ceiling applied when no WithMaxTargetFileSize
	// option is given.
	DefaultMaxTargetFileSize = 64 << 20

	// DefaultMaxTargetWindowSize is the per-window target size ceiling applied when no
	// WithMaxTargetWindowSize option is given.
	DefaultMaxTargetWindowSize = 64 << 20

	// HardMaxTargetWindowSize is the absolute ceiling no WithMaxTargetWindowSize value may exceed: the
	// largest value a 31-bit unsigned size field can hold.
	HardMaxTargetWindowSize = 1<<31 - 1
)

// Config holds the tunables a Decoder is constructed with; see spec.md §4.G.
type Config struct {
	MaxTargetFileSize    uint64
	MaxTargetWindowSize  uint32
	PlannedTargetSize    uint64
	HasPlannedTargetSize bool
	AllowVcdTarget       bool
}

// Option is a functional option for configuring a Decoder.
type Option func(*Config)

// WithMaxTargetFileSize sets the ceiling on total target bytes a single decode may produce.
func WithMaxTargetFileSize(n uint64) Option {
	return func(c *Config) { c.MaxTargetFileSize = n }
}

// WithMaxTargetWindowSize sets the ceiling on target bytes a single window may produce. Values above
// HardMaxTargetWindowSize are clamped.
func WithMaxTargetWindowSize(n uint32) Option {
	return func(c *Config) {
		if n > HardMaxTargetWindowSize {
			n = HardMaxTargetWindowSize
		}
		c.MaxTargetWindowSize = n
	}
}

// WithPlannedTargetFileSize tells the decoder to stop exactly once it has produced n target bytes, leaving
// any further input unconsumed for the caller to recover via Decoder.UnconsumedInputSize. This is how a
// custom code table's recursive decoder is bounded to its 1536-byte image, and how a caller decoding one
// delta embedded inside a larger stream tells the decoder where its delta ends.
func WithPlannedTargetFileSize(n uint64) Option {
	return func(c *Config) {
		c.PlannedTargetSize = n
		c.HasPlannedTargetSize = true
	}
}

// WithVCDTarget allows windows that reference the VCD_TARGET segment (the already-decoded target buffer,
// as opposed to the dictionary) and retains all previously decoded target bytes for the life of the decode.
// Without it, VCD_TARGET windows are rejected and the target buffer is flushed to the sink and cleared after
// every window.
func WithVCDTarget() Option {
	return func(c *Config) { c.AllowVcdTarget = true }
}

func defaultConfig() Config {
	return Config{
		MaxTargetFileSize:   DefaultMaxTargetFileSize,
		MaxTargetWindowSize: DefaultMaxTargetWindowSize,
	}
}
