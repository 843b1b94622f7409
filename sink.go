// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

package vcdiff

// Sink receives decoded target bytes as they become available. A Decoder may call Write zero or more times
// per DecodeChunk call, always with a contiguous, non-overlapping continuation of the target sequence
// produced so far. Implementations must not retain p past the call.
type Sink interface {
	Write(p []byte) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(p []byte) error

func (f SinkFunc) Write(p []byte) error { return f(p) }

// BufferSink is a Sink that appends everything it receives to an in-memory buffer, for callers that want
// the whole target in one slice rather than an incremental stream.
type BufferSink struct {
	Bytes []byte
}

func (s *BufferSink) Write(p []byte) error {
	s.Bytes = append(s.Bytes, p...)
	return nil
}
