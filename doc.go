// Copyright © 2015 Drake Wilson.  Copying, distribution, and modification of this software is governed by
// the MIT-style license in the file LICENSE.md.

/*
Package vcdiff implements a streaming decoder for the VCDIFF generic differencing format (RFC 3284),
including the interleaved-sections and Adler-32-checksum extensions identified by the 'S' version byte, as
used by SDCH.

Given a dictionary (source) byte sequence and a delta byte stream, a Decoder reconstructs the target byte
sequence the encoder produced. The delta may be delivered in chunks of any size, down to one byte at a time.
DecodeChunk never blocks: it decodes every window whose bytes are all on hand, writes that window's target
bytes to the sink, and keeps the incomplete remainder for the next call. A window is decoded only once all
of its bytes have arrived, so none of its target bytes reach the sink before then.

Typical use:

	d := vcdiff.NewDecoder()
	if err := d.Start(dictionary); err != nil {
		return err
	}
	for chunk := range chunks {
		if err := d.DecodeChunk(chunk, sink); err != nil {
			return err
		}
	}
	return d.Finish()

Encoding, in-place target mutation, seeking, and recovery from a decode error are all out of scope: a
Decoder that returns an error is poisoned and must be discarded.
*/
package vcdiff

import "github.com/op/go-logging"

var log = logging.MustGetLogger("vcdiff")
