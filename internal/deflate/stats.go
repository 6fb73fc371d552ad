// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

// Stats holds per-block bookkeeping for the Inflate calls made since
// EnableStats, gathered only when EnableStats has been called beforehand. Mirrors the opt-in
// recordStats/Stats pattern from the teacher's bzip2 reader, trimmed to
// what DEFLATE blocks can actually report (there is no per-block CRC in
// DEFLATE; that lives one layer up, in the gzip trailer).
type Stats struct {
	Blocks []BlockInfo
}

// BlockInfo describes one decoded DEFLATE block.
type BlockInfo struct {
	Type           string // "stored", "fixed", "dynamic", or "reserved" (BTYPE=3, always an error)
	Final          bool
	CompressedBits uint64 // bits consumed from the input, including the 3-bit block header
	NumBytes       int    // decompressed bytes produced
}

func btypeName(b uint32) string {
	switch b {
	case btypeStored:
		return "stored"
	case btypeFixed:
		return "fixed"
	case btypeDynamic:
		return "dynamic"
	default:
		return "reserved"
	}
}
