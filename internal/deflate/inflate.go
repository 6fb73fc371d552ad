// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate implements RFC 1951 DEFLATE decompression: canonical
// Huffman decoding, the sliding-window length/distance engine, and the
// per-block dispatch that ties them together. It knows nothing about the
// gzip container format that usually wraps a DEFLATE stream; see the
// sibling gzip package for that.
package deflate

import (
	"io"
	"sync"
)

// stageSize bounds how much decoded output Inflate accumulates before
// flushing to the sink. It has nothing to do with correctness (the window
// is what correctness depends on); it just amortizes the cost of small
// Write calls the way a bufio.Writer would.
const stageSize = 32 * 1024

// Inflater decodes a single DEFLATE stream. The zero value is ready to use;
// NewInflater exists only to make call sites read like the rest of this
// repository's constructors.
type Inflater struct {
	fixedLitOnce sync.Once
	fixedLit     *huffmanTree

	stats *Stats
}

// NewInflater returns a ready-to-use Inflater.
func NewInflater() *Inflater {
	return &Inflater{}
}

// EnableStats turns on per-block bookkeeping for every later call to
// Inflate; the blocks of successive calls are appended to the same Stats.
// Off by default: most callers never look at it and it would otherwise add
// an allocation to the hot path.
func (inf *Inflater) EnableStats() {
	inf.stats = &Stats{}
}

// StatsResult returns the statistics gathered by the Inflate calls made
// since EnableStats was last called, or nil if EnableStats was never called.
func (inf *Inflater) StatsResult() *Stats {
	return inf.stats
}

// fixedLitLenTree returns the shared, immutable literal/length tree used by
// BTYPE=1 blocks, building it on first use. RFC 1951's fixed tree is the
// same for every fixed block in every stream, so it is safe — and, per
// spec.md §4.4, intended — to build once and reuse.
func (inf *Inflater) fixedLitLenTree() *huffmanTree {
	inf.fixedLitOnce.Do(func() {
		t, err := buildHuffmanTree(fixedLitLenLengths())
		if err != nil {
			// fixedLitLenLengths is a compile-time constant; if this ever
			// fails it is a bug in this package, not a malformed stream.
			panic("deflate: fixed literal/length tree failed to build: " + err.Error())
		}
		inf.fixedLit = t
	})
	return inf.fixedLit
}

// Inflate decodes a single DEFLATE stream from src, writing the
// uncompressed bytes to dst, and returns once a block with BFINAL set has
// been fully decoded. It pulls from src and pushes to dst synchronously; it
// never suspends or buffers state across calls (spec.md §5).
func (inf *Inflater) Inflate(src io.Reader, dst io.Writer) error {
	br := newBitReader(src)
	win := &window{}

	stage := make([]byte, 0, stageSize)
	flush := func() error {
		if len(stage) == 0 {
			return nil
		}
		if _, err := dst.Write(stage); err != nil {
			return ioErr(err)
		}
		stage = stage[:0]
		return nil
	}
	emit := func(b byte) error {
		stage = append(stage, b)
		if len(stage) == stageSize {
			return flush()
		}
		return nil
	}

	for {
		final, stat, err := inf.decodeBlock(&br, win, emit)
		if inf.stats != nil {
			inf.stats.Blocks = append(inf.stats.Blocks, BlockInfo{
				Type:           btypeName(stat.btype),
				Final:          stat.bfinal,
				CompressedBits: stat.compressedBits,
				NumBytes:       stat.bytesOut,
			})
		}
		if err != nil {
			// Best-effort: surface whatever was already staged even though
			// the stream is broken, matching spec.md §7's "already-emitted
			// bytes remain in the sink" propagation policy.
			_ = flush()
			return err
		}
		if final {
			return flush()
		}
	}
}
