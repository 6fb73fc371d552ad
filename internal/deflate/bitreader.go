// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"bufio"
	"io"
)

// bitReader wraps an io.Reader and extracts bits from it, least-significant
// bit first within each byte, as required by RFC 1951 §3.1.1. Its Read*
// methods don't return the usual error because threading one through every
// call site is noisy; instead any error is latched and can be checked with
// Err() once decoding a block is done.
//
// This mirrors the teacher's bzip2 bitReader (buffer + bit count, lazily
// topped up from an io.ByteReader) but assembles bits from the
// least-significant end rather than the most-significant end, since gzip's
// bit-packing convention runs the other way from bzip2's.
type bitReader struct {
	r        io.ByteReader
	buf      uint32 // bits buf[0:nb] are valid, bit 0 is the next bit to consume
	nb       uint   // number of valid bits in buf
	err      error
	read     uint   // bytes pulled from r, for diagnostics
	consumed uint64 // bits returned to callers so far, for Stats
}

// newBitReader returns a new bitReader reading from r. If r is not already
// an io.ByteReader, it is wrapped in a bufio.Reader.
func newBitReader(r io.Reader) bitReader {
	byter, ok := r.(io.ByteReader)
	if !ok {
		byter = bufio.NewReader(r)
	}
	return bitReader{r: byter}
}

// fill tops up buf until it holds at least n bits, or records an error.
func (br *bitReader) fill(n uint) {
	for br.nb < n {
		b, err := br.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			br.err = err
			return
		}
		br.read++
		br.buf |= uint32(b) << br.nb
		br.nb += 8
	}
}

// readBitsLSBFirst reads n bits (n <= 16) and assembles them such that the
// first bit read becomes bit 0 of the result, the second bit becomes bit 1,
// and so on. Used for every numeric field in the DEFLATE format: block
// headers, HLIT/HDIST/HCLEN, code-length code lengths, and extra
// length/distance bits.
func (br *bitReader) readBitsLSBFirst(n uint) uint32 {
	if n == 0 {
		return 0
	}
	br.fill(n)
	if br.err != nil {
		return 0
	}
	v := br.buf & (1<<n - 1)
	br.buf >>= n
	br.nb -= n
	br.consumed += uint64(n)
	return v
}

// nextBit returns the next single bit, 0 or 1.
func (br *bitReader) nextBit() uint32 {
	return br.readBitsLSBFirst(1)
}

// readCodeBit is used exclusively when walking a Huffman trie. It extracts
// bits in exactly the same order as nextBit (the underlying byte stream is
// still scanned LSB-first); the name exists to make call sites self
// documenting, since the caller assembles the bits it gets back
// most-significant-first (the first bit read selects the top of the trie)
// rather than as a little-endian integer.
func (br *bitReader) readCodeBit() uint32 {
	return br.nextBit()
}

// align discards bits up to the next byte boundary, as required before a
// stored block. The discarded padding bits still advance the stream
// position, so they count toward consumed.
func (br *bitReader) align() {
	br.consumed += uint64(br.nb)
	br.buf = 0
	br.nb = 0
}

// readByte reads a single whole byte directly from the underlying source,
// bypassing the bit buffer. Only valid when align has just been called (or
// the reader has never consumed a partial byte).
func (br *bitReader) readByte() byte {
	if br.nb >= 8 {
		b := byte(br.buf)
		br.buf >>= 8
		br.nb -= 8
		br.consumed += 8
		return b
	}
	b, err := br.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
		return 0
	}
	br.read++
	br.consumed += 8
	return b
}

// bitsConsumed returns the number of bits returned to callers so far,
// used to compute a block's compressed bit length for Stats.
func (br *bitReader) bitsConsumed() uint64 { return br.consumed }

func (br *bitReader) Err() error { return br.err }
