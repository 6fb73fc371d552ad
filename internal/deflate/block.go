// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

// This file plays the role the teacher's internal/bzip2/bzip2.go readBlock
// plays for bzip2: parse one block's header, materialize whatever Huffman
// trees it needs, and run the entropy decoder that actually produces
// output bytes. DEFLATE's three block types (stored, fixed, dynamic) take
// the place of bzip2's single block format, and BTYPE replaces bzip2's
// block/end-of-stream magic numbers as the dispatch key.

const (
	btypeStored  = 0
	btypeFixed   = 1
	btypeDynamic = 2
	btypeInvalid = 3
)

// blockStat records what a single decoded block looked like; gathered only
// when the Inflater has stats enabled (see stats.go).
type blockStat struct {
	btype          uint32
	bfinal         bool
	bytesOut       int
	compressedBits uint64
}

// decodeBlock reads one DEFLATE block from br, appending each output byte
// to win for future back-references and passing it to emit. It returns
// whether BFINAL was set.
func (inf *Inflater) decodeBlock(br *bitReader, win *window, emit func(byte) error) (final bool, stat blockStat, err error) {
	start := br.bitsConsumed()
	bfinal := br.nextBit()
	btype := br.readBitsLSBFirst(2)
	if br.err != nil {
		return false, stat, unexpectedEOF(br.err)
	}
	stat.btype = btype
	counting := &countingEmit{emit: emit}

	switch btype {
	case btypeStored:
		err = inf.decodeStoredBlock(br, win, counting.Emit)
	case btypeFixed:
		err = inf.decodeFixedBlock(br, win, counting.Emit)
	case btypeDynamic:
		err = inf.decodeDynamicBlock(br, win, counting.Emit)
	case btypeInvalid:
		err = malformed("reserved BTYPE value 3")
	}
	stat.bytesOut = counting.n
	stat.bfinal = bfinal == 1
	stat.compressedBits = br.bitsConsumed() - start
	return bfinal == 1, stat, err
}

// countingEmit wraps an emit callback to additionally count bytes, used
// purely for Stats bookkeeping so the hot decode loop stays a plain
// func(byte) error everywhere else.
type countingEmit struct {
	emit func(byte) error
	n    int
}

func (c *countingEmit) Emit(b byte) error {
	c.n++
	return c.emit(b)
}

func (inf *Inflater) decodeStoredBlock(br *bitReader, win *window, emit func(byte) error) error {
	br.align()
	length := br.readBitsLSBFirst(16)
	nlength := br.readBitsLSBFirst(16)
	if br.err != nil {
		return unexpectedEOF(br.err)
	}
	if nlength != (^length)&0xffff {
		return malformed("stored block LEN/NLEN mismatch: LEN=%#04x NLEN=%#04x", length, nlength)
	}
	for i := uint32(0); i < length; i++ {
		b := br.readByte()
		if br.err != nil {
			return unexpectedEOF(br.err)
		}
		win.emit(b)
		if err := emit(b); err != nil {
			return ioErr(err)
		}
	}
	return nil
}

func (inf *Inflater) decodeFixedBlock(br *bitReader, win *window, emit func(byte) error) error {
	lit := inf.fixedLitLenTree()
	distDecode := func() (uint32, error) {
		v := uint32(0)
		for i := 0; i < 5; i++ {
			v = (v << 1) | br.readCodeBit()
		}
		if br.err != nil {
			return 0, unexpectedEOF(br.err)
		}
		return v, nil
	}
	return runLengthDistanceEngine(br, win, emit, lit, distDecode)
}

func (inf *Inflater) decodeDynamicBlock(br *bitReader, win *window, emit func(byte) error) error {
	litTree, distTree, err := readDynamicTrees(br)
	if err != nil {
		return err
	}
	distDecode := func() (uint32, error) {
		s, err := distTree.decodeSymbol(br)
		return uint32(s), err
	}
	return runLengthDistanceEngine(br, win, emit, litTree, distDecode)
}

// readDynamicTrees parses HLIT/HDIST/HCLEN, the 19 code-length code
// lengths, and the run-length-encoded combined length vector, then builds
// the literal/length and distance trees from it (RFC 1951 §3.2.7).
func readDynamicTrees(br *bitReader) (lit, dist *huffmanTree, err error) {
	hlit := br.readBitsLSBFirst(5)
	hdist := br.readBitsLSBFirst(5)
	hclen := br.readBitsLSBFirst(4)
	if br.err != nil {
		return nil, nil, unexpectedEOF(br.err)
	}
	if hlit > 29 {
		return nil, nil, malformed("HLIT %d exceeds maximum of 29", hlit)
	}
	if hdist > 29 {
		return nil, nil, malformed("HDIST %d exceeds maximum of 29", hdist)
	}

	var clLengths [19]uint8
	for i := 0; i < int(hclen)+4; i++ {
		clLengths[codeLengthOrder[i]] = uint8(br.readBitsLSBFirst(3))
	}
	if br.err != nil {
		return nil, nil, unexpectedEOF(br.err)
	}
	clTree, err := buildHuffmanTree(clLengths[:])
	if err != nil {
		return nil, nil, err
	}

	total := int(hlit) + 257 + int(hdist) + 1
	lengths := make([]uint8, total)
	var prev uint8
	for i := 0; i < total; {
		sym, err := clTree.decodeSymbol(br)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case sym <= 15:
			lengths[i] = uint8(sym)
			prev = uint8(sym)
			i++
		case sym == 16:
			if i == 0 {
				return nil, nil, malformed("code-length symbol 16 at position 0")
			}
			rep := 3 + int(br.readBitsLSBFirst(2))
			if br.err != nil {
				return nil, nil, unexpectedEOF(br.err)
			}
			if i+rep > total {
				return nil, nil, malformed("code-length repeat runs past end of length vector")
			}
			for j := 0; j < rep; j++ {
				lengths[i] = prev
				i++
			}
		case sym == 17:
			rep := 3 + int(br.readBitsLSBFirst(3))
			if br.err != nil {
				return nil, nil, unexpectedEOF(br.err)
			}
			if i+rep > total {
				return nil, nil, malformed("code-length repeat runs past end of length vector")
			}
			i += rep
			prev = 0
		case sym == 18:
			rep := 11 + int(br.readBitsLSBFirst(7))
			if br.err != nil {
				return nil, nil, unexpectedEOF(br.err)
			}
			if i+rep > total {
				return nil, nil, malformed("code-length repeat runs past end of length vector")
			}
			i += rep
			prev = 0
		default:
			return nil, nil, malformed("code-length symbol %d out of alphabet", sym)
		}
	}

	litLengths := lengths[:int(hlit)+257]
	distLengths := lengths[int(hlit)+257:]
	lit, err = buildHuffmanTree(litLengths)
	if err != nil {
		return nil, nil, err
	}
	dist, err = buildHuffmanTree(distLengths)
	if err != nil {
		return nil, nil, err
	}
	return lit, dist, nil
}

// runLengthDistanceEngine drives the shared literal/length/distance decode
// loop used by both fixed and dynamic blocks (RFC 1951 §3.2.5). distDecode
// abstracts over the two ways a distance symbol can arrive: a real Huffman
// decode for dynamic blocks, or 5 bits read MSB-first for fixed blocks.
func runLengthDistanceEngine(br *bitReader, win *window, emit func(byte) error, lit *huffmanTree, distDecode func() (uint32, error)) error {
	for {
		sym, err := lit.decodeSymbol(br)
		if err != nil {
			return err
		}
		switch {
		case sym <= 255:
			win.emit(byte(sym))
			if err := emit(byte(sym)); err != nil {
				return ioErr(err)
			}
		case sym == 256:
			return nil
		case sym <= 285:
			idx := sym - 257
			length := int(lengthBase[idx]) + int(br.readBitsLSBFirst(uint(lengthExtraBits[idx])))
			dsym, err := distDecode()
			if err != nil {
				return err
			}
			if dsym > 29 {
				return malformed("distance symbol %d out of alphabet", dsym)
			}
			distance := int(distBase[dsym]) + int(br.readBitsLSBFirst(uint(distExtraBits[dsym])))
			if br.err != nil {
				return unexpectedEOF(br.err)
			}
			if distance < 1 || uint64(distance) > win.available() {
				return malformed("back-reference distance %d exceeds available history %d", distance, win.available())
			}
			if length < 3 || length > 258 {
				return malformed("back-reference length %d out of range [3,258]", length)
			}
			for i := 0; i < length; i++ {
				b := win.byteAt(distance)
				win.emit(b)
				if err := emit(b); err != nil {
					return ioErr(err)
				}
			}
		default:
			return malformed("literal/length symbol %d out of alphabet", sym)
		}
	}
}
