// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cosnicolaou/gunzip/internal/deflate"
)

// Reader decompresses a gzip stream (RFC 1952), transparently spanning
// concatenated members the way gzip(1) and the standard library's
// compress/gzip do. It is a single-shot, synchronous reader: there is no
// concurrent block decode here, unlike the teacher's bzip2 Reader, because
// a DEFLATE stream carries no scannable block-boundary marker for a
// scanner to split work on (see DESIGN.md).
type Reader struct {
	Header

	r           *bufio.Reader
	inf         *deflate.Inflater
	multistream bool

	pending bytes.Buffer
	err     error
}

// ReaderOption configures a Reader at construction, mirroring the
// functional-options pattern the teacher uses for its own
// DecompressorOption/ScannerOption (see ../reader.go).
type ReaderOption func(*Reader)

// WithStats enables per-block bookkeeping from the very first member
// onward. Passing it to Multistream-style post-construction EnableStats
// instead would miss whichever member NewReader has already decoded by
// the time the caller gets a *Reader back.
func WithStats() ReaderOption {
	return func(z *Reader) { z.inf.EnableStats() }
}

// NewReader returns a Reader for the gzip member at the start of r, having
// already parsed and validated its header. Header is populated from that
// first member immediately, matching compress/gzip's NewReader contract.
func NewReader(r io.Reader, opts ...ReaderOption) (*Reader, error) {
	z := &Reader{
		r:           bufio.NewReader(r),
		inf:         deflate.NewInflater(),
		multistream: true,
	}
	for _, opt := range opts {
		opt(z)
	}
	if err := z.readMember(); err != nil {
		return nil, err
	}
	return z, nil
}

// Multistream controls whether Read transparently continues into
// subsequent concatenated gzip members once the current one is exhausted,
// or stops at the first member's end. It defaults to true. The name and
// behavior match the standard library's compress/gzip.Reader.Multistream
// so callers already familiar with it need no new mental model.
func (z *Reader) Multistream(ok bool) {
	z.multistream = ok
}

// StatsResult returns the statistics gathered since WithStats was passed to
// NewReader, or nil if it wasn't.
func (z *Reader) StatsResult() *deflate.Stats {
	return z.inf.StatsResult()
}

// readMember parses the next member's header into z.Header, decompresses
// its DEFLATE payload in full, and verifies the trailing CRC-32/ISIZE
// against what was actually produced.
func (z *Reader) readMember() error {
	hdr, err := readHeader(z.r)
	if err != nil {
		return err
	}
	z.Header = *hdr

	cw := &crcWriter{}
	z.pending.Reset()
	if err := z.inf.Inflate(z.r, io.MultiWriter(&z.pending, cw)); err != nil {
		return err
	}

	var trailer [8]byte
	if _, err := io.ReadFull(z.r, trailer[:]); err != nil {
		return &Error{Kind: BadTrailer, Msg: "truncated trailer", Err: err}
	}
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantISize := binary.LittleEndian.Uint32(trailer[4:8])
	if cw.crc != wantCRC {
		return &Error{Kind: BadTrailer, Msg: fmt.Sprintf("CRC-32 mismatch: calculated=%#08x stored=%#08x", cw.crc, wantCRC)}
	}
	if cw.isize != wantISize {
		return &Error{Kind: BadTrailer, Msg: fmt.Sprintf("ISIZE mismatch: calculated=%d stored=%d", cw.isize, wantISize)}
	}
	return nil
}

// Read implements io.Reader, draining the current member's decompressed
// output and, once exhausted, either starting the next concatenated member
// (if Multistream is enabled, the default) or returning io.EOF.
func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	for z.pending.Len() == 0 {
		// Anything after the last member that does not start with the gzip
		// magic bytes is left unread and ends the stream.
		next, err := z.r.Peek(2)
		if err != nil || next[0] != magic0 || next[1] != magic1 {
			z.err = io.EOF
			return 0, io.EOF
		}
		if !z.multistream {
			z.err = io.EOF
			return 0, io.EOF
		}
		if err := z.readMember(); err != nil {
			z.err = err
			return 0, err
		}
	}
	return z.pending.Read(p)
}
