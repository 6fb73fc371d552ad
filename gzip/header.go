// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"time"
)

// Header holds the metadata carried by one gzip member's header, per RFC
// 1952 §2.3. FNAME and FCOMMENT are specified as ISO 8859-1 (Latin-1); this
// reader stores them as Go strings without charset conversion, which is a
// no-op for the ASCII subset every gzip producer in practice restricts
// itself to.
type Header struct {
	Name    string
	Comment string
	Extra   []byte
	ModTime time.Time
	OS      byte
}

// ReadHeader parses and returns a single gzip member's header from the
// front of r, without decompressing anything beyond it. Most callers want
// NewReader instead, which does this as one step of decoding a full
// member; ReadHeader exists for callers that want a member's metadata (an
// embedded filename, say) without paying for decompression at all.
func ReadHeader(r io.Reader) (*Header, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return readHeader(br)
}

// readHeader parses one gzip member header from the front of r, leaving r
// positioned at the start of the DEFLATE stream that follows it. Every
// byte consumed up to (but not including) the optional FHCRC field is
// accumulated in raw so that field can be verified against RFC 1952
// §2.3.1's CRC-16 of the header.
func readHeader(r *bufio.Reader) (*Header, error) {
	var raw bytes.Buffer

	var fixed [10]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, headerReadErr(err)
	}
	raw.Write(fixed[:])
	if fixed[0] != magic0 || fixed[1] != magic1 {
		return nil, badHeader("bad magic bytes %#02x%02x", fixed[0], fixed[1])
	}
	if fixed[2] != deflateMethod {
		return nil, &Error{Kind: Unsupported, Msg: fmt.Sprintf("compression method %d is not DEFLATE", fixed[2])}
	}
	flg := fixed[3]
	hdr := &Header{
		ModTime: time.Unix(int64(binary.LittleEndian.Uint32(fixed[4:8])), 0),
		OS:      fixed[9],
	}

	if flg&flagExtra != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(r, xlenBuf[:]); err != nil {
			return nil, headerReadErr(err)
		}
		raw.Write(xlenBuf[:])
		xlen := binary.LittleEndian.Uint16(xlenBuf[:])
		extra := make([]byte, xlen)
		if _, err := io.ReadFull(r, extra); err != nil {
			return nil, headerReadErr(err)
		}
		raw.Write(extra)
		hdr.Extra = extra
	}
	if flg&flagName != 0 {
		name, err := readCString(r, &raw)
		if err != nil {
			return nil, err
		}
		hdr.Name = name
	}
	if flg&flagComment != 0 {
		comment, err := readCString(r, &raw)
		if err != nil {
			return nil, err
		}
		hdr.Comment = comment
	}
	if flg&flagHCRC != 0 {
		var hcrc [2]byte
		if _, err := io.ReadFull(r, hcrc[:]); err != nil {
			return nil, headerReadErr(err)
		}
		want := binary.LittleEndian.Uint16(hcrc[:])
		got := uint16(crc32.ChecksumIEEE(raw.Bytes()))
		if got != want {
			return nil, badHeader("header CRC-16 mismatch: calculated=%#04x stored=%#04x", got, want)
		}
	}
	return hdr, nil
}

// readCString reads a NUL-terminated string, appending every byte read
// (including the terminator) to raw so it counts toward the header CRC.
func readCString(r *bufio.Reader, raw *bytes.Buffer) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", headerReadErr(err)
		}
		raw.WriteByte(b)
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func headerReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return badHeader("truncated header: %v", err)
	}
	return ioErr("reading gzip header", err)
}
