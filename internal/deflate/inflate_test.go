// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate_test

import (
	"bytes"
	"compress/flate"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/cosnicolaou/gunzip/internal"
	"github.com/cosnicolaou/gunzip/internal/deflate"
)

// encode runs the Go standard library's DEFLATE encoder at the given
// compression level, producing a reference bitstream this package's
// from-scratch decoder must reproduce byte for byte. This mirrors the
// teacher's own ExampleReader in reader_test.go, which decompresses a
// fixture produced by the standard library's compress/bzip2 test data
// rather than hand-maintaining compressed fixtures in this repository.
func encode(t *testing.T, level int, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func roundTrip(t *testing.T, level int, data []byte) {
	t.Helper()
	compressed := encode(t, level, data)
	var out bytes.Buffer
	inf := deflate.NewInflater()
	if err := inf.Inflate(bytes.NewReader(compressed), &out); err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Errorf("round trip mismatch: got %d bytes (starts %v), want %d bytes (starts %v)",
			out.Len(), internal.FirstN(16, out.Bytes()), len(data), internal.FirstN(16, data))
	}
}

func TestInflateRoundTrip(t *testing.T) {
	longRun := bytes.Repeat([]byte{'x'}, 300) // forces length=258-class matches
	repeatingText := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	rnd := rand.New(rand.NewSource(1))
	random := make([]byte, 5000)
	rnd.Read(random)

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single-byte", []byte("x")},
		{"short-ascii", []byte("hello, world")},
		{"long-run", longRun},
		{"repeating-text", []byte(repeatingText)},
		{"binary-random", random},
	}
	for _, tc := range cases {
		for _, level := range []int{flate.NoCompression, flate.BestSpeed, flate.DefaultCompression, flate.BestCompression} {
			t.Run(tc.name, func(t *testing.T) {
				roundTrip(t, level, tc.data)
			})
		}
	}
}

func TestInflateCrossBlockBackReference(t *testing.T) {
	// compress/flate emits multiple blocks once input crosses its internal
	// buffering thresholds; a large, highly repetitive input exercises
	// back-references whose source bytes were emitted in an earlier block,
	// which only the sliding window (not a per-block buffer) can satisfy.
	data := bytes.Repeat([]byte("abcdefgh"), 100000)
	roundTrip(t, flate.BestCompression, data)
}

func TestInflateStatsReportsBlocks(t *testing.T) {
	compressed := encode(t, flate.BestCompression, []byte("hello, world, hello, world, hello, world"))
	inf := deflate.NewInflater()
	inf.EnableStats()
	var out bytes.Buffer
	if err := inf.Inflate(bytes.NewReader(compressed), &out); err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	stats := inf.StatsResult()
	if stats == nil || len(stats.Blocks) == 0 {
		t.Fatal("expected at least one block in Stats")
	}
	last := stats.Blocks[len(stats.Blocks)-1]
	if !last.Final {
		t.Errorf("last block Final = false, want true")
	}
	if last.CompressedBits == 0 {
		t.Errorf("CompressedBits = 0, want at least the 3-bit block header")
	}
}

func TestInflateTruncatedStreamIsAnError(t *testing.T) {
	compressed := encode(t, flate.BestCompression, []byte(strings.Repeat("z", 1000)))
	truncated := compressed[:len(compressed)-4]
	inf := deflate.NewInflater()
	var out bytes.Buffer
	err := inf.Inflate(bytes.NewReader(truncated), &out)
	if err == nil {
		t.Fatal("expected an error decoding a truncated stream")
	}
}

func TestInflatePropagatesWriterError(t *testing.T) {
	compressed := encode(t, flate.BestSpeed, []byte("some data that will be rejected by the sink"))
	inf := deflate.NewInflater()
	err := inf.Inflate(bytes.NewReader(compressed), failingWriter{})
	if err == nil {
		t.Fatal("expected the sink's error to propagate")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}
