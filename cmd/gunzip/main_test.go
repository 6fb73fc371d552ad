// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package main_test

import (
	"bytes"
	"compress/gzip"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cosnicolaou/gunzip/internal"
)

// writeGzipFile writes data to path as a single gzip member, playing the
// role the teacher's internal.CreateBzipFile plays in its own
// cmd/pbzip2/main_test.go (there, shelling out to the real bzip2 binary;
// here, the standard library's own encoder is a perfectly good reference
// writer, so there is nothing to shell out to).
func writeGzipFile(t *testing.T, path string, name string, data []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		t.Fatal(err)
	}
	w.Name = name
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

// gunzipCmd runs this module's CLI exactly as a user would invoke it,
// mirroring the teacher's own pbzipCmd in cmd/pbzip2/main_test.go.
func gunzipCmd(filename string) ([]byte, string, error) {
	ifile := filename + ".gz"
	ofile := filename + ".test"
	cmd := exec.Command("go", "run", ".", "gunzip",
		"--progress=false", "--output="+ofile, ifile,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, string(output), err
	}
	data, err := os.ReadFile(ofile)
	return data, string(output), err
}

func TestCmd(t *testing.T) {
	tmpdir := t.TempDir()

	rnd := rand.New(rand.NewSource(1))
	random := make([]byte, 800*1024)
	rnd.Read(random)

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"800KB1", random},
	} {
		filename := filepath.Join(tmpdir, tc.name)
		writeGzipFile(t, filename+".gz", "", tc.data)
		data, out, err := gunzipCmd(filename)
		if err != nil {
			t.Fatalf("%v: %v: %v", tc.name, out, err)
		}
		if got, want := data, tc.data; !bytes.Equal(got, want) {
			t.Errorf("%v: got %v, want %v", tc.name, internal.FirstN(20, got), internal.FirstN(20, want))
		}
	}
}

// TestCmdUsesEmbeddedName verifies spec.md §6's default output destination:
// when -output is omitted, the gzip member's own FNAME is used instead of
// writing to stdout.
func TestCmdUsesEmbeddedName(t *testing.T) {
	tmpdir := t.TempDir()
	ifile := filepath.Join(tmpdir, "greeting.gz")
	writeGzipFile(t, ifile, "greeting.txt", []byte("hello, world"))

	cmd := exec.Command("go", "run", ".", "gunzip", "--progress=false", ifile)
	cmd.Dir = tmpdir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%v: %v", string(output), err)
	}
	data, err := os.ReadFile(filepath.Join(tmpdir, "greeting.txt"))
	if err != nil {
		t.Fatalf("expected output at the embedded FNAME: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("got %q, want %q", data, "hello, world")
	}
}

func TestErrors(t *testing.T) {
	tmpdir := t.TempDir()

	empty := filepath.Join(tmpdir, "empty")
	if err := os.WriteFile(empty+".gz", nil, 0600); err != nil {
		t.Fatal(err)
	}
	_, out, err := gunzipCmd(empty)
	if err == nil || !strings.Contains(out, "truncated header") {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}

	hello := filepath.Join(tmpdir, "hello")
	writeGzipFile(t, hello+".gz", "", []byte("hello world\n"))

	data, err := os.ReadFile(hello + ".gz")
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-5] ^= 0xff // perturb a CRC-32 trailer byte

	corrupt := hello + "-corrupt"
	if err := os.WriteFile(corrupt+".gz", data, 0600); err != nil {
		t.Fatal(err)
	}

	_, out, err = gunzipCmd(corrupt)
	if err == nil || !strings.Contains(out, "CRC-32 mismatch") {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}
}
