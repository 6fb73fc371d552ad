// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/cosnicolaou/gunzip/gzip"
)

// inspectFile decompresses name into ioutil.Discard purely to drive the
// per-block Stats the Inflater gathers, then prints the gzip header
// fields alongside a summary of the DEFLATE blocks that made up the
// stream. This mirrors the teacher's own bz2-stats command
// (cmd/pbzip2/inspect.go's bz2StatsFile), which likewise decompresses to
// /dev/null in order to report per-block bookkeeping that would otherwise
// be thrown away.
func inspectFile(ctx context.Context, name string) error {
	src, _, cleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	zr, err := gzip.NewReader(src, gzip.WithStats())
	if err != nil {
		return fmt.Errorf("%v: %v", name, err)
	}

	fmt.Printf("=== %v ===\n", name)
	fmt.Printf("name=%q comment=%q modtime=%v os=%d\n", zr.Name, zr.Comment, zr.ModTime, zr.OS)

	n, err := io.Copy(ioutil.Discard, zr)
	if err != nil {
		return fmt.Errorf("%v: %v", name, err)
	}
	fmt.Printf("decompressed %d bytes\n", n)

	fmt.Printf("Block, Type, Final, CompressedBits, Bytes\n")
	for i, b := range zr.StatsResult().Blocks {
		fmt.Printf("% 6d  %-8s  %-5v  % 14d  % 10d\n", i, b.Type, b.Final, b.CompressedBits, b.NumBytes)
	}
	return nil
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	errs := &errors.M{}
	for _, name := range args {
		errs.Append(inspectFile(ctx, name))
	}
	return errs.Err()
}
