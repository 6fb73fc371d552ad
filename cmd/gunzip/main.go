// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff/v3"
	"github.com/cosnicolaou/gunzip/gzip"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/term"
)

type commonFlags struct {
	Verbose bool `subcmd:"verbose,false,verbose debug/trace information"`
}

type gunzipFlags struct {
	commonFlags
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
	OutputFile  string `subcmd:"output,,'output file or s3 path, omit to use the file name stored in the gzip header or stdout if there is none'"`
}

type catFlags struct {
	commonFlags
}

type inspectFlags struct {
	commonFlags
}

var cmdSet *subcmd.CommandSet

func init() {
	gunzipCmd := subcmd.NewCommand("gunzip",
		subcmd.MustRegisterFlagStruct(&gunzipFlags{}, nil, nil),
		gunzip, subcmd.ExactlyNumArguments(1))
	gunzipCmd.Document(`decompress a gzip file. Files may be local, on S3 or a URL.`)

	catCmd := subcmd.NewCommand("cat",
		subcmd.MustRegisterFlagStruct(&catFlags{}, nil, nil),
		cat, subcmd.AtLeastNArguments(0))
	catCmd.Document(`decompress gzip files, or stdin, to stdout.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`print the header fields and per-block statistics of one or more gzip files without writing their decompressed contents anywhere.`)

	cmdSet = subcmd.NewCommandSet(gunzipCmd, catCmd, inspectCmd)
	cmdSet.Document(`decompress and inspect gzip files. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

// openFileOrURL opens name for reading, treating an http(s) prefix as a
// remote fetch (retried with backoff against transient failures) and
// anything else as a path the grailbio file package can resolve, including
// s3:// URIs once s3file's implementation is registered in init.
func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		var resp *http.Response
		fetch := func() error {
			r, err := http.Get(name)
			if err != nil {
				return err
			}
			if r.StatusCode >= 500 {
				r.Body.Close()
				return fmt.Errorf("server error fetching %v: %v", name, r.Status)
			}
			resp = r
			return nil
		}
		bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		if err := backoff.Retry(fetch, bo); err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

// progress drives a progress bar off of how much compressed input has been
// consumed, sampled every 200ms; gzip's Reader has no per-block
// callback the way the teacher's Decompressor does (there are no
// independently scannable blocks to report on), so progress here is
// measured against the compressed source's read position instead.
func progress(ctx context.Context, wr io.Writer, size int64, src *countingReader, done <-chan struct{}) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var last int64
	for {
		select {
		case <-ticker.C:
			n := src.count()
			bar.Add64(n - last)
			last = n
		case <-done:
			n := src.count()
			bar.Add64(n - last)
			fmt.Fprintf(wr, "\n")
			return
		case <-ctx.Done():
			return
		}
	}
}

type countingReader struct {
	mu sync.Mutex
	r  io.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.mu.Lock()
	c.n += int64(n)
	c.mu.Unlock()
	return n, err
}

func (c *countingReader) count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// openMember wraps src in an optional counting reader for progress
// tracking, then parses its gzip header. The header (in particular
// zr.Name) is available to the caller before any bytes are decompressed,
// so a default output destination can be chosen from it.
func openMember(src io.Reader, size int64, showProgress bool) (zr *gzip.Reader, cr *countingReader, err error) {
	if showProgress && size > 0 {
		cr = &countingReader{r: src}
		src = cr
	}
	zr, err = gzip.NewReader(src)
	if err != nil {
		return nil, nil, err
	}
	return zr, cr, nil
}

// copyWithProgress decompresses zr to dst, driving a progress bar off cr
// (the same counting reader openMember wrapped the compressed source in)
// for as long as the copy runs. cr is nil when progress reporting wasn't
// requested or the compressed source's size is unknown.
func copyWithProgress(ctx context.Context, zr *gzip.Reader, size int64, cr *countingReader, dst io.Writer) error {
	var wg sync.WaitGroup
	done := make(chan struct{})
	if cr != nil {
		isTTY := term.IsTerminal(int(os.Stdout.Fd()))
		progressWr := os.Stdout
		if dst == os.Stdout || !isTTY {
			progressWr = os.Stderr
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			progress(ctx, progressWr, size, cr, done)
		}()
	}
	_, err := io.Copy(dst, zr)
	close(done)
	wg.Wait()
	return err
}

func gunzip(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*gunzipFlags)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)

	src, size, readerCleanup, err := openFileOrURL(ctx, args[0])
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	zr, cr, err := openMember(src, size, cl.ProgressBar)
	if err != nil {
		return err
	}

	// The header's embedded FNAME is the default output destination when
	// -output wasn't given, matching gunzip(1)'s own behavior.
	outputFile := cl.OutputFile
	if outputFile == "" && zr.Name != "" {
		outputFile = zr.Name
	}
	dst, writerCleanup, err := createFile(ctx, outputFile)
	if err != nil {
		return err
	}

	errs := &errors.M{}
	errs.Append(copyWithProgress(ctx, zr, size, cr, dst))
	errs.Append(writerCleanup(ctx))
	return errs.Err()
}

func cat(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)

	if len(args) == 0 {
		zr, _, err := openMember(os.Stdin, 0, false)
		if err != nil {
			return err
		}
		return copyWithProgress(ctx, zr, 0, nil, os.Stdout)
	}
	errs := &errors.M{}
	for _, name := range args {
		src, _, readerCleanup, err := openFileOrURL(ctx, name)
		if err != nil {
			errs.Append(err)
			continue
		}
		zr, _, err := openMember(src, 0, false)
		if err != nil {
			errs.Append(err)
			errs.Append(readerCleanup(ctx))
			continue
		}
		errs.Append(copyWithProgress(ctx, zr, 0, nil, os.Stdout))
		errs.Append(readerCleanup(ctx))
	}
	return errs.Err()
}
