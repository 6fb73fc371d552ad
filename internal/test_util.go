// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package internal holds helpers shared by this module's test files that
// have no other home. It carries no decoding logic of its own.
package internal

// FirstN returns at most the first n bytes of b, for use in test failure
// messages where printing an entire mismatched buffer would be useless.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
