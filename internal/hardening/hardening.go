// Copyright (C) 2026 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package hardening provides the constant-time comparison, overflow-checked
// arithmetic, bounded-allocation and zeroizing-buffer primitives that every
// crypto-bearing component of the vault is required to go through.
package hardening

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/exp/constraints"
)

// ErrInputTooLarge is returned by BoundedRead when the source has more than
// max bytes available.
var ErrInputTooLarge = errors.New("hardening: input exceeds bounded read limit")

// ErrOverflow is returned by SafeAdd/SafeMul when the operation would wrap.
var ErrOverflow = errors.New("hardening: arithmetic overflow")

// CTEqual reports whether a and b hold the same bytes. The comparison takes
// time that depends only on len(a) and len(b), never on their contents, so
// it leaks length but nothing about the values being compared.
func CTEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// CTSelect returns a if cond is true and b otherwise, without branching on
// cond in a way that depends on the byte contents of a or b. a and b must
// have equal length; the result is a freshly allocated slice.
func CTSelect(cond bool, a, b []byte) []byte {
	if len(a) != len(b) {
		panic("hardening: CTSelect operands must have equal length")
	}
	c := 0
	if cond {
		c = 1
	}
	out := make([]byte, len(a))
	subtle.ConstantTimeCopy(c, out, a)
	subtle.ConstantTimeCopy(1-c, out, b)
	return out
}

// BoundedRead returns a copy of src, failing with ErrInputTooLarge if src
// holds more than max bytes. It never allocates more than max bytes.
func BoundedRead(src []byte, max int) ([]byte, error) {
	if len(src) > max {
		return nil, ErrInputTooLarge
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// SafeAdd returns a+b, or ErrOverflow if the sum would wrap around the
// range of T.
func SafeAdd[T constraints.Unsigned](a, b T) (T, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SafeMul returns a*b, or ErrOverflow if the product would wrap around the
// range of T.
func SafeMul[T constraints.Unsigned](a, b T) (T, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := a * b
	if prod/a != b {
		return 0, ErrOverflow
	}
	return prod, nil
}

// ZeroizingBuffer is a byte buffer that guarantees its contents are
// overwritten with zeroes once it is no longer needed, on every exit path
// including panics, when used as:
//
//	zb := NewZeroizingBuffer(n)
//	defer zb.Zero()
//
// It exists so that key material and intermediate keystream bytes don't
// linger in memory past their useful lifetime.
type ZeroizingBuffer struct {
	buf []byte
}

// NewZeroizingBuffer allocates a ZeroizingBuffer of the given size.
func NewZeroizingBuffer(size int) *ZeroizingBuffer {
	return &ZeroizingBuffer{buf: make([]byte, size)}
}

// Bytes returns the underlying buffer. The caller must not retain it past
// a call to Zero.
func (z *ZeroizingBuffer) Bytes() []byte {
	return z.buf
}

// Zero overwrites the buffer with zeroes. Safe to call multiple times.
func (z *ZeroizingBuffer) Zero() {
	for i := range z.buf {
		z.buf[i] = 0
	}
}

// Zero overwrites b with zeroes in place. Used to scrub sub-keys and other
// secret slices that weren't allocated through a ZeroizingBuffer.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
