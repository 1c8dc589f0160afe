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

// Package medium defines the Block Medium contract: the opaque, fixed-size,
// random-access byte store the engine scatters cells onto. A medium knows
// nothing about coordinates, keys, or files — it is a dumb, fixed-capacity
// backend that happens to read back as noise wherever nothing has been
// written.
package medium

import "errors"

// ErrCapacityExceeded is returned by Write when offset+len(data) would
// exceed the medium's fixed Size.
var ErrCapacityExceeded = errors.New("medium: write exceeds capacity")

// ErrClosed is returned by any operation performed on a medium after Close.
var ErrClosed = errors.New("medium: use after close")

// Capability is a single advisory feature bit a Medium implementation may
// expose. Capability flags never change the contract's correctness
// requirements; they only let a caller choose a cheaper code path (e.g.
// skip materializing a full noise buffer when Sparse is set).
type Capability uint8

const (
	// Sparse means unwritten regions cost no backing storage.
	Sparse Capability = 1 << iota
	// Truncate means the medium supports being resized after creation.
	Truncate
	// RangeRead means arbitrary (offset, length) reads are supported,
	// as opposed to only whole-medium or fixed-block reads.
	RangeRead
	// Concurrent means Read and Write may be called from multiple
	// goroutines without external synchronization.
	Concurrent
	// Seekable means offsets may be addressed in any order.
	Seekable
	// Persistent means the medium's contents survive process exit.
	Persistent
)

// Has reports whether cap includes want.
func (cap Capability) Has(want Capability) bool {
	return cap&want == want
}

// Medium is the fixed-size, random-access, byte-addressable backing store
// the engine scatters cells onto. Capacity is fixed at open; Write beyond
// Size fails with ErrCapacityExceeded. Implementations MUST ensure that
// reads of never-written addresses return bytes indistinguishable from
// uniform noise, either because the backing storage was pre-filled with
// noise or because unwritten cells are lazily emulated as a keyed
// pseudo-random stream — the engine's constant signal/noise-ratio
// guarantee depends on this.
type Medium interface {
	// Read returns exactly length bytes starting at offset. It fails if
	// offset+length exceeds Size.
	Read(offset uint64, length int) ([]byte, error)
	// Write stores data starting at offset. It fails with
	// ErrCapacityExceeded if offset+len(data) exceeds Size.
	Write(offset uint64, data []byte) error
	// Size returns the fixed capacity of the medium, in bytes.
	Size() uint64
	// Sync flushes any buffered writes to durable storage. Implementations
	// for which every write is already durable may no-op.
	Sync() error
	// Close releases any resources (file descriptors, mappings) held by
	// the medium. After Close, Read and Write return ErrClosed.
	Close() error
	// Capabilities reports the advisory feature flags this medium
	// implementation supports.
	Capabilities() Capability
}

func checkBounds(size, offset uint64, length int) error {
	if length < 0 {
		return ErrCapacityExceeded
	}
	end := offset + uint64(length)
	if end < offset || end > size {
		return ErrCapacityExceeded
	}
	return nil
}
