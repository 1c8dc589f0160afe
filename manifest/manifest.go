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

// Package manifest defines the per-file Manifest record — the sole handle
// needed (together with the engine's key state) to reconstruct a scattered
// file — and its fixed binary wire format.
package manifest

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/google/uuid"
)

// ErrMalformedManifest is returned by Decode when the input cannot be a
// valid Manifest: invalid parameter ranges, a non-finite phase scale, an
// unknown version byte, or truncated/trailing data.
var ErrMalformedManifest = errors.New("manifest: malformed manifest record")

// Version is the only manifest wire format version this package writes
// and the only one it accepts on Decode.
const Version = 1

// IDSize is the length, in bytes, of a Manifest's ID.
const IDSize = 16

// ID is the random, content-addressable identifier of a manifest.
type ID [IDSize]byte

// NewID returns a fresh, random manifest ID.
func NewID() ID {
	return ID(uuid.New())
}

// String renders the ID in standard UUID form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Manifest is the per-file record described in spec.md §3: everything
// needed, together with the engine's key state, to regenerate a file's
// topology and read its bytes back off the medium.
type Manifest struct {
	ID                ID
	LogicalSize       uint64
	ContentSeed       [32]byte
	Parameters        ParameterSet
	MediumSizeAtWrite uint64
	IntegrityRoot     [32]byte
	CreatedAt         uint64 // milliseconds since Unix epoch
}

const paramBlockSize = 8 + 1 + 8 + 8 + 1 + 4 // entropy, depth, prime, phase, redundancy, salt

func encodeParams(p ParameterSet) []byte {
	buf := make([]byte, paramBlockSize)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.EntropyRatio))
	buf[8] = p.ScatterDepth
	binary.LittleEndian.PutUint64(buf[9:17], p.TemporalPrime)
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(p.PhaseScale))
	buf[25] = p.Redundancy
	binary.LittleEndian.PutUint32(buf[26:30], p.TopologicalSalt)
	return buf
}

func decodeParams(buf []byte) (ParameterSet, error) {
	if len(buf) != paramBlockSize {
		return ParameterSet{}, ErrMalformedManifest
	}
	p := ParameterSet{
		EntropyRatio:    math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
		ScatterDepth:    buf[8],
		TemporalPrime:   binary.LittleEndian.Uint64(buf[9:17]),
		PhaseScale:      math.Float64frombits(binary.LittleEndian.Uint64(buf[17:25])),
		Redundancy:      buf[25],
		TopologicalSalt: binary.LittleEndian.Uint32(buf[26:30]),
	}
	return p, nil
}

// Encode serializes m into its fixed binary wire format: a version byte,
// the manifest ID, logical size, content seed, a length-prefixed parameter
// block, the medium size at write time, the creation timestamp, and
// finally the 32-byte integrity root.
func (m Manifest) Encode() []byte {
	params := encodeParams(m.Parameters)

	size := 1 + IDSize + 8 + 32 + 2 + len(params) + 8 + 8 + 32
	buf := make([]byte, size)
	off := 0
	buf[off] = Version
	off++
	copy(buf[off:], m.ID[:])
	off += IDSize
	binary.LittleEndian.PutUint64(buf[off:], m.LogicalSize)
	off += 8
	copy(buf[off:], m.ContentSeed[:])
	off += 32
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(params)))
	off += 2
	copy(buf[off:], params)
	off += len(params)
	binary.LittleEndian.PutUint64(buf[off:], m.MediumSizeAtWrite)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], m.CreatedAt)
	off += 8
	copy(buf[off:], m.IntegrityRoot[:])
	off += 32

	return buf
}

// Decode parses a Manifest from its wire format. It fails with
// ErrMalformedManifest on an unknown version byte, truncated or trailing
// input, or an out-of-range/non-finite parameter set.
func Decode(buf []byte) (Manifest, error) {
	const minSize = 1 + IDSize + 8 + 32 + 2 + 8 + 8 + 32
	if len(buf) < minSize {
		return Manifest{}, ErrMalformedManifest
	}
	var m Manifest
	off := 0
	if buf[off] != Version {
		return Manifest{}, ErrMalformedManifest
	}
	off++
	copy(m.ID[:], buf[off:off+IDSize])
	off += IDSize
	m.LogicalSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(m.ContentSeed[:], buf[off:off+32])
	off += 32
	paramLen := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+paramLen+8+8+32 != len(buf) {
		return Manifest{}, ErrMalformedManifest
	}
	params, err := decodeParams(buf[off : off+paramLen])
	if err != nil {
		return Manifest{}, err
	}
	m.Parameters = params
	off += paramLen
	m.MediumSizeAtWrite = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	m.CreatedAt = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(m.IntegrityRoot[:], buf[off:off+32])

	if err := m.Parameters.Validate(); err != nil {
		return Manifest{}, ErrMalformedManifest
	}
	return m, nil
}
