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

// Package coordinate implements the 64-byte dimensional coordinate: its
// fixed binary layout and the keyed projection from a coordinate to a
// physical address on the block medium.
package coordinate

import (
	"encoding/binary"
	"errors"
	"math"
	"math/bits"

	"github.com/dchest/siphash"

	"github.com/SnellerInc/vault/keystate"
)

// Size is the exact encoded length of a Coordinate, in bytes.
const Size = 64

// MaxFractal is the largest permitted value of the Fractal (recursion
// depth) field.
const MaxFractal = 8

// ErrMalformedCoordinate is returned by Decode when the input cannot be a
// valid Coordinate.
var ErrMalformedCoordinate = errors.New("coordinate: malformed dimensional coordinate")

// Coordinate is the 64-byte, eight-field locator used to address a single
// logical byte on the block medium. Field order (little-endian) is fixed
// and is also the wire layout:
// spatial, temporal, entropic, semantic, fractal, phase, topological,
// holographic, then 22 bytes of reserved padding.
type Coordinate struct {
	Spatial     uint64
	Temporal    uint64
	Entropic    uint32
	Semantic    uint64
	Fractal     uint8
	Phase       float64
	Topological uint32
	Holographic uint8
}

const (
	offSpatial     = 0
	offTemporal    = offSpatial + 8
	offEntropic    = offTemporal + 8
	offSemantic    = offEntropic + 4
	offFractal     = offSemantic + 8
	offPhase       = offFractal + 1
	offTopological = offPhase + 8
	offHolographic = offTopological + 4
	offPadding     = offHolographic + 1
	paddingSize    = Size - offPadding
)

// Encode writes c in its fixed 64-byte little-endian layout.
func (c Coordinate) Encode() [Size]byte {
	var out [Size]byte
	binary.LittleEndian.PutUint64(out[offSpatial:], c.Spatial)
	binary.LittleEndian.PutUint64(out[offTemporal:], c.Temporal)
	binary.LittleEndian.PutUint32(out[offEntropic:], c.Entropic)
	binary.LittleEndian.PutUint64(out[offSemantic:], c.Semantic)
	out[offFractal] = c.Fractal
	binary.LittleEndian.PutUint64(out[offPhase:], math.Float64bits(c.Phase))
	binary.LittleEndian.PutUint32(out[offTopological:], c.Topological)
	out[offHolographic] = c.Holographic
	// out[offPadding:] is left zero.
	return out
}

// Decode parses a 64-byte buffer into a Coordinate. It fails with
// ErrMalformedCoordinate if b is not exactly Size bytes, Phase is
// non-finite, or Fractal exceeds MaxFractal.
func Decode(b []byte) (Coordinate, error) {
	var c Coordinate
	if len(b) != Size {
		return c, ErrMalformedCoordinate
	}
	c.Spatial = binary.LittleEndian.Uint64(b[offSpatial:])
	c.Temporal = binary.LittleEndian.Uint64(b[offTemporal:])
	c.Entropic = binary.LittleEndian.Uint32(b[offEntropic:])
	c.Semantic = binary.LittleEndian.Uint64(b[offSemantic:])
	c.Fractal = b[offFractal]
	c.Phase = math.Float64frombits(binary.LittleEndian.Uint64(b[offPhase:]))
	c.Topological = binary.LittleEndian.Uint32(b[offTopological:])
	c.Holographic = b[offHolographic]

	if math.IsNaN(c.Phase) || math.IsInf(c.Phase, 0) {
		return Coordinate{}, ErrMalformedCoordinate
	}
	if c.Fractal > MaxFractal {
		return Coordinate{}, ErrMalformedCoordinate
	}
	return c, nil
}

// prf is the keyed pseudo-random function used throughout projection: a
// siphash-2-4 keyed by the low 16 bytes of a 32-byte sub-key.
func prf(subKey [keystate.SubKeySize]byte, msg []byte) uint64 {
	k0 := binary.LittleEndian.Uint64(subKey[0:8])
	k1 := binary.LittleEndian.Uint64(subKey[8:16])
	return siphash.Hash(k0, k1, msg)
}

// Project deterministically maps c to a physical address in [0, mediumSize)
// given the engine's key state:
//  1. base = PRF(spatial-key, spatial||temporal||semantic)
//  2. rotate base left by ⌊phase·2⁶³/π⌋ mod 64 bit-positions
//  3. xor with PRF(topological-key, topological)
//  4. reduce to [0, mediumSize) via the unbiased mapping
//     floor(result·mediumSize / 2⁶⁴) — no modulo is used against the
//     non-power-of-two mediumSize, so there is no modulo bias.
//
// Project is pure and deterministic in (c, mediumSize, ks); the same
// construction is used on both the scatter and gather paths.
func Project(c Coordinate, mediumSize uint64, ks *keystate.State) uint64 {
	var msg [24]byte
	binary.LittleEndian.PutUint64(msg[0:8], c.Spatial)
	binary.LittleEndian.PutUint64(msg[8:16], c.Temporal)
	binary.LittleEndian.PutUint64(msg[16:24], c.Semantic)
	base := prf(ks.Spatial, msg[:])

	rotAmount := int(uint64(c.Phase*(1<<63)/math.Pi) % 64)
	rotated := bits.RotateLeft64(base, rotAmount)

	var topoMsg [4]byte
	binary.LittleEndian.PutUint32(topoMsg[:], c.Topological)
	rotated ^= prf(ks.Topological, topoMsg[:])

	if mediumSize == 0 {
		return 0
	}
	hi, _ := bits.Mul64(rotated, mediumSize)
	return hi
}
