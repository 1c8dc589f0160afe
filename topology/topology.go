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

// Package topology generates the content-seeded, per-file sequence of
// dimensional coordinates that the scatter/gather pipeline writes a file's
// logical bytes to and reads them back from.
package topology

import (
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"

	"github.com/SnellerInc/vault/coordinate"
	"github.com/SnellerInc/vault/keystate"
	"github.com/SnellerInc/vault/manifest"
)

// PreviewSize is the number of leading bytes of a file's content used to
// seed its topology.
const PreviewSize = 4096

// ContentSeed hashes up to PreviewSize bytes of a file's content into the
// 32-byte seed that keys its topology.
func ContentSeed(preview []byte) [32]byte {
	if len(preview) > PreviewSize {
		preview = preview[:PreviewSize]
	}
	return blake2b.Sum256(preview)
}

// EpochBucketFunc returns the current coarse (per-hour, by default)
// temporal bucket used to seed the Temporal field of generated
// coordinates. It is a variable (rather than a direct time.Now call) so
// tests can pin it and so the re-scatter staleness heuristic can reuse the
// exact same bucketing function.
var EpochBucketFunc = defaultEpochBucket

func defaultEpochBucket() uint64 {
	return uint64(nowUnixMilli()) / (60 * 60 * 1000)
}

// Topology generates the lazy, restartable sequence of coordinates for one
// file's logical bytes, given the file's content seed and ParameterSet.
// Two Topology values constructed from the same (contentSeed, params, ks)
// produce bitwise-identical coordinates for every (index, shard) pair —
// this is what makes gather able to regenerate scatter's exact layout from
// nothing but the manifest and the key state.
type Topology struct {
	contentSeed [32]byte
	params      manifest.ParameterSet
	ks          *keystate.State
}

// New returns a Topology keyed by contentSeed and params.
func New(contentSeed [32]byte, params manifest.ParameterSet, ks *keystate.State) *Topology {
	return &Topology{contentSeed: contentSeed, params: params, ks: ks}
}

// Len returns the total number of coordinates in the sequence for a file
// of the given logical size: one coordinate per logical byte per shard
// (primary plus replicas).
func (t *Topology) Len(logicalSize uint64) uint64 {
	return logicalSize * uint64(t.params.Redundancy)
}

// msg concatenates the content seed, the logical index, the holographic
// shard index, and an optional disambiguating suffix into the byte string
// hashed for a given field. Folding shard in here (rather than leaving it
// to the Holographic coordinate field alone) is what makes each replica
// shard address a genuinely distinct physical cell: without it, every
// shard of the same logical byte would project to the same address and
// redundancy would buy nothing.
func (t *Topology) msg(suffix string, index uint64, shard uint8) []byte {
	buf := make([]byte, 32+8+1+len(suffix))
	copy(buf, t.contentSeed[:])
	binary.LittleEndian.PutUint64(buf[32:], index)
	buf[40] = shard
	copy(buf[41:], suffix)
	return buf
}

func keyed(sub [32]byte, msg []byte) uint64 {
	k0 := binary.LittleEndian.Uint64(sub[0:8])
	k1 := binary.LittleEndian.Uint64(sub[8:16])
	return siphash.Hash(k0, k1, msg)
}

// At returns the coordinate for logical byte index i and holographic
// shard shard (0 = primary, 1..Redundancy-1 = replicas). It is a pure
// function of (t.contentSeed, t.params, t.ks, i, shard), so the sequence
// can be regenerated identically from the manifest alone.
func (t *Topology) At(i uint64, shard uint8) coordinate.Coordinate {
	spatial := keyed(t.ks.Spatial, t.msg("", i, shard))
	semantic := keyed(t.ks.Semantic, t.msg("", i, shard))
	entropic := uint32(keyed(t.ks.Entropic, t.msg("e", i, shard)))
	fractalRaw := keyed(t.ks.Fractal, t.msg("f", i, shard))
	phaseRaw := keyed(t.ks.Phase, t.msg("phase", i, shard))

	frac := uint8(fractalRaw % uint64(t.params.ScatterDepth+1))
	fraction := float64(phaseRaw) / math.MaxUint64
	phase := math.Mod(t.params.PhaseScale*fraction*2*math.Pi, 2*math.Pi)

	return coordinate.Coordinate{
		Spatial:     spatial,
		Temporal:    EpochBucketFunc(),
		Entropic:    entropic,
		Semantic:    semantic,
		Fractal:     frac,
		Phase:       phase,
		Topological: t.params.TopologicalSalt,
		Holographic: shard,
	}
}

// WithFractalBump returns a copy of c with Fractal incremented by delta,
// clamped to ScatterDepth. The pipeline calls this to derive a new probe
// coordinate after a collision, without disturbing any other field.
func (t *Topology) WithFractalBump(c coordinate.Coordinate, delta int) coordinate.Coordinate {
	f := int(c.Fractal) + delta
	if f < 0 {
		f = 0
	}
	if f > int(t.params.ScatterDepth) {
		f = int(t.params.ScatterDepth)
	}
	c.Fractal = uint8(f)
	return c
}
