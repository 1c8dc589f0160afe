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

package topology

import (
	"bytes"
	"math"
	"testing"

	"github.com/SnellerInc/vault/keystate"
	"github.com/SnellerInc/vault/manifest"
)

func testKeyState(t *testing.T) *keystate.State {
	t.Helper()
	ks, err := keystate.Derive(bytes.Repeat([]byte{0xab}, keystate.HybridKeySize))
	if err != nil {
		t.Fatal(err)
	}
	return ks
}

func TestContentSeedTruncates(t *testing.T) {
	small := ContentSeed([]byte("hello"))
	big := ContentSeed(bytes.Repeat([]byte("x"), PreviewSize+1000))
	if small == big {
		t.Fatal("unrelated previews produced the same seed")
	}
	exact := ContentSeed(bytes.Repeat([]byte("y"), PreviewSize))
	over := ContentSeed(append(bytes.Repeat([]byte("y"), PreviewSize), 'z'))
	if exact != over {
		t.Fatal("bytes beyond PreviewSize changed the content seed")
	}
}

func TestAtIsRestartable(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("restart me"))
	params := manifest.Default()

	a := New(seed, params, ks)
	b := New(seed, params, ks)

	for i := uint64(0); i < 100; i++ {
		if a.At(i, 0) != b.At(i, 0) {
			t.Fatalf("coordinate at index %d not restartable", i)
		}
	}
}

func TestAtVariesByIndexAndShard(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("vary me"))
	params := manifest.Default()
	params.Redundancy = 3
	topo := New(seed, params, ks)

	c0 := topo.At(5, 0)
	c1 := topo.At(6, 0)
	if c0.Spatial == c1.Spatial && c0.Semantic == c1.Semantic {
		t.Fatal("coordinates for different indices collided in both spatial and semantic")
	}

	c0shard0 := topo.At(5, 0)
	c0shard1 := topo.At(5, 1)
	if c0shard0.Holographic == c0shard1.Holographic {
		t.Fatal("shard index did not propagate to Holographic field")
	}
}

func TestAtShardsAddressDistinctCells(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("shard me"))
	params := manifest.Default()
	params.Redundancy = 4
	topo := New(seed, params, ks)

	for i := uint64(0); i < 20; i++ {
		seen := map[uint64]bool{}
		for shard := uint8(0); shard < params.Redundancy; shard++ {
			c := topo.At(i, shard)
			key := c.Spatial ^ c.Semantic
			if seen[key] {
				t.Fatalf("index %d: shard %d reproduced a prior shard's (spatial,semantic) pair; replicas would collide at the same address", i, shard)
			}
			seen[key] = true
		}
	}
}

func TestAtProducesValidCoordinates(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("valid me"))
	params := manifest.Default()
	topo := New(seed, params, ks)

	for i := uint64(0); i < 50; i++ {
		c := topo.At(i, 0)
		if c.Fractal > params.ScatterDepth {
			t.Fatalf("fractal %d exceeds scatter depth %d", c.Fractal, params.ScatterDepth)
		}
		if math.IsNaN(c.Phase) || math.IsInf(c.Phase, 0) {
			t.Fatalf("non-finite phase at index %d", i)
		}
		enc := c.Encode()
		if len(enc) != 64 {
			t.Fatalf("coordinate did not encode to 64 bytes")
		}
	}
}

func TestLen(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("length"))
	params := manifest.Default()
	params.Redundancy = 2
	topo := New(seed, params, ks)
	if got, want := topo.Len(100), uint64(200); got != want {
		t.Fatalf("Len(100) = %d, want %d", got, want)
	}
}

func TestWithFractalBumpClamps(t *testing.T) {
	ks := testKeyState(t)
	seed := ContentSeed([]byte("clamp"))
	params := manifest.Default()
	params.ScatterDepth = 2
	topo := New(seed, params, ks)
	c := topo.At(0, 0)
	c.Fractal = 2
	bumped := topo.WithFractalBump(c, 5)
	if bumped.Fractal != 2 {
		t.Fatalf("fractal not clamped: got %d", bumped.Fractal)
	}
}
