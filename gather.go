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

package vault

import (
	"context"
	"crypto/sha512"
	"fmt"
	"io"
	"time"

	"github.com/SnellerInc/vault/advisor"
	"github.com/SnellerInc/vault/coordinate"
	"github.com/SnellerInc/vault/internal/hardening"
	"github.com/SnellerInc/vault/manifest"
	"github.com/SnellerInc/vault/mixer"
	"github.com/SnellerInc/vault/topology"
)

// GatherByID looks up id in the engine's open-manifests index and gathers
// it. It fails with ErrManifestNotFound if the engine holds no record of
// id, which happens once the manifest has been superseded by a
// re-scatter or was never sealed by this engine.
func (e *Engine) GatherByID(ctx context.Context, id manifest.ID, w io.Writer) error {
	e.lock.RLock()
	m, ok := e.manifests[id]
	closed := e.closed
	e.lock.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return ErrManifestNotFound
	}
	return e.Gather(ctx, m, w)
}

// Gather reconstructs the file sealed in m and writes it to w. Gather is
// pure: it never writes to the medium. The full reconstructed byte
// stream is held in memory until the rolling integrity hash is verified
// against m.IntegrityRoot, so a reconstruction that fails the check is
// discarded rather than partially delivered to w.
func (e *Engine) Gather(ctx context.Context, m manifest.Manifest, w io.Writer) error {
	start := time.Now()

	e.lock.RLock()
	closed := e.closed
	e.lock.RUnlock()
	if closed {
		return ErrClosed
	}

	if err := m.Parameters.Validate(); err != nil {
		return manifest.ErrMalformedManifest
	}

	mediumSize := e.med.Size()
	if m.MediumSizeAtWrite != mediumSize {
		return fmt.Errorf("%w: medium size changed since scatter (wrote %d bytes, medium now holds %d)", ErrGather, m.MediumSizeAtWrite, mediumSize)
	}

	topo := topology.New(m.ContentSeed, m.Parameters, e.ks)
	mx := mixer.New(e.ks, e.cfg.ChunkSize)

	buf := make([]byte, 0, m.LogicalSize)
	h := sha512.New()
	var unresolved uint64

	for i := uint64(0); i < m.LogicalSize; i++ {
		if i%uint64(e.cfg.ChunkSize) == 0 {
			select {
			case <-ctx.Done():
				return ErrCancelled
			default:
			}
		}

		coord := topo.At(i, 0)
		plain, ok := e.readShards(topo, coord, i, mediumSize, m.Parameters, mx)
		if !ok {
			unresolved++
		}

		writeRollingHash(h, i, coord, plain)
		buf = append(buf, plain)
	}

	var got [32]byte
	copy(got[:], h.Sum(nil)[:32])
	if !hardening.CTEqual(got[:], m.IntegrityRoot[:]) {
		e.stats.AddGatherFailure()
		if unresolved > 0 {
			return fmt.Errorf("%w: %d byte(s) had no agreeing replica", ErrGather, unresolved)
		}
		return ErrIntegrity
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrGather, err)
	}

	e.stats.AddBytesOut(int64(len(buf)))
	e.advisor.Publish(advisor.Event{ManifestID: m.ID, Op: advisor.OpGather, Bytes: uint64(len(buf)), Latency: time.Since(start)})

	return nil
}

// readShards reconstructs logical byte i by reading every holographic
// shard scatter wrote it to and picking the value a strict majority of
// the successfully-read, successfully-unmixed shards agree on. Every
// shard is unmixed against the primary coordinate, since Scatter always
// mixes with the primary coordinate regardless of which shard address a
// copy was written to (see scatter.go). With Redundancy == 1 there is
// only one shard to read and no voting is possible; the second return
// value is then true whenever that shard was read and unmixed, and a
// corrupted medium can only be caught
// by the whole-file rolling hash check in Gather, not here.
//
// This is how scatter's real, full replication across Redundancy shards
// (rather than collision-avoidance-only replicas) pays for itself: wiping
// every primary-shard cell still leaves a majority among the surviving
// replicas for Gather to recover.
func (e *Engine) readShards(topo *topology.Topology, primary coordinate.Coordinate, i uint64, mediumSize uint64, params manifest.ParameterSet, mx *mixer.Mixer) (byte, bool) {
	var (
		values [4]byte
		counts [4]int
		n      int
	)

	for shard := uint8(0); shard < params.Redundancy; shard++ {
		c := primary
		if shard > 0 {
			c = topo.At(i, shard)
		}
		addr := coordinate.Project(c, mediumSize, e.ks)
		cell, err := e.med.Read(addr, 1)
		if err != nil {
			continue
		}
		plain, err := mx.Unmix(cell, primary)
		if err != nil {
			continue
		}

		matched := false
		for j := 0; j < n; j++ {
			if values[j] == plain[0] {
				counts[j]++
				matched = true
				break
			}
		}
		if !matched {
			values[n] = plain[0]
			counts[n] = 1
			n++
		}
	}

	if n == 0 {
		return 0, false
	}

	best := 0
	for j := 1; j < n; j++ {
		if counts[j] > counts[best] {
			best = j
		}
	}
	if params.Redundancy > 1 && counts[best]*2 <= int(params.Redundancy) {
		// No strict majority: best effort, but flag it so Gather can
		// report the byte as unresolved if the final hash disagrees.
		return values[best], false
	}
	return values[best], true
}
