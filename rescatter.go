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
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/SnellerInc/vault/advisor"
	"github.com/SnellerInc/vault/heap"
	"github.com/SnellerInc/vault/manifest"
	"github.com/SnellerInc/vault/topology"
)

const hourMillis = 60 * 60 * 1000

// staleCandidate is one entry in the background task's staleness heap: a
// manifest ID paired with the creation timestamp its temporal bucket is
// derived from, so the oldest manifests are re-scattered first.
type staleCandidate struct {
	id        manifest.ID
	createdAt uint64
}

// rescatterLoop is the single cooperative background task started by Open
// and cancelled by Close. It never surfaces failures to callers: every
// error is logged and counted, and the previous manifest is left in place
// until a replacement is durable.
func (e *Engine) rescatterLoop() {
	defer e.rescatterWG.Done()

	ticker := time.NewTicker(e.cfg.RescatterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.rescatterDone:
			return
		case <-ticker.C:
			e.rescatterPass()
		}
	}
}

// rescatterPass re-scatters every manifest whose temporal bucket is stale,
// oldest first, stopping (without interrupting whichever file is already
// in flight) as soon as the engine starts shutting down.
func (e *Engine) rescatterPass() {
	candidates := e.staleManifests()

	for len(candidates) > 0 {
		select {
		case <-e.rescatterDone:
			return
		default:
		}

		next := heap.PopSlice(&candidates, func(a, b staleCandidate) bool {
			return a.createdAt < b.createdAt
		})
		e.rescatterOne(next.id)
	}
}

// staleManifests snapshots the open-manifests index and returns every
// manifest whose bucket is at least Config.StalenessBuckets behind the
// current bucket, ordered oldest-first via the teacher's generic heap.
func (e *Engine) staleManifests() []staleCandidate {
	nowBucket := topology.EpochBucketFunc()

	e.lock.RLock()
	candidates := make([]staleCandidate, 0, len(e.manifests))
	for id, m := range e.manifests {
		bucket := temporalBucket(m)
		if bucket >= nowBucket {
			continue
		}
		if nowBucket-bucket >= e.cfg.StalenessBuckets {
			candidates = append(candidates, staleCandidate{id: id, createdAt: m.CreatedAt})
		}
	}
	e.lock.RUnlock()

	less := func(a, b staleCandidate) bool { return a.createdAt < b.createdAt }
	heap.OrderSlice(candidates, less)
	sorted := make([]staleCandidate, 0, len(candidates))
	for len(candidates) > 0 {
		sorted = append(sorted, heap.PopSlice(&candidates, less))
	}
	return sorted
}

// temporalBucket derives the hour-granularity bucket a manifest ages
// through, offsetting CreatedAt by a per-manifest jitter mixed from its
// ParameterSet's TemporalPrime and its own ID. Without this jitter, every
// file scattered with the same ParameterSet in the same wall-clock hour
// would go stale in the same pass and hit rescatterOne as a synchronized
// burst; mixing in TemporalPrime spreads that burst across the hour even
// though many manifests share the same prime.
func temporalBucket(m manifest.Manifest) uint64 {
	idLow := binary.LittleEndian.Uint64(m.ID[:8])
	jitter := (idLow ^ m.Parameters.TemporalPrime) % hourMillis
	return (m.CreatedAt + jitter) / hourMillis
}

// rescatterOne gathers the manifest named by id entirely in memory,
// re-scatters its bytes under a fresh manifest, and swaps the index entry
// only once the replacement is sealed. Files too large for an in-memory
// pass are skipped, matching the bounded-buffer limit on this path; a
// gather or scatter failure drops the attempt and leaves the existing
// manifest exactly as it was.
//
// The swap is not reflected in the on-disk journal: the new manifest is
// appended by Scatter itself, but the old ID's journal record is never
// tombstoned, so every later journal replay on Open restores the
// superseded manifest alongside the new one. This is an accepted limitation of an
// append-only, non-compacting journal; see DESIGN.md.
func (e *Engine) rescatterOne(id manifest.ID) {
	ctx := context.Background()

	e.lock.RLock()
	old, ok := e.manifests[id]
	e.lock.RUnlock()
	if !ok {
		return
	}

	if old.LogicalSize > uint64(e.cfg.MemoryCap) {
		e.logf("vault: rescatter skipped manifest %s: %d bytes exceeds in-memory pass limit", old.ID, old.LogicalSize)
		return
	}

	var buf bytes.Buffer
	if err := e.Gather(ctx, old, &buf); err != nil {
		e.stats.AddRescatterFailure()
		e.logf("vault: rescatter could not gather manifest %s: %v", old.ID, err)
		return
	}

	fresh, err := e.Scatter(ctx, "rescatter:"+old.ID.String(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		e.stats.AddRescatterFailure()
		e.logf("vault: rescatter could not re-seal manifest %s: %v", old.ID, err)
		return
	}

	e.lock.Lock()
	delete(e.manifests, old.ID)
	e.manifests[fresh.ID] = fresh
	e.lock.Unlock()

	e.stats.AddRescatter()
	e.advisor.Publish(advisor.Event{ManifestID: fresh.ID, Op: advisor.OpRescatter, Bytes: fresh.LogicalSize})
}
