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
	"testing"
	"time"

	"github.com/SnellerInc/vault/config"
	"github.com/SnellerInc/vault/topology"
)

func TestStaleManifestsOrdersOldestFirst(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, nil)

	for i := 0; i < 3; i++ {
		m, err := e.Scatter(context.Background(), "age", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("Scatter: %v", err)
		}

		e.lock.Lock()
		mm := e.manifests[m.ID]
		mm.CreatedAt -= uint64(i+1) * hourMillis * 2
		e.manifests[m.ID] = mm
		e.lock.Unlock()
	}

	candidates := e.staleManifests()
	if len(candidates) != 3 {
		t.Fatalf("staleManifests returned %d, want 3", len(candidates))
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i-1].createdAt > candidates[i].createdAt {
			t.Fatalf("candidates not ordered oldest-first: %+v", candidates)
		}
	}
}

func TestRescatterOneReplacesManifestAndPreservesContent(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, nil)

	content := []byte("this file will be re-scattered by the background task")
	old, err := e.Scatter(context.Background(), "age", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	e.lock.Lock()
	mm := e.manifests[old.ID]
	mm.CreatedAt = 0
	e.manifests[old.ID] = mm
	e.lock.Unlock()

	e.rescatterOne(old.ID)

	e.lock.RLock()
	_, stillPresent := e.manifests[old.ID]
	e.lock.RUnlock()
	if stillPresent {
		t.Fatal("old manifest ID still present in index after rescatter")
	}

	snap := e.Statistics()
	if snap.RescatterCount != 1 {
		t.Fatalf("RescatterCount = %d, want 1", snap.RescatterCount)
	}

	e.lock.RLock()
	var found bool
	var out bytes.Buffer
	for _, m := range e.manifests {
		found = true
		if err := e.Gather(context.Background(), m, &out); err != nil {
			t.Fatalf("Gather re-scattered manifest: %v", err)
		}
	}
	e.lock.RUnlock()
	if !found {
		t.Fatal("no replacement manifest found after rescatter")
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatalf("re-scattered content = %q, want %q", out.Bytes(), content)
	}
}

func TestRescatterSkipsOversizeManifest(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, func(c *config.Config) {
		c.ChunkSize = 4
		c.MemoryCap = 8
	})

	old, err := e.Scatter(context.Background(), "big", bytes.NewReader(make([]byte, 4)))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	e.lock.Lock()
	mm := e.manifests[old.ID]
	mm.LogicalSize = 1 << 10
	e.manifests[old.ID] = mm
	e.lock.Unlock()

	e.rescatterOne(old.ID)

	snap := e.Statistics()
	if snap.RescatterCount != 0 {
		t.Fatalf("RescatterCount = %d, want 0 for an oversize skip", snap.RescatterCount)
	}
	e.lock.RLock()
	_, stillPresent := e.manifests[old.ID]
	e.lock.RUnlock()
	if !stillPresent {
		t.Fatal("oversize manifest was dropped instead of skipped")
	}
}

func TestRescatterLoopStopsOnClose(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, func(c *config.Config) {
		c.RescatterInterval = 5 * time.Millisecond
	})
	time.Sleep(20 * time.Millisecond)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEpochBucketFuncIsUsedForStaleness(t *testing.T) {
	orig := topology.EpochBucketFunc
	defer func() { topology.EpochBucketFunc = orig }()

	e, _ := openTestEngine(t, 1<<20, nil)
	m, err := e.Scatter(context.Background(), "bucketed", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	bucket := temporalBucket(m)

	topology.EpochBucketFunc = func() uint64 { return bucket }
	if candidates := e.staleManifests(); len(candidates) != 0 {
		t.Fatalf("staleManifests = %d candidates, want 0 in the same bucket", len(candidates))
	}

	topology.EpochBucketFunc = func() uint64 { return bucket + 2 }
	candidates := e.staleManifests()
	if len(candidates) != 1 {
		t.Fatalf("staleManifests = %d candidates, want 1 once the bucket has advanced", len(candidates))
	}
}
