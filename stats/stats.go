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

// Package stats holds an open Engine's running counters. Every counter is
// an independent atomic word so concurrent scatters, gathers, and the
// background re-scatter task can update statistics without contending on
// a shared lock.
package stats

import "sync/atomic"

// Statistics accumulates counters for one open Engine. The zero value is
// ready to use. Statistics must not be copied after first use.
type Statistics struct {
	bytesIn        int64
	bytesOut       int64
	collisions     int64
	rescatterCount int64
	rescatterFail  int64
	gatherFail     int64
	capacityErrors int64
}

// AddBytesIn records n payload bytes accepted by a scatter call.
func (s *Statistics) AddBytesIn(n int64) { atomic.AddInt64(&s.bytesIn, n) }

// AddBytesOut records n payload bytes returned by a gather call.
func (s *Statistics) AddBytesOut(n int64) { atomic.AddInt64(&s.bytesOut, n) }

// AddCollision records one cell-address collision encountered during
// scatter: one for a shard's first projected address that was already used
// in the same call, and one more for each fractal-depth probe that also
// collides.
func (s *Statistics) AddCollision() { atomic.AddInt64(&s.collisions, 1) }

// AddRescatter records one file successfully re-scattered by the
// background staleness task.
func (s *Statistics) AddRescatter() { atomic.AddInt64(&s.rescatterCount, 1) }

// AddRescatterFailure records one re-scatter attempt that failed and was
// dropped without disturbing the existing manifest.
func (s *Statistics) AddRescatterFailure() { atomic.AddInt64(&s.rescatterFail, 1) }

// AddGatherFailure records one gather call whose reconstructed bytes failed
// the integrity check.
func (s *Statistics) AddGatherFailure() { atomic.AddInt64(&s.gatherFail, 1) }

// AddCapacityError records one write rejected by the medium as exceeding
// its capacity.
func (s *Statistics) AddCapacityError() { atomic.AddInt64(&s.capacityErrors, 1) }

// Snapshot is a consistent-enough (but not atomically joint) point-in-time
// read of every counter, suitable for logging or for the advisor's bounded
// event stream to attach to an event.
type Snapshot struct {
	BytesIn        int64
	BytesOut       int64
	Collisions     int64
	RescatterCount int64
	RescatterFail  int64
	GatherFail     int64
	CapacityErrors int64
}

// Snapshot returns the current value of every counter.
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		BytesIn:        atomic.LoadInt64(&s.bytesIn),
		BytesOut:       atomic.LoadInt64(&s.bytesOut),
		Collisions:     atomic.LoadInt64(&s.collisions),
		RescatterCount: atomic.LoadInt64(&s.rescatterCount),
		RescatterFail:  atomic.LoadInt64(&s.rescatterFail),
		GatherFail:     atomic.LoadInt64(&s.gatherFail),
		CapacityErrors: atomic.LoadInt64(&s.capacityErrors),
	}
}
