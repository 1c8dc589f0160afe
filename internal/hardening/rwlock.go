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

package hardening

import "sync"

// RWLock is a multi-reader/single-writer lock. It is a thin wrapper around
// sync.RWMutex, which is already writer-preferring: once a writer is
// blocked on Lock, subsequent RLock calls block behind it, so a steady
// stream of readers cannot starve a writer. Exposed as its own type so
// call sites document which engine-wide invariant (gathers vs.
// scatters/manifest publication) a given lock acquisition protects.
type RWLock struct {
	mu sync.RWMutex
}

// RLock acquires the lock for reading (concurrent gathers).
func (l *RWLock) RLock() { l.mu.RLock() }

// RUnlock releases a read lock.
func (l *RWLock) RUnlock() { l.mu.RUnlock() }

// Lock acquires the lock for writing (manifest-id allocation, manifest
// publication, key-state teardown).
func (l *RWLock) Lock() { l.mu.Lock() }

// Unlock releases a write lock.
func (l *RWLock) Unlock() { l.mu.Unlock() }
