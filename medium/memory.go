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

package medium

import (
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/SnellerInc/vault/internal/hardening"
)

// Memory is an in-memory Medium that never materializes its noise: cells
// that have not been written are emulated lazily as a keyed pseudo-random
// stream, so an all-at-once allocation of size bytes of real memory is
// never required. This is the "lazily emulated" alternative the medium
// contract allows in place of pre-filling the whole backing store with
// noise.
type Memory struct {
	size   uint64
	lock   hardening.RWLock
	cells  map[uint64]byte
	padK0  uint64
	padK1  uint64
	closed bool
}

// NewMemory returns a fresh in-memory medium of the given fixed size. Its
// noise pad is seeded from the system CSPRNG, independent of any engine
// key state, since the medium layer has no notion of keys.
func NewMemory(size uint64) (*Memory, error) {
	seed, err := hardening.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	return &Memory{
		size:  size,
		cells: make(map[uint64]byte),
		padK0: binary.LittleEndian.Uint64(seed[0:8]),
		padK1: binary.LittleEndian.Uint64(seed[8:16]),
	}, nil
}

func (m *Memory) noiseAt(offset uint64) byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], offset)
	return byte(siphash.Hash(m.padK0, m.padK1, buf[:]))
}

// Read implements Medium.
func (m *Memory) Read(offset uint64, length int) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if err := checkBounds(m.size, offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		off := offset + uint64(i)
		if b, ok := m.cells[off]; ok {
			out[i] = b
		} else {
			out[i] = m.noiseAt(off)
		}
	}
	return out, nil
}

// Write implements Medium.
func (m *Memory) Write(offset uint64, data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := checkBounds(m.size, offset, len(data)); err != nil {
		return err
	}
	for i, b := range data {
		m.cells[offset+uint64(i)] = b
	}
	return nil
}

// Size implements Medium.
func (m *Memory) Size() uint64 { return m.size }

// Sync implements Medium. Memory holds no buffered state beyond the cell
// map itself, so Sync is a no-op.
func (m *Memory) Sync() error { return nil }

// Close implements Medium.
func (m *Memory) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	m.cells = nil
	return nil
}

// Capabilities implements Medium.
func (m *Memory) Capabilities() Capability {
	return Sparse | RangeRead | Concurrent | Seekable
}
