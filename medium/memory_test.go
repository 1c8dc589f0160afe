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
	"bytes"
	"sync"
	"testing"
)

func TestMemoryWriteReadRoundTrip(t *testing.T) {
	m, err := NewMemory(1024)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("hello world")
	if err := m.Write(100, payload); err != nil {
		t.Fatal(err)
	}
	got, err := m.Read(100, len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestMemoryUnwrittenReadsLookRandom(t *testing.T) {
	m, err := NewMemory(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	a, err := m.Read(0, 4096)
	if err != nil {
		t.Fatal(err)
	}
	zero := make([]byte, 4096)
	if bytes.Equal(a, zero) {
		t.Fatal("unwritten region read back as zeros, not noise")
	}

	b, err := m.Read(0, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("unwritten region is not stable across reads")
	}
}

func TestMemoryDistinctMediaHaveDistinctNoise(t *testing.T) {
	a, err := NewMemory(4096)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMemory(4096)
	if err != nil {
		t.Fatal(err)
	}
	ra, _ := a.Read(0, 4096)
	rb, _ := b.Read(0, 4096)
	if bytes.Equal(ra, rb) {
		t.Fatal("two independently constructed media produced identical noise")
	}
}

func TestMemoryWriteRejectsOverCapacity(t *testing.T) {
	m, _ := NewMemory(16)
	if err := m.Write(10, make([]byte, 10)); err != ErrCapacityExceeded {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
}

func TestMemoryCloseRejectsFurtherUse(t *testing.T) {
	m, _ := NewMemory(16)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Read(0, 1); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestMemoryConcurrentDistinctWrites(t *testing.T) {
	m, _ := NewMemory(1 << 16)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			off := uint64(i * 16)
			if err := m.Write(off, []byte{byte(i)}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 64; i++ {
		got, err := m.Read(uint64(i*16), 1)
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != byte(i) {
			t.Fatalf("cell %d: got %d, want %d", i, got[0], i)
		}
	}
}

func TestMemoryCapabilities(t *testing.T) {
	m, _ := NewMemory(16)
	caps := m.Capabilities()
	for _, want := range []Capability{Sparse, RangeRead, Concurrent, Seekable} {
		if !caps.Has(want) {
			t.Fatalf("missing capability %v", want)
		}
	}
	if caps.Has(Persistent) {
		t.Fatal("in-memory medium should not claim persistence")
	}
}
