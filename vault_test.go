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
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/SnellerInc/vault/config"
	"github.com/SnellerInc/vault/coordinate"
	"github.com/SnellerInc/vault/keystate"
	"github.com/SnellerInc/vault/manifest"
	"github.com/SnellerInc/vault/medium"
	"github.com/SnellerInc/vault/topology"
)

func testHybridKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, keystate.HybridKeySize)
}

func openTestEngine(t *testing.T, mediumSize uint64, mutate func(*config.Config)) (*Engine, medium.Medium) {
	t.Helper()
	med, err := medium.NewMemory(mediumSize)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := Open(med, testHybridKey(0x11), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, med
}

func TestScatterGatherHelloWorld(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, nil)

	m, err := e.Scatter(context.Background(), "hello", bytes.NewReader([]byte("hello world")))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if m.LogicalSize != 11 {
		t.Fatalf("LogicalSize = %d, want 11", m.LogicalSize)
	}

	var out bytes.Buffer
	if err := e.Gather(context.Background(), m, &out); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if out.String() != "hello world" {
		t.Fatalf("Gather returned %q, want %q", out.String(), "hello world")
	}
}

func TestScatterGatherRepeatedPatternNoExtraWrites(t *testing.T) {
	e, med := openTestEngine(t, 4<<20, nil)

	pattern := make([]byte, 256)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	content := bytes.Repeat(pattern, 1024) // 256 KiB

	m, err := e.Scatter(context.Background(), "pattern", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	counting := &writeCountingMedium{Medium: med}
	e.med = counting

	var out bytes.Buffer
	if err := e.Gather(context.Background(), m, &out); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatal("gathered content does not match original")
	}
	if counting.writes != 0 {
		t.Fatalf("gather issued %d medium writes, want 0", counting.writes)
	}
}

type writeCountingMedium struct {
	medium.Medium
	writes int
}

func (w *writeCountingMedium) Write(offset uint64, data []byte) error {
	w.writes++
	return w.Medium.Write(offset, data)
}

func TestConcurrentScattersGatherIndependently(t *testing.T) {
	e, _ := openTestEngine(t, 4<<20, nil)

	payloads := make([][]byte, 2)
	for i := range payloads {
		payloads[i] = make([]byte, 64<<10)
		if _, err := rand.Read(payloads[i]); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}
	}

	var wg sync.WaitGroup
	manifests := make([]manifestOrErr, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := e.Scatter(context.Background(), "concurrent", bytes.NewReader(payloads[i]))
			manifests[i] = manifestOrErr{m: m, err: err}
		}(i)
	}
	wg.Wait()

	for i, mo := range manifests {
		if mo.err != nil {
			t.Fatalf("scatter %d: %v", i, mo.err)
		}
		var out bytes.Buffer
		if err := e.Gather(context.Background(), mo.m, &out); err != nil {
			t.Fatalf("gather %d: %v", i, err)
		}
		if !bytes.Equal(out.Bytes(), payloads[i]) {
			t.Fatalf("gather %d returned mismatched bytes", i)
		}
	}
}

type manifestOrErr struct {
	m   manifest.Manifest
	err error
}

func TestTamperedIntegrityRootFailsGather(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, nil)

	m, err := e.Scatter(context.Background(), "tamper", bytes.NewReader([]byte("tamper with me please")))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	m.IntegrityRoot[0] ^= 0xff

	var out bytes.Buffer
	if err := e.Gather(context.Background(), m, &out); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Gather with tampered root = %v, want ErrIntegrity", err)
	}
}

func TestRedundancySurvivesPrimaryWipe(t *testing.T) {
	e, med := openTestEngine(t, 1<<20, func(c *config.Config) {
		c.DefaultParameters.Redundancy = 3
	})

	content := []byte("this content must survive the loss of every primary shard")
	m, err := e.Scatter(context.Background(), "redundant", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	topo := topology.New(m.ContentSeed, m.Parameters, e.ks)
	garbage := make([]byte, 1)
	for i := uint64(0); i < m.LogicalSize; i++ {
		primary := topo.At(i, 0)
		addr := coordinate.Project(primary, med.Size(), e.ks)
		garbage[0] = byte(0xAA ^ i)
		if err := med.Write(addr, garbage); err != nil {
			t.Fatalf("wipe primary shard: %v", err)
		}
	}

	var out bytes.Buffer
	if err := e.Gather(context.Background(), m, &out); err != nil {
		t.Fatalf("Gather after primary wipe: %v", err)
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatalf("Gather after primary wipe returned %q, want %q", out.Bytes(), content)
	}
}

func TestNoiseOverwriteNeverReturnsWrongBytes(t *testing.T) {
	e, med := openTestEngine(t, 1<<20, nil)

	content := make([]byte, 1<<20-4096)
	if _, err := rand.Read(content); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	m, err := e.Scatter(context.Background(), "noisy", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	noise := make([]byte, 1)
	for addr := uint64(0); addr < med.Size(); addr += 2 {
		if _, err := rand.Read(noise); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}
		if err := med.Write(addr, noise); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
	}

	var out bytes.Buffer
	err = e.Gather(context.Background(), m, &out)
	if err == nil && !bytes.Equal(out.Bytes(), content) {
		t.Fatal("Gather returned success with wrong bytes after medium corruption")
	}
	if err != nil && !errors.Is(err, ErrIntegrity) && !errors.Is(err, ErrGather) {
		t.Fatalf("Gather after corruption returned unexpected error: %v", err)
	}
}

func TestGatherRejectsClosedEngine(t *testing.T) {
	e, _ := openTestEngine(t, 1<<20, nil)
	m, err := e.Scatter(context.Background(), "closeme", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var out bytes.Buffer
	if err := e.Gather(context.Background(), m, &out); !errors.Is(err, ErrClosed) {
		t.Fatalf("Gather on closed engine = %v, want ErrClosed", err)
	}
	if _, err := e.Scatter(context.Background(), "closeme2", bytes.NewReader([]byte("x"))); !errors.Is(err, ErrClosed) {
		t.Fatalf("Scatter on closed engine = %v, want ErrClosed", err)
	}
}

func TestOpenRejectsInvalidKeyAndEmptyMedium(t *testing.T) {
	med, err := medium.NewMemory(1 << 20)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if _, err := Open(med, []byte("too short"), config.Default()); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Open with bad key = %v, want ErrInvalidKey", err)
	}

	zero, err := medium.NewMemory(0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if _, err := Open(zero, testHybridKey(0x22), config.Default()); !errors.Is(err, ErrMediumUnavailable) {
		t.Fatalf("Open with empty medium = %v, want ErrMediumUnavailable", err)
	}
}
