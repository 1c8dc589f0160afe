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
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/SnellerInc/vault/advisor"
	"github.com/SnellerInc/vault/config"
	"github.com/SnellerInc/vault/coordinate"
	"github.com/SnellerInc/vault/manifest"
	"github.com/SnellerInc/vault/medium"
	"github.com/SnellerInc/vault/mixer"
	"github.com/SnellerInc/vault/topology"
)

// Scatter reads the entirety of r, writes it to the engine's medium under
// a fresh manifest ID, and returns the sealed manifest that is the sole
// handle needed to gather it back. name is recorded nowhere inside the
// manifest — it exists only so callers and logs can refer to a scatter
// call by something more memorable than a manifest ID.
func (e *Engine) Scatter(ctx context.Context, name string, r io.Reader) (manifest.Manifest, error) {
	start := time.Now()

	e.lock.RLock()
	closed := e.closed
	e.lock.RUnlock()
	if closed {
		return manifest.Manifest{}, ErrClosed
	}

	preview, rest, err := readPreview(r, topology.PreviewSize, e.cfg.MemoryCap)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("%w: %v", ErrScatter, err)
	}
	contentSeed := topology.ContentSeed(preview)
	params := e.cfg.ParametersFor(contentSeedHexPrefix(contentSeed))

	mediumSize := e.med.Size()

	e.lock.Lock()
	id := manifest.NewID()
	e.lock.Unlock()

	topo := topology.New(contentSeed, params, e.ks)
	mx := mixer.New(e.ks, e.cfg.ChunkSize)

	h := sha512.New()
	var logicalSize uint64
	usedAddrs := make(map[uint64]struct{}, 1024)

	chunk := make([]byte, 0, e.cfg.ChunkSize)
	reader := io.MultiReader(byteSliceReader(preview), rest)

	flush := func(buf []byte, baseIndex uint64) error {
		for j, b := range buf {
			i := baseIndex + uint64(j)
			coord := topo.At(i, 0)
			mx1, err := mx.Mix([]byte{b}, coord)
			if err != nil {
				return err
			}
			// Every holographic shard (primary plus replicas) gets an
			// independent write of the same mixed byte, mixed and
			// hashed once against the primary coordinate: redundancy
			// is real replication, not just a collision escape hatch,
			// so gather can recover a byte whose primary shard was
			// lost as long as the intact shards still form a strict
			// majority of all Redundancy shards (see readShards).
			for shard := uint8(0); shard < params.Redundancy; shard++ {
				c := coord
				if shard > 0 {
					c = topo.At(i, shard)
				}
				addr, err := e.resolveAddress(topo, c, mediumSize, params, usedAddrs)
				if err != nil {
					return err
				}
				if err := e.med.Write(addr, mx1); err != nil {
					if errors.Is(err, medium.ErrCapacityExceeded) {
						e.stats.AddCapacityError()
						return err
					}
					return fmt.Errorf("%w: %v", ErrScatter, err)
				}
			}
			writeRollingHash(h, i, coord, b)
		}
		return nil
	}

	baseIndex := uint64(0)
	for {
		select {
		case <-ctx.Done():
			return manifest.Manifest{}, ErrCancelled
		default:
		}

		n, rerr := io.ReadFull(reader, growTo(&chunk, e.cfg.ChunkSize))
		if n > 0 {
			if err := flush(chunk[:n], baseIndex); err != nil {
				return manifest.Manifest{}, err
			}
			baseIndex += uint64(n)
			logicalSize = mustAdd(logicalSize, uint64(n))
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return manifest.Manifest{}, fmt.Errorf("%w: %v", ErrScatter, rerr)
		}
	}

	var integrityRoot [32]byte
	copy(integrityRoot[:], h.Sum(nil)[:32])

	m := manifest.Manifest{
		ID:                id,
		LogicalSize:       logicalSize,
		ContentSeed:       contentSeed,
		Parameters:        params,
		MediumSizeAtWrite: mediumSize,
		IntegrityRoot:     integrityRoot,
		CreatedAt:         uint64(time.Now().UnixMilli()),
	}

	e.lock.Lock()
	e.manifests[m.ID] = m
	e.lock.Unlock()

	if e.journal != nil {
		if err := e.journal.Append(m); err != nil {
			return manifest.Manifest{}, fmt.Errorf("%w: %v", ErrScatter, err)
		}
	}

	e.stats.AddBytesIn(int64(logicalSize))
	e.advisor.Publish(advisor.Event{ManifestID: m.ID, Op: advisor.OpScatter, Bytes: logicalSize, Latency: time.Since(start)})

	return m, nil
}

// resolveAddress implements the collision policy for a single shard's
// coordinate c: if its projected address was already used earlier in
// this scatter call, probe fractal-bumped variants of c up to
// params.ScatterDepth times before giving up. Writes from prior, unrelated
// scatter calls are never observed as collisions — only addresses used
// within the current call are tracked.
func (e *Engine) resolveAddress(topo *topology.Topology, c coordinate.Coordinate, mediumSize uint64, params manifest.ParameterSet, used map[uint64]struct{}) (uint64, error) {
	addr := coordinate.Project(c, mediumSize, e.ks)
	if _, collide := used[addr]; !collide {
		used[addr] = struct{}{}
		return addr, nil
	}
	e.stats.AddCollision()

	for delta := 1; delta <= int(params.ScatterDepth); delta++ {
		bumped := topo.WithFractalBump(c, delta)
		addr := coordinate.Project(bumped, mediumSize, e.ks)
		if _, collide := used[addr]; !collide {
			used[addr] = struct{}{}
			return addr, nil
		}
		e.stats.AddCollision()
	}

	return 0, fmt.Errorf("%w: addressing saturated", ErrScatter)
}

// contentSeedHexPrefix renders the leading config.OverrideHexPrefixLen hex
// digits of seed, the key Scatter looks up in Config.Overrides.
func contentSeedHexPrefix(seed [32]byte) string {
	full := hex.EncodeToString(seed[:])
	if len(full) > config.OverrideHexPrefixLen {
		return full[:config.OverrideHexPrefixLen]
	}
	return full
}

func writeRollingHash(h io.Writer, index uint64, c coordinate.Coordinate, plaintext byte) {
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], index)
	h.Write(idxBuf[:])
	enc := c.Encode()
	h.Write(enc[:])
	h.Write([]byte{plaintext})
}

// readPreview reads up to max bytes from r for topology seeding without
// exceeding cap (a cap smaller than max shortens the preview), returning
// the preview and an io.Reader that continues where the preview left off.
func readPreview(r io.Reader, max, cap int) ([]byte, io.Reader, error) {
	if max > cap {
		max = cap
	}
	buf := make([]byte, max)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, nil, err
	}
	return buf[:n], r, nil
}

func growTo(buf *[]byte, n int) []byte {
	if cap(*buf) < n {
		*buf = make([]byte, n)
	}
	*buf = (*buf)[:n]
	return *buf
}

func byteSliceReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}
