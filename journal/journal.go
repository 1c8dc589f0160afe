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

// Package journal persists the engine's open-manifests index as an
// append-only log, so a process restart can recover every manifest ever
// sealed without re-reading the medium. Each record is one manifest,
// s2-compressed and length-prefixed; the index is reconstructed by
// replaying records in order and letting a later record for the same
// manifest ID supersede an earlier one. There is no removal record: a
// re-scatter seals its replacement under a new ID, so the superseded
// manifest's record stays in the journal and is replayed too.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/s2"

	"github.com/SnellerInc/vault/internal/hardening"
	"github.com/SnellerInc/vault/manifest"
)

// ErrCorruptJournal is returned by Load when a record's header or
// compressed payload cannot be decoded.
var ErrCorruptJournal = errors.New("journal: corrupt record")

const headerSize = 8

// maxRecordSize bounds a single journal record's compressed and
// decompressed length. A truncated or bit-flipped header could otherwise
// claim a record is gigabytes long and drive an allocation sized entirely
// by untrusted on-disk bytes.
const maxRecordSize = 64 << 20

// Journal is an append-only, crash-recoverable log of sealed manifests.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (creating if necessary) the journal file at path for
// appending.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f}, nil
}

// Append writes m as a new record at the end of the journal.
func (j *Journal) Append(m manifest.Manifest) error {
	raw := m.Encode()
	comp := s2.Encode(nil, raw)

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(comp)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(raw)))

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(hdr[:]); err != nil {
		return err
	}
	_, err := j.f.Write(comp)
	return err
}

// Sync flushes the journal file to durable storage.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Sync()
}

// Close closes the underlying journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// Load replays every record in the journal at path and returns the
// resulting manifest index, keyed by manifest ID. A missing file is not
// an error: it is treated as an empty, freshly initialized journal.
func Load(path string) (map[manifest.ID]manifest.Manifest, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[manifest.ID]manifest.Manifest), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx := make(map[manifest.ID]manifest.Manifest)
	r := bufio.NewReader(f)
	var hdr [headerSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, ErrCorruptJournal
		}
		compLen := binary.LittleEndian.Uint32(hdr[0:4])
		rawLen := binary.LittleEndian.Uint32(hdr[4:8])
		if compLen > maxRecordSize || rawLen > maxRecordSize {
			return nil, ErrCorruptJournal
		}

		comp := make([]byte, compLen)
		if _, err := io.ReadFull(r, comp); err != nil {
			return nil, ErrCorruptJournal
		}
		comp, err := hardening.BoundedRead(comp, maxRecordSize)
		if err != nil {
			return nil, ErrCorruptJournal
		}
		raw := make([]byte, rawLen)
		raw, err = s2.Decode(raw, comp)
		if err != nil {
			return nil, ErrCorruptJournal
		}
		m, err := manifest.Decode(raw)
		if err != nil {
			return nil, ErrCorruptJournal
		}
		idx[m.ID] = m
	}
	return idx, nil
}
