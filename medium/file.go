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
	"os"

	"github.com/SnellerInc/vault/internal/hardening"
)

const fillChunk = 1 << 20

// File is a persistent, memory-mapped Medium backed by a fixed-size file.
// Unlike Memory, File materializes its noise: a freshly created file is
// filled end to end with CSPRNG output before OpenFile returns, since a
// memory-mapped region cannot intercept individual byte reads to emulate
// noise lazily the way Memory does.
type File struct {
	f      *os.File
	buf    []byte
	size   uint64
	lock   hardening.RWLock
	closed bool
}

// OpenFile opens (creating if necessary) a file-backed medium of exactly
// size bytes at path. A newly created file is pre-filled with random
// noise; an existing file is reused as-is (its prior contents are assumed
// to already look random, having been written by a previous Vault run).
func OpenFile(path string, size uint64) (*File, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	if err := resize(f, int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	buf, err := mmap(f, int64(size))
	if err != nil {
		f.Close()
		return nil, err
	}
	ff := &File{f: f, buf: buf, size: size}
	if fresh {
		if err := ff.fillNoise(); err != nil {
			ff.Close()
			return nil, err
		}
	}
	return ff, nil
}

func (ff *File) fillNoise() error {
	for off := 0; off < len(ff.buf); off += fillChunk {
		end := off + fillChunk
		if end > len(ff.buf) {
			end = len(ff.buf)
		}
		chunk, err := hardening.RandomBytes(end - off)
		if err != nil {
			return err
		}
		copy(ff.buf[off:end], chunk)
	}
	return flush(ff.f, ff.buf)
}

// Read implements Medium.
func (ff *File) Read(offset uint64, length int) ([]byte, error) {
	ff.lock.RLock()
	defer ff.lock.RUnlock()
	if ff.closed {
		return nil, ErrClosed
	}
	if err := checkBounds(ff.size, offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, ff.buf[offset:offset+uint64(length)])
	return out, nil
}

// Write implements Medium.
func (ff *File) Write(offset uint64, data []byte) error {
	ff.lock.Lock()
	defer ff.lock.Unlock()
	if ff.closed {
		return ErrClosed
	}
	if err := checkBounds(ff.size, offset, len(data)); err != nil {
		return err
	}
	copy(ff.buf[offset:], data)
	return nil
}

// Size implements Medium.
func (ff *File) Size() uint64 { return ff.size }

// Sync implements Medium.
func (ff *File) Sync() error {
	ff.lock.RLock()
	defer ff.lock.RUnlock()
	if ff.closed {
		return ErrClosed
	}
	return flush(ff.f, ff.buf)
}

// Close implements Medium.
func (ff *File) Close() error {
	ff.lock.Lock()
	defer ff.lock.Unlock()
	if ff.closed {
		return nil
	}
	ff.closed = true
	if err := unmap(ff.f, ff.buf); err != nil {
		ff.f.Close()
		return err
	}
	return ff.f.Close()
}

// Capabilities implements Medium.
func (ff *File) Capabilities() Capability {
	return Truncate | RangeRead | Concurrent | Seekable | Persistent
}
