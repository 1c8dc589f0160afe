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

//go:build !linux
// +build !linux

package medium

import (
	"io"
	"os"
)

// mmap falls back to reading the whole file into a plain Go slice on
// platforms without a mmap syscall wired up here. unmap writes the slice
// back out on Close.
func mmap(f *os.File, size int64) ([]byte, error) {
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) < size {
		buf = append(buf, make([]byte, size-int64(len(buf)))...)
	}
	return buf[:size], nil
}

func unmap(f *os.File, buf []byte) error {
	if _, err := f.WriteAt(buf, 0); err != nil {
		return err
	}
	return f.Truncate(int64(len(buf)))
}

func resize(f *os.File, size int64) error {
	return f.Truncate(size)
}

func flush(f *os.File, buf []byte) error {
	_, err := f.WriteAt(buf, 0)
	return err
}
