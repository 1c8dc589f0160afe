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

// Package mixer implements the keyed, coordinate-tweaked entropic mixer:
// a data-independent XOR with a chacha20 keystream derived per coordinate.
package mixer

import (
	"golang.org/x/crypto/chacha20"

	"github.com/SnellerInc/vault/coordinate"
	"github.com/SnellerInc/vault/keystate"
)

// DefaultSubChunkSize is the default memory cap applied when expanding a
// keystream for a single Mix call: chunks larger than this are processed
// in fixed-size pieces so peak memory stays bounded regardless of the
// caller's chunk size.
const DefaultSubChunkSize = 1 << 20 // 1 MiB

// Mixer mixes plaintext chunks with a per-coordinate keystream. It is
// stateful over (key state), stateless per chunk: any number of goroutines
// may call Mix concurrently on the same Mixer.
type Mixer struct {
	ks           *keystate.State
	subChunkSize int
}

// New returns a Mixer keyed by ks. subChunkSize bounds the size of the
// pieces a single Mix/Unmix call is internally decomposed into; pass 0 to
// use DefaultSubChunkSize.
func New(ks *keystate.State, subChunkSize int) *Mixer {
	if subChunkSize <= 0 {
		subChunkSize = DefaultSubChunkSize
	}
	return &Mixer{ks: ks, subChunkSize: subChunkSize}
}

// tweak derives the 32-byte chacha20 key and 12-byte nonce for coord by
// expanding the entropic sub-key with the encoded coordinate as the HKDF
// info parameter, so that every coordinate gets an independent keystream.
func (m *Mixer) tweak(coord coordinate.Coordinate) (key [chacha20.KeySize]byte, nonce [chacha20.NonceSize]byte, err error) {
	enc := coord.Encode()
	material, err := m.ks.Expand(m.ks.Entropic, enc[:], chacha20.KeySize+chacha20.NonceSize)
	if err != nil {
		return key, nonce, err
	}
	copy(key[:], material[:chacha20.KeySize])
	copy(nonce[:], material[chacha20.KeySize:])
	return key, nonce, nil
}

// Mix XORs chunk with a keystream derived from coord, producing a slice of
// the same length. Mix never branches on the contents of chunk: control
// flow depends only on len(chunk) and the sub-chunk size, never on
// plaintext bytes. For chunks larger than the configured sub-chunk size,
// processing is decomposed into fixed-size pieces and the keystream is
// advanced deterministically across them, so any two decompositions of the
// same (chunk, coord) pair produce bitwise-identical output.
func (m *Mixer) Mix(chunk []byte, coord coordinate.Coordinate) ([]byte, error) {
	key, nonce, err := m.tweak(coord)
	if err != nil {
		return nil, err
	}
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(chunk))
	for off := 0; off < len(chunk); off += m.subChunkSize {
		end := off + m.subChunkSize
		if end > len(chunk) {
			end = len(chunk)
		}
		cipher.XORKeyStream(out[off:end], chunk[off:end])
	}
	return out, nil
}

// Unmix is defined as Mix: the construction is an involution, so applying
// Mix a second time with the same coordinate recovers the original chunk.
func (m *Mixer) Unmix(chunk []byte, coord coordinate.Coordinate) ([]byte, error) {
	return m.Mix(chunk, coord)
}
