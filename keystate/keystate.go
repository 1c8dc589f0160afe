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

// Package keystate derives the eight domain-separated sub-keys that every
// other vault component is keyed by, from the 64-byte hybrid key produced
// upstream of this engine.
package keystate

import (
	"crypto/sha512"
	"errors"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/SnellerInc/vault/internal/hardening"
)

// ErrInvalidKey is returned by Derive when the hybrid key is not exactly
// 64 bytes.
var ErrInvalidKey = errors.New("keystate: hybrid key must be exactly 64 bytes")

// HybridKeySize is the required length of the hybrid key.
const HybridKeySize = 64

// SubKeySize is the length, in bytes, of each derived sub-key.
const SubKeySize = 32

// labels, in a fixed order that also determines the sub-key fields below.
const (
	labelSpatial     = "spatial"
	labelTemporal    = "temporal"
	labelEntropic    = "entropic"
	labelSemantic    = "semantic"
	labelFractal     = "fractal"
	labelPhase       = "phase"
	labelTopological = "topological"
	labelHolographic = "holographic"
)

// State holds the eight independent sub-keys derived from a hybrid key.
// A State is a pure function of the hybrid key it was derived from; it has
// no mutable operations, and the only way to obtain a new one is to call
// Derive again. Zero must be called when the State is no longer needed.
type State struct {
	Spatial     [SubKeySize]byte
	Temporal    [SubKeySize]byte
	Entropic    [SubKeySize]byte
	Semantic    [SubKeySize]byte
	Fractal     [SubKeySize]byte
	Phase       [SubKeySize]byte
	Topological [SubKeySize]byte
	Holographic [SubKeySize]byte

	zeroed bool
}

// Derive produces a State from a 64-byte hybrid key by domain-separated
// hashing: sub[i] = BLAKE2b-256(hybridKey || label_i). Derivation is a pure
// function of hybridKey; sub-keys are never persisted.
func Derive(hybridKey []byte) (*State, error) {
	if len(hybridKey) != HybridKeySize {
		return nil, ErrInvalidKey
	}
	s := &State{}
	fields := []struct {
		label string
		dst   *[SubKeySize]byte
	}{
		{labelSpatial, &s.Spatial},
		{labelTemporal, &s.Temporal},
		{labelEntropic, &s.Entropic},
		{labelSemantic, &s.Semantic},
		{labelFractal, &s.Fractal},
		{labelPhase, &s.Phase},
		{labelTopological, &s.Topological},
		{labelHolographic, &s.Holographic},
	}
	for _, f := range fields {
		sub, err := deriveLabel(hybridKey, f.label)
		if err != nil {
			s.Zero()
			return nil, err
		}
		*f.dst = sub
	}
	return s, nil
}

func deriveLabel(hybridKey []byte, label string) ([SubKeySize]byte, error) {
	var out [SubKeySize]byte
	h, err := blake2b.New256(nil)
	if err != nil {
		return out, err
	}
	h.Write(hybridKey)
	h.Write([]byte(label))
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Expand derives n bytes of auxiliary key material from the named sub-key
// using HKDF-SHA512, for components that need more than SubKeySize bytes
// of keystream/key material from a single label (e.g. a mixer that wants a
// chacha20 key plus a nonce in one call).
func (s *State) Expand(sub [SubKeySize]byte, info []byte, n int) ([]byte, error) {
	r := hkdf.New(sha512.New, sub[:], nil, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Zero overwrites every sub-key with zeroes. Safe to call multiple times.
// After Zero, the State must not be used again.
func (s *State) Zero() {
	if s.zeroed {
		return
	}
	hardening.Zero(s.Spatial[:])
	hardening.Zero(s.Temporal[:])
	hardening.Zero(s.Entropic[:])
	hardening.Zero(s.Semantic[:])
	hardening.Zero(s.Fractal[:])
	hardening.Zero(s.Phase[:])
	hardening.Zero(s.Topological[:])
	hardening.Zero(s.Holographic[:])
	s.zeroed = true
}
