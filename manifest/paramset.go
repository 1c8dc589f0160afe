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

package manifest

import (
	"errors"
	"math"
)

// ErrInvalidParameters is returned by ParameterSet.Validate when a field is
// out of its allowed range.
var ErrInvalidParameters = errors.New("manifest: parameter set out of range")

// ParameterSet is the per-file tuning chosen at scatter time and frozen in
// the manifest until the file is re-scattered.
type ParameterSet struct {
	// EntropyRatio is reserved for future entropy/payload interleaving
	// policies; it must lie in [0.1, 0.9].
	EntropyRatio float64
	// ScatterDepth bounds both the Fractal field's range and the number
	// of collision-probe retries at write time; must lie in [1, 8].
	ScatterDepth uint8
	// TemporalPrime is a large prime XORed with the low 64 bits of a
	// manifest's ID to jitter its re-scatter staleness bucket, so files
	// scattered in the same wall-clock hour under the same ParameterSet
	// don't all go stale in the same background pass.
	TemporalPrime uint64
	// PhaseScale scales the continuous rotation angle used in
	// projection; must lie in [0.1, 10.0].
	PhaseScale float64
	// Redundancy is the number of holographic shards (including the
	// primary) written for each logical byte; must lie in [1, 4].
	Redundancy uint8
	// TopologicalSalt is a per-file salt mixed into every coordinate's
	// Topological field.
	TopologicalSalt uint32
}

// Default returns a conservative, broadly-applicable ParameterSet.
func Default() ParameterSet {
	return ParameterSet{
		EntropyRatio:    0.5,
		ScatterDepth:    4,
		TemporalPrime:   2305843009213693951, // 2^61 - 1, a Mersenne prime
		PhaseScale:      1.0,
		Redundancy:      1,
		TopologicalSalt: 0,
	}
}

// Validate reports whether every field of p lies within its documented
// range, and that PhaseScale is finite.
func (p ParameterSet) Validate() error {
	if math.IsNaN(p.PhaseScale) || math.IsInf(p.PhaseScale, 0) {
		return ErrInvalidParameters
	}
	if p.EntropyRatio < 0.1 || p.EntropyRatio > 0.9 {
		return ErrInvalidParameters
	}
	if p.ScatterDepth < 1 || p.ScatterDepth > 8 {
		return ErrInvalidParameters
	}
	if p.PhaseScale < 0.1 || p.PhaseScale > 10.0 {
		return ErrInvalidParameters
	}
	if p.Redundancy < 1 || p.Redundancy > 4 {
		return ErrInvalidParameters
	}
	if p.TemporalPrime == 0 {
		return ErrInvalidParameters
	}
	return nil
}
