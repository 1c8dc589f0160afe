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
	"errors"
	"fmt"

	"github.com/SnellerInc/vault/internal/hardening"
)

// Error kinds surfaced across the upward API. MalformedManifest
// (manifest.ErrMalformedManifest) and CapacityExceeded
// (medium.ErrCapacityExceeded) are defined in their owning packages and
// propagate unwrapped; everything specific to engine orchestration lives
// here.
var (
	// ErrInvalidKey is returned by Open when the hybrid key has the wrong
	// length or otherwise fails to derive a key state.
	ErrInvalidKey = errors.New("vault: invalid key")
	// ErrMediumUnavailable is returned by Open when the medium cannot be
	// used (e.g. Size() == 0).
	ErrMediumUnavailable = errors.New("vault: medium unavailable")
	// ErrScatter covers addressing saturation and write failures during
	// Scatter. It is retryable at the caller.
	ErrScatter = errors.New("vault: scatter failed")
	// ErrGather covers a medium read failure with no surviving replica
	// during Gather. It is retryable at the caller.
	ErrGather = errors.New("vault: gather failed")
	// ErrIntegrity is returned by Gather when the reassembled rolling
	// hash does not match the manifest's integrity root.
	ErrIntegrity = errors.New("vault: integrity check failed")
	// ErrCancelled is returned by Scatter/Gather when the context passed
	// in is cancelled at a chunk boundary.
	ErrCancelled = errors.New("vault: operation cancelled")
	// ErrManifestNotFound is returned by GatherByID when the engine has no
	// record of the given manifest ID in its open-manifests index.
	ErrManifestNotFound = errors.New("vault: manifest not found")
	// ErrClosed is returned by any engine operation invoked after Close.
	ErrClosed = errors.New("vault: engine closed")
)

// boundedBufferExceeded panics with a BoundedBufferExceeded-shaped error.
// A single allocation request larger than the configured memory cap is a
// programmer error, not something calling code can recover from, so it
// aborts rather than returning an error value.
func boundedBufferExceeded(requested, cap int) {
	panic(fmt.Errorf("vault: BoundedBufferExceeded: requested %d bytes exceeds cap of %d", requested, cap))
}

// mustAdd is SafeAdd for quantities that can never legitimately overflow
// (e.g. a file's running logical size); an overflow
// here means a caller-supplied size is corrupt or adversarial, which the
// design notes class as an Overflow abort rather than a recoverable error.
func mustAdd(a, b uint64) uint64 {
	v, err := hardening.SafeAdd(a, b)
	if err != nil {
		panic(fmt.Errorf("vault: Overflow: %w", err))
	}
	return v
}

func mustMul(a, b uint64) uint64 {
	v, err := hardening.SafeMul(a, b)
	if err != nil {
		panic(fmt.Errorf("vault: Overflow: %w", err))
	}
	return v
}
