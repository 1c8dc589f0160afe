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

// Package vault is the Dimensional Scatter Engine: it binds the
// coordinate, mixer, topology, manifest and medium packages into the
// scatter/gather pipeline and the engine handle that owns their shared
// state.
package vault

import (
	"sync"

	"github.com/SnellerInc/vault/advisor"
	"github.com/SnellerInc/vault/config"
	"github.com/SnellerInc/vault/internal/hardening"
	"github.com/SnellerInc/vault/journal"
	"github.com/SnellerInc/vault/keystate"
	"github.com/SnellerInc/vault/manifest"
	"github.com/SnellerInc/vault/medium"
	"github.com/SnellerInc/vault/stats"
)

// Logger is the minimal structured-logging sink the engine writes to.
// Passing a nil Logger (the default) silently discards log output; it is
// never required for correctness, only observability.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Engine is a process-wide handle on one open Vault. It owns the key
// state, the medium handle, the open-manifests index, and the background
// re-scatter task. The zero value is not usable; construct with Open.
type Engine struct {
	// Logger, if non-nil, receives re-scatter failures and other
	// non-fatal diagnostics. Never consulted on a correctness path.
	Logger Logger

	ks  *keystate.State
	med medium.Medium
	cfg config.Config

	lock      hardening.RWLock
	manifests map[manifest.ID]manifest.Manifest
	journal   *journal.Journal

	stats   stats.Statistics
	advisor *advisor.Advisor

	rescatterDone chan struct{}
	rescatterWG   sync.WaitGroup

	closed bool
}

// Open derives a key state from hybridKey, validates cfg, and starts an
// Engine bound to med. It fails with ErrInvalidKey if hybridKey is not
// exactly keystate.HybridKeySize bytes, or ErrMediumUnavailable if med
// reports zero capacity.
func Open(med medium.Medium, hybridKey []byte, cfg config.Config) (*Engine, error) {
	if med == nil || med.Size() == 0 {
		return nil, ErrMediumUnavailable
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ks, err := keystate.Derive(hybridKey)
	if err != nil {
		return nil, ErrInvalidKey
	}

	e := &Engine{
		ks:            ks,
		med:           med,
		cfg:           cfg,
		manifests:     make(map[manifest.ID]manifest.Manifest),
		rescatterDone: make(chan struct{}),
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			ks.Zero()
			return nil, err
		}
		idx, err := journal.Load(cfg.JournalPath)
		if err != nil {
			j.Close()
			ks.Zero()
			return nil, err
		}
		e.journal = j
		e.manifests = idx
	}

	if cfg.AdvisorChannelDepth > 0 {
		e.advisor = advisor.New(cfg.AdvisorChannelDepth)
	}

	e.rescatterWG.Add(1)
	go e.rescatterLoop()

	return e, nil
}

// Close is idempotent: it cancels and waits for the background
// re-scatter task, zeroizes the key state, and syncs the medium, on
// every exit path including a panic unwinding through this call.
func (e *Engine) Close() (err error) {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}
	e.closed = true
	e.lock.Unlock()

	defer e.ks.Zero()
	defer func() {
		if syncErr := e.med.Sync(); err == nil {
			err = syncErr
		}
	}()

	close(e.rescatterDone)
	e.rescatterWG.Wait()

	if e.advisor != nil {
		e.advisor.Close()
	}
	if e.journal != nil {
		err = e.journal.Close()
	}
	return err
}

// Statistics returns a snapshot of the engine's running counters.
func (e *Engine) Statistics() stats.Snapshot {
	return e.stats.Snapshot()
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
