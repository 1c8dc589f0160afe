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

// Package advisor is the engine's one-way window onto an optional
// parameter-tuning layer. The engine never calls into an advisor
// synchronously: it only publishes Events to a bounded channel, and a
// consumer on the other end may use them to retune future ParameterSet
// choices. A full channel means the event is dropped, never that a
// scatter or gather call blocks waiting for a consumer.
package advisor

import (
	"time"

	"github.com/SnellerInc/vault/manifest"
)

// Op identifies which pipeline operation an Event describes.
type Op uint8

const (
	// OpScatter marks an event recorded by a completed scatter call.
	OpScatter Op = iota
	// OpGather marks an event recorded by a completed gather call.
	OpGather
	// OpRescatter marks an event recorded by the background re-scatter task.
	OpRescatter
)

func (o Op) String() string {
	switch o {
	case OpScatter:
		return "scatter"
	case OpGather:
		return "gather"
	case OpRescatter:
		return "rescatter"
	default:
		return "unknown"
	}
}

// Event is one (manifest_id, op, bytes, latency) observation published by
// the engine after an operation completes.
type Event struct {
	ManifestID manifest.ID
	Op         Op
	Bytes      uint64
	Latency    time.Duration
}

// Advisor is a bounded, non-blocking publisher of Events. The zero value
// is not usable; construct with New.
type Advisor struct {
	events chan Event
}

// New returns an Advisor whose channel holds up to depth undelivered
// events. A depth of zero is rejected by callers that wire config.Config's
// AdvisorChannelDepth == 0 into "no advisor" instead of calling New.
func New(depth int) *Advisor {
	return &Advisor{events: make(chan Event, depth)}
}

// Publish attempts to enqueue ev without blocking. If the channel is
// full, the event is silently dropped: back-pressuring the hot path to
// serve a best-effort tuning signal is never acceptable.
func (a *Advisor) Publish(ev Event) {
	if a == nil {
		return
	}
	select {
	case a.events <- ev:
	default:
	}
}

// Events returns the receive-only channel a consumer drains Events from.
func (a *Advisor) Events() <-chan Event {
	return a.events
}

// Close closes the event channel. Callers must ensure no further Publish
// calls occur after Close.
func (a *Advisor) Close() {
	close(a.events)
}
