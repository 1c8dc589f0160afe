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

// Package config loads and validates the fixed record an Engine is opened
// with. There is no dynamic, runtime-keyed configuration: every knob is an
// explicit field, and per-prefix overrides are a single validated mapping
// rather than an ambient attribute bag.
package config

import (
	"errors"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/vault/manifest"
)

// ErrInvalidConfig is returned by Validate and Load when a Config's fields
// are out of range or internally inconsistent.
var ErrInvalidConfig = errors.New("config: invalid configuration")

const (
	// DefaultChunkSize is the size of one stream-loop chunk on scatter/gather.
	DefaultChunkSize = 64 * 1024
	// DefaultMemoryCap is the default global cap on per-operation buffers.
	DefaultMemoryCap = 1 << 20
	// DefaultRescatterInterval is how often the background task scans for
	// stale manifests.
	DefaultRescatterInterval = 10 * time.Minute
	// DefaultAdvisorChannelDepth is the buffer depth of the advisor's
	// bounded event channel.
	DefaultAdvisorChannelDepth = 256
	// OverrideHexPrefixLen is the number of leading hex digits of a
	// file's content seed that Scatter looks up in Overrides.
	OverrideHexPrefixLen = 8
)

// Config is the fixed record an Engine is opened with.
type Config struct {
	// ChunkSize is the stream-loop chunk size, in bytes.
	ChunkSize int `json:"chunkSize"`
	// MemoryCap is the global cap on per-operation buffers, in bytes. A
	// single allocation exceeding this is a programmer error, not a
	// recoverable one.
	MemoryCap int `json:"memoryCap"`
	// DefaultParameters seeds every scatter that does not select an
	// override by content prefix.
	DefaultParameters manifest.ParameterSet `json:"defaultParameters"`
	// Overrides maps a content-seed hex prefix to a ParameterSet to use
	// instead of DefaultParameters. Validated once at Load/Validate time,
	// never consulted as an ambient global afterward.
	Overrides map[string]manifest.ParameterSet `json:"overrides,omitempty"`
	// RescatterInterval is how often the background task scans for stale
	// manifests.
	RescatterInterval time.Duration `json:"rescatterInterval"`
	// StalenessBuckets is the number of temporal buckets a manifest may
	// age through before the background task considers it stale.
	StalenessBuckets uint64 `json:"stalenessBuckets"`
	// AdvisorChannelDepth is the buffer depth of the advisor's bounded
	// event channel. Zero disables the advisor entirely.
	AdvisorChannelDepth int `json:"advisorChannelDepth,omitempty"`
	// JournalPath, if set, is the path to an append-only manifest journal
	// the engine replays on Open and appends to on every sealed manifest.
	// Empty disables journaling: the open-manifests index then lives in
	// memory only and does not survive a process restart.
	JournalPath string `json:"journalPath,omitempty"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		ChunkSize:           DefaultChunkSize,
		MemoryCap:           DefaultMemoryCap,
		DefaultParameters:   manifest.Default(),
		RescatterInterval:   DefaultRescatterInterval,
		StalenessBuckets:    1,
		AdvisorChannelDepth: DefaultAdvisorChannelDepth,
	}
}

// Validate checks that c's fields are in range and that every override's
// ParameterSet is itself valid.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 || c.MemoryCap <= 0 {
		return ErrInvalidConfig
	}
	if c.ChunkSize > c.MemoryCap {
		return ErrInvalidConfig
	}
	if c.RescatterInterval <= 0 || c.StalenessBuckets == 0 {
		return ErrInvalidConfig
	}
	if c.AdvisorChannelDepth < 0 {
		return ErrInvalidConfig
	}
	if err := c.DefaultParameters.Validate(); err != nil {
		return ErrInvalidConfig
	}
	for _, p := range c.Overrides {
		if err := p.Validate(); err != nil {
			return ErrInvalidConfig
		}
	}
	return nil
}

// Load parses a YAML configuration document and validates it.
// rescatterInterval may be given either as integer nanoseconds or as a
// duration string such as "5m".
func Load(doc []byte) (Config, error) {
	c := Default()
	aux := struct {
		*Config
		RescatterInterval interface{} `json:"rescatterInterval,omitempty"`
	}{Config: &c}
	if err := yaml.Unmarshal(doc, &aux); err != nil {
		return Config{}, err
	}
	switch v := aux.RescatterInterval.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrInvalidConfig
		}
		c.RescatterInterval = d
	case float64:
		c.RescatterInterval = time.Duration(v)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParametersFor returns the ParameterSet to use for a scatter, given the
// hex-encoded content seed prefix, falling back to DefaultParameters when
// no override matches.
func (c Config) ParametersFor(contentSeedHexPrefix string) manifest.ParameterSet {
	if p, ok := c.Overrides[contentSeedHexPrefix]; ok {
		return p
	}
	return c.DefaultParameters
}
