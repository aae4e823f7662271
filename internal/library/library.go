/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library indexes the on-disk content hierarchy into immutable
// snapshots the schedule engine resolves against.
package library

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Asset is one playable file. Duration is zero when no manifest entry
// declares it (streamed or unmeasured content).
type Asset struct {
	Path     string
	Channel  string // key of the owning channel, empty for commercials
	Duration time.Duration
}

// Title derives a display name from the file name.
func (a Asset) Title() string {
	base := filepath.Base(a.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Remote reports whether the asset lives behind a network protocol
// rather than on the local filesystem.
func (a Asset) Remote() bool {
	p := strings.ToLower(a.Path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "ftp://")
}

// Channel is a named, ordered set of show assets inside one scope.
type Channel struct {
	Name  string
	Scope string // day-part folder name, or a holiday scope
	Shows []Asset
}

// Key uniquely identifies the channel across scopes; playback cursors
// are tracked per key.
func (c Channel) Key() string { return c.Scope + "/" + c.Name }

// HolidayScope names the channel scope for a holiday folder.
func HolidayScope(folder string) string { return "holiday:" + folder }

// Pool is a commercial pool (day, night, or a holiday-specific set).
type Pool struct {
	Name  string
	Spots []Asset
}

// Snapshot is an immutable index of the content library. Consumers hold
// a snapshot for the duration of one resolution cycle; rescans build a
// fresh snapshot and swap it wholesale.
type Snapshot struct {
	Root      string
	ScannedAt time.Time

	channels map[string][]Channel // scope -> channels sorted by name
	pools    map[string]Pool
}

// NewSnapshot assembles a snapshot from pre-built channel scopes and
// commercial pools. Scan uses it; tests build fixtures through it.
func NewSnapshot(root string, channels map[string][]Channel, pools map[string]Pool) *Snapshot {
	for scope := range channels {
		sort.Slice(channels[scope], func(i, j int) bool {
			return channels[scope][i].Name < channels[scope][j].Name
		})
	}
	if pools == nil {
		pools = map[string]Pool{}
	}
	return &Snapshot{
		Root:      root,
		ScannedAt: time.Now(),
		channels:  channels,
		pools:     pools,
	}
}

// Channels returns the channel set for a scope (day-part folder or
// holiday scope), sorted by name. Unknown scopes yield an empty set.
func (s *Snapshot) Channels(scope string) []Channel {
	return s.channels[scope]
}

// Channel looks up a single channel by scope and name.
func (s *Snapshot) Channel(scope, name string) (Channel, bool) {
	for _, c := range s.channels[scope] {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// Pool returns the named commercial pool.
func (s *Snapshot) Pool(name string) (Pool, bool) {
	p, ok := s.pools[name]
	return p, ok
}

// Scopes lists every indexed scope, sorted.
func (s *Snapshot) Scopes() []string {
	out := make([]string, 0, len(s.channels))
	for scope := range s.channels {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// AssetCount totals every show and commercial in the snapshot.
func (s *Snapshot) AssetCount() int {
	n := 0
	for _, chs := range s.channels {
		for _, c := range chs {
			n += len(c.Shows)
		}
	}
	for _, p := range s.pools {
		n += len(p.Spots)
	}
	return n
}

// Holder hands out the current snapshot and swaps in replacements
// atomically, so no reader ever observes a half-updated catalog.
type Holder struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewHolder wraps an initial snapshot.
func NewHolder(snap *Snapshot) *Holder {
	return &Holder{snap: snap}
}

// Current returns the live snapshot.
func (h *Holder) Current() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Swap replaces the live snapshot.
func (h *Holder) Swap(snap *Snapshot) {
	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()
}
