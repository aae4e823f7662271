/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package guide is the viewer-facing surface of the station: what is
// on now, what each channel carries, and the tune control. It only
// sees the engine through the Station capability interface, so any
// guide frontend can be swapped in without touching the engine.
package guide

import (
	"github.com/friendsincode/grimnir_tv/internal/engine"
	"github.com/friendsincode/grimnir_tv/internal/library"
)

// Station is the capability the guide needs from the rest of the
// process. *engine.Engine satisfies it.
type Station interface {
	Status() engine.Status
	Library() *library.Snapshot
	Tune(channel string)
	Rescan()
}

// ChannelListing is one channel row in the guide.
type ChannelListing struct {
	Name    string   `json:"name"`
	Shows   []string `json:"shows"`
	OnAir   bool     `json:"on_air"`
	Benched bool     `json:"benched,omitempty"`
}

// ScopeListing groups the channels of one day-part or holiday folder.
type ScopeListing struct {
	Scope    string           `json:"scope"`
	Channels []ChannelListing `json:"channels"`
}

// Listing is the full guide response.
type Listing struct {
	NowPlaying engine.Status  `json:"now_playing"`
	Scopes     []ScopeListing `json:"scopes"`
}

// BuildListing assembles the guide view from a station.
func BuildListing(st Station) Listing {
	status := st.Status()
	snap := st.Library()

	out := Listing{NowPlaying: status}
	for _, scope := range snap.Scopes() {
		sl := ScopeListing{Scope: scope}
		for _, ch := range snap.Channels(scope) {
			cl := ChannelListing{
				Name:  ch.Name,
				OnAir: status.Channel == ch.Name && status.State != "idle",
			}
			for _, show := range ch.Shows {
				cl.Shows = append(cl.Shows, show.Title())
			}
			sl.Channels = append(sl.Channels, cl)
		}
		out.Scopes = append(out.Scopes, sl)
	}
	return out
}
