/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeblock maps wall-clock time onto the station's day-parts.
package timeblock

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// Block is one named day-part. Start and End are minutes since midnight;
// a block with End <= Start wraps across midnight.
type Block struct {
	Name           string
	Folder         string // content directory under the library root
	Start          int
	End            int
	CommercialPool string
	SpotsPerBreak  int
}

// Contains reports whether the minute-of-day m falls inside the block.
func (b Block) Contains(m int) bool {
	if b.Start < b.End {
		return m >= b.Start && m < b.End
	}
	// wrap block, e.g. night 20:00-06:00
	return m >= b.Start || m < b.End
}

// Blocks is the ordered day-part configuration.
type Blocks []Block

// Resolve returns the block covering t. Validate guarantees the blocks
// partition the day, so exactly one block matches any timestamp.
func (bs Blocks) Resolve(t time.Time) Block {
	m := t.Hour()*60 + t.Minute()
	for _, b := range bs {
		if b.Contains(m) {
			return b
		}
	}
	// unreachable with a validated configuration
	return bs[0]
}

// ByName looks a block up by its configured name.
func (bs Blocks) ByName(name string) (Block, bool) {
	for _, b := range bs {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// Validate rejects configurations that do not partition the full day:
// every minute of the 24h clock must belong to exactly one block.
func (bs Blocks) Validate() error {
	if len(bs) == 0 {
		return fmt.Errorf("no time blocks configured")
	}

	seen := make(map[string]bool, len(bs))
	for _, b := range bs {
		if b.Name == "" {
			return fmt.Errorf("time block with empty name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate time block %q", b.Name)
		}
		seen[b.Name] = true
		if b.Start < 0 || b.Start >= minutesPerDay || b.End < 0 || b.End > minutesPerDay {
			return fmt.Errorf("time block %q has out-of-range boundaries", b.Name)
		}
		if b.Start == b.End {
			return fmt.Errorf("time block %q is empty", b.Name)
		}
	}

	for m := 0; m < minutesPerDay; m++ {
		owners := 0
		for _, b := range bs {
			if b.Contains(m) {
				owners++
			}
		}
		if owners == 0 {
			return fmt.Errorf("time blocks leave %02d:%02d uncovered", m/60, m%60)
		}
		if owners > 1 {
			return fmt.Errorf("time blocks overlap at %02d:%02d", m/60, m%60)
		}
	}

	return nil
}

// Defaults returns the stock four-block day used when no station file
// overrides it.
func Defaults() Blocks {
	return Blocks{
		{Name: "morning", Folder: "morning", Start: 6 * 60, End: 11 * 60, CommercialPool: "day", SpotsPerBreak: 2},
		{Name: "afternoon", Folder: "afternoon", Start: 11 * 60, End: 15 * 60, CommercialPool: "day", SpotsPerBreak: 2},
		{Name: "evening", Folder: "evening", Start: 15 * 60, End: 20 * 60, CommercialPool: "day", SpotsPerBreak: 2},
		{Name: "night", Folder: "night", Start: 20 * 60, End: 6 * 60, CommercialPool: "night", SpotsPerBreak: 2},
	}
}
