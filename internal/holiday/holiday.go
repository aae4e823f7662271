/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package holiday resolves calendar dates to seasonal takeover overrides.
package holiday

import (
	"fmt"
	"time"
)

// MonthDay is a year-independent calendar date.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) ordinal() int { return int(md.Month)*31 + md.Day }

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", md.Month, md.Day) }

// Override substitutes the station's channel set and commercial pool for
// a recurring date range. The range is inclusive on both ends and may
// wrap the year boundary (e.g. Dec 20 - Jan 02).
type Override struct {
	Name           string
	Start          MonthDay
	End            MonthDay
	Folder         string // channel-set directory under the holiday root
	CommercialPool string // pool name under commercials/
	SpotsPerBreak  int
	Blocks         []string // day-parts the override applies to; empty means all
}

// Contains reports whether the calendar date of t falls inside the range.
func (o Override) Contains(t time.Time) bool {
	md := MonthDay{Month: t.Month(), Day: t.Day()}
	s, e, d := o.Start.ordinal(), o.End.ordinal(), md.ordinal()
	if s <= e {
		return d >= s && d <= e
	}
	// wraps the year boundary
	return d >= s || d <= e
}

// AppliesTo reports whether the override is active during the named
// day-part. An override with no block list takes over the whole day.
func (o Override) AppliesTo(block string) bool {
	if len(o.Blocks) == 0 {
		return true
	}
	for _, b := range o.Blocks {
		if b == block {
			return true
		}
	}
	return false
}

// Set is the configured collection of overrides.
type Set []Override

// Resolve returns the override active on the calendar date of t, if any.
// Validate guarantees at most one override matches.
func (s Set) Resolve(t time.Time) (Override, bool) {
	for _, o := range s {
		if o.Contains(t) {
			return o, true
		}
	}
	return Override{}, false
}

// Validate rejects overlapping date ranges and malformed entries. The
// precedence between two simultaneously active overrides would be
// undefined, so configuration with overlaps fails closed.
func (s Set) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, o := range s {
		if o.Name == "" {
			return fmt.Errorf("holiday override with empty name")
		}
		if seen[o.Name] {
			return fmt.Errorf("duplicate holiday override %q", o.Name)
		}
		seen[o.Name] = true
		if !validMonthDay(o.Start) || !validMonthDay(o.End) {
			return fmt.Errorf("holiday override %q has an invalid date boundary", o.Name)
		}
	}

	// Walk every calendar date once; more than one owner means overlap.
	for month := time.January; month <= time.December; month++ {
		for day := 1; day <= 31; day++ {
			probe := time.Date(2026, month, day, 12, 0, 0, 0, time.UTC)
			if probe.Month() != month {
				continue // day does not exist in this month
			}
			var owner string
			for _, o := range s {
				if !o.Contains(probe) {
					continue
				}
				if owner != "" {
					return fmt.Errorf("holiday overrides %q and %q overlap on %02d-%02d", owner, o.Name, month, day)
				}
				owner = o.Name
			}
		}
	}

	return nil
}

func validMonthDay(md MonthDay) bool {
	return md.Month >= time.January && md.Month <= time.December && md.Day >= 1 && md.Day <= 31
}
