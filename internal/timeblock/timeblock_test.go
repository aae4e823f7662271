/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeblock

import (
	"testing"
	"time"
)

func TestResolveCoversWholeDay(t *testing.T) {
	blocks := Defaults()
	if err := blocks.Validate(); err != nil {
		t.Fatalf("default blocks invalid: %v", err)
	}

	day := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.Local)
	for m := 0; m < 24*60; m++ {
		ts := day.Add(time.Duration(m) * time.Minute)
		matches := 0
		for _, b := range blocks {
			if b.Contains(ts.Hour()*60 + ts.Minute()) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("minute %02d:%02d covered by %d blocks, want exactly 1", m/60, m%60, matches)
		}
	}
}

func TestResolveBoundaries(t *testing.T) {
	blocks := Defaults()

	tests := []struct {
		name string
		hour int
		min  int
		want string
	}{
		{"early morning is night", 3, 0, "night"},
		{"morning start", 6, 0, "morning"},
		{"last morning minute", 10, 59, "morning"},
		{"afternoon start", 11, 0, "afternoon"},
		{"evening", 17, 30, "evening"},
		{"night start", 20, 0, "night"},
		{"just before midnight", 23, 59, "night"},
		{"midnight", 0, 0, "night"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := time.Date(2026, time.March, 3, tt.hour, tt.min, 0, 0, time.Local)
			got := blocks.Resolve(ts)
			if got.Name != tt.want {
				t.Errorf("Resolve(%02d:%02d) = %q, want %q", tt.hour, tt.min, got.Name, tt.want)
			}
		})
	}
}

func TestValidateRejectsGapsAndOverlaps(t *testing.T) {
	tests := []struct {
		name   string
		blocks Blocks
	}{
		{"empty", Blocks{}},
		{"gap", Blocks{
			{Name: "day", Start: 6 * 60, End: 20 * 60},
			{Name: "night", Start: 21 * 60, End: 6 * 60},
		}},
		{"overlap", Blocks{
			{Name: "day", Start: 6 * 60, End: 21 * 60},
			{Name: "night", Start: 20 * 60, End: 6 * 60},
		}},
		{"duplicate name", Blocks{
			{Name: "day", Start: 0, End: 12 * 60},
			{Name: "day", Start: 12 * 60, End: 24 * 60},
		}},
		{"zero width", Blocks{
			{Name: "day", Start: 6 * 60, End: 6 * 60},
			{Name: "night", Start: 6 * 60, End: 6 * 60},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.blocks.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAcceptsWrapBlock(t *testing.T) {
	blocks := Blocks{
		{Name: "day", Start: 5 * 60, End: 23 * 60},
		{Name: "night", Start: 23 * 60, End: 5 * 60},
	}
	if err := blocks.Validate(); err != nil {
		t.Fatalf("wrap configuration rejected: %v", err)
	}
}
