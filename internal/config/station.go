/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_tv/internal/commercials"
	"github.com/friendsincode/grimnir_tv/internal/holiday"
	"github.com/friendsincode/grimnir_tv/internal/timeblock"
)

// stationFile is the YAML schema for the structured schedule
// configuration.
type stationFile struct {
	Player struct {
		Bin        string   `yaml:"bin"`
		Args       []string `yaml:"args"`
		RemoteArgs []string `yaml:"remote_args"`
	} `yaml:"player"`
	Blocks []struct {
		Name           string `yaml:"name"`
		Folder         string `yaml:"folder"`
		Start          string `yaml:"start"`
		End            string `yaml:"end"`
		CommercialPool string `yaml:"commercial_pool"`
		SpotsPerBreak  int    `yaml:"spots_per_break"`
	} `yaml:"blocks"`
	Holidays []struct {
		Name           string   `yaml:"name"`
		Start          string   `yaml:"start"`
		End            string   `yaml:"end"`
		Folder         string   `yaml:"folder"`
		CommercialPool string   `yaml:"commercial_pool"`
		SpotsPerBreak  int      `yaml:"spots_per_break"`
		Blocks         []string `yaml:"blocks"`
	} `yaml:"holidays"`
	Selection struct {
		Order string `yaml:"order"`
		Seed  int64  `yaml:"seed"`
	} `yaml:"selection"`
	Recovery struct {
		CrashLimit  int    `yaml:"crash_limit"`
		CrashWindow string `yaml:"crash_window"`
	} `yaml:"recovery"`
}

func applyStationFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read station file: %w", err)
	}

	var sf stationFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse station file %s: %w", path, err)
	}

	if sf.Player.Bin != "" {
		cfg.PlayerBin = sf.Player.Bin
	}
	if len(sf.Player.Args) > 0 {
		cfg.PlayerArgs = sf.Player.Args
	}
	if len(sf.Player.RemoteArgs) > 0 {
		cfg.PlayerRemoteArgs = sf.Player.RemoteArgs
	}

	if len(sf.Blocks) > 0 {
		blocks := make(timeblock.Blocks, 0, len(sf.Blocks))
		for _, b := range sf.Blocks {
			start, err := parseClock(b.Start)
			if err != nil {
				return fmt.Errorf("block %q start: %w", b.Name, err)
			}
			end, err := parseClock(b.End)
			if err != nil {
				return fmt.Errorf("block %q end: %w", b.Name, err)
			}
			folder := b.Folder
			if folder == "" {
				folder = b.Name
			}
			pool := b.CommercialPool
			if pool == "" {
				pool = "day"
			}
			blocks = append(blocks, timeblock.Block{
				Name:           b.Name,
				Folder:         folder,
				Start:          start,
				End:            end,
				CommercialPool: pool,
				SpotsPerBreak:  b.SpotsPerBreak,
			})
		}
		cfg.Blocks = blocks
	}

	if len(sf.Holidays) > 0 {
		set := make(holiday.Set, 0, len(sf.Holidays))
		for _, h := range sf.Holidays {
			start, err := parseMonthDay(h.Start)
			if err != nil {
				return fmt.Errorf("holiday %q start: %w", h.Name, err)
			}
			end, err := parseMonthDay(h.End)
			if err != nil {
				return fmt.Errorf("holiday %q end: %w", h.Name, err)
			}
			folder := h.Folder
			if folder == "" {
				folder = h.Name
			}
			pool := h.CommercialPool
			if pool == "" {
				pool = h.Name
			}
			set = append(set, holiday.Override{
				Name:           h.Name,
				Start:          start,
				End:            end,
				Folder:         folder,
				CommercialPool: pool,
				SpotsPerBreak:  h.SpotsPerBreak,
				Blocks:         h.Blocks,
			})
		}
		cfg.Holidays = set
	}

	if sf.Selection.Order != "" {
		cfg.SelectionOrder = commercials.Order(sf.Selection.Order)
	}
	if sf.Selection.Seed != 0 {
		cfg.SelectionSeed = sf.Selection.Seed
	}
	if sf.Recovery.CrashLimit != 0 {
		cfg.CrashLimit = sf.Recovery.CrashLimit
	}
	if sf.Recovery.CrashWindow != "" {
		window, err := time.ParseDuration(sf.Recovery.CrashWindow)
		if err != nil {
			return fmt.Errorf("recovery crash_window: %w", err)
		}
		cfg.CrashWindow = window
	}

	return nil
}

// parseClock converts "HH:MM" to minutes since midnight. "24:00" is
// accepted as an end-of-day boundary.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if s == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// parseMonthDay converts "MM-DD" to a recurring calendar date.
func parseMonthDay(s string) (holiday.MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return holiday.MonthDay{}, fmt.Errorf("invalid date %q (want MM-DD)", s)
	}
	return holiday.MonthDay{Month: t.Month(), Day: t.Day()}, nil
}
