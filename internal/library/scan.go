/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrRootMissing marks a content root that does not exist or is not a
// directory. Fatal at startup; tolerated at rescan by keeping the
// previous snapshot.
var ErrRootMissing = errors.New("content root missing")

const (
	commercialsDir = "commercials"
	holidaysDir    = "holidays"
)

var playableExt = map[string]bool{
	".mp4": true,
	".avi": true,
	".mpg": true,
	".mkv": true,
	".wmv": true,
}

// Scanner walks the content hierarchy:
//
//	<root>/<day-part>/<channel>/*           show assets
//	<root>/commercials/<pool>/*             commercial spots
//	<holiday root>/<holiday>/<channel>/*    holiday channel sets
//
// One unreadable or empty channel directory never fails the scan; the
// channel simply indexes with zero assets.
type Scanner struct {
	Root        string
	HolidayRoot string // defaults to <root>/holidays
	Logger      zerolog.Logger
}

// Scan builds a fresh snapshot of the library.
func (s *Scanner) Scan() (*Snapshot, error) {
	info, err := os.Stat(s.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootMissing, s.Root)
	}

	holidayRoot := s.HolidayRoot
	if holidayRoot == "" {
		holidayRoot = filepath.Join(s.Root, holidaysDir)
	}

	channels := make(map[string][]Channel)

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRootMissing, s.Root)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == commercialsDir || entry.Name() == holidaysDir {
			continue
		}
		scope := entry.Name()
		channels[scope] = s.scanChannels(filepath.Join(s.Root, scope), scope)
	}

	// Holiday channel sets mirror the day-part layout one level deeper.
	if holidayEntries, err := os.ReadDir(holidayRoot); err == nil {
		for _, entry := range holidayEntries {
			if !entry.IsDir() {
				continue
			}
			scope := HolidayScope(entry.Name())
			channels[scope] = s.scanChannels(filepath.Join(holidayRoot, entry.Name()), scope)
		}
	}

	pools := make(map[string]Pool)
	if poolEntries, err := os.ReadDir(filepath.Join(s.Root, commercialsDir)); err == nil {
		for _, entry := range poolEntries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(s.Root, commercialsDir, entry.Name())
			pools[entry.Name()] = Pool{Name: entry.Name(), Spots: s.scanAssets(dir, "")}
		}
	}

	snap := NewSnapshot(s.Root, channels, pools)
	s.Logger.Info().
		Str("root", s.Root).
		Int("scopes", len(channels)).
		Int("pools", len(pools)).
		Int("assets", snap.AssetCount()).
		Msg("library scanned")
	return snap, nil
}

func (s *Scanner) scanChannels(dir, scope string) []Channel {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.Logger.Warn().Err(err).Str("dir", dir).Msg("unreadable scope directory, indexing empty")
		return nil
	}

	var out []Channel
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ch := Channel{Name: entry.Name(), Scope: scope}
		ch.Shows = s.scanAssets(filepath.Join(dir, entry.Name()), ch.Key())
		if len(ch.Shows) == 0 {
			s.Logger.Debug().Str("channel", ch.Key()).Msg("channel has no playable assets")
		}
		out = append(out, ch)
	}
	return out
}

func (s *Scanner) scanAssets(dir, channelKey string) []Asset {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.Logger.Warn().Err(err).Str("dir", dir).Msg("unreadable asset directory, skipping")
		return nil
	}

	durations := loadManifest(filepath.Join(dir, manifestFilename), s.Logger)

	var assets []Asset
	for _, entry := range entries {
		if entry.IsDir() || !playableExt[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		assets = append(assets, Asset{
			Path:     filepath.Join(dir, entry.Name()),
			Channel:  channelKey,
			Duration: durations[entry.Name()],
		})
	}
	return assets
}
