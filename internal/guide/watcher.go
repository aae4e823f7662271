/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	tuneFile   = "tune.txt"
	rescanFile = "rescan"
)

// Watcher is the drop-file guide: writing a channel name into
// <dir>/tune.txt tunes the station, touching <dir>/rescan re-indexes
// the library. Files are consumed (read and removed) once handled,
// which lets dumb remotes and shell scripts drive the station without
// speaking HTTP.
type Watcher struct {
	dir     string
	station Station
	logger  zerolog.Logger
}

// NewWatcher watches dir for control files, creating it if needed.
func NewWatcher(dir string, station Station, logger zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Watcher{
		dir:     dir,
		station: station,
		logger:  logger.With().Str("component", "request_watcher").Logger(),
	}, nil
}

// Run consumes control files until ctx is cancelled. Files already
// present at startup are handled first.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info().Str("dir", w.dir).Msg("watching for control files")

	// Requests dropped while we were not running.
	w.consume(filepath.Join(w.dir, tuneFile))
	w.consume(filepath.Join(w.dir, rescanFile))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.consume(ev.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// consume handles one control file and removes it.
func (w *Watcher) consume(path string) {
	switch filepath.Base(path) {
	case tuneFile:
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		channel := strings.TrimSpace(string(data))
		_ = os.Remove(path)
		if channel == "" {
			w.logger.Warn().Msg("empty tune file dropped")
			return
		}
		w.logger.Info().Str("channel", channel).Msg("tune via control file")
		w.station.Tune(channel)
	case rescanFile:
		if _, err := os.Stat(path); err != nil {
			return
		}
		_ = os.Remove(path)
		w.logger.Info().Msg("rescan via control file")
		w.station.Rescan()
	}
}
