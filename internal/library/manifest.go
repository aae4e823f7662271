/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const manifestFilename = "manifest.xml"

// manifestDoc mirrors the generated per-directory duration manifest:
//
//	<files>
//	  <file name="episode.mp4"><length>1332.5</length></file>
//	</files>
type manifestDoc struct {
	XMLName xml.Name       `xml:"files"`
	Files   []manifestFile `xml:"file"`
}

type manifestFile struct {
	Name   string  `xml:"name,attr"`
	Length float64 `xml:"length"`
}

// loadManifest reads the optional duration manifest in an asset
// directory. A missing or malformed manifest yields no durations;
// assets then index with unknown length.
func loadManifest(path string, logger zerolog.Logger) map[string]time.Duration {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc manifestDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		logger.Warn().Err(err).Str("manifest", path).Msg("ignoring malformed duration manifest")
		return nil
	}

	out := make(map[string]time.Duration, len(doc.Files))
	for _, f := range doc.Files {
		if f.Name == "" || f.Length <= 0 {
			continue
		}
		out[filepath.Base(f.Name)] = time.Duration(f.Length * float64(time.Second))
	}
	return out
}
