/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/friendsincode/grimnir_tv/internal/commercials"
	"github.com/friendsincode/grimnir_tv/internal/holiday"
	"github.com/friendsincode/grimnir_tv/internal/timeblock"
)

// Config covers process level configuration. Scalar settings come from
// GRIMNIRTV_* environment variables; the structured schedule (time
// blocks, holidays, player invocation) comes from the optional YAML
// station file.
type Config struct {
	Environment string
	ContentRoot string
	HolidayRoot string // defaults to <content root>/holidays
	StationFile string
	GuideBind   string
	RequestDir  string // drop-file directory for out-of-band tune requests
	StateDBPath string // empty disables cursor persistence

	PlayerBin        string
	PlayerArgs       []string
	PlayerRemoteArgs []string
	StopGrace        time.Duration

	TickInterval       time.Duration
	DurationMargin     time.Duration
	CutSpotsAtBoundary bool

	CrashLimit  int
	CrashWindow time.Duration

	SelectionOrder commercials.Order
	SelectionSeed  int64

	Blocks   timeblock.Blocks
	Holidays holiday.Set
}

// Load reads environment variables and the station file, applies
// defaults, and validates the result. Validation fails closed: an
// invalid schedule configuration never reaches playback.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("GRIMNIRTV_ENV", "development"),
		ContentRoot: getEnv("GRIMNIRTV_CONTENT_ROOT", "./content"),
		HolidayRoot: getEnv("GRIMNIRTV_HOLIDAY_ROOT", ""),
		StationFile: getEnv("GRIMNIRTV_STATION_FILE", ""),
		GuideBind:   getEnv("GRIMNIRTV_GUIDE_BIND", "127.0.0.1:8080"),
		RequestDir:  getEnv("GRIMNIRTV_REQUEST_DIR", ""),
		StateDBPath: getEnv("GRIMNIRTV_STATE_DB", "grimnirtv.db"),

		PlayerBin: getEnv("GRIMNIRTV_PLAYER_BIN", "cvlc"),
		StopGrace: getEnvDuration("GRIMNIRTV_PLAYER_STOP_GRACE", 3*time.Second),

		TickInterval:       getEnvDuration("GRIMNIRTV_TICK_INTERVAL", time.Second),
		DurationMargin:     getEnvDuration("GRIMNIRTV_DURATION_MARGIN", 5*time.Second),
		CutSpotsAtBoundary: getEnvBool("GRIMNIRTV_CUT_SPOTS_AT_BOUNDARY", true),

		CrashLimit:  getEnvInt("GRIMNIRTV_CRASH_LIMIT", 3),
		CrashWindow: getEnvDuration("GRIMNIRTV_CRASH_WINDOW", 10*time.Minute),

		SelectionOrder: commercials.Order(getEnv("GRIMNIRTV_SELECTION_ORDER", string(commercials.OrderSequential))),
		SelectionSeed:  int64(getEnvInt("GRIMNIRTV_SELECTION_SEED", 0)),

		Blocks: timeblock.Defaults(),
	}

	if cfg.StationFile != "" {
		if err := applyStationFile(cfg, cfg.StationFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ContentRoot == "" {
		return fmt.Errorf("GRIMNIRTV_CONTENT_ROOT must not be empty")
	}
	if err := c.Blocks.Validate(); err != nil {
		return fmt.Errorf("time blocks: %w", err)
	}
	if err := c.Holidays.Validate(); err != nil {
		return fmt.Errorf("holidays: %w", err)
	}
	if !c.SelectionOrder.Valid() {
		return fmt.Errorf("unsupported selection order %q", c.SelectionOrder)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.CrashLimit <= 0 || c.CrashWindow <= 0 {
		return fmt.Errorf("crash limit and window must be positive")
	}
	for _, b := range c.Blocks {
		if b.SpotsPerBreak < 0 {
			return fmt.Errorf("time block %q has negative spots per break", b.Name)
		}
	}
	for _, h := range c.Holidays {
		if h.SpotsPerBreak < 0 {
			return fmt.Errorf("holiday %q has negative spots per break", h.Name)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		switch val {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
