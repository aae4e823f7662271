/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/engine"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/guide"
	"github.com/friendsincode/grimnir_tv/internal/library"
	"github.com/friendsincode/grimnir_tv/internal/logbuffer"
	"github.com/friendsincode/grimnir_tv/internal/logging"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/state"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
	"github.com/friendsincode/grimnir_tv/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "grimnirtv",
	Short: "Grimnir TV - Broadcast television station simulator",
	Long:  "Grimnir TV turns a folder of video files into a continuously running broadcast station with time blocks, channels, commercials and holiday programming.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station",
	Long:  "Start the schedule engine, the external player and the guide interface",
	RunE:  runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the station configuration",
	RunE:  runValidate,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index the content library and print what was found",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig(logSink *logbuffer.Buffer) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logSink != nil {
		logger = logging.SetupWithWriter(cfg.Environment, logSink)
	} else {
		logger = logging.Setup(cfg.Environment)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logSink := logbuffer.New(1000)
	if err := loadConfig(logSink); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Grimnir TV starting")

	var store *state.Store
	if cfg.StateDBPath != "" {
		var err error
		store, err = state.Open(cfg.StateDBPath)
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer store.Close()
	}

	scanner := &library.Scanner{
		Root:        cfg.ContentRoot,
		HolidayRoot: cfg.HolidayRoot,
		Logger:      logger,
	}
	snap, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan content library: %w", err)
	}
	holder := library.NewHolder(snap)
	telemetry.LibraryAssets.Set(float64(snap.AssetCount()))

	bus := events.NewBus()

	ctl := player.New(player.Config{
		Bin:        cfg.PlayerBin,
		Args:       cfg.PlayerArgs,
		RemoteArgs: cfg.PlayerRemoteArgs,
		StopGrace:  cfg.StopGrace,
	}, logger)

	eng := engine.New(engine.Config{
		Blocks:             cfg.Blocks,
		Holidays:           cfg.Holidays,
		Order:              cfg.SelectionOrder,
		Seed:               cfg.SelectionSeed,
		CrashLimit:         cfg.CrashLimit,
		CrashWindow:        cfg.CrashWindow,
		DurationMargin:     cfg.DurationMargin,
		CutSpotsAtBoundary: cfg.CutSpotsAtBoundary,
		TickInterval:       cfg.TickInterval,
	}, holder, scanner, store, ctl, bus, logger)
	ctl.Notify(eng.OnPlayerExit)

	guideSrv := guide.NewServer(cfg.GuideBind, eng, logSink, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := version.NewChecker(logger)
	checker.Start(ctx)
	defer checker.Stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = eng.Run(ctx)
	}()

	go func() {
		if err := guideSrv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("guide server error")
		}
	}()

	if cfg.RequestDir != "" {
		watcher, err := guide.NewWatcher(cfg.RequestDir, eng, logger)
		if err != nil {
			return fmt.Errorf("request watcher: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("request watcher stopped")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	cancel()
	<-engineDone

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()
	if err := guideSrv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	ctl.Shutdown()

	logger.Info().Msg("Grimnir TV stopped")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	logger.Info().
		Int("blocks", len(cfg.Blocks)).
		Int("holidays", len(cfg.Holidays)).
		Str("content_root", cfg.ContentRoot).
		Msg("configuration valid")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	scanner := &library.Scanner{
		Root:        cfg.ContentRoot,
		HolidayRoot: cfg.HolidayRoot,
		Logger:      logger,
	}
	snap, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan content library: %w", err)
	}

	for _, scope := range snap.Scopes() {
		for _, ch := range snap.Channels(scope) {
			fmt.Printf("%s/%s: %d shows\n", scope, ch.Name, len(ch.Shows))
		}
	}
	fmt.Printf("total assets: %d\n", snap.AssetCount())
	return nil
}
