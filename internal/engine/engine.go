/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine drives the station's schedule. A single goroutine owns
// all scheduling state and consumes a serialized event queue: ticks,
// player exits, tune requests and rescans. Everything else in the
// process talks to the engine by posting events.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/commercials"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/holiday"
	"github.com/friendsincode/grimnir_tv/internal/library"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/state"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
	"github.com/friendsincode/grimnir_tv/internal/timeblock"
)

// Kind classifies a playback session.
type Kind string

const (
	KindShow       Kind = "show"
	KindCommercial Kind = "commercial"
)

// State is the engine's coarse lifecycle state, exposed through Status.
type State string

const (
	StateIdle              State = "idle"
	StateResolving         State = "resolving"
	StatePlayingShow       State = "playing_show"
	StatePlayingCommercial State = "playing_commercial"
	StateRecovering        State = "recovering"
)

// Controller abstracts the external player process.
type Controller interface {
	Start(asset library.Asset) (*player.Session, error)
	Stop(s *player.Session)
}

// Config carries the schedule rules the engine runs under.
type Config struct {
	Blocks             timeblock.Blocks
	Holidays           holiday.Set
	Order              commercials.Order
	Seed               int64
	CrashLimit         int           // crashes inside CrashWindow before a channel is benched
	CrashWindow        time.Duration // sliding window, also the bench duration
	DurationMargin     time.Duration // watchdog slack past a known asset duration
	CutSpotsAtBoundary bool          // stop a running spot when the block changes
	TickInterval       time.Duration
}

// Status is a point-in-time snapshot of what the station is doing.
type Status struct {
	State     State     `json:"state"`
	Block     string    `json:"block"`
	Holiday   string    `json:"holiday,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Asset     string    `json:"asset,omitempty"`
	AssetPath string    `json:"asset_path,omitempty"`
	Kind      Kind      `json:"kind,omitempty"`
	SessionID int64     `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tickEvent struct{ now time.Time }

type finishedEvent struct {
	sessionID int64
	crashed   bool
	stopped   bool
}

type tuneEvent struct{ channel string }

type rescanEvent struct{}

// Engine is the schedule state machine. All mutable fields below queue
// are owned by the Run goroutine; Status reads go through statusMu.
type Engine struct {
	cfg     Config
	lib     *library.Holder
	scanner *library.Scanner
	store   *state.Store
	ctl     Controller
	bus     *events.Bus
	logger  zerolog.Logger

	queue chan any

	st           State
	block        timeblock.Block
	activeHol    string
	tuneTarget   string
	pending      int // commercials still owed in the current break
	deferred     bool
	session      *player.Session
	kind         Kind
	channel      library.Channel
	haveChannel  bool
	cursors      map[string]int    // channel key -> index of last played show
	selections   map[string]string // scope -> last channel name
	injectors    map[string]*commercials.Injector
	crashes      map[string][]time.Time
	benchedUntil map[string]time.Time

	statusMu sync.RWMutex
	status   Status
}

// New builds an engine. Persisted cursors and channel selections are
// loaded from the store; load failures are logged and start empty.
func New(cfg Config, lib *library.Holder, scanner *library.Scanner, store *state.Store, ctl Controller, bus *events.Bus, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:          cfg,
		lib:          lib,
		scanner:      scanner,
		store:        store,
		ctl:          ctl,
		bus:          bus,
		logger:       logger.With().Str("component", "engine").Logger(),
		queue:        make(chan any, 64),
		st:           StateIdle,
		cursors:      make(map[string]int),
		selections:   make(map[string]string),
		injectors:    make(map[string]*commercials.Injector),
		crashes:      make(map[string][]time.Time),
		benchedUntil: make(map[string]time.Time),
	}
	if cursors, err := store.Cursors(); err != nil {
		e.logger.Warn().Err(err).Msg("could not load persisted cursors")
	} else {
		e.cursors = cursors
	}
	if sels, err := store.Selections(); err != nil {
		e.logger.Warn().Err(err).Msg("could not load persisted channel selections")
	} else {
		e.selections = sels
	}
	return e
}

// OnPlayerExit accepts session outcomes from the player watcher.
func (e *Engine) OnPlayerExit(o player.Outcome) {
	e.queue <- finishedEvent{sessionID: o.SessionID, crashed: o.Crashed, stopped: o.Stopped}
}

// Tune requests a channel change within the current time block.
func (e *Engine) Tune(channel string) {
	telemetry.TuneRequests.Inc()
	e.queue <- tuneEvent{channel: channel}
}

// Rescan requests a library re-index. The new snapshot takes effect at
// the next scheduling decision; current playback is not interrupted.
func (e *Engine) Rescan() {
	e.queue <- rescanEvent{}
}

// Library returns the current content snapshot.
func (e *Engine) Library() *library.Snapshot { return e.lib.Current() }

// Status returns a copy of the engine's public state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Run executes the scheduling loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().
		Int("blocks", len(e.cfg.Blocks)).
		Int("holidays", len(e.cfg.Holidays)).
		Msg("schedule engine started")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.handleTick(time.Now())
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case now := <-ticker.C:
			e.handleTick(now)
		case ev := <-e.queue:
			e.handle(ev, time.Now())
		}
	}
}

func (e *Engine) handle(ev any, now time.Time) {
	switch ev := ev.(type) {
	case tickEvent:
		e.handleTick(ev.now)
	case finishedEvent:
		e.handleFinished(ev, now)
	case tuneEvent:
		e.handleTune(ev.channel, now)
	case rescanEvent:
		e.handleRescan(now)
	}
}

// handleTick re-evaluates the clock. While an asset is playing it only
// watches for block/holiday boundaries and overdue sessions; while the
// station is silent it retries resolution.
func (e *Engine) handleTick(now time.Time) {
	if e.session == nil {
		e.resolve(now)
		return
	}

	if d := e.session.Asset.Duration; d > 0 && now.Sub(e.session.StartedAt) > d+e.cfg.DurationMargin {
		e.logger.Warn().
			Str("asset", e.session.Asset.Title()).
			Dur("duration", d).
			Msg("session overdue, stopping player")
		e.ctl.Stop(e.session)
		return
	}

	block := e.cfg.Blocks.Resolve(now)
	holName := ""
	if hol, ok := e.cfg.Holidays.Resolve(now); ok && hol.AppliesTo(block.Name) {
		holName = hol.Name
	}
	if block.Name == e.block.Name && holName == e.activeHol {
		return
	}

	// Boundary crossed mid-session. Shows always finish; spots are cut
	// when configured, otherwise the switch waits for the asset to end.
	if e.kind == KindCommercial && e.cfg.CutSpotsAtBoundary {
		e.logger.Info().
			Str("block", block.Name).
			Msg("block boundary, cutting commercial")
		e.pending = 0
		e.ctl.Stop(e.session)
		return
	}
	if !e.deferred {
		e.deferred = true
		e.logger.Debug().
			Str("block", block.Name).
			Str("asset", e.session.Asset.Title()).
			Msg("block boundary, waiting for current asset")
	}
}

func (e *Engine) handleFinished(ev finishedEvent, now time.Time) {
	if e.session == nil || ev.sessionID != e.session.ID {
		e.logger.Debug().Int64("session_id", ev.sessionID).Msg("dropping stale session outcome")
		return
	}

	finished := e.session
	kind := e.kind
	e.session = nil
	e.deferred = false

	outcome := "finished"
	switch {
	case ev.crashed:
		outcome = "crashed"
	case ev.stopped:
		outcome = "stopped"
	}
	telemetry.SessionsFinished.WithLabelValues(string(kind), outcome).Inc()
	e.bus.Publish(events.EventAssetFinished, events.Payload{
		"session": finished.UID,
		"asset":   finished.Asset.Title(),
		"channel": e.channel.Name,
		"kind":    string(kind),
		"outcome": outcome,
	})

	if ev.crashed {
		e.logger.Warn().
			Str("asset", finished.Asset.Title()).
			Str("channel", e.channel.Key()).
			Msg("player crashed")
		e.bus.Publish(events.EventPlaybackError, events.Payload{
			"asset":   finished.Asset.Path,
			"channel": e.channel.Key(),
		})
		e.recordCrash(e.channel.Key(), now)
		e.pending = 0
		e.setState(StateRecovering, now)
	} else if kind == KindShow {
		e.pending = e.spotBudget(now)
	}

	e.resolve(now)
}

func (e *Engine) handleTune(channel string, now time.Time) {
	e.logger.Info().Str("channel", channel).Msg("tune request")
	e.bus.Publish(events.EventTuneRequested, events.Payload{"channel": channel})

	if e.session != nil {
		// Clearing session first makes the eventual stop outcome stale.
		s := e.session
		e.session = nil
		e.ctl.Stop(s)
	}
	e.pending = 0
	e.deferred = false
	e.tuneTarget = channel
	e.resolve(now)
}

func (e *Engine) handleRescan(now time.Time) {
	if e.scanner == nil {
		e.logger.Warn().Msg("rescan requested but no scanner configured")
		return
	}
	snap, err := e.scanner.Scan()
	if err != nil {
		e.logger.Error().Err(err).Msg("library rescan failed, keeping previous index")
		return
	}
	e.lib.Swap(snap)
	e.injectors = make(map[string]*commercials.Injector)
	telemetry.LibraryAssets.Set(float64(snap.AssetCount()))
	e.logger.Info().Int("assets", snap.AssetCount()).Msg("library rescanned")
	e.bus.Publish(events.EventLibraryRescanned, events.Payload{"assets": snap.AssetCount()})
}

// resolve picks and starts the next asset for the current wall-clock
// position: holiday scope when one applies, otherwise the time block's
// folder; a pending commercial before the next show in rotation.
func (e *Engine) resolve(now time.Time) {
	e.setState(StateResolving, now)

	snap := e.lib.Current()
	e.block = e.cfg.Blocks.Resolve(now)

	scope := e.block.Folder
	poolName := e.block.CommercialPool
	holName := ""
	if hol, ok := e.cfg.Holidays.Resolve(now); ok && hol.AppliesTo(e.block.Name) {
		scope = library.HolidayScope(hol.Folder)
		poolName = hol.CommercialPool
		holName = hol.Name
	}
	if holName != e.activeHol {
		if holName != "" {
			e.logger.Info().Str("holiday", holName).Msg("holiday override active")
			e.bus.Publish(events.EventHolidayActivated, events.Payload{"holiday": holName})
			telemetry.HolidayActive.Set(1)
		} else {
			telemetry.HolidayActive.Set(0)
		}
		e.activeHol = holName
	}

	candidates := e.eligible(snap.Channels(scope), now)
	if len(candidates) == 0 {
		e.logger.Error().Str("scope", scope).Msg("no playable channel, staying silent")
		e.setState(StateIdle, now)
		return
	}

	chosen := e.pickChannel(candidates, scope)
	if e.haveChannel && chosen.Key() != e.channel.Key() {
		e.logger.Info().
			Str("from", e.channel.Name).
			Str("to", chosen.Name).
			Msg("switching channel")
		e.bus.Publish(events.EventChannelSwitched, events.Payload{
			"from": e.channel.Name,
			"to":   chosen.Name,
		})
		telemetry.ChannelSwitches.Inc()
	}
	e.channel = chosen
	e.haveChannel = true
	if e.selections[scope] != chosen.Name {
		e.selections[scope] = chosen.Name
		if err := e.store.SaveSelection(scope, chosen.Name); err != nil {
			e.logger.Warn().Err(err).Msg("could not persist channel selection")
		}
	}

	if e.pending > 0 {
		if spot, ok := e.injector(poolName, snap).Next(); ok {
			e.pending--
			e.start(spot, KindCommercial, now)
			return
		}
		// An empty or missing pool skips the break entirely.
		e.logger.Debug().Str("pool", poolName).Msg("commercial pool empty, skipping break")
		e.pending = 0
	}

	idx := 0
	if last, ok := e.cursors[chosen.Key()]; ok {
		idx = (last + 1) % len(chosen.Shows)
	}
	e.cursors[chosen.Key()] = idx
	if err := e.store.SaveCursor(chosen.Key(), idx); err != nil {
		e.logger.Warn().Err(err).Msg("could not persist cursor")
	}
	e.start(chosen.Shows[idx], KindShow, now)
}

// eligible filters out empty and benched channels, expiring stale
// bench entries on the way through.
func (e *Engine) eligible(chs []library.Channel, now time.Time) []library.Channel {
	out := make([]library.Channel, 0, len(chs))
	for _, ch := range chs {
		if len(ch.Shows) == 0 {
			continue
		}
		if until, ok := e.benchedUntil[ch.Key()]; ok {
			if now.Before(until) {
				continue
			}
			delete(e.benchedUntil, ch.Key())
		}
		out = append(out, ch)
	}
	return out
}

// pickChannel prefers a still-valid tune target, then the last channel
// played in this scope, then the first candidate.
func (e *Engine) pickChannel(candidates []library.Channel, scope string) library.Channel {
	if e.tuneTarget != "" {
		for _, ch := range candidates {
			if ch.Name == e.tuneTarget {
				return ch
			}
		}
	}
	if last, ok := e.selections[scope]; ok {
		for _, ch := range candidates {
			if ch.Name == last {
				return ch
			}
		}
	}
	return candidates[0]
}

func (e *Engine) injector(pool string, snap *library.Snapshot) *commercials.Injector {
	if in, ok := e.injectors[pool]; ok {
		return in
	}
	p, _ := snap.Pool(pool)
	in := commercials.New(p, e.cfg.Order, e.cfg.Seed)
	e.injectors[pool] = in
	return in
}

func (e *Engine) spotBudget(now time.Time) int {
	block := e.cfg.Blocks.Resolve(now)
	if hol, ok := e.cfg.Holidays.Resolve(now); ok && hol.AppliesTo(block.Name) {
		return hol.SpotsPerBreak
	}
	return block.SpotsPerBreak
}

func (e *Engine) start(asset library.Asset, kind Kind, now time.Time) {
	sess, err := e.ctl.Start(asset)
	if err != nil {
		e.logger.Error().Err(err).Str("asset", asset.Title()).Msg("player start failed")
		e.bus.Publish(events.EventPlaybackError, events.Payload{
			"asset":   asset.Path,
			"channel": e.channel.Key(),
		})
		e.recordCrash(e.channel.Key(), now)
		e.setState(StateRecovering, now)
		return
	}
	e.session = sess
	e.kind = kind

	st := StatePlayingShow
	if kind == KindCommercial {
		st = StatePlayingCommercial
	}
	e.setState(st, now)

	e.logger.Info().
		Str("asset", asset.Title()).
		Str("channel", e.channel.Name).
		Str("kind", string(kind)).
		Str("session", sess.UID).
		Msg("playback started")
	e.bus.Publish(events.EventAssetStarted, events.Payload{
		"session": sess.UID,
		"asset":   asset.Title(),
		"path":    asset.Path,
		"channel": e.channel.Name,
		"kind":    string(kind),
	})
	telemetry.SessionsStarted.WithLabelValues(string(kind)).Inc()
}

// recordCrash notes a crash for the channel and benches it once the
// count inside the sliding window exceeds the configured bound.
func (e *Engine) recordCrash(key string, now time.Time) {
	telemetry.PlaybackCrashes.WithLabelValues(key).Inc()

	cutoff := now.Add(-e.cfg.CrashWindow)
	recent := e.crashes[key][:0]
	for _, t := range e.crashes[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	e.crashes[key] = recent

	if len(recent) > e.cfg.CrashLimit {
		until := now.Add(e.cfg.CrashWindow)
		e.benchedUntil[key] = until
		delete(e.crashes, key)
		e.logger.Warn().
			Str("channel", key).
			Time("until", until).
			Msg("channel benched after repeated crashes")
	}
}

func (e *Engine) shutdown() {
	if e.session != nil {
		e.ctl.Stop(e.session)
		e.session = nil
	}
	e.setState(StateIdle, time.Now())
	e.logger.Info().Msg("schedule engine stopped")
}

func (e *Engine) setState(st State, now time.Time) {
	e.st = st

	s := Status{
		State:     st,
		Block:     e.block.Name,
		Holiday:   e.activeHol,
		UpdatedAt: now,
	}
	if e.haveChannel {
		s.Channel = e.channel.Name
	}
	if e.session != nil {
		s.Asset = e.session.Asset.Title()
		s.AssetPath = e.session.Asset.Path
		s.Kind = e.kind
		s.SessionID = e.session.ID
		s.StartedAt = e.session.StartedAt
	}

	e.statusMu.Lock()
	e.status = s
	e.statusMu.Unlock()
}
