/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/commercials"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/holiday"
	"github.com/friendsincode/grimnir_tv/internal/library"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/timeblock"
)

// fakeController records starts and stops in order and hands out
// sessions with increasing ids.
type fakeController struct {
	nextID   int64
	failPath string
	ops      []string
	byID     map[int64]library.Asset
}

func newFakeController() *fakeController {
	return &fakeController{byID: make(map[int64]library.Asset)}
}

func (f *fakeController) Start(asset library.Asset) (*player.Session, error) {
	if f.failPath != "" && asset.Path == f.failPath {
		f.ops = append(f.ops, "fail "+asset.Title())
		return nil, errors.New("exec failed")
	}
	f.nextID++
	f.ops = append(f.ops, "start "+asset.Title())
	f.byID[f.nextID] = asset
	return &player.Session{
		ID:        f.nextID,
		UID:       fmt.Sprintf("fake-%d", f.nextID),
		Asset:     asset,
		StartedAt: time.Now(),
	}, nil
}

func (f *fakeController) Stop(s *player.Session) {
	f.ops = append(f.ops, fmt.Sprintf("stop %d", s.ID))
}

func (f *fakeController) started() []string {
	var out []string
	for _, op := range f.ops {
		if len(op) > 6 && op[:6] == "start " {
			out = append(out, op[6:])
		}
	}
	return out
}

func asset(path string) library.Asset { return library.Asset{Path: path} }

func writeAsset(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testSnapshot() *library.Snapshot {
	channels := map[string][]library.Channel{
		"morning": {
			{Name: "FOX", Scope: "morning", Shows: []library.Asset{asset("/tv/morning/FOX/a.mp4"), asset("/tv/morning/FOX/b.mp4")}},
			{Name: "Nickelodeon", Scope: "morning", Shows: []library.Asset{asset("/tv/morning/Nickelodeon/n1.mp4")}},
		},
		"evening": {
			{Name: "FOX", Scope: "evening", Shows: []library.Asset{asset("/tv/evening/FOX/e1.mp4")}},
		},
		"night": {
			{Name: "FOX", Scope: "night", Shows: []library.Asset{asset("/tv/night/FOX/x.mp4")}},
		},
		"holiday:halloween": {
			{Name: "HALLOWEEN", Scope: "holiday:halloween", Shows: []library.Asset{asset("/tv/holidays/halloween/HALLOWEEN/h1.mp4")}},
		},
	}
	pools := map[string]library.Pool{
		"day": {Name: "day", Spots: []library.Asset{asset("/tv/commercials/day/c1.mp4")}},
	}
	return library.NewSnapshot("/tv", channels, pools)
}

func testConfig() Config {
	return Config{
		Blocks:             timeblock.Defaults(),
		Order:              commercials.OrderSequential,
		CrashLimit:         2,
		CrashWindow:        10 * time.Minute,
		DurationMargin:     5 * time.Second,
		CutSpotsAtBoundary: true,
		TickInterval:       time.Second,
	}
}

func newTestEngine(t *testing.T, cfg Config, ctl Controller) *Engine {
	t.Helper()
	holder := library.NewHolder(testSnapshot())
	return New(cfg, holder, nil, nil, ctl, events.NewBus(), zerolog.Nop())
}

// finish drives the current session to a normal exit.
func finish(e *Engine, now time.Time) {
	e.handleFinished(finishedEvent{sessionID: e.session.ID}, now)
}

func morning() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestShowCommercialRotation(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	for i := 0; i < 6; i++ {
		finish(e, now)
	}

	// morning serves 2 spots per break from the day pool, which cycles
	// its single spot; shows advance by one and wrap.
	want := []string{"a", "c1", "c1", "b", "c1", "c1", "a"}
	got := ctl.started()
	if len(got) != len(want) {
		t.Fatalf("started %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playback order %v, want %v", got, want)
		}
	}
}

func TestTunePreemptsAndKeepsCursor(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	if got := e.Status().Channel; got != "FOX" {
		t.Fatalf("initial channel = %q, want FOX", got)
	}

	e.handleTune("Nickelodeon", now)

	wantOps := []string{"start a", "stop 1", "start n1"}
	for i, op := range wantOps {
		if ctl.ops[i] != op {
			t.Fatalf("ops = %v, want %v", ctl.ops, wantOps)
		}
	}
	if got := e.Status().Channel; got != "Nickelodeon" {
		t.Fatalf("channel after tune = %q, want Nickelodeon", got)
	}
	// The abandoned channel's cursor still points at the interrupted
	// show, so returning there replays it before advancing.
	if pos := e.cursors["morning/FOX"]; pos != 0 {
		t.Fatalf("FOX cursor = %d, want 0", pos)
	}
}

func TestTuneBackAdvancesFromKeptCursor(t *testing.T) {
	cfg := testConfig()
	cfg.Blocks = timeblock.Blocks{
		{Name: "allday", Folder: "morning", Start: 0, End: 1440, CommercialPool: "day", SpotsPerBreak: 0},
	}
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	e.handleTune("Nickelodeon", now)
	e.handleTune("FOX", now)

	// FOX's cursor stayed at a while Nickelodeon played, so the next
	// visit advances to b.
	want := []string{"a", "n1", "b"}
	got := ctl.started()
	if len(got) != 3 || got[2] != "b" {
		t.Fatalf("started %v, want %v", got, want)
	}
}

func TestStaleOutcomeIgnored(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	e.handleTune("Nickelodeon", now)
	before := len(ctl.ops)

	// The stop of session 1 eventually reports back; by then session 2
	// owns playback and the outcome must be dropped.
	e.handleFinished(finishedEvent{sessionID: 1, stopped: true}, now)
	if len(ctl.ops) != before {
		t.Fatalf("stale outcome triggered ops: %v", ctl.ops[before:])
	}
	if e.session == nil || e.session.ID != 2 {
		t.Fatal("live session lost after stale outcome")
	}
}

func TestCrashBenchFallsBackToNextChannel(t *testing.T) {
	cfg := testConfig()
	cfg.Blocks = timeblock.Blocks{
		{Name: "allday", Folder: "morning", Start: 0, End: 1440, CommercialPool: "day", SpotsPerBreak: 0},
	}
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	// Three crashes inside the window exceed the bound of 2.
	for i := 0; i < 3; i++ {
		e.handleFinished(finishedEvent{sessionID: e.session.ID, crashed: true}, now)
	}

	if _, benched := e.benchedUntil["morning/FOX"]; !benched {
		t.Fatal("FOX not benched after repeated crashes")
	}
	if got := e.Status().Channel; got != "Nickelodeon" {
		t.Fatalf("channel after bench = %q, want Nickelodeon", got)
	}

	// The bench expires with the window and FOX becomes eligible again.
	later := now.Add(cfg.CrashWindow + time.Minute)
	chs := e.eligible(e.Library().Channels("morning"), later)
	if len(chs) != 2 {
		t.Fatalf("eligible after bench expiry = %d channels, want 2", len(chs))
	}
}

func TestStartFailureCountsAsCrash(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	ctl.failPath = "/tv/morning/FOX/a.mp4"
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)

	if e.session != nil {
		t.Fatal("session set after failed start")
	}
	if e.Status().State != StateRecovering {
		t.Fatalf("state = %q, want recovering", e.Status().State)
	}
	if len(e.crashes["morning/FOX"]) != 1 {
		t.Fatal("failed start not recorded as crash")
	}

	// The silent station retries on the next tick; the cursor has
	// advanced past the bad asset.
	e.handleTick(now.Add(time.Second))
	got := ctl.started()
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("retry started %v, want [b]", got)
	}
}

func TestHolidayOverridesBlock(t *testing.T) {
	cfg := testConfig()
	cfg.Holidays = holiday.Set{{
		Name:           "halloween",
		Start:          holiday.MonthDay{Month: 10, Day: 24},
		End:            holiday.MonthDay{Month: 11, Day: 1},
		Folder:         "halloween",
		CommercialPool: "spooky",
		SpotsPerBreak:  0,
	}}
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := time.Date(2026, 10, 31, 9, 0, 0, 0, time.UTC)
	e.resolve(now)

	st := e.Status()
	if st.Holiday != "halloween" {
		t.Fatalf("holiday = %q, want halloween", st.Holiday)
	}
	if st.Channel != "HALLOWEEN" || st.Asset != "h1" {
		t.Fatalf("playing %s/%s, want HALLOWEEN/h1", st.Channel, st.Asset)
	}

	// Zero spots per break during the override: shows play back to back.
	finish(e, now)
	got := ctl.started()
	if len(got) != 2 || got[1] != "h1" {
		t.Fatalf("started %v, want h1 twice", got)
	}
}

func TestBoundaryCutsCommercialImmediately(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := time.Date(2026, 3, 10, 10, 59, 0, 0, time.UTC)
	e.resolve(now)
	finish(e, now) // show done, first spot starts

	if e.kind != KindCommercial {
		t.Fatalf("kind = %q, want commercial", e.kind)
	}
	crossing := time.Date(2026, 3, 10, 11, 0, 30, 0, time.UTC)
	e.handleTick(crossing)

	last := ctl.ops[len(ctl.ops)-1]
	if last != fmt.Sprintf("stop %d", e.session.ID) {
		t.Fatalf("last op = %q, want stop of running spot", last)
	}
	if e.pending != 0 {
		t.Fatalf("pending spots = %d after boundary cut, want 0", e.pending)
	}
}

func TestBoundaryWaitsForShow(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := time.Date(2026, 3, 10, 19, 59, 0, 0, time.UTC) // evening
	e.resolve(now)
	before := len(ctl.ops)

	crossing := time.Date(2026, 3, 10, 20, 0, 30, 0, time.UTC) // night
	e.handleTick(crossing)
	if len(ctl.ops) != before {
		t.Fatalf("show interrupted at boundary: %v", ctl.ops[before:])
	}

	// When it finishes, resolution lands in the night scope.
	e.handleFinished(finishedEvent{sessionID: e.session.ID}, crossing)
	st := e.Status()
	if st.Block != "night" {
		t.Fatalf("block = %q, want night", st.Block)
	}
}

func TestOverdueSessionStopped(t *testing.T) {
	cfg := testConfig()
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	e.session.Asset.Duration = 30 * time.Second
	e.session.StartedAt = now

	e.handleTick(now.Add(20 * time.Second))
	if last := ctl.ops[len(ctl.ops)-1]; last != "start a" {
		t.Fatalf("session stopped before overdue: %v", ctl.ops)
	}

	e.handleTick(now.Add(40 * time.Second))
	want := fmt.Sprintf("stop %d", e.session.ID)
	if last := ctl.ops[len(ctl.ops)-1]; last != want {
		t.Fatalf("last op = %q, want %q", last, want)
	}
}

func TestSilenceWhenScopeEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.Blocks = timeblock.Blocks{
		{Name: "allday", Folder: "nosuch", Start: 0, End: 1440, CommercialPool: "day"},
	}
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	now := morning()
	e.resolve(now)
	if e.Status().State != StateIdle {
		t.Fatalf("state = %q, want idle", e.Status().State)
	}
	// Ticks keep retrying without starting anything.
	e.handleTick(now.Add(time.Second))
	if len(ctl.started()) != 0 {
		t.Fatalf("started %v in an empty scope", ctl.started())
	}
}

func TestRescanSwapsSnapshotAndResetsInjectors(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "morning/FOX/a.mp4")
	writeAsset(t, root, "commercials/day/c9.mp4")

	cfg := testConfig()
	ctl := newFakeController()
	holder := library.NewHolder(testSnapshot())
	scanner := &library.Scanner{Root: root, Logger: zerolog.Nop()}
	e := New(cfg, holder, scanner, nil, ctl, events.NewBus(), zerolog.Nop())

	now := morning()
	e.resolve(now)
	e.injector("day", e.Library()) // warm the cache

	e.handleRescan(now)
	if e.Library().AssetCount() != 2 {
		t.Fatalf("assets after rescan = %d, want 2", e.Library().AssetCount())
	}
	if len(e.injectors) != 0 {
		t.Fatal("injector cache not reset by rescan")
	}

	// Current playback is untouched by the swap.
	if e.session == nil {
		t.Fatal("rescan interrupted playback")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.TickInterval = 10 * time.Millisecond
	ctl := newFakeController()
	e := newTestEngine(t, cfg, ctl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
