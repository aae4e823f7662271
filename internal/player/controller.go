/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player owns the lifecycle of the external decode process.
package player

import (
	"errors"
	"net/url"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/library"
)

// ErrSessionActive indicates Start was called while a session is live.
// The schedule engine must always Stop before Start; this is a
// programming-contract violation, not a runtime condition.
var ErrSessionActive = errors.New("playback session already active")

// Outcome reports how a session ended. Exactly one Outcome is delivered
// per session.
type Outcome struct {
	SessionID int64
	Crashed   bool // non-zero exit or unexpected kill
	Stopped   bool // controller-initiated stop (preemption/shutdown)
}

// ExitFunc receives session outcomes from the watcher goroutine.
type ExitFunc func(Outcome)

// Config holds the external player invocation.
type Config struct {
	Bin        string        // player binary, default cvlc
	Args       []string      // base flags
	RemoteArgs []string      // extra flags appended for network paths
	StopGrace  time.Duration // SIGTERM-to-SIGKILL grace
}

// Session is one live (or finished) playback of a single asset.
type Session struct {
	ID        int64
	UID       string // correlation id for events/logs
	Asset     library.Asset
	StartedAt time.Time

	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stopped bool
	exited  bool
}

// Controller launches and supervises at most one external player
// process at a time.
type Controller struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	onExit ExitFunc
	active *Session
	nextID int64
}

// New creates a controller. Notify must be called before Start.
func New(cfg Config, logger zerolog.Logger) *Controller {
	if cfg.Bin == "" {
		cfg.Bin = "cvlc"
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"--no-video-title-show", "--play-and-exit", "--no-loop", "--fullscreen"}
	}
	if len(cfg.RemoteArgs) == 0 {
		cfg.RemoteArgs = []string{"--network-caching", "5000", "--http-reconnect"}
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 3 * time.Second
	}
	return &Controller{
		cfg:    cfg,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Notify registers the exit callback. Outcomes are delivered from the
// watcher goroutine; the callback must not block.
func (c *Controller) Notify(fn ExitFunc) {
	c.mu.Lock()
	c.onExit = fn
	c.mu.Unlock()
}

// Start launches the player for one asset and begins watching for its
// exit. Returns ErrSessionActive if a session is still live.
func (c *Controller) Start(asset library.Asset) (*Session, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.nextID++
	sess := &Session{
		ID:        c.nextID,
		UID:       uuid.NewString(),
		Asset:     asset,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.active = sess
	onExit := c.onExit
	c.mu.Unlock()

	args := append([]string(nil), c.cfg.Args...)
	path := asset.Path
	if asset.Remote() {
		args = append(args, c.cfg.RemoteArgs...)
		path = encodeRemotePath(path)
	}
	args = append(args, path)

	cmd := exec.Command(c.cfg.Bin, args...)
	sess.cmd = cmd

	if err := cmd.Start(); err != nil {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		return nil, err
	}

	c.logger.Info().
		Int64("session_id", sess.ID).
		Str("session_uid", sess.UID).
		Str("path", asset.Path).
		Msg("player process started")

	go c.watch(sess, onExit)
	return sess, nil
}

// watch waits for the process and reports its outcome exactly once.
func (c *Controller) watch(s *Session, onExit ExitFunc) {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.exited = true
	stopped := s.stopped
	s.mu.Unlock()
	close(s.done)

	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()

	crashed := err != nil && !stopped
	c.logger.Info().
		Int64("session_id", s.ID).
		Bool("crashed", crashed).
		Bool("stopped", stopped).
		Msg("player process exited")

	if onExit != nil {
		onExit(Outcome{SessionID: s.ID, Crashed: crashed, Stopped: stopped})
	}
}

// Stop terminates a session's process. Safe to call on a nil, already
// stopped, or already exited session.
func (c *Controller) Stop(s *Session) {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.exited || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// already gone; the watcher will report
		return
	}

	select {
	case <-s.done:
	case <-time.After(c.cfg.StopGrace):
		c.logger.Warn().Int64("session_id", s.ID).Msg("player ignored SIGTERM, killing")
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

// Shutdown stops whatever is playing. Called unconditionally on exit.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	c.Stop(active)
}

// encodeRemotePath re-encodes the path component of a URL so spaces and
// special characters survive the player's argument parsing.
func encodeRemotePath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.String()
}
