/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/logbuffer"
)

// Server exposes the guide over HTTP.
type Server struct {
	station    Station
	logs       *logbuffer.Buffer
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer wires the guide routes. logs may be nil.
func NewServer(bind string, station Station, logs *logbuffer.Buffer, logger zerolog.Logger) *Server {
	s := &Server{
		station: station,
		logs:    logs,
		logger:  logger.With().Str("component", "guide").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/schedule", s.handleSchedule)
		r.Get("/guide", s.handleGuide)
		r.Post("/tune", s.handleTune)
		r.Post("/rescan", s.handleRescan)
		r.Get("/logs", s.handleLogs)
	})

	s.router = router
	s.httpServer = &http.Server{
		Addr:              bind,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("bind", s.httpServer.Addr).Msg("guide listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleSchedule reports what the station is doing right now.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.station.Status())
}

// handleGuide lists every scope and channel with the current status.
func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildListing(s.station))
}

type tuneRequest struct {
	Channel string `json:"channel"`
}

// handleTune accepts a channel either as JSON body or query parameter.
func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	var req tuneRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Channel == "" {
		req.Channel = r.URL.Query().Get("channel")
	}
	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel_required")
		return
	}

	s.logger.Info().Str("channel", req.Channel).Msg("tune via guide")
	s.station.Tune(req.Channel)
	writeJSON(w, http.StatusAccepted, map[string]string{"channel": req.Channel})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	s.station.Rescan()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rescan_requested"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	level := r.URL.Query().Get("level")

	entries := s.logs.Recent(limit, level)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
