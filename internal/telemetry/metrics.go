/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes the station's prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts playback sessions by asset kind.
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_sessions_started_total",
		Help: "Playback sessions started, by asset kind",
	}, []string{"kind"})

	// SessionsFinished counts completed sessions by kind and outcome.
	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_sessions_finished_total",
		Help: "Playback sessions finished, by asset kind and outcome",
	}, []string{"kind", "outcome"})

	// PlaybackCrashes counts player process crashes per channel.
	PlaybackCrashes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_playback_crashes_total",
		Help: "Player process crashes, by channel key",
	}, []string{"channel"})

	// ChannelSwitches counts effective channel changes.
	ChannelSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnirtv_channel_switches_total",
		Help: "Effective channel changes, automatic or user tuned",
	})

	// TuneRequests counts user-initiated tune events.
	TuneRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnirtv_tune_requests_total",
		Help: "User tune requests received from the guide",
	})

	// HolidayActive reports whether a holiday override is in effect.
	HolidayActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnirtv_holiday_active",
		Help: "1 while a holiday override is active",
	})

	// LibraryAssets reports the asset count of the current snapshot.
	LibraryAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnirtv_library_assets",
		Help: "Assets indexed by the current library snapshot",
	})
)
