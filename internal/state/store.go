/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state persists playback cursors and channel selections so a
// restarted station resumes where each channel left off.
package state

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ChannelCursor records the index of the last show played on a channel.
type ChannelCursor struct {
	Key       string `gorm:"primaryKey"`
	Position  int
	UpdatedAt time.Time
}

// ChannelSelection records the channel last watched in a scope
// (day-part or holiday), so the station tunes back to it.
type ChannelSelection struct {
	Scope     string `gorm:"primaryKey"`
	Channel   string
	UpdatedAt time.Time
}

// Store wraps the sqlite-backed state database. A nil Store disables
// persistence; every method is nil-safe.
type Store struct {
	db *gorm.DB
}

// Open connects to (or creates) the state database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	if err := db.AutoMigrate(&ChannelCursor{}, &ChannelSelection{}); err != nil {
		return nil, fmt.Errorf("migrate state db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // single writer, appliance-local file

	return &Store{db: db}, nil
}

// SaveCursor upserts the cursor position for a channel key.
func (s *Store) SaveCursor(key string, position int) error {
	if s == nil {
		return nil
	}
	cursor := ChannelCursor{Key: key, Position: position, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cursor).Error
}

// Cursors loads every persisted cursor.
func (s *Store) Cursors() (map[string]int, error) {
	out := make(map[string]int)
	if s == nil {
		return out, nil
	}
	var rows []ChannelCursor
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Key] = row.Position
	}
	return out, nil
}

// SaveSelection upserts the last-watched channel for a scope.
func (s *Store) SaveSelection(scope, channel string) error {
	if s == nil {
		return nil
	}
	sel := ChannelSelection{Scope: scope, Channel: channel, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sel).Error
}

// Selections loads every persisted scope selection.
func (s *Store) Selections() (map[string]string, error) {
	out := make(map[string]string)
	if s == nil {
		return out, nil
	}
	var rows []ChannelSelection
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Scope] = row.Channel
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
