/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for capturing logs.
package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Raw       string         `json:"raw,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries. It doubles as a
// zerolog writer so the station can expose its recent log lines to the
// guide without touching the filesystem.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a log buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Write parses a zerolog JSON line into an entry. It never returns an
// error: a log sink failure must not propagate into playback.
func (b *Buffer) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}

	entry := Entry{Timestamp: time.Now(), Raw: line}
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err == nil {
		if lvl, ok := fields["level"].(string); ok {
			entry.Level = lvl
			delete(fields, "level")
		}
		if msg, ok := fields["message"].(string); ok {
			entry.Message = msg
			delete(fields, "message")
		}
		if comp, ok := fields["component"].(string); ok {
			entry.Component = comp
			delete(fields, "component")
		}
		if ts, ok := fields["time"].(float64); ok {
			entry.Timestamp = time.Unix(int64(ts), 0)
			delete(fields, "time")
		}
		entry.Fields = fields
	} else {
		entry.Message = line
	}

	b.Add(entry)
	return len(p), nil
}

// Add appends an entry to the buffer.
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// All returns every buffered entry in chronological order.
func (b *Buffer) All() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// Recent returns up to limit entries, newest first, optionally filtered
// by level.
func (b *Buffer) Recent(limit int, level string) []Entry {
	all := b.All()

	var filtered []Entry
	for i := len(all) - 1; i >= 0; i-- {
		if level != "" && all[i].Level != level {
			continue
		}
		filtered = append(filtered, all[i])
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
