/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the gorm-backed persistent entities and the
// small set of in-memory value types (Script, EDL) that never touch
// the database directly.
package models

import (
	"time"
)

// Setting is a single process-wide key/value tunable. The typed view
// over this table lives in internal/settings.
type Setting struct {
	Key       string `gorm:"primaryKey;type:varchar(128)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// City is a location the weather provider polls on a schedule.
type City struct {
	ID       string  `gorm:"primaryKey;type:varchar(64)"`
	Label    string  `gorm:"type:varchar(128)"`
	Lat      float64
	Lon      float64
	Timezone string `gorm:"type:varchar(64)"`
	Enabled  bool   `gorm:"default:true"`
	Priority int    `gorm:"default:0"`
	Units    string `gorm:"type:varchar(16);default:'metric'"` // metric | imperial
}

// FeedHealthStatus enumerates a news source's health.
type FeedHealthStatus string

const (
	FeedHealthHealthy   FeedHealthStatus = "healthy"
	FeedHealthUnhealthy FeedHealthStatus = "unhealthy"
	FeedHealthDead      FeedHealthStatus = "dead"
)

// DeadFeedThreshold is the number of consecutive failures after which
// a feed is marked dead and stops being polled.
const DeadFeedThreshold = 5

// NewsSource is an RSS feed the news provider polls.
type NewsSource struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	Label        string `gorm:"type:varchar(128)"`
	URL          string `gorm:"type:text"`
	Category     string `gorm:"type:varchar(32);default:'general'"`
	Weight       int    `gorm:"default:0"`
	PollInterval time.Duration
	Enabled      bool `gorm:"default:true"`
}

// FeedHealth tracks a news source's recent success/failure history.
type FeedHealth struct {
	SourceID           string `gorm:"primaryKey;type:varchar(64)"`
	LastSuccess        *time.Time
	LastFailure        *time.Time
	ConsecutiveFailures int
	Status             FeedHealthStatus `gorm:"type:varchar(16);default:'healthy'"`
}

// RecordSuccess applies the success transition rule from §3.
func (f *FeedHealth) RecordSuccess(now time.Time) {
	f.LastSuccess = &now
	f.ConsecutiveFailures = 0
	f.Status = FeedHealthHealthy
}

// RecordFailure applies the failure transition rule from §3.
func (f *FeedHealth) RecordFailure(now time.Time) {
	f.LastFailure = &now
	f.ConsecutiveFailures++
	if f.ConsecutiveFailures >= DeadFeedThreshold {
		f.Status = FeedHealthDead
	} else {
		f.Status = FeedHealthUnhealthy
	}
}

// CachedHeadline is a deduplicated, sanitized RSS entry, optionally scored.
type CachedHeadline struct {
	ID          string `gorm:"primaryKey;type:varchar(96)"` // {source_id}_{title_hash16}
	SourceID    string `gorm:"type:varchar(64);index"`
	Title       string `gorm:"type:varchar(200)"`
	Description string `gorm:"type:varchar(300)"`
	URL         string `gorm:"type:text"`
	PublishedAt time.Time
	FetchedAt   time.Time `gorm:"index"`
	TitleHash   string    `gorm:"type:varchar(16);index"`
	Category    string    `gorm:"type:varchar(32)"`
	Scored      bool      `gorm:"default:false;index"`
	Score       int       `gorm:"default:0"`
}

// WeatherCacheEntry is the TTL-cached current-conditions payload for a city.
type WeatherCacheEntry struct {
	CityID     string `gorm:"primaryKey;type:varchar(64)"`
	PayloadJSON string `gorm:"type:text"`
	FetchedAt  time.Time
	ExpiresAt  time.Time
}

// MarketCacheEntry is the TTL-cached market-data payload (singleton id "market").
type MarketCacheEntry struct {
	ID          string `gorm:"primaryKey;type:varchar(32)"`
	PayloadJSON string `gorm:"type:text"`
	FetchedAt   time.Time
	ExpiresAt   time.Time
}

// Host is an on-air persona that reads break scripts.
type Host struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	Label            string `gorm:"type:varchar(128)"`
	PersonalityPrompt string `gorm:"type:text"`
	IsBreakingHost   bool   `gorm:"default:false"`
	Enabled          bool   `gorm:"default:true"`
	SpeechProvider   string `gorm:"type:varchar(32);default:'local'"` // local | cloud_a | cloud_b
	VoiceID          string `gorm:"type:varchar(128)"`
	LocalModelName   string `gorm:"type:varchar(128)"`
}

// HostRotation is the singleton round-robin state.
type HostRotation struct {
	ID         int    `gorm:"primaryKey"`
	LastHostID string `gorm:"type:varchar(64)"`
	BreakCount int    `gorm:"default:0"`
}

// TableName pins the singleton row.
func (HostRotation) TableName() string { return "host_rotation" }

// CharacterPosition is a per-shot-type screen placement.
type CharacterPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Character is a multi-speaker dialog-mode persona.
type Character struct {
	ID             string `gorm:"primaryKey;type:varchar(64)"`
	Label          string `gorm:"type:varchar(128)"`
	VoiceModel     string `gorm:"type:varchar(128)"`
	BehaviorPrompt string `gorm:"type:text"`
	Positions      JSONMap[CharacterPosition] `gorm:"type:text"`
}

// BreakType distinguishes scheduled from breaking-news breaks.
type BreakType string

const (
	BreakScheduled BreakType = "scheduled"
	BreakBreaking  BreakType = "breaking"
)

// BreakStatus is the break queue entry's lifecycle state.
type BreakStatus string

const (
	BreakPreparing BreakStatus = "PREPARING"
	BreakReady     BreakStatus = "READY"
	BreakPlayed    BreakStatus = "PLAYED"
	BreakFailed    BreakStatus = "FAILED"
)

// BreakQueueEntry is a single break's end-to-end production record.
type BreakQueueEntry struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Type              BreakType `gorm:"type:varchar(16)"`
	Priority          int
	HostID            string      `gorm:"type:varchar(64)"`
	Status            BreakStatus `gorm:"type:varchar(16);index"`
	ScriptText        string      `gorm:"type:text"`
	AudioPath         string      `gorm:"type:text"`
	VideoPath         string      `gorm:"type:text"`
	DegradationLevel  int
	DurationMS        int64
	FailureReason     string `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"index"`
	ReadyAt           *time.Time
	PlayedAt          *time.Time
	Meta              BreakMeta `gorm:"type:text"`
}

// TableName pins the queue table name.
func (BreakQueueEntry) TableName() string { return "break_queue" }

// EventLogEntry is an append-only record of a pipeline event.
type EventLogEntry struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index"`
	EventType string    `gorm:"type:varchar(64);index"`
	PayloadJSON string  `gorm:"type:text"`
	LatencyMS int64
}

// TableName pins the events_log table name.
func (EventLogEntry) TableName() string { return "events_log" }

// FallbackTemplate is a degradation-level-2 weather-filled script template.
type FallbackTemplate struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	TemplateText string `gorm:"type:text"`
	UseCount     int64  `gorm:"default:0"`
	LastUsedAt   *time.Time
}
