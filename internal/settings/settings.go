/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings exposes the process-wide, admin-mutable tunables
// (break interval, quiet hours, scoring thresholds, word/char bounds,
// dialog mode, ...) as a typed struct loaded from and persisted to the
// settings key/value table, instead of passing a loose map around.
package settings

import (
	"strconv"
	"strings"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/gorm"
)

// Settings is the typed view over the `settings` key/value rows.
type Settings struct {
	SchemaVersion int

	BreakIntervalMinutes int
	QuietModeEnabled     bool
	QuietHoursStart      string // "HH:MM", local time
	QuietHoursEnd        string

	ScoreThreshold  int
	DedupWindowMins int

	MinWords        int
	MaxWords        int
	BreakingMinWords int
	BreakingMaxWords int
	MaxChars        int

	DefaultSpeechProvider string

	MarketEnabled    bool
	MarketCacheTTLMins int

	MasterScriptPrompt string

	DialogModeEnabled bool
	DialogParticipants []string
	VideoEnabled      bool

	LogLevel       string
	MetricsEnabled bool
}

// Defaults returns the settings a fresh installation starts with.
func Defaults() Settings {
	return Settings{
		SchemaVersion:        1,
		BreakIntervalMinutes: 20,
		QuietModeEnabled:     false,
		QuietHoursStart:      "00:00",
		QuietHoursEnd:        "00:00",

		ScoreThreshold:  4,
		DedupWindowMins: 180,

		MinWords:         60,
		MaxWords:         180,
		BreakingMinWords: 40,
		BreakingMaxWords: 100,
		MaxChars:         1400,

		DefaultSpeechProvider: "local",

		MarketEnabled:      false,
		MarketCacheTTLMins: 5,

		MasterScriptPrompt: "",

		DialogModeEnabled:  false,
		DialogParticipants: nil,
		VideoEnabled:       false,

		LogLevel:       "info",
		MetricsEnabled: true,
	}
}

// IsQuietNow reports whether the quiet-hours window contains the given
// local time, handling a window that wraps past midnight.
func (s Settings) IsQuietNow(at time.Time) bool {
	if !s.QuietModeEnabled {
		return false
	}
	start, errS := parseHHMM(s.QuietHoursStart)
	end, errE := parseHHMM(s.QuietHoursEnd)
	if errS != nil || errE != nil || start == end {
		return false
	}
	now := at.Hour()*60 + at.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

func parseHHMM(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, strconv.ErrSyntax
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// Loader reads Settings out of the settings key/value table, falling
// back to Defaults() for any key that has not been set.
type Loader struct {
	db *gorm.DB
}

// NewLoader constructs a Loader bound to database.
func NewLoader(database *gorm.DB) *Loader {
	return &Loader{db: database}
}

// Load reads all rows and overlays them onto the defaults.
func (l *Loader) Load() (Settings, error) {
	s := Defaults()

	var rows []models.Setting
	if err := l.db.Find(&rows).Error; err != nil {
		return s, err
	}

	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		kv[r.Key] = r.Value
	}

	applyString(kv, "quiet_hours_start", &s.QuietHoursStart)
	applyString(kv, "quiet_hours_end", &s.QuietHoursEnd)
	applyString(kv, "default_speech_provider", &s.DefaultSpeechProvider)
	applyString(kv, "master_script_prompt", &s.MasterScriptPrompt)
	applyString(kv, "log_level", &s.LogLevel)

	applyInt(kv, "break_interval_minutes", &s.BreakIntervalMinutes)
	applyInt(kv, "score_threshold", &s.ScoreThreshold)
	applyInt(kv, "dedup_window_minutes", &s.DedupWindowMins)
	applyInt(kv, "min_words", &s.MinWords)
	applyInt(kv, "max_words", &s.MaxWords)
	applyInt(kv, "breaking_min_words", &s.BreakingMinWords)
	applyInt(kv, "breaking_max_words", &s.BreakingMaxWords)
	applyInt(kv, "max_chars", &s.MaxChars)
	applyInt(kv, "market_cache_ttl_minutes", &s.MarketCacheTTLMins)

	applyBool(kv, "quiet_mode_enabled", &s.QuietModeEnabled)
	applyBool(kv, "market_enabled", &s.MarketEnabled)
	applyBool(kv, "dialog_mode_enabled", &s.DialogModeEnabled)
	applyBool(kv, "video_enabled", &s.VideoEnabled)
	applyBool(kv, "metrics_enabled", &s.MetricsEnabled)

	if v, ok := kv["dialog_participants"]; ok && v != "" {
		s.DialogParticipants = strings.Split(v, ",")
	}

	return s, nil
}

func applyString(kv map[string]string, key string, dst *string) {
	if v, ok := kv[key]; ok && v != "" {
		*dst = v
	}
}

func applyInt(kv map[string]string, key string, dst *int) {
	if v, ok := kv[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyBool(kv map[string]string, key string, dst *bool) {
	if v, ok := kv[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Store writes individual settings back to the key/value table. It is
// the write side of the out-of-scope admin surface; pinned here as
// the interface that surface would call.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store bound to database.
func NewStore(database *gorm.DB) *Store {
	return &Store{db: database}
}

// Set upserts a single key.
func (s *Store) Set(key, value string) error {
	row := models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Save(&row).Error
}
