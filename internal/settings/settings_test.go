/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package settings

import (
	"testing"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mustParseLocal(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestIsQuietNowHandlesAWindowThatWrapsMidnight(t *testing.T) {
	s := Defaults()
	s.QuietModeEnabled = true
	s.QuietHoursStart = "23:00"
	s.QuietHoursEnd = "06:00"

	cases := []struct {
		hhmm string
		want bool
	}{
		{"23:30", true},
		{"02:00", true},
		{"06:00", false},
		{"12:00", false},
	}
	for _, c := range cases {
		at := mustParseLocal(t, "15:04", c.hhmm)
		if got := s.IsQuietNow(at); got != c.want {
			t.Errorf("IsQuietNow(%s) = %v, want %v", c.hhmm, got, c.want)
		}
	}
}

func TestIsQuietNowDisabledAlwaysFalse(t *testing.T) {
	s := Defaults()
	s.QuietModeEnabled = false
	s.QuietHoursStart = "23:00"
	s.QuietHoursEnd = "06:00"

	at := mustParseLocal(t, "15:04", "23:30")
	if s.IsQuietNow(at) {
		t.Error("expected quiet mode disabled to never report quiet")
	}
}

func TestLoadOverlaysStoredValuesOntoDefaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	store := NewStore(db)
	if err := store.Set("dialog_mode_enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("video_enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("break_interval_minutes", "45"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("dialog_participants", "nova,rex"); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(db)
	s, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !s.DialogModeEnabled {
		t.Error("expected dialog_mode_enabled to overlay true")
	}
	if !s.VideoEnabled {
		t.Error("expected video_enabled to overlay true")
	}
	if s.BreakIntervalMinutes != 45 {
		t.Errorf("BreakIntervalMinutes = %d, want 45", s.BreakIntervalMinutes)
	}
	if len(s.DialogParticipants) != 2 || s.DialogParticipants[0] != "nova" || s.DialogParticipants[1] != "rex" {
		t.Errorf("DialogParticipants = %v, want [nova rex]", s.DialogParticipants)
	}
	// Unset keys keep their defaults.
	if s.MaxWords != Defaults().MaxWords {
		t.Errorf("MaxWords = %d, want default %d", s.MaxWords, Defaults().MaxWords)
	}
}
