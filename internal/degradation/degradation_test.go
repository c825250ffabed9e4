/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package degradation

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestManager(t *testing.T, stingsDir string) (*Manager, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.FallbackTemplate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return New(db, stingsDir, rand.New(rand.NewSource(1))), db
}

func TestGetFallbackUsesTemplateWhenTwoCitiesPresent(t *testing.T) {
	m, db := newTestManager(t, t.TempDir())
	tmpl := models.FallbackTemplate{
		ID:           "tmpl1",
		TemplateText: "It's {temp1} and {condition1} in {city1}, and {temp2} and {condition2} in {city2}.",
	}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatal(err)
	}

	weather := []WeatherLike{
		{CityLabel: "Springfield", Temp: 72, Condition: "sunny"},
		{CityLabel: "Shelbyville", Temp: 65, Condition: "cloudy"},
	}
	script, level := m.GetFallback(weather)

	if level != LevelTemplateWeather {
		t.Fatalf("level = %d, want %d", level, LevelTemplateWeather)
	}
	want := "It's 72 and sunny in Springfield, and 65 and cloudy in Shelbyville."
	if script != want {
		t.Errorf("script = %q, want %q", script, want)
	}
}

func TestGetFallbackFallsBackToStingWhenNoTemplateData(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "station_id.mp3"), []byte("sting"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _ := newTestManager(t, dir)

	_, level := m.GetFallback(nil)
	if level != LevelStingOnly {
		t.Fatalf("level = %d, want %d", level, LevelStingOnly)
	}
}

func TestGetFallbackTotalFailureWhenNothingAvailable(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir())

	_, level := m.GetFallback(nil)
	if level != LevelTotalFailure {
		t.Fatalf("level = %d, want %d", level, LevelTotalFailure)
	}
}

func TestStingPathReturnsEmptyWhenMissing(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir())
	if got := m.StingPath("station_id"); got != "" {
		t.Errorf("StingPath() = %q, want empty", got)
	}
}

func TestTemplateFallbackPicksLeastUsedAndIncrementsCount(t *testing.T) {
	m, db := newTestManager(t, t.TempDir())
	templates := []models.FallbackTemplate{
		{ID: "heavy", TemplateText: "heavy {city1} {temp1} {condition1} {city2} {temp2} {condition2}", UseCount: 10},
		{ID: "light", TemplateText: "light {city1} {temp1} {condition1} {city2} {temp2} {condition2}", UseCount: 0},
	}
	for _, tmpl := range templates {
		if err := db.Create(&tmpl).Error; err != nil {
			t.Fatal(err)
		}
	}

	weather := []WeatherLike{{CityLabel: "A", Temp: 1, Condition: "x"}, {CityLabel: "B", Temp: 2, Condition: "y"}}
	script, _ := m.GetFallback(weather)
	if script == "" {
		t.Fatal("expected a non-empty fallback script")
	}
	if !contains(script, "light") {
		t.Errorf("expected the least-used template to be chosen, got %q", script)
	}

	var reloaded models.FallbackTemplate
	if err := db.First(&reloaded, "id = ?", "light").Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.UseCount != 1 {
		t.Errorf("UseCount = %d, want 1 after one use", reloaded.UseCount)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
