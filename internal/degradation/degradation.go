/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package degradation implements the graceful-fallback ladder the
// break builder falls through when the LM pipeline can't produce a
// usable script: a weather-filled template, then a pre-recorded
// sting, then nothing broadcastable.
package degradation

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/gorm"
)

// Level enumerates the five-step degradation ladder. Level 1 is
// reserved and currently unused — no template-only (weather-absent)
// fallback exists in this pipeline, since a template without any
// weather data has nothing to interpolate.
type Level int

const (
	LevelNormal          Level = 0
	LevelReserved        Level = 1
	LevelTemplateWeather Level = 2
	LevelStingOnly       Level = 3
	LevelTotalFailure    Level = 4
)

// Manager selects and records fallback content.
type Manager struct {
	db        *gorm.DB
	stingsDir string
	rng       *rand.Rand
}

// New constructs a Manager. rng defaults to a time-seeded source if
// nil; tests inject a seeded one for deterministic template selection
// among equally-least-used rows.
func New(database *gorm.DB, stingsDir string, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{db: database, stingsDir: stingsDir, rng: rng}
}

// WeatherLike is the minimal shape the template fallback needs out of
// a weather.Conditions value, kept local to avoid an import cycle.
type WeatherLike struct {
	CityLabel string
	Temp      float64
	Condition string
}

// GetFallback attempts the ladder in order and returns the script
// text (empty if none) and the level it settled on. Level 3 returns
// no script text; the caller is expected to use StingPath directly.
func (m *Manager) GetFallback(weatherData []WeatherLike) (script string, level Level) {
	if len(weatherData) >= 2 {
		if text, ok := m.templateFallback(weatherData[0], weatherData[1]); ok {
			return text, LevelTemplateWeather
		}
	}

	if m.StingPath("station_id") != "" {
		return "", LevelStingOnly
	}

	return "", LevelTotalFailure
}

// templateFallback picks the least-used fallback template (ties
// broken randomly, mirroring `ORDER BY use_count ASC, RANDOM()`),
// interpolates two cities' weather into it, and bumps its use count.
func (m *Manager) templateFallback(w1, w2 WeatherLike) (string, bool) {
	var templates []models.FallbackTemplate
	if err := m.db.Order("use_count ASC").Find(&templates).Error; err != nil || len(templates) == 0 {
		return "", false
	}

	least := templates[0].UseCount
	var candidates []models.FallbackTemplate
	for _, t := range templates {
		if t.UseCount == least {
			candidates = append(candidates, t)
		}
	}
	chosen := candidates[m.rng.Intn(len(candidates))]

	text := interpolate(chosen.TemplateText, map[string]string{
		"city1":      valueOr(w1.CityLabel, "City 1"),
		"temp1":      fmt.Sprintf("%v", w1.Temp),
		"condition1": w1.Condition,
		"city2":      valueOr(w2.CityLabel, "City 2"),
		"temp2":      fmt.Sprintf("%v", w2.Temp),
		"condition2": w2.Condition,
	})

	now := time.Now().UTC()
	chosen.UseCount++
	chosen.LastUsedAt = &now
	_ = m.db.Save(&chosen).Error

	return text, true
}

// interpolate replaces {key} placeholders, matching the Python
// str.format template grammar the fallback templates are authored in.
func interpolate(template string, values map[string]string) string {
	out := template
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// StingPath returns the path to a pre-recorded sting if it exists on
// disk, or "" if not.
func (m *Manager) StingPath(name string) string {
	path := filepath.Join(m.stingsDir, name+".mp3")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
