/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/airwaveco/breakcast/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&models.FallbackTemplate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return database
}

func TestSeedFallbackTemplatesInsertsOnEmptyTable(t *testing.T) {
	database := newTestDB(t)

	if err := SeedFallbackTemplates(database); err != nil {
		t.Fatalf("SeedFallbackTemplates failed: %v", err)
	}

	var rows []models.FallbackTemplate
	if err := database.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected seeded rows, got none")
	}
	for _, r := range rows {
		if r.TemplateText == "" {
			t.Errorf("seeded row %s has empty template text", r.ID)
		}
	}
}

func TestSeedFallbackTemplatesIsNoOpWhenRowsExist(t *testing.T) {
	database := newTestDB(t)
	if err := database.Create(&models.FallbackTemplate{ID: "custom", TemplateText: "custom text"}).Error; err != nil {
		t.Fatalf("seed custom row: %v", err)
	}

	if err := SeedFallbackTemplates(database); err != nil {
		t.Fatalf("SeedFallbackTemplates failed: %v", err)
	}

	var count int64
	if err := database.Model(&models.FallbackTemplate{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected table untouched with 1 row, got %d", count)
	}
}
