/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the database schema using gorm auto-migrate, then
// seeds the fallback-template fixture data on a fresh install.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Setting{},
		&models.City{},
		&models.NewsSource{},
		&models.FeedHealth{},
		&models.CachedHeadline{},
		&models.WeatherCacheEntry{},
		&models.MarketCacheEntry{},
		&models.Host{},
		&models.HostRotation{},
		&models.Character{},
		&models.BreakQueueEntry{},
		&models.EventLogEntry{},
		&models.FallbackTemplate{},
	); err != nil {
		return err
	}
	return SeedFallbackTemplates(database)
}
