/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package db wires up the gorm connection used across the break
// production pipeline: provider caches, the break queue, settings,
// and the event log all live in the same database.
package db

import (
	"fmt"
	"time"

	"github.com/airwaveco/breakcast/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a gorm DB connection for the configured backend.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBBackend {
	case config.DatabasePostgres:
		dialector = postgres.Open(cfg.DBDSN)
	case config.DatabaseMySQL:
		dialector = mysql.Open(cfg.DBDSN)
	case config.DatabaseSQLite:
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("db: unknown database backend: %s", cfg.DBBackend)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	database, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.DBBackend == config.DatabaseSQLite {
		if err := applySQLitePragmas(database); err != nil {
			return nil, fmt.Errorf("db: apply sqlite pragmas: %w", err)
		}
	}

	if err := RegisterCallbacks(database); err != nil {
		return nil, fmt.Errorf("db: register telemetry callbacks: %w", err)
	}

	return database, nil
}

// applySQLitePragmas enables WAL mode so the scheduler and the HTTP
// breaking-trigger handler can both hit the database without lock
// contention, and relaxes the busy timeout so a write in flight during
// a break build doesn't surface as a hard failure.
func applySQLitePragmas(database *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if err := database.Exec(p).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close releases database resources.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
