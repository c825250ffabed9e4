/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"github.com/spf13/cobra"

	"github.com/airwaveco/breakcast/internal/config"
	"github.com/airwaveco/breakcast/internal/db"
	"github.com/airwaveco/breakcast/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Environment)

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database) //nolint:errcheck

	if err := db.Migrate(database); err != nil {
		return err
	}

	logger.Info().Msg("migrations applied")
	return nil
}
