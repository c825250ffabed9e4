/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/airwaveco/breakcast/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the break scheduler and the HTTP trigger/health/metrics server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pruneOnStartup()

	go func() {
		if err := a.scheduler.Run(ctx); err != nil && err != context.Canceled {
			a.logger.Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	srv := server.New(a.cfg, a.scheduler, a.logger)
	httpServer := srv.HTTPServer()

	go func() {
		a.logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	a.logger.Info().Msg("breakcastd stopped")
	return nil
}
