/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the process's only inbound HTTP surface: a
// health check, a Prometheus scrape endpoint, and the authenticated
// breaking-news trigger. Everything else in this system is driven by
// the scheduler, not by requests.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airwaveco/breakcast/internal/auth"
	"github.com/airwaveco/breakcast/internal/config"
	"github.com/airwaveco/breakcast/internal/telemetry"
)

// BreakTrigger is the subset of internal/scheduler.Service the
// breaking-news endpoint needs.
type BreakTrigger interface {
	TriggerBreaking(ctx context.Context) error
}

// Server wraps the chi router and net/http server.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	trigger    BreakTrigger
}

// New builds the router and HTTP server. Unlike a request-serving
// station app, nothing here needs a database handle: the breaking
// endpoint only delegates to the scheduler.
func New(cfg *config.Config, trigger BreakTrigger, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		router:  router,
		trigger: trigger,
	}

	s.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/breaking", func(r chi.Router) {
		r.Use(auth.RequireBreakingAuth(s.cfg.BreakingAPIKey, []byte(s.cfg.JWTSigningKey)))
		r.Post("/trigger", s.handleBreakingTrigger)
	})
}

func (s *Server) handleBreakingTrigger(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger.TriggerBreaking(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("breaking trigger failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "build_failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HTTPServer exposes the underlying net/http server for ListenAndServe
// / Shutdown calls from main.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
