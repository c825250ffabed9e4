/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler drives the break production loop: it fires a
// build immediately on startup, then again every configured interval,
// skipping and re-arming for the next tick whenever quiet hours are in
// effect. Breaking-news triggers bypass the interval and quiet-hours
// gate entirely.
package scheduler

import (
	"context"
	"time"

	"github.com/airwaveco/breakcast/internal/settings"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/rs/zerolog"
)

// Builder is the subset of internal/breakbuilder.Builder the
// scheduler needs, accepted as an interface so tests can stub it.
type Builder interface {
	Prepare(ctx context.Context, isBreaking bool) error
}

// Service runs the scheduling loop.
type Service struct {
	builder  Builder
	settings *settings.Loader
	logger   zerolog.Logger

	tickInterval time.Duration // overridable for tests; 0 means derive from settings each tick
}

// New constructs a scheduler Service.
func New(builder Builder, loader *settings.Loader, logger zerolog.Logger) *Service {
	return &Service{
		builder:  builder,
		settings: loader,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run fires an initial build immediately, then loops on a timer
// re-read from settings every tick, until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().Msg("scheduler loop started")

	s.tick(ctx)

	for {
		interval := s.currentInterval()
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) currentInterval() time.Duration {
	cfg, err := s.settings.Load()
	if err != nil || cfg.BreakIntervalMinutes <= 0 {
		return 20 * time.Minute
	}
	return time.Duration(cfg.BreakIntervalMinutes) * time.Minute
}

func (s *Service) tick(ctx context.Context) {
	telemetry.SchedulerTicksTotal.Inc()

	cfg, err := s.settings.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load settings, proceeding with defaults")
	}

	if cfg.IsQuietNow(time.Now()) {
		telemetry.SchedulerSkippedTotal.Inc()
		s.logger.Debug().Msg("quiet hours in effect, skipping tick")
		return
	}

	if err := s.builder.Prepare(ctx, false); err != nil {
		s.logger.Error().Err(err).Msg("scheduled break build failed")
	}
}

// TriggerBreaking runs an out-of-band breaking-news build immediately,
// bypassing the interval timer, the quiet-hours gate, and the
// single-in-flight admission check for scheduled breaks.
func (s *Service) TriggerBreaking(ctx context.Context) error {
	s.logger.Info().Msg("breaking news trigger received")
	return s.builder.Prepare(ctx, true)
}
