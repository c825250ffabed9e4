/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/airwaveco/breakcast/internal/breakbuilder"
	"github.com/airwaveco/breakcast/internal/cache"
	"github.com/airwaveco/breakcast/internal/config"
	"github.com/airwaveco/breakcast/internal/db"
	"github.com/airwaveco/breakcast/internal/degradation"
	"github.com/airwaveco/breakcast/internal/eventlog"
	"github.com/airwaveco/breakcast/internal/events"
	"github.com/airwaveco/breakcast/internal/hostrotation"
	"github.com/airwaveco/breakcast/internal/logging"
	"github.com/airwaveco/breakcast/internal/media"
	"github.com/airwaveco/breakcast/internal/playout"
	"github.com/airwaveco/breakcast/internal/providers/lm"
	"github.com/airwaveco/breakcast/internal/providers/market"
	"github.com/airwaveco/breakcast/internal/providers/news"
	"github.com/airwaveco/breakcast/internal/providers/speech"
	"github.com/airwaveco/breakcast/internal/providers/weather"
	"github.com/airwaveco/breakcast/internal/queue"
	"github.com/airwaveco/breakcast/internal/scheduler"
	"github.com/airwaveco/breakcast/internal/settings"
	"github.com/airwaveco/breakcast/internal/visual/compositor"
	"github.com/airwaveco/breakcast/internal/visual/director"
)

// app bundles every wired dependency a breakcastd subcommand needs.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	database  *gorm.DB
	bus       *events.Bus
	nc        *nats.Conn
	builder   *breakbuilder.Builder
	scheduler *scheduler.Service
	playout   *playout.Client
	queue     *queue.Queue
	front     *cache.Cache
	news      *news.Provider
	eventLog  *eventlog.Log
}

// newApp loads configuration, connects the database, runs migrations,
// and wires every provider and service into a breakbuilder.Builder and
// scheduler.Service, matching the order the teacher's server package
// initializes its own dependencies in.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.Setup(cfg.Environment)

	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	bus := events.NewBus()

	var nc *nats.Conn
	if cfg.NATSEnabled && cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats connect failed, event fan-out disabled")
			nc = nil
		}
	}

	front := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Disabled: cfg.CacheDisabled,
	}, logger)

	settingsLoader := settings.NewLoader(database)

	evLog := eventlog.New(database, bus, nc, logger)
	breakQueue := queue.New(database)

	if n, err := breakQueue.RecoverOrphaned(); err != nil {
		logger.Warn().Err(err).Msg("failed to recover orphaned breaks")
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("recovered orphaned break queue entries")
	}

	hosts := hostrotation.New(database)

	weatherProvider := weather.New(database, front, cfg.WeatherAPIBase, cfg.WeatherAPIKey, logger)
	marketProvider := market.New(database, front, cfg.MarketAPIURL, cfg.MarketAPIKey, cfg.MarketEnabled, cfg.MarketCacheTTL, logger)
	newsProvider := news.New(database, front, logger)

	lmClient := lm.New(cfg.LMAPIBase, cfg.LMAPIKey, cfg.LMModel, logger, evLog.Append)

	speechRouter := speech.New(speech.Config{
		BreaksDir:  cfg.BreaksDir,
		ModelsDir:  cfg.ModelsDir,
		PiperBin:   cfg.PiperBin,
		FFmpegBin:  cfg.FFmpegBin,
		CloudABase: cfg.SpeechCloudABase,
		CloudAKey:  cfg.SpeechCloudAKey,
		CloudBBase: cfg.SpeechCloudBBase,
		CloudBKey:  cfg.SpeechCloudBKey,
		FFprobeBin: cfg.FFprobeBin,
	}, logger)

	degradationManager := degradation.New(database, cfg.StingsDir, rand.New(rand.NewSource(time.Now().UnixNano())))
	playoutClient := playout.New(cfg.DataDir + "/playout.sock")

	videoDirector := director.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	videoCompositor := compositor.New(cfg.FFmpegBin, cfg.FFprobeBin, logger)

	archiver := media.New(context.Background(), media.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, logger)

	builder := breakbuilder.New(breakbuilder.Deps{
		Settings:   settingsLoader,
		Queue:      breakQueue,
		Hosts:      hosts,
		Weather:    weatherProvider,
		Market:     marketProvider,
		News:       newsProvider,
		LM:         lmClient,
		Speech:     speechRouter,
		Degr:       degradationManager,
		Playout:    playoutClient,
		EventLog:   evLog,
		Logger:     logger,
		AssetsDir:  cfg.AssetsDir,
		Director:   videoDirector,
		Compositor: videoCompositor,
		VideoDir:   cfg.VideoDir,
		Archive:    archiver,
	})

	schedulerSvc := scheduler.New(builder, settingsLoader, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		database:  database,
		bus:       bus,
		nc:        nc,
		builder:   builder,
		scheduler: schedulerSvc,
		playout:   playoutClient,
		queue:     breakQueue,
		front:     front,
		news:      newsProvider,
		eventLog:  evLog,
	}, nil
}

// pruneOnStartup runs the retention sweep named in §4.9: event log
// rows older than 7 days, news cache rows older than 24h, and
// PLAYED/FAILED break rows older than 7 days. Each prune is
// independent and best-effort; a failure in one does not block the
// others.
func (a *app) pruneOnStartup() {
	if n, err := a.eventLog.Prune(); err != nil {
		a.logger.Warn().Err(err).Msg("event log prune failed")
	} else if n > 0 {
		a.logger.Info().Int64("count", n).Msg("pruned old event log rows")
	}

	if n, err := a.news.Prune(); err != nil {
		a.logger.Warn().Err(err).Msg("news cache prune failed")
	} else if n > 0 {
		a.logger.Info().Int64("count", n).Msg("pruned stale news cache rows")
	}

	if n, err := a.queue.Prune(); err != nil {
		a.logger.Warn().Err(err).Msg("break queue prune failed")
	} else if n > 0 {
		a.logger.Info().Int64("count", n).Msg("pruned old break queue rows")
	}
}

func (a *app) close() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.playout != nil {
		_ = a.playout.Close()
	}
	if a.front != nil {
		_ = a.front.Close()
	}
	if a.database != nil {
		_ = db.Close(a.database)
	}
}
