/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides an optional Redis front-cache that sits in
// front of the database-backed weather and market provider caches.
// Headline-selection helpers are defined here too, but the news
// provider does not call them. The database rows remain the source of truth and carry the
// Fresh/Stale/Absent TTL semantics; Redis only shaves off repeat
// lookups within the same poll cycle and degrades to a pass-through
// on any Redis error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default front-cache TTLs. These are intentionally shorter than the
// database cache TTLs they front — Redis exists to collapse duplicate
// lookups within a single break build, not to extend freshness.
const (
	DefaultWeatherTTL = 2 * time.Minute
	DefaultMarketTTL  = 1 * time.Minute
	DefaultNewsTTL    = 1 * time.Minute
)

const (
	keyWeather = "breakcast:cache:weather:" // + city_id
	keyMarket  = "breakcast:cache:market"
	keyNews    = "breakcast:cache:news:top" // + params hash
)

// Config contains cache configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Disabled bool
}

// Cache provides Redis-backed front-caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache instance, testing connectivity up front. A
// failed ping or Disabled=true leaves the cache permanently disabled
// rather than returning an error, since the front-cache is optional.
func New(cfg Config, logger zerolog.Logger) *Cache {
	logger = logger.With().Str("component", "cache").Logger()
	if cfg.Disabled {
		return &Cache{logger: logger, disabled: true}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis front-cache unavailable, running without it")
		return &Cache{logger: logger, disabled: true}
	}

	logger.Info().Str("addr", cfg.Addr).Msg("redis front-cache initialized")
	return &Cache{client: client, logger: logger}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable reports whether the front-cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	c.logger.Warn().Msg("disabling redis front-cache after error")
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.IsAvailable() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}

// GetWeather returns a cached weather payload for a city, if present.
func (c *Cache) GetWeather(ctx context.Context, cityID string, dest any) bool {
	return c.get(ctx, keyWeather+cityID, dest)
}

// SetWeather caches a weather payload for a city.
func (c *Cache) SetWeather(ctx context.Context, cityID string, payload any) {
	c.set(ctx, keyWeather+cityID, payload, DefaultWeatherTTL)
}

// GetMarket returns the cached market payload, if present.
func (c *Cache) GetMarket(ctx context.Context, dest any) bool {
	return c.get(ctx, keyMarket, dest)
}

// SetMarket caches the market payload.
func (c *Cache) SetMarket(ctx context.Context, payload any) {
	c.set(ctx, keyMarket, payload, DefaultMarketTTL)
}

// GetTopHeadlines returns a cached top-headlines selection keyed by
// its selection parameters, if present.
func (c *Cache) GetTopHeadlines(ctx context.Context, paramsKey string, dest any) bool {
	return c.get(ctx, fmt.Sprintf("%s:%s", keyNews, paramsKey), dest)
}

// SetTopHeadlines caches a top-headlines selection.
func (c *Cache) SetTopHeadlines(ctx context.Context, paramsKey string, payload any) {
	c.set(ctx, fmt.Sprintf("%s:%s", keyNews, paramsKey), payload, DefaultNewsTTL)
}
