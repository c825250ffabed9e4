/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package weather fetches current conditions for the enabled cities,
// in parallel, through a database-backed TTL cache that falls back to
// a stale row when the upstream fetch fails.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/airwaveco/breakcast/internal/cache"
	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CacheTTL is how long a fetched conditions payload stays fresh.
const CacheTTL = 10 * time.Minute

// Conditions is the normalized current-conditions payload carried
// into the LM prompt context.
type Conditions struct {
	CityID      string  `json:"city_id"`
	CityLabel   string  `json:"city_label"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feelslike"`
	Condition   string  `json:"condition"`
	Wind        float64 `json:"wind"`
	Humidity    int     `json:"humidity"`
	Units       string  `json:"units"`
	WindUnits   string  `json:"wind_units"`
	Stale       bool    `json:"stale"`
}

// Provider fetches and caches weather for the configured cities.
type Provider struct {
	db        *gorm.DB
	front     *cache.Cache
	httpc     *http.Client
	apiBase   string
	apiKey    string
	logger    zerolog.Logger
}

// New constructs a weather Provider.
func New(database *gorm.DB, front *cache.Cache, apiBase, apiKey string, logger zerolog.Logger) *Provider {
	return &Provider{
		db:      database,
		front:   front,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		apiBase: apiBase,
		apiKey:  apiKey,
		logger:  logger.With().Str("component", "weather").Logger(),
	}
}

// GetForCities fetches (or serves from cache) conditions for every
// enabled city, ordered by priority, fanning the fetches out in
// parallel. Cities whose fetch fails and have no cached fallback are
// silently omitted from the result, matching the "best effort" intent
// of the weather slot in the break script.
func (p *Provider) GetForCities(ctx context.Context) ([]Conditions, error) {
	var cities []models.City
	if err := p.db.Where("enabled = ?", true).Order("priority").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("weather: load cities: %w", err)
	}

	results := make([]*Conditions, len(cities))
	var wg sync.WaitGroup
	for i, city := range cities {
		wg.Add(1)
		go func(i int, city models.City) {
			defer wg.Done()
			c, _ := p.getCachedOrFetch(ctx, city)
			results[i] = c
		}(i, city)
	}
	wg.Wait()

	out := make([]Conditions, 0, len(cities))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (p *Provider) getCachedOrFetch(ctx context.Context, city models.City) (*Conditions, cache.Freshness) {
	if p.front != nil {
		var fromFront Conditions
		if p.front.GetWeather(ctx, city.ID, &fromFront) {
			return &fromFront, cache.Fresh
		}
	}

	now := time.Now().UTC()

	var row models.WeatherCacheEntry
	rowErr := p.db.First(&row, "city_id = ?", city.ID).Error
	haveRow := rowErr == nil

	if haveRow && row.ExpiresAt.After(now) {
		var c Conditions
		if json.Unmarshal([]byte(row.PayloadJSON), &c) == nil {
			c.CityLabel = city.Label
			p.cacheFront(ctx, city.ID, c)
			return &c, cache.Fresh
		}
	}

	fresh, err := p.fetch(ctx, city)
	if err == nil {
		payload, _ := json.Marshal(fresh)
		entry := models.WeatherCacheEntry{
			CityID:      city.ID,
			PayloadJSON: string(payload),
			FetchedAt:   now,
			ExpiresAt:   now.Add(CacheTTL),
		}
		if err := p.db.Save(&entry).Error; err != nil {
			p.logger.Warn().Err(err).Str("city_id", city.ID).Msg("failed to persist weather cache row")
		}
		fresh.CityLabel = city.Label
		p.cacheFront(ctx, city.ID, *fresh)
		return fresh, cache.Fresh
	}

	telemetry.ProviderErrorsTotal.WithLabelValues("weather", "fetch").Inc()

	if haveRow {
		var c Conditions
		if json.Unmarshal([]byte(row.PayloadJSON), &c) == nil {
			c.CityLabel = city.Label
			c.Stale = true
			return &c, cache.Stale
		}
	}

	p.logger.Warn().Str("city_id", city.ID).Err(err).Msg("weather unavailable, no cache fallback")
	return nil, cache.Absent
}

func (p *Provider) cacheFront(ctx context.Context, cityID string, c Conditions) {
	if p.front != nil {
		p.front.SetWeather(ctx, cityID, c)
	}
}

func (p *Provider) fetch(ctx context.Context, city models.City) (*Conditions, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weather: no API key configured")
	}

	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("q", fmt.Sprintf("%f,%f", city.Lat, city.Lon))
	q.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: upstream status %d", resp.StatusCode)
	}

	var body struct {
		Current struct {
			TempC      float64 `json:"temp_c"`
			TempF      float64 `json:"temp_f"`
			FeelsLikeC float64 `json:"feelslike_c"`
			FeelsLikeF float64 `json:"feelslike_f"`
			Condition  struct {
				Text string `json:"text"`
			} `json:"condition"`
			WindKPH  float64 `json:"wind_kph"`
			WindMPH  float64 `json:"wind_mph"`
			Humidity int     `json:"humidity"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("weather: decode response: %w", err)
	}

	imperial := city.Units == "imperial"
	c := &Conditions{
		CityID:    city.ID,
		Condition: body.Current.Condition.Text,
		Humidity:  body.Current.Humidity,
	}
	if imperial {
		c.Temp = body.Current.TempF
		c.FeelsLike = body.Current.FeelsLikeF
		c.Wind = body.Current.WindMPH
		c.Units = "F"
		c.WindUnits = "mph"
	} else {
		c.Temp = body.Current.TempC
		c.FeelsLike = body.Current.FeelsLikeC
		c.Wind = body.Current.WindKPH
		c.Units = "C"
		c.WindUnits = "kph"
	}
	return c, nil
}
