/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package market fetches bitcoin market data from a single upstream
// endpoint behind a database-backed TTL cache, falling back to the
// stale row on a failed fetch. Get returns nothing unless the provider
// was constructed with enabled set (BREAKCAST_MARKET_ENABLED) and an
// API key is configured; the break builder additionally skips it when
// the settings table's market_enabled flag is off.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/airwaveco/breakcast/internal/cache"
	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const cacheRowID = "market"

// Section groups mirror the four sections the upstream payload
// carries: spot price, ETF trading, corporate treasuries, and
// government treasuries.
type PriceSection struct {
	LivePrice     *float64 `json:"live_price"`
	Change24h     *float64 `json:"change_24h"`
	ChangePct24h  *float64 `json:"change_pct_24h"`
	MarketCap     *float64 `json:"market_cap"`
	SatsPerDollar *int64   `json:"sats_per_dollar"`
}

type ETFSection struct {
	SpotVolume  *float64 `json:"spot_volume"`
	TotalAUM    *float64 `json:"total_aum"`
	BTCHoldings *float64 `json:"btc_holdings"`
}

type CorporateSection struct {
	TotalBTC         *float64 `json:"total_btc"`
	TotalValue       *float64 `json:"total_value"`
	PublicCompanies  *int64   `json:"public_companies"`
	PrivateCompanies *int64   `json:"private_companies"`
}

type GovernmentSection struct {
	TotalCountries *int64   `json:"total_countries"`
	TotalBTC       *float64 `json:"total_btc"`
	TotalValue     *float64 `json:"total_value"`
}

// Data is the normalized market-data payload carried into the LM
// prompt context.
type Data struct {
	Price      PriceSection      `json:"price"`
	ETF        ETFSection        `json:"etf"`
	Corporate  CorporateSection  `json:"corporate"`
	Government GovernmentSection `json:"government"`
	Stale      bool              `json:"stale"`
}

// Provider fetches and caches market data.
type Provider struct {
	db      *gorm.DB
	front   *cache.Cache
	httpc   *http.Client
	apiURL  string
	apiKey  string
	enabled bool
	ttl     time.Duration
	logger  zerolog.Logger
}

// New constructs a market Provider.
func New(database *gorm.DB, front *cache.Cache, apiURL, apiKey string, enabled bool, ttl time.Duration, logger zerolog.Logger) *Provider {
	return &Provider{
		db:      database,
		front:   front,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		apiURL:  apiURL,
		apiKey:  apiKey,
		enabled: enabled,
		ttl:     ttl,
		logger:  logger.With().Str("component", "market").Logger(),
	}
}

// Get returns the current market data, or (nil, nil) if the market
// slot is disabled or unconfigured — this is a normal, non-error
// condition the orchestrator treats as "omit this slot".
func (p *Provider) Get(ctx context.Context) (*Data, error) {
	if !p.enabled || p.apiKey == "" {
		return nil, nil
	}

	if p.front != nil {
		var fromFront Data
		if p.front.GetMarket(ctx, &fromFront) {
			return &fromFront, nil
		}
	}

	now := time.Now().UTC()

	var row models.MarketCacheEntry
	rowErr := p.db.First(&row, "id = ?", cacheRowID).Error
	haveRow := rowErr == nil

	if haveRow && row.ExpiresAt.After(now) {
		var d Data
		if json.Unmarshal([]byte(row.PayloadJSON), &d) == nil {
			p.cacheFront(ctx, d)
			return &d, nil
		}
	}

	fresh, err := p.fetch(ctx)
	if err == nil {
		payload, _ := json.Marshal(fresh)
		entry := models.MarketCacheEntry{
			ID:          cacheRowID,
			PayloadJSON: string(payload),
			FetchedAt:   now,
			ExpiresAt:   now.Add(p.ttl),
		}
		if err := p.db.Save(&entry).Error; err != nil {
			p.logger.Warn().Err(err).Msg("failed to persist market cache row")
		}
		p.cacheFront(ctx, *fresh)
		return fresh, nil
	}

	telemetry.ProviderErrorsTotal.WithLabelValues("market", "fetch").Inc()

	if haveRow {
		var d Data
		if json.Unmarshal([]byte(row.PayloadJSON), &d) == nil {
			d.Stale = true
			return &d, nil
		}
	}

	return nil, fmt.Errorf("market: fetch failed and no cache fallback: %w", err)
}

func (p *Provider) cacheFront(ctx context.Context, d Data) {
	if p.front != nil {
		p.front.SetMarket(ctx, d)
	}
}

func (p *Provider) fetch(ctx context.Context) (*Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("apiKey", p.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market: upstream status %d", resp.StatusCode)
	}

	var raw struct {
		Price struct {
			LivePrice           flexNumber `json:"live_price"`
			Change24h           flexNumber `json:"change_24h"`
			ChangePercentage24h flexNumber `json:"change_percentage_24h"`
			MarketCap           flexNumber `json:"market_cap"`
			SatsPerDollar       flexNumber `json:"sats_per_dollar"`
		} `json:"price"`
		ETFTrading24h struct {
			SpotVolume  flexNumber `json:"spot_volume"`
			TotalAUM    flexNumber `json:"total_aum"`
			BTCHoldings flexNumber `json:"btc_holdings"`
		} `json:"etf_trading_24h"`
		CorporateTreasuries struct {
			TotalBTC         flexNumber `json:"total_btc"`
			TotalValue       flexNumber `json:"total_value"`
			PublicCompanies  flexNumber `json:"public_companies"`
			PrivateCompanies flexNumber `json:"private_companies"`
		} `json:"corporate_treasuries"`
		GovernmentTreasuries struct {
			TotalCountries flexNumber `json:"total_countries"`
			TotalBTC       flexNumber `json:"total_btc"`
			TotalValue     flexNumber `json:"total_value"`
		} `json:"government_treasuries"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("market: decode response: %w", err)
	}

	return &Data{
		Price: PriceSection{
			LivePrice:     numFloat(raw.Price.LivePrice),
			Change24h:     numFloat(raw.Price.Change24h),
			ChangePct24h:  numFloat(raw.Price.ChangePercentage24h),
			MarketCap:     numFloat(raw.Price.MarketCap),
			SatsPerDollar: numInt(raw.Price.SatsPerDollar),
		},
		ETF: ETFSection{
			SpotVolume:  numFloat(raw.ETFTrading24h.SpotVolume),
			TotalAUM:    numFloat(raw.ETFTrading24h.TotalAUM),
			BTCHoldings: numFloat(raw.ETFTrading24h.BTCHoldings),
		},
		Corporate: CorporateSection{
			TotalBTC:         numFloat(raw.CorporateTreasuries.TotalBTC),
			TotalValue:       numFloat(raw.CorporateTreasuries.TotalValue),
			PublicCompanies:  numInt(raw.CorporateTreasuries.PublicCompanies),
			PrivateCompanies: numInt(raw.CorporateTreasuries.PrivateCompanies),
		},
		Government: GovernmentSection{
			TotalCountries: numInt(raw.GovernmentTreasuries.TotalCountries),
			TotalBTC:       numFloat(raw.GovernmentTreasuries.TotalBTC),
			TotalValue:     numFloat(raw.GovernmentTreasuries.TotalValue),
		},
	}, nil
}

// flexNumber unmarshals a JSON field the upstream API may send as
// either a bare number or a quoted numeric string, matching Python's
// `_num(val)` helper: float(val) tolerates both representations and
// yields nil on null or unparseable input.
type flexNumber struct {
	value float64
	valid bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.value = f
	n.valid = true
	return nil
}

func numFloat(n flexNumber) *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

func numInt(n flexNumber) *int64 {
	if !n.valid {
		return nil
	}
	i := int64(n.value)
	return &i
}
