/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package news polls RSS/Atom feeds, deduplicates and sanitizes
// entries into the database-backed headline cache, tracks per-feed
// health, and selects the top scored headlines for a break script.
package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airwaveco/breakcast/internal/cache"
	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	maxEntriesPerFeed = 20
	maxTitleLen       = 200
	maxDescLen        = 300
	scoreThreshold    = 4
)

// CacheRetention is how long cached headlines are kept before pruning,
// per §4.9's "news cache older than 24 h".
const CacheRetention = 24 * time.Hour

// Headline is the selection-facing view of a cached, scored entry.
type Headline struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Score       int       `json:"score"`
	PublishedAt time.Time `json:"published_at"`
	// PreviouslyReported marks a headline that was backfilled past
	// the caller's exclusion set, i.e. it may have already aired.
	PreviouslyReported bool `json:"previously_reported"`
}

// Provider polls feeds and serves headline selections.
type Provider struct {
	db     *gorm.DB
	front  *cache.Cache
	httpc  *http.Client
	logger zerolog.Logger
}

// New constructs a news Provider.
func New(database *gorm.DB, front *cache.Cache, logger zerolog.Logger) *Provider {
	return &Provider{
		db:     database,
		front:  front,
		httpc:  &http.Client{Timeout: 15 * time.Second},
		logger: logger.With().Str("component", "news").Logger(),
	}
}

// PollAll fetches every enabled, non-dead source in descending weight
// order, persisting new headlines and updating feed health. It
// returns the count of newly inserted headlines.
func (p *Provider) PollAll(ctx context.Context) (int, error) {
	var sources []models.NewsSource
	if err := p.db.
		Joins("JOIN feed_health ON feed_health.source_id = news_sources.id").
		Where("news_sources.enabled = ? AND feed_health.status != ?", true, models.FeedHealthDead).
		Order("news_sources.weight DESC").
		Find(&sources).Error; err != nil {
		return 0, fmt.Errorf("news: load sources: %w", err)
	}

	inserted := 0
	for _, source := range sources {
		n, err := p.pollOne(ctx, source)
		if err != nil {
			p.logger.Warn().Err(err).Str("source_id", source.ID).Msg("feed poll failed")
		}
		inserted += n
	}
	return inserted, nil
}

func (p *Provider) pollOne(ctx context.Context, source models.NewsSource) (int, error) {
	now := time.Now().UTC()

	entries, err := p.fetchAndParse(ctx, source.URL)
	if err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("news", "fetch").Inc()
		p.recordFailure(source.ID, now)
		return 0, err
	}

	if len(entries) > maxEntriesPerFeed {
		entries = entries[:maxEntriesPerFeed]
	}

	inserted := 0
	for _, e := range entries {
		title := sanitize(e.Title, maxTitleLen)
		if title == "" {
			continue
		}
		hash := titleHash(title)
		id := fmt.Sprintf("%s_%s", source.ID, hash)

		desc := sanitize(e.Description, maxDescLen)
		publishedAt := parsePublished(e.PublishedAt, now)

		row := models.CachedHeadline{
			ID:          id,
			SourceID:    source.ID,
			Title:       title,
			Description: desc,
			URL:         e.Link,
			PublishedAt: publishedAt,
			FetchedAt:   now,
			TitleHash:   hash,
			Category:    source.Category,
		}

		result := p.db.Clauses(onConflictDoNothing()).Create(&row)
		if result.Error != nil {
			p.logger.Warn().Err(result.Error).Str("id", id).Msg("insert headline failed")
			continue
		}
		if result.RowsAffected > 0 {
			inserted++
		}
	}

	p.recordSuccess(source.ID, now)
	return inserted, nil
}

func (p *Provider) fetchAndParse(ctx context.Context, feedURL string) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news: upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseFeed(body)
}

func (p *Provider) recordSuccess(sourceID string, now time.Time) {
	var health models.FeedHealth
	p.db.FirstOrCreate(&health, models.FeedHealth{SourceID: sourceID})
	health.RecordSuccess(now)
	if err := p.db.Save(&health).Error; err != nil {
		p.logger.Warn().Err(err).Str("source_id", sourceID).Msg("failed to persist feed health")
		return
	}
	telemetry.FeedHealthStatus.WithLabelValues(sourceID).Set(healthMetricValue(health.Status))
}

func (p *Provider) recordFailure(sourceID string, now time.Time) {
	var health models.FeedHealth
	p.db.FirstOrCreate(&health, models.FeedHealth{SourceID: sourceID})
	health.RecordFailure(now)
	if err := p.db.Save(&health).Error; err != nil {
		p.logger.Warn().Err(err).Str("source_id", sourceID).Msg("failed to persist feed health")
		return
	}
	telemetry.FeedHealthStatus.WithLabelValues(sourceID).Set(healthMetricValue(health.Status))
	if health.Status == models.FeedHealthDead {
		p.logger.Warn().Str("source_id", sourceID).Msg("feed marked dead after repeated failures")
	}
}

func healthMetricValue(status models.FeedHealthStatus) float64 {
	switch status {
	case models.FeedHealthUnhealthy:
		return 1
	case models.FeedHealthDead:
		return 2
	default:
		return 0
	}
}

// GetRecentUnscored returns the most recently fetched, not-yet-scored
// headlines, newest first, for the LM scoring pass.
func (p *Provider) GetRecentUnscored(limit int) ([]models.CachedHeadline, error) {
	var rows []models.CachedHeadline
	err := p.db.Where("scored = ?", false).Order("fetched_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Prune deletes cached headlines older than CacheRetention.
func (p *Provider) Prune() (int64, error) {
	cutoff := time.Now().UTC().Add(-CacheRetention)
	result := p.db.Where("fetched_at < ?", cutoff).Delete(&models.CachedHeadline{})
	return result.RowsAffected, result.Error
}

// MarkScored records an LM-assigned score for a headline.
func (p *Provider) MarkScored(id string, score int) error {
	return p.db.Model(&models.CachedHeadline{}).Where("id = ?", id).Updates(map[string]any{
		"scored": true,
		"score":  score,
	}).Error
}

// GetTopHeadlines implements the exclude-then-backfill selection
// described in §3: scored headlines with score >= 4 within the dedup
// window, excluding ids the caller has already used; if exclusion
// leaves fewer than limit, backfill from the unexcluded set,
// preserving order, and mark backfilled rows "previously reported".
func (p *Provider) GetTopHeadlines(limit, dedupWindowMinutes int, excludeIDs []string) ([]Headline, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(dedupWindowMinutes) * time.Minute)

	q := p.db.Model(&models.CachedHeadline{}).
		Where("scored = ? AND score >= ? AND fetched_at > ?", true, scoreThreshold, cutoff)

	var primary []models.CachedHeadline
	primaryQ := q
	if len(excludeIDs) > 0 {
		primaryQ = primaryQ.Where("id NOT IN ?", excludeIDs)
	}
	if err := primaryQ.Order("score DESC, fetched_at DESC").Limit(limit).Find(&primary).Error; err != nil {
		return nil, fmt.Errorf("news: select top headlines: %w", err)
	}

	headlines := make([]Headline, 0, limit)
	seen := make(map[string]bool, len(primary))
	for _, row := range primary {
		headlines = append(headlines, toHeadline(row, false))
		seen[row.ID] = true
	}

	if len(headlines) < limit {
		var backfill []models.CachedHeadline
		if err := p.db.Model(&models.CachedHeadline{}).
			Where("scored = ? AND score >= ? AND fetched_at > ?", true, scoreThreshold, cutoff).
			Order("score DESC, fetched_at DESC").
			Limit(limit).
			Find(&backfill).Error; err != nil {
			return nil, fmt.Errorf("news: backfill top headlines: %w", err)
		}
		for _, row := range backfill {
			if len(headlines) >= limit {
				break
			}
			if seen[row.ID] {
				continue
			}
			headlines = append(headlines, toHeadline(row, true))
			seen[row.ID] = true
		}
	}

	return headlines, nil
}

func toHeadline(row models.CachedHeadline, backfilled bool) Headline {
	return Headline{
		ID:                 row.ID,
		Title:              row.Title,
		Description:        row.Description,
		Source:             row.SourceID,
		Category:           row.Category,
		Score:              row.Score,
		PublishedAt:        row.PublishedAt,
		PreviouslyReported: backfilled,
	}
}

func parsePublished(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
