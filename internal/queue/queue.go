/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue implements the break queue's lifecycle state machine:
// PREPARING admission, READY/FAILED transitions, startup recovery of
// breaks orphaned by a crash mid-build, and retention pruning.
package queue

import (
	"fmt"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/gorm"
)

// Retention is how long PLAYED/FAILED rows are kept before pruning.
const Retention = 7 * 24 * time.Hour

// Queue wraps the break_queue table with the state transitions the
// builder pipeline needs.
type Queue struct {
	db *gorm.DB
}

// New constructs a Queue.
func New(database *gorm.DB) *Queue {
	return &Queue{db: database}
}

// GetPreparing returns the single in-flight PREPARING entry, if any.
// The builder uses this as its single-in-flight admission gate for
// scheduled breaks; breaking-news breaks bypass it.
func (q *Queue) GetPreparing() (*models.BreakQueueEntry, error) {
	var entry models.BreakQueueEntry
	err := q.db.Where("status = ?", models.BreakPreparing).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Create admits a new break entry in the PREPARING state.
func (q *Queue) Create(id string, breakType models.BreakType, priority int, hostID string) error {
	entry := models.BreakQueueEntry{
		ID:        id,
		Type:      breakType,
		Priority:  priority,
		HostID:    hostID,
		Status:    models.BreakPreparing,
		CreatedAt: time.Now().UTC(),
	}
	return q.db.Create(&entry).Error
}

// MarkReady transitions an entry to READY with its final script,
// audio path, degradation level, and typed metadata.
func (q *Queue) MarkReady(id, script, audioPath string, degradationLevel int, durationMS int64, meta models.BreakMeta) error {
	now := time.Now().UTC()
	return q.db.Model(&models.BreakQueueEntry{}).Where("id = ?", id).Updates(map[string]any{
		"status":            models.BreakReady,
		"script_text":       script,
		"audio_path":        audioPath,
		"degradation_level": degradationLevel,
		"duration_ms":       durationMS,
		"meta":              meta,
		"ready_at":          &now,
	}).Error
}

// MarkPlayed transitions a READY entry to PLAYED once the playout
// engine has accepted the push. Liquidsoap has no play-complete
// callback, so "played" here means "handed off successfully", not
// "finished airing".
func (q *Queue) MarkPlayed(id string) error {
	now := time.Now().UTC()
	return q.db.Model(&models.BreakQueueEntry{}).Where("id = ?", id).Updates(map[string]any{
		"status":    models.BreakPlayed,
		"played_at": &now,
	}).Error
}

// MarkFailed transitions an entry to FAILED with a reason.
func (q *Queue) MarkFailed(id, reason string) error {
	return q.db.Model(&models.BreakQueueEntry{}).Where("id = ?", id).Updates(map[string]any{
		"status":         models.BreakFailed,
		"failure_reason": reason,
	}).Error
}

// RecentHeadlineIDs returns the headline ids used by the most recent
// `lookback` PLAYED or READY breaks, for the news dedup exclusion set.
func (q *Queue) RecentHeadlineIDs(lookback int) ([]string, error) {
	var entries []models.BreakQueueEntry
	err := q.db.
		Where("status IN ?", []models.BreakStatus{models.BreakPlayed, models.BreakReady}).
		Order("created_at DESC").
		Limit(lookback).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("queue: load recent breaks: %w", err)
	}

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.Meta.HeadlinesUsed...)
	}
	return ids, nil
}

// RecoverOrphaned marks any PREPARING entry left over from a crashed
// process as FAILED, so a stale row never blocks the admission gate
// forever. Call once at startup before the scheduler begins.
func (q *Queue) RecoverOrphaned() (int64, error) {
	result := q.db.Model(&models.BreakQueueEntry{}).
		Where("status = ?", models.BreakPreparing).
		Updates(map[string]any{
			"status":         models.BreakFailed,
			"failure_reason": "orphaned by process restart",
		})
	return result.RowsAffected, result.Error
}

// Prune deletes PLAYED/FAILED entries older than Retention.
func (q *Queue) Prune() (int64, error) {
	cutoff := time.Now().UTC().Add(-Retention)
	result := q.db.
		Where("status IN ? AND created_at < ?", []models.BreakStatus{models.BreakPlayed, models.BreakFailed}, cutoff).
		Delete(&models.BreakQueueEntry{})
	return result.RowsAffected, result.Error
}
