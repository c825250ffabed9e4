/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"testing"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestQueue(t *testing.T) (*Queue, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.BreakQueueEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return New(db), db
}

func TestCreateAdmitsAPreparingEntry(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Create("b1", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entry, err := q.GetPreparing()
	if err != nil {
		t.Fatalf("GetPreparing failed: %v", err)
	}
	if entry == nil || entry.ID != "b1" {
		t.Fatalf("expected to find the preparing entry, got %+v", entry)
	}
}

func TestGetPreparingReturnsNilWhenEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	entry, err := q.GetPreparing()
	if err != nil {
		t.Fatalf("GetPreparing failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil, got %+v", entry)
	}
}

func TestMarkReadyTransitionsStatusAndPersistsMeta(t *testing.T) {
	q, db := newTestQueue(t)
	if err := q.Create("b1", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}

	meta := models.BreakMeta{DegradationLevel: 0, HeadlinesUsed: []string{"h1", "h2"}}
	if err := q.MarkReady("b1", "script text", "/audio/b1.mp3", 0, 1200, meta); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}

	var entry models.BreakQueueEntry
	if err := db.First(&entry, "id = ?", "b1").Error; err != nil {
		t.Fatal(err)
	}
	if entry.Status != models.BreakReady {
		t.Errorf("status = %s, want READY", entry.Status)
	}
	if entry.ScriptText != "script text" || entry.AudioPath != "/audio/b1.mp3" {
		t.Errorf("unexpected persisted script/audio: %+v", entry)
	}
	if len(entry.Meta.HeadlinesUsed) != 2 {
		t.Errorf("expected meta.HeadlinesUsed to round-trip, got %+v", entry.Meta)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	q, db := newTestQueue(t)
	if err := q.Create("b1", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkFailed("b1", "tts_failed: boom"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	var entry models.BreakQueueEntry
	if err := db.First(&entry, "id = ?", "b1").Error; err != nil {
		t.Fatal(err)
	}
	if entry.Status != models.BreakFailed || entry.FailureReason != "tts_failed: boom" {
		t.Errorf("got %+v", entry)
	}
}

func TestRecentHeadlineIDsCollectsAcrossPlayedAndReady(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Create("b1", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkReady("b1", "s", "a", 0, 1, models.BreakMeta{HeadlinesUsed: []string{"h1"}}); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkPlayed("b1"); err != nil {
		t.Fatal(err)
	}

	if err := q.Create("b2", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkReady("b2", "s", "a", 0, 1, models.BreakMeta{HeadlinesUsed: []string{"h2", "h3"}}); err != nil {
		t.Fatal(err)
	}

	ids, err := q.RecentHeadlineIDs(10)
	if err != nil {
		t.Fatalf("RecentHeadlineIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 ids across both breaks, got %v", ids)
	}
}

func TestRecoverOrphanedFailsStalePreparingEntries(t *testing.T) {
	q, db := newTestQueue(t)
	if err := q.Create("b1", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}

	n, err := q.RecoverOrphaned()
	if err != nil {
		t.Fatalf("RecoverOrphaned failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row recovered, got %d", n)
	}

	var entry models.BreakQueueEntry
	if err := db.First(&entry, "id = ?", "b1").Error; err != nil {
		t.Fatal(err)
	}
	if entry.Status != models.BreakFailed {
		t.Errorf("status = %s, want FAILED", entry.Status)
	}
}

func TestPruneDeletesOnlyOldTerminalEntries(t *testing.T) {
	q, db := newTestQueue(t)
	if err := q.Create("recent", models.BreakScheduled, 0, "host_a"); err != nil {
		t.Fatal(err)
	}
	if err := q.MarkPlayed("recent"); err != nil {
		t.Fatal(err)
	}

	old := models.BreakQueueEntry{
		ID:        "old",
		Type:      models.BreakScheduled,
		HostID:    "host_a",
		Status:    models.BreakPlayed,
		CreatedAt: time.Now().UTC().Add(-8 * 24 * time.Hour),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}

	n, err := q.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row pruned, got %d", n)
	}

	var remaining []models.BreakQueueEntry
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != "recent" {
		t.Errorf("expected only the recent entry to survive, got %+v", remaining)
	}
}
