/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package hostrotation

import (
	"testing"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Host{}, &models.HostRotation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedHosts(t *testing.T, db *gorm.DB) {
	t.Helper()
	hosts := []models.Host{
		{ID: "host_a", Label: "Host A", Enabled: true},
		{ID: "host_b", Label: "Host B", Enabled: true},
		{ID: "host_breaking", Label: "Breaking Host", Enabled: true, IsBreakingHost: true},
	}
	for _, h := range hosts {
		if err := db.Create(&h).Error; err != nil {
			t.Fatalf("seed host %s: %v", h.ID, err)
		}
	}
}

func TestNextAlternatesBetweenHosts(t *testing.T) {
	db := newTestDB(t)
	seedHosts(t, db)
	r := New(db)

	first, err := r.Next(false)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	second, err := r.Next(false)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("expected alternating hosts, got %s then %s", first.ID, second.ID)
	}
}

func TestNextBreakingAlwaysReturnsTheBreakingHost(t *testing.T) {
	db := newTestDB(t)
	seedHosts(t, db)
	r := New(db)

	for i := 0; i < 3; i++ {
		host, err := r.Next(true)
		if err != nil {
			t.Fatalf("Next(true) failed: %v", err)
		}
		if host.ID != "host_breaking" {
			t.Errorf("expected host_breaking, got %s", host.ID)
		}
	}
}

func TestNextFallsBackWhenPreferredSlotDisabled(t *testing.T) {
	db := newTestDB(t)
	hosts := []models.Host{
		{ID: "host_a", Label: "Host A", Enabled: false},
		{ID: "host_b", Label: "Host B", Enabled: true},
	}
	for _, h := range hosts {
		if err := db.Create(&h).Error; err != nil {
			t.Fatalf("seed host %s: %v", h.ID, err)
		}
	}
	r := New(db)

	// break_count goes 0 -> 1, which is odd, so it wants host_b first.
	host, err := r.Next(false)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if host.ID != "host_b" {
		t.Fatalf("expected host_b, got %s", host.ID)
	}

	// Next call wants host_a, which is disabled, so it must fall back
	// to any enabled host instead of erroring.
	host, err = r.Next(false)
	if err != nil {
		t.Fatalf("Next() with disabled preferred host should fall back, got error: %v", err)
	}
	if host.ID != "host_b" {
		t.Errorf("expected fallback to the only enabled host (host_b), got %s", host.ID)
	}
}

func TestNextBreakingErrorsWithNoBreakingHost(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&models.Host{ID: "host_a", Label: "Host A", Enabled: true}).Error; err != nil {
		t.Fatal(err)
	}
	r := New(db)

	if _, err := r.Next(true); err == nil {
		t.Fatal("expected an error when no enabled breaking host exists")
	}
}
