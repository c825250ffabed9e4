/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestProvider(t *testing.T, apiBase, apiKey string) (*Provider, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.City{}, &models.WeatherCacheEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return New(db, nil, apiBase, apiKey, zerolog.Nop()), db
}

func sampleWeatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"temp_c":20,"temp_f":68,"feelslike_c":19,"feelslike_f":66,"condition":{"text":"sunny"},"wind_kph":10,"wind_mph":6,"humidity":55}}`))
	}))
}

func TestGetForCitiesFetchesAndCachesMetric(t *testing.T) {
	srv := sampleWeatherServer(t)
	defer srv.Close()

	p, db := newTestProvider(t, srv.URL, "testkey")
	city := models.City{ID: "c1", Label: "Springfield", Enabled: true, Units: "metric"}
	if err := db.Create(&city).Error; err != nil {
		t.Fatal(err)
	}

	results, err := p.GetForCities(context.Background())
	if err != nil {
		t.Fatalf("GetForCities failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Units != "C" || results[0].Condition != "sunny" {
		t.Errorf("got %+v", results[0])
	}

	var cached models.WeatherCacheEntry
	if err := db.First(&cached, "city_id = ?", "c1").Error; err != nil {
		t.Fatal("expected a cache row to be written:", err)
	}
}

func TestGetForCitiesServesFromFreshCacheWithoutRefetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"current":{"temp_c":1,"condition":{"text":"bad"}}}`))
	}))
	defer srv.Close()

	p, db := newTestProvider(t, srv.URL, "testkey")
	city := models.City{ID: "c1", Label: "Springfield", Enabled: true, Units: "metric"}
	if err := db.Create(&city).Error; err != nil {
		t.Fatal(err)
	}
	entry := models.WeatherCacheEntry{
		CityID:      "c1",
		PayloadJSON: `{"city_id":"c1","temp":72,"condition":"sunny"}`,
		FetchedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(CacheTTL),
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatal(err)
	}

	results, err := p.GetForCities(context.Background())
	if err != nil {
		t.Fatalf("GetForCities failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected the fresh cache row to avoid an upstream call, got %d calls", calls)
	}
	if len(results) != 1 || results[0].Temp != 72 {
		t.Errorf("got %+v", results)
	}
}

func TestGetForCitiesFallsBackToStaleRowOnFetchFailure(t *testing.T) {
	p, db := newTestProvider(t, "http://127.0.0.1:0", "")
	city := models.City{ID: "c1", Label: "Springfield", Enabled: true, Units: "metric"}
	if err := db.Create(&city).Error; err != nil {
		t.Fatal(err)
	}
	entry := models.WeatherCacheEntry{
		CityID:      "c1",
		PayloadJSON: `{"city_id":"c1","temp":72,"condition":"sunny"}`,
		FetchedAt:   time.Now().UTC().Add(-time.Hour),
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatal(err)
	}

	results, err := p.GetForCities(context.Background())
	if err != nil {
		t.Fatalf("GetForCities failed: %v", err)
	}
	if len(results) != 1 || !results[0].Stale {
		t.Errorf("expected a stale fallback result, got %+v", results)
	}
}

func TestGetForCitiesOmitsCityWithNoCacheAndFailedFetch(t *testing.T) {
	p, db := newTestProvider(t, "http://127.0.0.1:0", "")
	city := models.City{ID: "c1", Label: "Springfield", Enabled: true, Units: "metric"}
	if err := db.Create(&city).Error; err != nil {
		t.Fatal(err)
	}

	results, err := p.GetForCities(context.Background())
	if err != nil {
		t.Fatalf("GetForCities failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results when fetch fails and no cache exists, got %+v", results)
	}
}
