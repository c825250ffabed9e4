/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airwaveco/breakcast/internal/models"
	"github.com/rs/zerolog"
)

func TestParseScoreResponseAcceptsBareArray(t *testing.T) {
	content := `[{"index":0,"score":7,"category":"world","is_breaking":false}]`
	scored, err := parseScoreResponse(content)
	if err != nil {
		t.Fatalf("parseScoreResponse failed: %v", err)
	}
	if len(scored) != 1 || scored[0].Score != 7 {
		t.Errorf("got %+v, want one entry with score 7", scored)
	}
}

func TestParseScoreResponseAcceptsScoresWrapper(t *testing.T) {
	content := `{"scores":[{"index":1,"score":9,"category":"tech","is_breaking":true}]}`
	scored, err := parseScoreResponse(content)
	if err != nil {
		t.Fatalf("parseScoreResponse failed: %v", err)
	}
	if len(scored) != 1 || !scored[0].IsBreaking {
		t.Errorf("got %+v, want one breaking entry", scored)
	}
}

func TestParseScoreResponseAcceptsHeadlinesWrapper(t *testing.T) {
	content := `{"headlines":[{"index":0,"score":3,"category":"local","is_breaking":false}]}`
	scored, err := parseScoreResponse(content)
	if err != nil {
		t.Fatalf("parseScoreResponse failed: %v", err)
	}
	if len(scored) != 1 || scored[0].Category != "local" {
		t.Errorf("got %+v, want category local", scored)
	}
}

func TestParseScoreResponseRejectsUnrecognizedShape(t *testing.T) {
	content := `{"unexpected":"shape"}`
	if _, err := parseScoreResponse(content); err == nil {
		t.Fatal("expected an error for an unrecognized JSON shape")
	}
}

func TestParseScoreResponseRejectsGarbage(t *testing.T) {
	if _, err := parseScoreResponse("not json at all"); err == nil {
		t.Fatal("expected an error for unparseable content")
	}
}

func TestFormatContextFallsBackWhenEverythingIsEmpty(t *testing.T) {
	got := formatContext(nil, nil, nil)
	want := "No weather or news data available. Give a brief station ID and return to music."
	if got != want {
		t.Errorf("formatContext() = %q, want %q", got, want)
	}
}

// fakeScorerServer scores every headline in the request's user message
// with a fixed score and returns its batch size, so a test can assert
// both the per-call batch size and the number of calls made.
func fakeScorerServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		n := 0
		for _, msg := range req.Messages {
			if msg.Role == "user" {
				for _, line := range splitNonEmptyLines(msg.Content) {
					_ = line
					n++
				}
			}
		}
		*batchSizes = append(*batchSizes, n)

		var scores []ScoredHeadline
		for i := 0; i < n; i++ {
			scores = append(scores, ScoredHeadline{Index: i, Score: 5, Category: "world"})
		}
		payload, _ := json.Marshal(scores)
		resp := chatResponse{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: string(payload)}}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, l := range splitLines(s) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func makeHeadlines(n int) []models.CachedHeadline {
	headlines := make([]models.CachedHeadline, n)
	for i := range headlines {
		headlines[i] = models.CachedHeadline{ID: fmt.Sprintf("h%d", i), SourceID: "feed", Title: fmt.Sprintf("headline %d", i)}
	}
	return headlines
}

func TestScoreHeadlinesChunksIntoBatchesOfAtMostTwelve(t *testing.T) {
	var batchSizes []int
	srv := fakeScorerServer(t, &batchSizes)
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", zerolog.Nop(), nil)
	headlines := makeHeadlines(20)

	scored, err := client.ScoreHeadlines(context.Background(), headlines)
	if err != nil {
		t.Fatalf("ScoreHeadlines failed: %v", err)
	}

	if len(batchSizes) != 2 {
		t.Fatalf("expected 2 LM calls for 20 headlines, got %d (%v)", len(batchSizes), batchSizes)
	}
	for _, n := range batchSizes {
		if n > scoreBatchSize {
			t.Errorf("batch size %d exceeds scoreBatchSize %d", n, scoreBatchSize)
		}
	}
	if batchSizes[0] != scoreBatchSize || batchSizes[1] != 8 {
		t.Errorf("batch sizes = %v, want [12 8]", batchSizes)
	}

	if len(scored) != 20 {
		t.Fatalf("expected 20 scored headlines, got %d", len(scored))
	}
	seen := make(map[int]bool)
	for _, sc := range scored {
		seen[sc.Index] = true
	}
	for i := 0; i < 20; i++ {
		if !seen[i] {
			t.Errorf("missing rebased index %d in scored output", i)
		}
	}
}
