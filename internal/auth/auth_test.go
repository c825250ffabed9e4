/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, "operator-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "operator-1" {
		t.Errorf("Subject = %q, want operator-1", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("expected a non-empty jti claim")
	}
}

func TestIssueAssignsDistinctTokenIDs(t *testing.T) {
	secret := []byte("test-secret")
	a, err := Issue(secret, "sub", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	b, err := Issue(secret, "sub", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claimsA, err := Parse(secret, a)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	claimsB, err := Parse(secret, b)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claimsA.ID == claimsB.ID {
		t.Error("expected distinct jti claims across separate Issue calls")
	}
}

func TestParseRejectsTamperedSecret(t *testing.T) {
	token, err := Issue([]byte("right-secret"), "sub", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := Parse([]byte("wrong-secret"), token); err == nil {
		t.Error("expected Parse to reject a token signed with a different secret")
	}
}

func TestRequireBreakingAuthAcceptsAPIKey(t *testing.T) {
	mw := RequireBreakingAuth("secret-key", nil)
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/breaking/trigger", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected the handler to be called with a matching API key")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireBreakingAuthRejectsMissingCredentials(t *testing.T) {
	mw := RequireBreakingAuth("secret-key", []byte("jwt-secret"))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/breaking/trigger", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
