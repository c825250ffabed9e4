/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package auth authenticates the breaking-news trigger endpoint,
// either by a shared API key header or by a signed JWT bearer token.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims identifies the caller permitted to trigger a breaking break.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Issue creates an HS256 JWT token string.
func Issue(secret []byte, subject string, ttl time.Duration) (string, error) {
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string and enforces HS256.
func Parse(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RequireBreakingAuth is chi-compatible middleware that accepts
// either an X-API-Key header matching apiKey, or an
// "Authorization: Bearer <jwt>" header valid under jwtSecret. Either
// check is skipped if its corresponding secret is empty.
func RequireBreakingAuth(apiKey string, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" {
				if got := r.Header.Get("X-API-Key"); got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if len(jwtSecret) > 0 {
				authz := r.Header.Get("Authorization")
				if strings.HasPrefix(authz, "Bearer ") {
					token := strings.TrimPrefix(authz, "Bearer ")
					if _, err := Parse(jwtSecret, token); err == nil {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
