/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package validator checks an LM-generated break script before it is
// allowed to reach speech synthesis. It is a pure function: no I/O,
// no database.
package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// BlockedPhrases require word-boundary matching so a substring like
// "invest" inside "investigation" does not trigger a false positive.
var BlockedPhrases = []string{
	"buy", "sell", "invest", "investing", "price target", "prediction",
	"click", "subscribe", "go to", "check out",
	"breaking news", // avoid unless this genuinely is a breaking break
}

// BlockedSubstrings are domain-like tokens checked with plain
// substring matching, since URLs don't sit on word boundaries.
var BlockedSubstrings = []string{"http", "www.", ".com", ".org", ".net"}

const (
	DefaultMinWords         = 15
	DefaultMaxWords         = 100
	DefaultMaxChars         = 600
	DefaultBreakingMinWords = 10
	DefaultBreakingMaxWords = 50
)

// Bounds overrides the default word/char bounds. A zero field falls
// back to its default.
type Bounds struct {
	MinWords int
	MaxWords int
	MaxChars int
}

// Validate checks script against the word-boundary phrase blocklist,
// the substring domain blocklist, and word/char bounds. Breaking
// scripts use tighter bounds and exempt "breaking news" from the
// phrase blocklist.
func Validate(script string, isBreaking bool, bounds Bounds) (bool, string) {
	if strings.TrimSpace(script) == "" {
		return false, "empty script"
	}

	words := strings.Fields(script)

	minWords, maxWords := bounds.MinWords, bounds.MaxWords
	if minWords == 0 {
		if isBreaking {
			minWords = DefaultBreakingMinWords
		} else {
			minWords = DefaultMinWords
		}
	}
	if maxWords == 0 {
		if isBreaking {
			maxWords = DefaultBreakingMaxWords
		} else {
			maxWords = DefaultMaxWords
		}
	}
	maxChars := bounds.MaxChars
	if maxChars == 0 {
		maxChars = DefaultMaxChars
	}

	if len(words) < minWords {
		return false, fmt.Sprintf("too short (%d words, min %d)", len(words), minWords)
	}
	if len(words) > maxWords {
		return false, fmt.Sprintf("too long (%d words, max %d)", len(words), maxWords)
	}
	if len(script) > maxChars {
		return false, fmt.Sprintf("exceeds %d chars", maxChars)
	}

	lower := strings.ToLower(script)

	for _, phrase := range BlockedPhrases {
		if isBreaking && phrase == "breaking news" {
			continue
		}
		if wordBoundaryMatch(lower, phrase) {
			return false, fmt.Sprintf("blocked word: %q", phrase)
		}
	}

	for _, sub := range BlockedSubstrings {
		if strings.Contains(lower, sub) {
			return false, fmt.Sprintf("blocked pattern: %q", sub)
		}
	}

	return true, "ok"
}

func wordBoundaryMatch(lower, phrase string) bool {
	pattern := `\b` + regexp.QuoteMeta(phrase) + `\b`
	matched, err := regexp.MatchString(pattern, lower)
	return err == nil && matched
}
