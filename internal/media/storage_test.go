/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithoutBucketReturnsNoop(t *testing.T) {
	a := New(context.Background(), Config{}, zerolog.Nop())
	if _, ok := a.(Noop); !ok {
		t.Fatalf("expected Noop archiver when bucket is unset, got %T", a)
	}
}

func TestNoopArchiveReturnsEmptyKey(t *testing.T) {
	key, err := Noop{}.Archive(context.Background(), "brk_1", "audio", "/tmp/does-not-matter.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key from noop archiver, got %q", key)
	}
}
