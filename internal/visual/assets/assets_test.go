/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	// Contents don't matter for asset-path resolution tests; only
	// presence/absence is exercised.
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestPack(t *testing.T) (*Pack, string) {
	t.Helper()
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "characters", "nova", "idle.png"))
	writePNG(t, filepath.Join(dir, "characters", "nova", "talking.png"))
	writePNG(t, filepath.Join(dir, "characters", "nova", "excited_idle.png"))
	writePNG(t, filepath.Join(dir, "characters", "nova", "excited_talking.png"))
	writePNG(t, filepath.Join(dir, "characters", "nova", "concerned_idle.png"))
	// Deliberately no concerned_talking.png, to exercise the fallback.

	writePNG(t, filepath.Join(dir, "backgrounds", "studio_wide.png"))
	writePNG(t, filepath.Join(dir, "backgrounds", "studio_closeup_left.png"))

	p := New(dir)
	if err := p.Load([]string{"nova"}); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return p, dir
}

func TestLoadRejectsMissingCharacterDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "backgrounds", "studio_wide.png"))

	p := New(dir)
	if err := p.Load([]string{"ghost"}); err == nil {
		t.Fatal("expected an error for a character directory that does not exist")
	}
}

func TestGetCharacterPNGFallsBackToNeutralThenBarePath(t *testing.T) {
	p, _ := newTestPack(t)

	if got := p.GetCharacterPNG("nova", "excited", true); filepath.Base(got) != "excited_talking.png" {
		t.Errorf("expected the excited_talking variant, got %s", got)
	}

	// concerned has an idle variant but no talking variant: must fall
	// back to the character's default talking.png.
	if got := p.GetCharacterPNG("nova", "concerned", true); filepath.Base(got) != "talking.png" {
		t.Errorf("expected concerned-talking to fall back to the default talking.png, got %s", got)
	}

	// An emotion with no PNGs at all falls back to neutral.
	if got := p.GetCharacterPNG("nova", "furious", false); filepath.Base(got) != "idle.png" {
		t.Errorf("expected an unknown emotion to fall back to neutral idle, got %s", got)
	}

	if got := p.GetCharacterPNG("ghost", "neutral", false); got != "" {
		t.Errorf("expected an unknown character to resolve to empty, got %s", got)
	}
}

func TestGetBackgroundFallsBackToWideThenAnyKey(t *testing.T) {
	p, _ := newTestPack(t)

	if got := p.GetBackground("studio", "closeup_left"); filepath.Base(got) != "studio_closeup_left.png" {
		t.Errorf("expected an exact shot-type match, got %s", got)
	}
	if got := p.GetBackground("studio", "twoshot"); filepath.Base(got) != "studio_wide.png" {
		t.Errorf("expected a missing shot type to fall back to _wide, got %s", got)
	}
	if got := p.GetBackground("nonexistent", "twoshot"); got == "" {
		t.Errorf("expected a deterministic last-resort background, got empty string")
	}
}

func TestGetCharacterPositionFallsBackToDefault(t *testing.T) {
	p, dir := newTestPack(t)
	_ = dir

	x, y, scale := p.GetCharacterPosition("nova", "closeup_left")
	if x != 0.5 || y != 0.7 || scale != 1.0 {
		t.Errorf("expected default position (0.5, 0.7, 1.0), got (%v, %v, %v)", x, y, scale)
	}

	x, y, scale = p.GetCharacterPosition("ghost", "wide")
	if x != 0.5 || y != 0.7 || scale != 1.0 {
		t.Errorf("expected an unknown character to resolve to the package default, got (%v, %v, %v)", x, y, scale)
	}
}
