/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compositor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airwaveco/breakcast/internal/models"
)

func TestRunLengthEncode(t *testing.T) {
	in := []bool{true, true, false, false, false, true}
	runs := runLengthEncode(in)

	want := []run{{true, 2}, {false, 3}, {true, 1}}
	if len(runs) != len(want) {
		t.Fatalf("got %d runs, want %d: %+v", len(runs), len(want), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d = %+v, want %+v", i, runs[i], want[i])
		}
	}
}

func TestRunLengthEncodeEmpty(t *testing.T) {
	if got := runLengthEncode(nil); got != nil {
		t.Errorf("expected nil for an empty mask, got %+v", got)
	}
}

func TestWriteConcatFileAlternatesIdleAndTalking(t *testing.T) {
	dir := t.TempDir()
	concatPath := filepath.Join(dir, "concat.txt")
	mask := []bool{false, false, true, true, true}

	if err := writeConcatFile(concatPath, mask, "idle.png", "talking.png", 24); err != nil {
		t.Fatalf("writeConcatFile failed: %v", err)
	}

	b, err := os.ReadFile(concatPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)

	if !strings.Contains(content, "ffconcat version 1.0") {
		t.Error("expected an ffconcat header")
	}
	if strings.Count(content, "idle.png") < 1 {
		t.Error("expected at least one idle.png entry")
	}
	if strings.Count(content, "talking.png") < 1 {
		t.Error("expected at least one talking.png entry")
	}
	// Last file line should repeat the final frame's image so ffmpeg's
	// concat demuxer has a terminal "file" entry for the last duration.
	if !strings.HasSuffix(strings.TrimSpace(content), "file 'talking.png'") {
		t.Errorf("expected the file to end on the talking frame, got:\n%s", content)
	}
}

func TestBuildXfadeFilterCutUsesMinimalFade(t *testing.T) {
	durations := []float64{2.0, 2.0}
	transitions := []models.TransitionType{models.TransitionCut}

	filter, fadeDurations := buildXfadeFilter(durations, transitions, 24)

	if len(fadeDurations) != 1 {
		t.Fatalf("expected 1 fade duration for a 2-segment EDL, got %d", len(fadeDurations))
	}
	if fadeDurations[0] >= dissolveSeconds {
		t.Errorf("a cut transition should use a one-frame fade, got %.3fs", fadeDurations[0])
	}
	if !strings.Contains(filter, "[vout]") || !strings.Contains(filter, "[aout]") {
		t.Errorf("expected the final stage to be labeled [vout]/[aout], got: %s", filter)
	}
}

func TestBuildXfadeFilterDissolveUsesConfiguredDuration(t *testing.T) {
	durations := []float64{3.0, 3.0, 3.0}
	transitions := []models.TransitionType{models.TransitionDissolve, models.TransitionFadeBlack}

	_, fadeDurations := buildXfadeFilter(durations, transitions, 24)

	if len(fadeDurations) != 2 {
		t.Fatalf("expected 2 fade durations for a 3-segment EDL, got %d", len(fadeDurations))
	}
	if fadeDurations[0] != dissolveSeconds {
		t.Errorf("dissolve fade duration = %.3f, want %.3f", fadeDurations[0], dissolveSeconds)
	}
	if fadeDurations[1] != fadeBlackSeconds {
		t.Errorf("fade_black duration = %.3f, want %.3f", fadeDurations[1], fadeBlackSeconds)
	}
}

func TestEncoderArgsForKnownEncoders(t *testing.T) {
	hw := encoderArgsFor("h264_v4l2m2m")
	if hw[0] != "-c:v" || hw[1] != "h264_v4l2m2m" {
		t.Errorf("unexpected hardware encoder args: %v", hw)
	}
	sw := encoderArgsFor("libx264")
	if sw[0] != "-c:v" || sw[1] != "libx264" {
		t.Errorf("unexpected software encoder args: %v", sw)
	}
}
