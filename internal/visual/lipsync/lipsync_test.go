/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lipsync

import "testing"

func TestSmoothFlipsShortRunsToPredecessor(t *testing.T) {
	in := []bool{true, true, true, false, true, true, true, true, false, false, true, true, true}
	// index 3 (a single "false") and index 8-9 (two "false", at minRun=2)
	// should survive or flip depending on minRun; below we use minRun=2,
	// so the lone false at index 3 must flip to true, and the run of two
	// false at index 8-9 is exactly minRun so it must survive.
	out := Smooth(in, 2)

	if out[3] != true {
		t.Errorf("expected isolated single-frame run at index 3 to flip to predecessor (true), got %v", out[3])
	}
	if out[8] != false || out[9] != false {
		t.Errorf("expected the two-frame run at index 8-9 to survive (minRun=2), got %v, %v", out[8], out[9])
	}
}

func TestSmoothLeavesLeadingEdgeRunAlone(t *testing.T) {
	in := []bool{true, false, false, false}
	out := Smooth(in, 2)
	if out[0] != true {
		t.Errorf("expected the leading single-frame run to be left alone, got %v", out[0])
	}
}

func TestSmoothShortSlicesPassThrough(t *testing.T) {
	in := []bool{true, false}
	out := Smooth(in, 2)
	if len(out) != len(in) || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("Smooth() on a slice shorter than 3 frames should be a no-op, got %v", out)
	}
}

func TestMaskFromSamplesSilentClipIsAllIdle(t *testing.T) {
	samples := make([]int16, 16000) // 1 second of silence at 16kHz
	mask := MaskFromSamples(samples, 16000, 24)
	for i, v := range mask {
		if v {
			t.Fatalf("silent clip produced a talking frame at %d", i)
		}
	}
}

func TestMaskFromSamplesLoudSectionIsTalking(t *testing.T) {
	sampleRate, fps := 16000, 24
	samplesPerFrame := sampleRate / fps
	totalFrames := 10
	samples := make([]int16, samplesPerFrame*totalFrames)

	// Frames 4-6 carry a loud tone; everything else is silence.
	for f := 4; f <= 6; f++ {
		for i := 0; i < samplesPerFrame; i++ {
			v := int16(20000)
			if i%2 == 0 {
				v = -20000
			}
			samples[f*samplesPerFrame+i] = v
		}
	}

	mask := MaskFromSamples(samples, sampleRate, fps)
	if len(mask) != totalFrames {
		t.Fatalf("expected %d frames, got %d", totalFrames, len(mask))
	}
	if !mask[5] {
		t.Errorf("expected the loud frame 5 to be marked talking")
	}
	if mask[0] || mask[9] {
		t.Errorf("expected silent frames to be marked idle, got mask=%v", mask)
	}
}

func TestWindowRMSEmptyWindowIsZero(t *testing.T) {
	if got := windowRMS(nil); got != 0 {
		t.Errorf("windowRMS(nil) = %v, want 0", got)
	}
}
