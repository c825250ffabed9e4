/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package director

import (
	"math/rand"
	"testing"

	"github.com/airwaveco/breakcast/internal/models"
	"github.com/google/go-cmp/cmp"
)

func twoHostScript() models.Script {
	return models.Script{
		Characters: []string{"nova", "rex"},
		Scenes: []models.Scene{
			{
				SceneID:    "s1",
				Background: "studio",
				Lines: []models.DialogLine{
					{Speaker: "nova", Text: "Good morning.", Emotion: "neutral", DurationMS: 1500},
					{Speaker: "rex", Text: "Morning, Nova.", Emotion: "neutral", DurationMS: 1200},
					{Speaker: "nova", Text: "Let's get into the headlines.", Emotion: "excited", DurationMS: 2200},
				},
			},
		},
	}
}

func TestGenerateIsDeterministicForASeed(t *testing.T) {
	script := twoHostScript()

	d1 := New(rand.New(rand.NewSource(42)))
	edl1 := d1.Generate(script)

	d2 := New(rand.New(rand.NewSource(42)))
	edl2 := d2.Generate(script)

	if diff := cmp.Diff(edl1, edl2); diff != "" {
		t.Fatalf("identical seeds produced different EDLs (-got1 +got2):\n%s", diff)
	}
}

func TestGenerateOpensEachSceneWithAWideShot(t *testing.T) {
	d := New(rand.New(rand.NewSource(1)))
	edl := d.Generate(twoHostScript())

	if len(edl.Segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	first := edl.Segments[0]
	if first.ShotType != models.ShotWide {
		t.Errorf("expected first segment to be a wide shot, got %s", first.ShotType)
	}
	if first.Transition != models.TransitionFadeBlack {
		t.Errorf("expected the first scene's opener to fade from black, got %s", first.Transition)
	}
}

func TestGenerateSkipsLinesWithNoDuration(t *testing.T) {
	script := twoHostScript()
	script.Scenes[0].Lines[1].DurationMS = 0 // never synthesized

	d := New(rand.New(rand.NewSource(7)))
	edl := d.Generate(script)

	for _, seg := range edl.Segments {
		if seg.Speaker == "rex" && seg.DialogText == "Morning, Nova." {
			t.Fatalf("segment for a line with duration_ms <= 0 should have been skipped: %+v", seg)
		}
	}
}

func TestGenerateAssignsOppositeCloseupsByCharacterIndex(t *testing.T) {
	script := twoHostScript()
	// Keep the lines above the 2000 ms rapid-exchange limit (and below
	// the 3000 ms reaction threshold) so every line gets a closeup.
	script.Scenes[0].Lines[0].DurationMS = 2500
	script.Scenes[0].Lines[1].DurationMS = 2500
	d := New(rand.New(rand.NewSource(3)))
	edl := d.Generate(script)

	var novaShot, rexShot models.ShotType
	for _, seg := range edl.Segments {
		if seg.Speaker == "nova" && (seg.ShotType == models.ShotCloseupLeft || seg.ShotType == models.ShotCloseupRight) {
			novaShot = seg.ShotType
		}
		if seg.Speaker == "rex" && (seg.ShotType == models.ShotCloseupLeft || seg.ShotType == models.ShotCloseupRight) {
			rexShot = seg.ShotType
		}
	}
	if novaShot != models.ShotCloseupLeft {
		t.Errorf("expected the first character's default closeup to be closeup_left, got %s", novaShot)
	}
	if rexShot != models.ShotCloseupRight {
		t.Errorf("expected the second character's default closeup to be closeup_right, got %s", rexShot)
	}
}

func TestGenerateHonorsExplicitCameraHints(t *testing.T) {
	script := models.Script{
		Characters: []string{"nova", "rex"},
		Scenes: []models.Scene{{
			SceneID:    "s1",
			Background: "studio",
			Lines: []models.DialogLine{
				{Speaker: "nova", Text: "Big news.", CameraHint: "twoshot", DurationMS: 1800},
			},
		}},
	}
	d := New(rand.New(rand.NewSource(9)))
	edl := d.Generate(script)

	found := false
	for _, seg := range edl.Segments {
		if seg.DialogText == "Big news." {
			found = true
			if seg.ShotType != models.ShotTwoshot {
				t.Errorf("expected camera_hint=twoshot to be honored, got %s", seg.ShotType)
			}
		}
	}
	if !found {
		t.Fatal("line segment not found in EDL")
	}
}

func TestEDLTotalDurationMSSumsSegments(t *testing.T) {
	edl := models.EDL{Segments: []models.EDLSegment{
		{DurationMS: 2000},
		{DurationMS: 1500},
		{DurationMS: 1800},
	}}
	if got, want := edl.TotalDurationMS(), 5300; got != want {
		t.Errorf("TotalDurationMS() = %d, want %d", got, want)
	}
}

func TestSingleCharacterScriptAlwaysUsesCloseupLeft(t *testing.T) {
	script := models.Script{
		Characters: []string{"nova"},
		Scenes: []models.Scene{{
			SceneID:    "s1",
			Background: "studio",
			Lines: []models.DialogLine{
				{Speaker: "nova", Text: "Just me today.", DurationMS: 1800},
			},
		}},
	}
	d := New(rand.New(rand.NewSource(11)))
	edl := d.Generate(script)

	for _, seg := range edl.Segments {
		if seg.Speaker == "nova" && seg.ShotType != models.ShotWide && seg.ShotType != models.ShotCloseupLeft {
			t.Errorf("single-character script produced shot type %s, want wide or closeup_left", seg.ShotType)
		}
	}
}
