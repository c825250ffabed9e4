/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package director turns a timed dialog Script into an Edit Decision
// List: shot selection, emotion tracking, and transition choice, per
// §4.12. Every random choice goes through an injected *rand.Rand so
// callers (tests included) can seed determinism, per Design Note
// "director randomness".
package director

import (
	"fmt"
	"math/rand"

	"github.com/airwaveco/breakcast/internal/models"
)

const (
	wideShotDurationMS = 2000

	reactionProbability = 0.20
	reactionMinMS       = 1500
	reactionMaxMS       = 3000

	wideShotMinMS   = 2000
	wideShotMaxMS   = 4000
	wideShotInterval = 4

	rapidExchangeMS = 2000

	transitionCutWeight      = 0.85
	transitionDissolveWeight = 0.10
	// remaining probability mass goes to fade_black
)

// Director generates EDLs from scripts.
type Director struct {
	rng *rand.Rand
}

// New constructs a Director using rng for every weighted/random
// choice (transition selection, reaction insertion, listener pick).
func New(rng *rand.Rand) *Director {
	return &Director{rng: rng}
}

// Generate converts a script with per-line duration_ms already set
// into an EDL. Lines with duration_ms <= 0 (never synthesized) are
// skipped.
func (d *Director) Generate(script models.Script) models.EDL {
	var edl models.EDL
	segID := 0
	isFirstScene := true

	for _, scene := range script.Scenes {
		chars := script.Characters
		linesSinceWide := 0

		transition := d.pickTransition()
		if isFirstScene {
			transition = models.TransitionFadeBlack
		}
		isFirstScene = false

		edl.Segments = append(edl.Segments, models.EDLSegment{
			SegmentID:       segID,
			ShotType:        models.ShotWide,
			BackgroundKey:   bgKey(scene.Background, "wide"),
			Characters:      append([]string(nil), chars...),
			DurationMS:      wideShotDurationMS,
			Transition:      transition,
			CharacterStates: neutralStates(chars),
		})
		segID++

		var prevLine *models.DialogLine
		for i := range scene.Lines {
			line := scene.Lines[i]
			if line.DurationMS <= 0 {
				continue
			}

			charStates := make(map[string]string, len(chars))
			for _, c := range chars {
				if c == line.Speaker {
					charStates[c] = line.Emotion
				} else {
					charStates[c] = "neutral"
				}
			}

			var shotType models.ShotType
			switch {
			case line.CameraHint != "":
				shotType = d.shotFromHint(line.CameraHint, line.Speaker, chars)
			case isRapidExchange(line, prevLine):
				shotType = models.ShotTwoshot
			case linesSinceWide >= wideShotInterval:
				wideDur := wideShotMinMS + d.rng.Intn(wideShotMaxMS-wideShotMinMS+1)
				edl.Segments = append(edl.Segments, models.EDLSegment{
					SegmentID:       segID,
					ShotType:        models.ShotWide,
					BackgroundKey:   bgKey(scene.Background, "wide"),
					Characters:      append([]string(nil), chars...),
					DurationMS:      wideDur,
					Transition:      d.pickTransition(),
					CharacterStates: neutralStates(chars),
				})
				segID++
				linesSinceWide = 0
				shotType = closeupShotType(line.Speaker, chars)
			default:
				shotType = closeupShotType(line.Speaker, chars)
			}

			if shotType == models.ShotWide {
				linesSinceWide = 0
			} else {
				linesSinceWide++
			}

			visible := charsForShot(shotType, line.Speaker, chars)
			lineTransition := d.pickTransition()

			edl.Segments = append(edl.Segments, models.EDLSegment{
				SegmentID:       segID,
				ShotType:        shotType,
				BackgroundKey:   bgKey(scene.Background, string(shotType)),
				Characters:      visible,
				Speaker:         line.Speaker,
				AudioPath:       line.AudioPath,
				DurationMS:      line.DurationMS,
				DialogText:      line.Text,
				Transition:      lineTransition,
				CharacterStates: charStates,
			})
			segID++

			if d.shouldInsertReaction(line, chars) {
				if listener := d.pickListener(line.Speaker, chars); listener != "" {
					reactDur := reactionMinMS + d.rng.Intn(reactionMaxMS-reactionMinMS+1)
					reactEmotion := d.reactionEmotion(line.Emotion)
					reactShot := closeupShotType(listener, chars)
					reactStates := neutralStates(chars)
					reactStates[listener] = reactEmotion

					edl.Segments = append(edl.Segments, models.EDLSegment{
						SegmentID:       segID,
						ShotType:        reactShot,
						BackgroundKey:   bgKey(scene.Background, string(reactShot)),
						Characters:      []string{listener},
						DurationMS:      reactDur,
						Transition:      models.TransitionCut,
						CharacterStates: reactStates,
						Listener:        listener,
					})
					segID++
				}
			}

			lc := line
			prevLine = &lc
		}
	}

	return edl
}

func (d *Director) shotFromHint(hint, speaker string, chars []string) models.ShotType {
	switch hint {
	case "twoshot":
		return models.ShotTwoshot
	case "wide":
		return models.ShotWide
	default: // "closeup" or anything unrecognized
		return closeupShotType(speaker, chars)
	}
}

func (d *Director) pickTransition() models.TransitionType {
	r := d.rng.Float64()
	switch {
	case r < transitionCutWeight:
		return models.TransitionCut
	case r < transitionCutWeight+transitionDissolveWeight:
		return models.TransitionDissolve
	default:
		return models.TransitionFadeBlack
	}
}

func (d *Director) shouldInsertReaction(line models.DialogLine, chars []string) bool {
	if len(chars) < 2 {
		return false
	}
	if line.DurationMS < 3000 {
		return false
	}
	return d.rng.Float64() < reactionProbability
}

func (d *Director) pickListener(speaker string, chars []string) string {
	var others []string
	for _, c := range chars {
		if c != speaker {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return ""
	}
	return others[d.rng.Intn(len(others))]
}

var reactionEmotions = map[string][]string{
	"excited":   {"surprised", "neutral", "excited"},
	"concerned": {"concerned", "neutral"},
	"angry":     {"concerned", "surprised", "neutral"},
	"surprised": {"surprised", "neutral"},
	"sad":       {"concerned", "sad", "neutral"},
}

func (d *Director) reactionEmotion(speakerEmotion string) string {
	options, ok := reactionEmotions[speakerEmotion]
	if !ok {
		return "neutral"
	}
	return options[d.rng.Intn(len(options))]
}

func isRapidExchange(current models.DialogLine, prev *models.DialogLine) bool {
	if prev == nil {
		return false
	}
	if current.Speaker == prev.Speaker {
		return false
	}
	return prev.DurationMS <= rapidExchangeMS
}

func closeupShotType(speaker string, chars []string) models.ShotType {
	if len(chars) < 2 {
		return models.ShotCloseupLeft
	}
	idx := indexOf(chars, speaker)
	if idx <= 0 {
		return models.ShotCloseupLeft
	}
	return models.ShotCloseupRight
}

func charsForShot(shotType models.ShotType, speaker string, chars []string) []string {
	if shotType == models.ShotWide || shotType == models.ShotTwoshot {
		return append([]string(nil), chars...)
	}
	return []string{speaker}
}

func bgKey(base, shotType string) string {
	return fmt.Sprintf("%s_%s", base, shotType)
}

func neutralStates(chars []string) map[string]string {
	m := make(map[string]string, len(chars))
	for _, c := range chars {
		m[c] = "neutral"
	}
	return m
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
