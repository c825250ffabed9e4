/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package assets discovers and loads the character PNGs and
// background PNGs the compositor needs to render an EDL, per §4.11.
// Emotion and shot-type variants are resolved with total fallback
// functions: callers never need to branch on whether a variant is
// present, per Design Note "emotion asset fallback".
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CharacterState is the (idle, talking) PNG pair for one emotion.
type CharacterState struct {
	Idle    string
	Talking string
}

// CharacterConfig is a loaded, validated character asset bundle.
type CharacterConfig struct {
	ID    string
	Label string

	IdlePath    string
	TalkingPath string

	// Default position, used when no per-shot entry exists.
	PositionX float64
	PositionY float64
	Scale     float64

	// Per-shot-type position overrides: shot type -> (x, y, scale).
	Positions map[string][3]float64

	// Emotion -> (idle, talking) PNG paths. Always has a "neutral" entry.
	States map[string]CharacterState
}

type characterConfigFile struct {
	Label     string               `json:"label"`
	PositionX float64              `json:"position_x"`
	PositionY float64              `json:"position_y"`
	Scale     float64              `json:"scale"`
	Positions map[string][3]float64 `json:"positions"`
}

// Pack is the loaded, validated asset bundle for one break's render.
type Pack struct {
	assetsDir  string
	Characters map[string]CharacterConfig
	Backgrounds map[string]string // key -> file path
}

// New constructs an empty Pack rooted at assetsDir.
func New(assetsDir string) *Pack {
	return &Pack{
		assetsDir:   assetsDir,
		Characters:  make(map[string]CharacterConfig),
		Backgrounds: make(map[string]string),
	}
}

// Load discovers and validates every character in characterIDs plus
// every background PNG under the assets directory.
func (p *Pack) Load(characterIDs []string) error {
	if err := p.loadCharacters(characterIDs); err != nil {
		return err
	}
	return p.loadBackgrounds()
}

func (p *Pack) loadCharacters(characterIDs []string) error {
	charsDir := filepath.Join(p.assetsDir, "characters")
	for _, cid := range characterIDs {
		charDir := filepath.Join(charsDir, cid)
		info, err := os.Stat(charDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("assets: character directory not found: %s", charDir)
		}

		idle := filepath.Join(charDir, "idle.png")
		talking := filepath.Join(charDir, "talking.png")
		if _, err := os.Stat(idle); err != nil {
			return fmt.Errorf("assets: missing idle.png for %s", cid)
		}
		if _, err := os.Stat(talking); err != nil {
			return fmt.Errorf("assets: missing talking.png for %s", cid)
		}

		cfg := characterConfigFile{PositionX: 0.5, PositionY: 0.7, Scale: 1.0}
		configFile := filepath.Join(charDir, "config.json")
		if b, err := os.ReadFile(configFile); err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return fmt.Errorf("assets: invalid config.json for %s: %w", cid, err)
			}
		}

		label := cfg.Label
		if label == "" {
			label = strings.ToUpper(cid[:1]) + cid[1:]
		}

		states, err := scanEmotionStates(charDir, idle, talking)
		if err != nil {
			return err
		}

		p.Characters[cid] = CharacterConfig{
			ID:          cid,
			Label:       label,
			IdlePath:    idle,
			TalkingPath: talking,
			PositionX:   cfg.PositionX,
			PositionY:   cfg.PositionY,
			Scale:       cfg.Scale,
			Positions:   cfg.Positions,
			States:      states,
		}
	}
	return nil
}

// scanEmotionStates discovers {emotion}_idle.png / {emotion}_talking.png
// pairs by filename convention. A missing talking variant falls back
// to the character's default talking PNG; "neutral" always maps to
// the character's default idle/talking pair.
func scanEmotionStates(charDir, defaultIdle, defaultTalking string) (map[string]CharacterState, error) {
	states := map[string]CharacterState{
		"neutral": {Idle: defaultIdle, Talking: defaultTalking},
	}

	entries, err := os.ReadDir(charDir)
	if err != nil {
		return nil, fmt.Errorf("assets: read character dir %s: %w", charDir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, "_idle.png") {
			continue
		}
		emotion := strings.TrimSuffix(name, "_idle.png")
		if emotion == "" {
			continue
		}
		idlePath := filepath.Join(charDir, name)
		talkingPath := filepath.Join(charDir, emotion+"_talking.png")
		if _, err := os.Stat(talkingPath); err != nil {
			talkingPath = defaultTalking
		}
		states[emotion] = CharacterState{Idle: idlePath, Talking: talkingPath}
	}
	return states, nil
}

func (p *Pack) loadBackgrounds() error {
	bgDir := filepath.Join(p.assetsDir, "backgrounds")
	entries, err := os.ReadDir(bgDir)
	if err != nil {
		return fmt.Errorf("assets: backgrounds directory not found: %s", bgDir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		key := strings.TrimSuffix(name, ".png")
		p.Backgrounds[key] = filepath.Join(bgDir, name)
	}
	if len(p.Backgrounds) == 0 {
		return fmt.Errorf("assets: no background PNGs found in %s", bgDir)
	}
	return nil
}

// GetBackground resolves a background for shotType, trying
// {base}_{shotType}, then {base}_wide, then any available background.
func (p *Pack) GetBackground(base, shotType string) string {
	key := base + "_" + shotType
	if path, ok := p.Backgrounds[key]; ok {
		return path
	}
	if path, ok := p.Backgrounds[base+"_wide"]; ok {
		return path
	}
	// Deterministic last resort: lowest key, not map iteration order.
	var keys []string
	for k := range p.Backgrounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		return p.Backgrounds[keys[0]]
	}
	return ""
}

// GetCharacterPNG resolves the PNG for a character given an emotion
// and talking state, falling back to neutral, then to the character's
// bare idle/talking path.
func (p *Pack) GetCharacterPNG(charID, emotion string, talking bool) string {
	cfg, ok := p.Characters[charID]
	if !ok {
		return ""
	}
	if state, ok := cfg.States[emotion]; ok {
		if talking {
			return state.Talking
		}
		return state.Idle
	}
	if state, ok := cfg.States["neutral"]; ok {
		if talking {
			return state.Talking
		}
		return state.Idle
	}
	if talking {
		return cfg.TalkingPath
	}
	return cfg.IdlePath
}

// GetCharacterPosition resolves (x, y, scale) for charID in shotType,
// falling back to the character's default position.
func (p *Pack) GetCharacterPosition(charID, shotType string) (x, y, scale float64) {
	cfg, ok := p.Characters[charID]
	if !ok {
		return 0.5, 0.7, 1.0
	}
	if pos, ok := cfg.Positions[shotType]; ok {
		return pos[0], pos[1], pos[2]
	}
	return cfg.PositionX, cfg.PositionY, cfg.Scale
}
