/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var httpClient = &http.Client{Timeout: cloudTimeout}

// fetch calls the cloud provider's speech endpoint and returns the
// raw audio bytes. Both cloud backends speak the same shape used by
// the two mainstream cloud TTS APIs this router was built against
// (ElevenLabs-style voice-keyed synthesis and OpenAI-style model+voice
// synthesis): POST text + voice, get audio bytes back.
func (b *cloudBackend) fetch(ctx context.Context, text, voiceID string) ([]byte, error) {
	base := strings.TrimRight(b.base, "/")

	var url string
	var body []byte
	var err error

	if b.name == "cloud_a" {
		url = fmt.Sprintf("%s/text-to-speech/%s", base, voiceID)
		body, err = json.Marshal(map[string]any{
			"text":     text,
			"model_id": "eleven_turbo_v2",
		})
	} else {
		url = base + "/audio/speech"
		body, err = json.Marshal(map[string]any{
			"model": "tts-1",
			"input": text,
			"voice": voiceID,
		})
	}
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.name == "cloud_a" {
		req.Header.Set("xi-api-key", b.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: %s upstream status %d", b.name, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
