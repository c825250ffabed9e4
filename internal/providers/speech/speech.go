/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package speech routes break script text to one of three synthesis
// backends (a local subprocess model, or one of two cloud HTTP APIs)
// depending on the host's configured provider, then loudness-normalizes
// the result with ffmpeg.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	localTimeout     = 60 * time.Second
	cloudTimeout     = 30 * time.Second
	normalizeTimeout = 30 * time.Second
)

// Router dispatches synthesis requests to the configured backend.
type Router struct {
	breaksDir  string
	modelsDir  string
	piperBin   string
	ffmpegBin  string
	ffprobeBin string
	logger     zerolog.Logger

	cloudA *cloudBackend
	cloudB *cloudBackend
}

// Config configures the two cloud backends. Either may be left with
// an empty APIKey, in which case synthesis for that provider falls
// back to the local backend.
type Config struct {
	BreaksDir  string
	ModelsDir  string
	PiperBin   string
	FFmpegBin  string
	FFprobeBin string

	CloudABase, CloudAKey string
	CloudBBase, CloudBKey string
}

// New constructs a speech Router.
func New(cfg Config, logger zerolog.Logger) *Router {
	return &Router{
		breaksDir:  cfg.BreaksDir,
		modelsDir:  cfg.ModelsDir,
		piperBin:   cfg.PiperBin,
		ffmpegBin:  cfg.FFmpegBin,
		ffprobeBin: cfg.FFprobeBin,
		logger:     logger.With().Str("component", "speech").Logger(),
		cloudA:     &cloudBackend{name: "cloud_a", base: cfg.CloudABase, apiKey: cfg.CloudAKey},
		cloudB:     &cloudBackend{name: "cloud_b", base: cfg.CloudBBase, apiKey: cfg.CloudBKey},
	}
}

// Synthesize routes text to host.SpeechProvider and returns the path
// to a normalized MP3, or an error if synthesis could not produce one
// by any route.
func (r *Router) Synthesize(ctx context.Context, text string, host models.Host, outputID string) (string, error) {
	r.logger.Debug().Str("provider", host.SpeechProvider).Str("voice", host.VoiceID).Str("host", host.Label).Msg("routing synthesis")

	switch host.SpeechProvider {
	case "cloud_a":
		if r.cloudA.apiKey != "" {
			if path, err := r.synthesizeCloud(ctx, r.cloudA, text, host.VoiceID, outputID); err == nil {
				return path, nil
			} else {
				r.logger.Warn().Err(err).Msg("cloud_a synthesis failed, falling back to local")
			}
		}
		return r.synthesizeLocal(ctx, text, host.LocalModelName, outputID)
	case "cloud_b":
		if r.cloudB.apiKey != "" {
			if path, err := r.synthesizeCloud(ctx, r.cloudB, text, host.VoiceID, outputID); err == nil {
				return path, nil
			} else {
				r.logger.Warn().Err(err).Msg("cloud_b synthesis failed, falling back to local")
			}
		}
		return r.synthesizeLocal(ctx, text, host.LocalModelName, outputID)
	default:
		return r.synthesizeLocal(ctx, text, host.LocalModelName, outputID)
	}
}

func (r *Router) synthesizeLocal(ctx context.Context, text, modelName, outputID string) (string, error) {
	modelPath := filepath.Join(r.modelsDir, modelName+".onnx")
	if _, err := os.Stat(modelPath); err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("speech_local", "model_missing").Inc()
		return "", fmt.Errorf("speech: model not found: %s", modelPath)
	}

	if err := os.MkdirAll(r.breaksDir, 0o755); err != nil {
		return "", fmt.Errorf("speech: create breaks dir: %w", err)
	}
	wavPath := filepath.Join(r.breaksDir, outputID+".wav")
	mp3Path := filepath.Join(r.breaksDir, outputID+".mp3")

	runCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.piperBin, "--model", modelPath, "--output_file", wavPath)
	cmd.Stdin = bytes.NewReader([]byte(text))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("speech_local", "synthesis").Inc()
		cleanup(wavPath)
		return "", fmt.Errorf("speech: piper failed: %s: %w", stderr.String(), err)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return "", fmt.Errorf("speech: wav not created")
	}

	if err := r.normalize(ctx, wavPath, mp3Path); err != nil {
		cleanup(wavPath)
		return "", err
	}

	cleanup(wavPath)
	return mp3Path, nil
}

// normalize applies EBU R128-ish loudness normalization (matching the
// source's constants) and transcodes to the broadcast-standard MP3
// profile: 44.1kHz stereo 192kbps.
func (r *Router) normalize(ctx context.Context, wavPath, mp3Path string) error {
	runCtx, cancel := context.WithTimeout(ctx, normalizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.ffmpegBin,
		"-y",
		"-i", wavPath,
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-ar", "44100", "-ac", "2",
		"-c:a", "libmp3lame", "-b:a", "192k",
		mp3Path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("speech", "normalize").Inc()
		return fmt.Errorf("speech: ffmpeg normalize failed: %s: %w", stderr.String(), err)
	}
	return nil
}

// SynthesizeDialog synthesizes each dialog line independently (so the
// director/compositor can address individual lines by audio path),
// fills in AudioPath/DurationMS on each line in place, and returns the
// path to a lossless concatenation of every line in script order, per
// §4.2 step 8.
func (r *Router) SynthesizeDialog(ctx context.Context, script *models.Script, host models.Host, breakID string) (string, error) {
	if err := os.MkdirAll(r.breaksDir, 0o755); err != nil {
		return "", fmt.Errorf("speech: create breaks dir: %w", err)
	}

	var linePaths []string
	lineNum := 0
	for si := range script.Scenes {
		for li := range script.Scenes[si].Lines {
			line := &script.Scenes[si].Lines[li]
			lineID := fmt.Sprintf("%s_line%03d", breakID, lineNum)
			lineNum++

			path, err := r.Synthesize(ctx, line.Text, host, lineID)
			if err != nil {
				return "", fmt.Errorf("speech: synthesize line %d: %w", lineNum, err)
			}
			durationMS, err := r.probeDurationMS(ctx, path)
			if err != nil {
				r.logger.Warn().Err(err).Str("path", path).Msg("probe line duration failed")
			}

			line.AudioPath = path
			line.DurationMS = durationMS
			linePaths = append(linePaths, path)
		}
	}

	if len(linePaths) == 0 {
		return "", fmt.Errorf("speech: dialog script has no lines")
	}

	fullPath := filepath.Join(r.breaksDir, breakID+"_full.mp3")
	if err := r.concatLossless(ctx, linePaths, fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

// concatLossless joins already-normalized same-profile MP3s with the
// concat demuxer's stream copy mode, avoiding a re-encode.
func (r *Router) concatLossless(ctx context.Context, paths []string, outputPath string) error {
	listFile := outputPath + ".concat.txt"
	var b bytes.Buffer
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	if err := os.WriteFile(listFile, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("speech: write concat list: %w", err)
	}
	defer cleanup(listFile)

	runCtx, cancel := context.WithTimeout(ctx, normalizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.ffmpegBin,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listFile,
		"-c", "copy",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("speech", "concat").Inc()
		return fmt.Errorf("speech: concat failed: %s: %w", stderr.String(), err)
	}
	return nil
}

func (r *Router) probeDurationMS(ctx context.Context, path string) (int, error) {
	if r.ffprobeBin == "" {
		return 0, fmt.Errorf("speech: no ffprobe binary configured")
	}
	runCtx, cancel := context.WithTimeout(ctx, normalizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.ffprobeBin,
		"-v", "quiet", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("speech: ffprobe failed: %w", err)
	}
	var seconds float64
	if _, err := fmt.Sscanf(string(out), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("speech: parse ffprobe duration: %w", err)
	}
	return int(seconds * 1000), nil
}

func cleanup(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

type cloudBackend struct {
	name   string
	base   string
	apiKey string
}

func (r *Router) synthesizeCloud(ctx context.Context, backend *cloudBackend, text, voiceID, outputID string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, cloudTimeout)
	defer cancel()

	audio, err := backend.fetch(runCtx, text, voiceID)
	if err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues(backend.name, "fetch").Inc()
		return "", err
	}

	if err := os.MkdirAll(r.breaksDir, 0o755); err != nil {
		return "", fmt.Errorf("speech: create breaks dir: %w", err)
	}
	rawPath := filepath.Join(r.breaksDir, outputID+".raw")
	mp3Path := filepath.Join(r.breaksDir, outputID+".mp3")

	if err := os.WriteFile(rawPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("speech: write cloud audio: %w", err)
	}

	if err := r.normalize(ctx, rawPath, mp3Path); err != nil {
		cleanup(rawPath)
		return "", err
	}
	cleanup(rawPath)
	return mp3Path, nil
}
