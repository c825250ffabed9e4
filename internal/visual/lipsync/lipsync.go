/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lipsync derives a per-video-frame talking/idle mask from a
// segment's audio, per §4.13: decode to mono 16kHz PCM, compute
// per-frame RMS, normalize, threshold, then smooth out isolated
// single-frame flips.
package lipsync

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"time"
)

const (
	decodeSampleRate = 16000
	// RMSThreshold is the fraction of the clip's peak normalized RMS
	// above which a frame counts as "talking".
	RMSThreshold = 0.02
	// SmoothingMinRun is the shortest run length (in frames) allowed
	// to stand; anything shorter is flipped to match its predecessor.
	SmoothingMinRun = 2

	decodeTimeout = 30 * time.Second
)

// Analyze decodes audioPath to mono 16kHz PCM via ffmpegBin and
// returns a talking/idle bool per video frame at fps. Returns an
// error if decoding fails; audio with no signal yields an all-idle
// mask, and audio shorter than one frame an empty slice. The
// compositor falls back to an all-talking mask on an error or an
// empty slice.
func Analyze(ctx context.Context, ffmpegBin, audioPath string, fps int) ([]bool, error) {
	raw, err := decodeToRawPCM(ctx, ffmpegBin, audioPath)
	if err != nil {
		return nil, err
	}
	samples := bytesToInt16(raw)
	return MaskFromSamples(samples, decodeSampleRate, fps), nil
}

// MaskFromSamples is the pure, testable core of Analyze: RMS per
// frame-aligned window, normalize by peak, threshold, smooth.
func MaskFromSamples(samples []int16, sampleRate, fps int) []bool {
	samplesPerFrame := sampleRate / fps
	if samplesPerFrame <= 0 {
		return nil
	}
	totalFrames := len(samples) / samplesPerFrame
	if totalFrames == 0 {
		return nil
	}

	rms := make([]float64, totalFrames)
	maxRMS := 0.0
	for f := 0; f < totalFrames; f++ {
		window := samples[f*samplesPerFrame : (f+1)*samplesPerFrame]
		rms[f] = windowRMS(window)
		if rms[f] > maxRMS {
			maxRMS = rms[f]
		}
	}

	talking := make([]bool, totalFrames)
	if maxRMS == 0 {
		return talking // all false, a silent clip
	}
	for f, v := range rms {
		talking[f] = (v / maxRMS) > RMSThreshold
	}

	return Smooth(talking, SmoothingMinRun)
}

func windowRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// Smooth flips any run of identical values shorter than minRun frames
// (other than a run at the leading edge) to match its predecessor's
// value, per §4.13 and the "no run of length 1" testable property.
func Smooth(frames []bool, minRun int) []bool {
	if len(frames) < 3 || minRun < 1 {
		return frames
	}

	result := make([]bool, len(frames))
	copy(result, frames)

	i := 0
	for i < len(result) {
		j := i + 1
		for j < len(result) && result[j] == result[i] {
			j++
		}
		runLen := j - i
		if runLen < minRun && i > 0 {
			for k := i; k < j; k++ {
				result[k] = result[i-1]
			}
		}
		i = j
	}
	return result
}

func decodeToRawPCM(ctx context.Context, ffmpegBin, audioPath string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, ffmpegBin,
		"-hide_banner", "-loglevel", "error",
		"-i", audioPath,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", decodeSampleRate), "-ac", "1",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("lipsync: decode failed: %s: %w", stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func bytesToInt16(raw []byte) []int16 {
	n := len(raw) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return out
}
