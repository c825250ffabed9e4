/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package compositor renders an EDL to a single broadcast MP4, per
// §4.14: compose idle/talking stills per segment, drive a concat
// demuxer with the lip-sync mask, encode each segment, then
// concatenate (stream-copy when every transition is a cut, otherwise
// an xfade filter graph). Image composition uses the standard library
// plus golang.org/x/image for quality scaling and text layout — no
// imaging library appears anywhere in the retrieval pack (see
// DESIGN.md), so this is the stdlib-adjacent idiomatic choice rather
// than a hand-rolled decoder.
//
// Image composition and subprocess orchestration are CPU/IO bound.
// RenderEDL runs on its caller's goroutine: the break builder calls it
// inline from Prepare, so a render runs on the scheduler goroutine or,
// for a breaking trigger, on the HTTP request's goroutine. No worker
// pool is used.
package compositor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/airwaveco/breakcast/internal/visual/assets"
	"github.com/airwaveco/breakcast/internal/visual/lipsync"
	"github.com/rs/zerolog"
)

const (
	Width           = 1920
	Height          = 1080
	FPS             = 24
	pixelFormat     = "yuv420p"
	dissolveSeconds = 0.5
	fadeBlackSeconds = 0.5

	ffmpegTimeout = 120 * time.Second
	probeTimeout  = 10 * time.Second
)

// Compositor renders EDLs to MP4 using ffmpeg/ffprobe subprocesses.
type Compositor struct {
	ffmpegBin  string
	ffprobeBin string
	logger     zerolog.Logger

	encOnce sync.Once
	encoder string
}

// New constructs a Compositor.
func New(ffmpegBin, ffprobeBin string, logger zerolog.Logger) *Compositor {
	return &Compositor{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		logger:     logger.With().Str("component", "compositor").Logger(),
	}
}

// RenderEDL renders every segment and concatenates them into a single
// MP4 at outputPath. workDir holds intermediate per-segment files and
// is not cleaned up by RenderEDL (callers own its lifecycle).
func (c *Compositor) RenderEDL(ctx context.Context, edl models.EDL, pack *assets.Pack, workDir, outputPath string) error {
	start := time.Now()
	defer func() { telemetry.VideoRenderDuration.Observe(time.Since(start).Seconds()) }()

	if len(edl.Segments) == 0 {
		return fmt.Errorf("compositor: empty EDL")
	}

	var segmentPaths []string
	var transitions []models.TransitionType
	for i, seg := range edl.Segments {
		segDir := filepath.Join(workDir, fmt.Sprintf("seg_%03d", seg.SegmentID))
		if err := os.MkdirAll(segDir, 0o755); err != nil {
			return fmt.Errorf("compositor: mkdir segment dir: %w", err)
		}
		path, err := c.renderSegment(ctx, seg, pack, segDir)
		if err != nil {
			return fmt.Errorf("compositor: render segment %d: %w", seg.SegmentID, err)
		}
		segmentPaths = append(segmentPaths, path)
		if i > 0 {
			transitions = append(transitions, seg.Transition)
		}
	}

	return c.concatenate(ctx, segmentPaths, transitions, workDir, outputPath)
}

func (c *Compositor) encoderArgs(ctx context.Context) []string {
	c.encOnce.Do(func() {
		c.encoder = detectEncoder(ctx, c.ffmpegBin, c.logger)
	})
	return encoderArgsFor(c.encoder)
}

// detectEncoder probes a hardware H.264 encoder with a trivial test
// encode; on failure it falls back to software libx264.
func detectEncoder(ctx context.Context, ffmpegBin string, logger zerolog.Logger) string {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, ffmpegBin,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", fmt.Sprintf("color=black:s=64x64:d=0.1:r=%d", FPS),
		"-c:v", "h264_v4l2m2m",
		"-f", "null", "-",
	)
	if err := cmd.Run(); err == nil {
		logger.Info().Str("encoder", "h264_v4l2m2m").Msg("using hardware encoder")
		return "h264_v4l2m2m"
	}
	logger.Info().Str("encoder", "libx264").Msg("using software encoder")
	return "libx264"
}

func encoderArgsFor(encoder string) []string {
	if encoder == "h264_v4l2m2m" {
		return []string{"-c:v", "h264_v4l2m2m", "-b:v", "4M", "-pix_fmt", pixelFormat}
	}
	return []string{"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", pixelFormat}
}

type characterLayer struct {
	pngPath string
	x, y, scale float64
}

func (c *Compositor) renderSegment(ctx context.Context, seg models.EDLSegment, pack *assets.Pack, segDir string) (string, error) {
	outputMP4 := filepath.Join(segDir, "segment.mp4")
	bgPath := pack.GetBackground("studio", string(seg.ShotType))

	if seg.AudioPath != "" && seg.Speaker != "" {
		return c.renderWithAudio(ctx, seg, pack, bgPath, segDir, outputMP4)
	}
	return c.renderSilent(ctx, seg, pack, bgPath, segDir, outputMP4)
}

func buildLayers(seg models.EDLSegment, pack *assets.Pack, talkingState bool) []characterLayer {
	layers := make([]characterLayer, 0, len(seg.Characters))
	for _, cid := range seg.Characters {
		emotion := seg.CharacterStates[cid]
		if emotion == "" {
			emotion = "neutral"
		}
		isTalking := talkingState && cid == seg.Speaker
		png := pack.GetCharacterPNG(cid, emotion, isTalking)
		x, y, scale := pack.GetCharacterPosition(cid, string(seg.ShotType))
		layers = append(layers, characterLayer{pngPath: png, x: x, y: y, scale: scale})
	}
	return layers
}

func (c *Compositor) renderWithAudio(ctx context.Context, seg models.EDLSegment, pack *assets.Pack, bgPath string, segDir, outputMP4 string) (string, error) {
	speakerLabel := ""
	if cfg, ok := pack.Characters[seg.Speaker]; ok {
		speakerLabel = cfg.Label
	}

	idlePNG := filepath.Join(segDir, "frame_idle.png")
	talkingPNG := filepath.Join(segDir, "frame_talking.png")

	if err := composeFrame(bgPath, buildLayers(seg, pack, false), idlePNG, speakerLabel, seg.DialogText); err != nil {
		return "", err
	}
	if err := composeFrame(bgPath, buildLayers(seg, pack, true), talkingPNG, speakerLabel, seg.DialogText); err != nil {
		return "", err
	}

	mask, err := lipsync.Analyze(ctx, c.ffmpegBin, seg.AudioPath, FPS)
	if err != nil || len(mask) == 0 {
		totalFrames := seg.DurationMS * FPS / 1000
		if totalFrames < 1 {
			totalFrames = 1
		}
		mask = make([]bool, totalFrames)
		for i := range mask {
			mask[i] = true
		}
	}

	concatFile := filepath.Join(segDir, "concat.txt")
	if err := writeConcatFile(concatFile, mask, idlePNG, talkingPNG, FPS); err != nil {
		return "", err
	}

	args := []string{
		"-f", "concat", "-safe", "0", "-i", concatFile,
		"-i", seg.AudioPath,
		"-r", itoa(FPS),
	}
	args = append(args, c.encoderArgs(ctx)...)
	args = append(args,
		"-c:a", "aac", "-b:a", "128k", "-ar", "44100", "-ac", "2",
		"-shortest",
		"-movflags", "+faststart",
		outputMP4,
	)
	if err := c.runFFmpeg(ctx, args); err != nil {
		return "", err
	}
	return outputMP4, nil
}

func (c *Compositor) renderSilent(ctx context.Context, seg models.EDLSegment, pack *assets.Pack, bgPath string, segDir, outputMP4 string) (string, error) {
	framePNG := filepath.Join(segDir, "frame.png")
	if err := composeFrame(bgPath, buildLayers(seg, pack, false), framePNG, "", ""); err != nil {
		return "", err
	}

	durationS := float64(seg.DurationMS) / 1000.0
	args := []string{
		"-loop", "1", "-i", framePNG,
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo",
		"-t", fmt.Sprintf("%.3f", durationS),
		"-r", itoa(FPS),
	}
	args = append(args, c.encoderArgs(ctx)...)
	args = append(args, "-c:a", "aac", "-b:a", "128k", "-movflags", "+faststart", outputMP4)
	if err := c.runFFmpeg(ctx, args); err != nil {
		return "", err
	}
	return outputMP4, nil
}

// composeFrame composes a background plus character layers, with an
// optional lower-third overlay, into a single PNG at outputPath.
func composeFrame(bgPath string, layers []characterLayer, outputPath, speakerName, headline string) error {
	bg, err := loadPNG(bgPath)
	if err != nil {
		return fmt.Errorf("compositor: load background %s: %w", bgPath, err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	scaleInto(canvas, bg)

	for _, layer := range layers {
		if layer.pngPath == "" {
			continue
		}
		char, err := loadPNG(layer.pngPath)
		if err != nil {
			return fmt.Errorf("compositor: load character %s: %w", layer.pngPath, err)
		}
		pasteCharacter(canvas, char, layer.x, layer.y, layer.scale)
	}

	drawLowerThird(canvas, speakerName, headline)

	return savePNG(outputPath, canvas)
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// scaleInto resizes src to fill dst's bounds using a quality scaler.
func scaleInto(dst *image.RGBA, src image.Image) {
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
}

// pasteCharacter scales char by scale and composites it onto canvas,
// bottom-center anchored at the fractional position (x, y).
func pasteCharacter(canvas *image.RGBA, char image.Image, x, y, scale float64) {
	b := char.Bounds()
	cw := int(float64(b.Dx()) * scale)
	ch := int(float64(b.Dy()) * scale)
	if cw <= 0 || ch <= 0 {
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, cw, ch))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), char, b, xdraw.Src, nil)

	px := int(x*float64(Width) - float64(cw)/2)
	py := int(y*float64(Height) - float64(ch))

	dstRect := image.Rect(px, py, px+cw, py+ch)
	draw.Draw(canvas, dstRect, scaled, image.Point{}, draw.Over)
}

func writeConcatFile(path string, mask []bool, idlePNG, talkingPNG string, fps int) error {
	runs := runLengthEncode(mask)
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, r := range runs {
		png := idlePNG
		if r.value {
			png = talkingPNG
		}
		fmt.Fprintf(&b, "file '%s'\n", png)
		fmt.Fprintf(&b, "duration %.6f\n", float64(r.count)/float64(fps))
	}
	last := idlePNG
	if len(runs) > 0 && runs[len(runs)-1].value {
		last = talkingPNG
	}
	fmt.Fprintf(&b, "file '%s'\n", last)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

type run struct {
	value bool
	count int
}

// runLengthEncode compresses a bool slice into (value, count) runs.
func runLengthEncode(bools []bool) []run {
	if len(bools) == 0 {
		return nil
	}
	var runs []run
	current := bools[0]
	count := 1
	for _, b := range bools[1:] {
		if b == current {
			count++
			continue
		}
		runs = append(runs, run{current, count})
		current = b
		count = 1
	}
	runs = append(runs, run{current, count})
	return runs
}

func (c *Compositor) concatenate(ctx context.Context, segmentPaths []string, transitions []models.TransitionType, workDir, outputPath string) error {
	if len(segmentPaths) == 1 {
		return copyFile(segmentPaths[0], outputPath)
	}

	hasEffects := false
	for _, t := range transitions {
		if t != models.TransitionCut {
			hasEffects = true
			break
		}
	}

	if hasEffects {
		return c.concatenateWithTransitions(ctx, segmentPaths, transitions, outputPath)
	}
	return c.concatenateCopy(ctx, segmentPaths, workDir, outputPath)
}

func (c *Compositor) concatenateCopy(ctx context.Context, segmentPaths []string, workDir, outputPath string) error {
	concatFile := filepath.Join(workDir, "final_concat.txt")
	var b strings.Builder
	for _, p := range segmentPaths {
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	if err := os.WriteFile(concatFile, []byte(b.String()), 0o644); err != nil {
		return err
	}

	return c.runFFmpeg(ctx, []string{
		"-f", "concat", "-safe", "0", "-i", concatFile,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	})
}

func (c *Compositor) concatenateWithTransitions(ctx context.Context, segmentPaths []string, transitions []models.TransitionType, outputPath string) error {
	durations := make([]float64, len(segmentPaths))
	for i, p := range segmentPaths {
		ms, err := c.probeDurationMS(ctx, p)
		if err != nil {
			return fmt.Errorf("compositor: probe duration %s: %w", p, err)
		}
		durations[i] = float64(ms) / 1000.0
	}

	filterComplex, fadeDurations := buildXfadeFilter(durations, transitions, FPS)

	var args []string
	for _, p := range segmentPaths {
		args = append(args, "-i", p)
	}
	args = append(args, "-filter_complex", filterComplex, "-map", "[vout]", "-map", "[aout]", "-r", itoa(FPS))
	args = append(args, c.encoderArgs(ctx)...)
	args = append(args, "-c:a", "aac", "-b:a", "128k", "-movflags", "+faststart", outputPath)

	_ = fadeDurations // total run duration is derivable by callers via probeDurationMS on the output
	return c.runFFmpeg(ctx, args)
}

// buildXfadeFilter builds the ffmpeg filter_complex graph for
// transition-aware concatenation: each pair of adjacent segments is
// joined by an xfade (video) + acrossfade (audio) of the pair's
// transition duration ("cut" uses a minimal one-frame fade so the
// whole chain can share one filter graph). Returns the filter string
// and the fade duration used for each of the n-1 joins (seconds), so
// callers can compute the expected final duration.
func buildXfadeFilter(durations []float64, transitions []models.TransitionType, fps int) (string, []float64) {
	n := len(durations)
	var vFilters, aFilters []string
	fadeDurations := make([]float64, 0, n-1)

	combined := durations[0]
	for i := 0; i < n-1; i++ {
		t := models.TransitionCut
		if i < len(transitions) {
			t = transitions[i]
		}

		fadeDur := 1.0 / float64(fps)
		switch t {
		case models.TransitionDissolve:
			fadeDur = dissolveSeconds
		case models.TransitionFadeBlack:
			fadeDur = fadeBlackSeconds
		}

		offset := combined - fadeDur
		if offset < 0.01 {
			offset = 0.01
		}

		var vIn, aIn string
		if i == 0 {
			vIn, aIn = "[0:v][1:v]", "[0:a][1:a]"
		} else {
			vIn = fmt.Sprintf("[vf%d][%d:v]", i-1, i+1)
			aIn = fmt.Sprintf("[af%d][%d:a]", i-1, i+1)
		}
		vOut, aOut := fmt.Sprintf("[vf%d]", i), fmt.Sprintf("[af%d]", i)
		if i == n-2 {
			vOut, aOut = "[vout]", "[aout]"
		}

		vFilters = append(vFilters, fmt.Sprintf("%sxfade=transition=fade:duration=%.3f:offset=%.3f%s", vIn, fadeDur, offset, vOut))
		aFilters = append(aFilters, fmt.Sprintf("%sacrossfade=d=%.3f:c1=tri:c2=tri%s", aIn, fadeDur, aOut))

		fadeDurations = append(fadeDurations, fadeDur)
		combined = combined + durations[i+1] - fadeDur
	}

	return strings.Join(append(vFilters, aFilters...), ";"), fadeDurations
}

func (c *Compositor) probeDurationMS(ctx context.Context, path string) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.ffprobeBin,
		"-v", "quiet", "-print_format", "json", "-show_format", path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %s: %w", stderr.String(), err)
	}

	var info struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return 0, fmt.Errorf("ffprobe: decode output: %w", err)
	}
	var durationS float64
	if _, err := fmt.Sscanf(info.Format.Duration, "%f", &durationS); err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration: %w", err)
	}
	return int(durationS * 1000), nil
}

func (c *Compositor) runFFmpeg(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	full := append([]string{"-y", "-hide_banner", "-loglevel", "warning"}, args...)
	cmd := exec.CommandContext(runCtx, c.ffmpegBin, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		telemetry.ProviderErrorsTotal.WithLabelValues("compositor", "ffmpeg").Inc()
		tail := stderr.String()
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		return fmt.Errorf("ffmpeg failed: %s: %w", tail, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
