/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package breakbuilder orchestrates the full break production
// pipeline: acquire a host, fan out weather/market/news, score and
// select headlines, write and validate a script, synthesize speech,
// fall back through the degradation ladder on failure, and hand the
// result to the playout engine.
package breakbuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airwaveco/breakcast/internal/degradation"
	"github.com/airwaveco/breakcast/internal/hostrotation"
	"github.com/airwaveco/breakcast/internal/media"
	"github.com/airwaveco/breakcast/internal/models"
	"github.com/airwaveco/breakcast/internal/playout"
	"github.com/airwaveco/breakcast/internal/providers/lm"
	"github.com/airwaveco/breakcast/internal/providers/market"
	"github.com/airwaveco/breakcast/internal/providers/news"
	"github.com/airwaveco/breakcast/internal/providers/speech"
	"github.com/airwaveco/breakcast/internal/providers/weather"
	"github.com/airwaveco/breakcast/internal/queue"
	"github.com/airwaveco/breakcast/internal/settings"
	"github.com/airwaveco/breakcast/internal/telemetry"
	"github.com/airwaveco/breakcast/internal/validator"
	"github.com/airwaveco/breakcast/internal/visual/assets"
	"github.com/airwaveco/breakcast/internal/visual/compositor"
	"github.com/airwaveco/breakcast/internal/visual/director"
	"github.com/rs/zerolog"
)

// EventLogger is the subset of internal/eventlog.Log the builder
// needs, accepted as an interface to avoid a direct dependency.
type EventLogger interface {
	Append(eventType string, payload map[string]any, latencyMS int64) error
}

// Builder ties every provider and service together into Prepare().
type Builder struct {
	settings   *settings.Loader
	queue      *queue.Queue
	hosts      *hostrotation.Rotator
	weather    *weather.Provider
	market     *market.Provider
	news       *news.Provider
	lm         *lm.Client
	speech     *speech.Router
	degr       *degradation.Manager
	playout    *playout.Client
	eventLog   EventLogger
	logger     zerolog.Logger
	assetsDir  string
	director   *director.Director
	directorMu sync.Mutex // guards director.Generate's non-concurrency-safe *rand.Rand
	compositor *compositor.Compositor
	videoDir   string
	archive    media.Archiver
}

// Deps bundles the Builder's collaborators. Director and Compositor
// may be left nil, in which case video rendering is skipped
// regardless of the dialog/video settings (used by deployments that
// never enable dialog mode).
type Deps struct {
	Settings   *settings.Loader
	Queue      *queue.Queue
	Hosts      *hostrotation.Rotator
	Weather    *weather.Provider
	Market     *market.Provider
	News       *news.Provider
	LM         *lm.Client
	Speech     *speech.Router
	Degr       *degradation.Manager
	Playout    *playout.Client
	EventLog   EventLogger
	Logger     zerolog.Logger
	AssetsDir  string
	Director   *director.Director
	Compositor *compositor.Compositor
	VideoDir   string
	Archive    media.Archiver
}

// New constructs a Builder. A nil Deps.Archive defaults to a no-op
// archiver so callers never need to nil-check before archiving.
func New(d Deps) *Builder {
	archive := d.Archive
	if archive == nil {
		archive = media.Noop{}
	}
	return &Builder{
		settings:   d.Settings,
		queue:      d.Queue,
		hosts:      d.Hosts,
		weather:    d.Weather,
		market:     d.Market,
		news:       d.News,
		lm:         d.LM,
		speech:     d.Speech,
		degr:       d.Degr,
		playout:    d.Playout,
		eventLog:   d.EventLog,
		logger:     d.Logger.With().Str("component", "breakbuilder").Logger(),
		assetsDir:  d.AssetsDir,
		director:   d.Director,
		compositor: d.Compositor,
		videoDir:   d.VideoDir,
		archive:    archive,
	}
}

// breakID formats a collision-resistant, timestamp-sortable queue id.
func breakID(now time.Time) string {
	return fmt.Sprintf("brk_%sT%s_%04d", now.Format("20060102"), now.Format("150405"), now.Nanosecond()/1e5%10000)
}

// Prepare runs the full pipeline for one break. For a scheduled break
// it refuses to start a second build while one is already PREPARING;
// a breaking-news build bypasses that gate, per §4.2.
func (b *Builder) Prepare(ctx context.Context, isBreaking bool) error {
	start := time.Now()
	now := start.UTC()
	id := breakID(now)

	if !isBreaking {
		existing, err := b.queue.GetPreparing()
		if err != nil {
			return fmt.Errorf("breakbuilder: check preparing gate: %w", err)
		}
		if existing != nil {
			b.logger.Info().Str("existing", existing.ID).Msg("already preparing a break, skipping")
			return nil
		}
	}

	s, err := b.settings.Load()
	if err != nil {
		return fmt.Errorf("breakbuilder: load settings: %w", err)
	}

	host, err := b.hosts.Next(isBreaking)
	if err != nil {
		return fmt.Errorf("breakbuilder: select host: %w", err)
	}

	breakType := models.BreakScheduled
	priority := 0
	if isBreaking {
		breakType = models.BreakBreaking
		priority = 10
	}
	if err := b.queue.Create(id, breakType, priority, host.ID); err != nil {
		return fmt.Errorf("breakbuilder: admit break: %w", err)
	}

	weatherData, marketData := b.fetchWeatherAndMarket(ctx, s)
	headlines := b.fetchAndSelectHeadlines(ctx, s)

	var (
		scriptText   string
		degLevel     int
		audioPath    string
		dialogScript *models.Script
	)

	if s.DialogModeEnabled {
		dialogScript, degLevel, err = b.writeAndValidateDialog(ctx, s, host, weatherData, marketData, headlines, isBreaking)
		if err != nil {
			return b.fallbackOrFail(ctx, id, start, host, weatherData, err)
		}
		scriptText = flattenDialog(dialogScript)

		audioPath, err = b.speech.SynthesizeDialog(ctx, dialogScript, *host, id)
		if err != nil {
			b.logger.Warn().Err(err).Msg("dialog tts failed, trying sting fallback")
			return b.stingFallbackOrFail(id, start, "tts_failed: "+err.Error())
		}
	} else {
		scriptText, degLevel, err = b.writeAndValidate(ctx, s, host, weatherData, marketData, headlines, isBreaking)
		if err != nil {
			return b.fallbackOrFail(ctx, id, start, host, weatherData, err)
		}

		audioPath, err = b.speech.Synthesize(ctx, scriptText, *host, id)
		if err != nil {
			b.logger.Warn().Err(err).Msg("tts failed, trying sting fallback")
			return b.stingFallbackOrFail(id, start, "tts_failed: "+err.Error())
		}
	}

	durationMS := time.Since(start).Milliseconds()
	meta := models.BreakMeta{
		DegradationLevel: degLevel,
		MarketIncluded:   marketData != nil,
		SpeechProvider:   host.SpeechProvider,
		BuildDurationMS:  durationMS,
	}
	for _, w := range weatherData {
		meta.WeatherCities = append(meta.WeatherCities, w.CityID)
	}
	for _, h := range headlines {
		meta.HeadlinesUsed = append(meta.HeadlinesUsed, h.ID)
	}

	if dialogScript != nil && s.VideoEnabled && b.director != nil && b.compositor != nil {
		meta.VideoAttempted = true
		videoPath, err := b.renderVideo(ctx, id, dialogScript)
		if err != nil {
			b.logger.Warn().Err(err).Msg("video render failed, continuing audio-only")
		} else {
			meta.VideoSucceeded = true
			meta.VideoPath = videoPath
		}
	}

	if audioPath != "" {
		if key, err := b.archive.Archive(ctx, id, "audio", audioPath); err != nil {
			b.logger.Warn().Err(err).Str("break_id", id).Msg("audio archive failed")
		} else if key != "" {
			meta.ArchiveAudioURL = key
		}
	}
	if meta.VideoPath != "" {
		if key, err := b.archive.Archive(ctx, id, "video", meta.VideoPath); err != nil {
			b.logger.Warn().Err(err).Str("break_id", id).Msg("video archive failed")
		} else if key != "" {
			meta.ArchiveVideoURL = key
		}
	}

	if err := b.queue.MarkReady(id, scriptText, audioPath, degLevel, durationMS, meta); err != nil {
		return fmt.Errorf("breakbuilder: mark ready: %w", err)
	}

	pushed := b.playout.PushBreak(audioPath)
	b.playout.ResetCounter()
	if pushed {
		if err := b.queue.MarkPlayed(id); err != nil {
			b.logger.Warn().Err(err).Str("break_id", id).Msg("failed to mark played")
		}
	}

	telemetry.BreakBuildsTotal.WithLabelValues(outcomeLabel(pushed)).Inc()
	telemetry.BreakDegradationLevel.Observe(float64(degLevel))
	telemetry.BreakBuildDuration.Observe(time.Since(start).Seconds())

	b.logEvent("break_ready", map[string]any{"break_id": id, "degradation_level": degLevel}, durationMS)
	b.logger.Info().Str("break_id", id).Bool("pushed", pushed).Int("degradation_level", degLevel).Msg("break built")
	return nil
}

func outcomeLabel(pushed bool) string {
	if pushed {
		return "played"
	}
	return "ready"
}

func (b *Builder) fetchWeatherAndMarket(ctx context.Context, s settings.Settings) ([]weather.Conditions, *market.Data) {
	weatherData, err := b.weather.GetForCities(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("weather fetch error")
	}

	var marketData *market.Data
	if s.MarketEnabled {
		marketData, err = b.market.Get(ctx)
		if err != nil {
			b.logger.Warn().Err(err).Msg("market fetch error")
		}
	}
	return weatherData, marketData
}

func (b *Builder) fetchAndSelectHeadlines(ctx context.Context, s settings.Settings) []news.Headline {
	if _, err := b.news.PollAll(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("news poll error")
	}

	unscored, err := b.news.GetRecentUnscored(20)
	if err != nil {
		b.logger.Warn().Err(err).Msg("load unscored headlines failed")
		return nil
	}

	if len(unscored) > 0 {
		scored, err := b.lm.ScoreHeadlines(ctx, unscored)
		if err != nil {
			b.logger.Warn().Err(err).Msg("lm scoring failed")
		}
		for _, sc := range scored {
			if sc.Index < 0 || sc.Index >= len(unscored) {
				continue
			}
			if err := b.news.MarkScored(unscored[sc.Index].ID, sc.Score); err != nil {
				b.logger.Warn().Err(err).Msg("mark scored failed")
			}
		}
	}

	recentIDs, err := b.queue.RecentHeadlineIDs(2)
	if err != nil {
		b.logger.Warn().Err(err).Msg("load recent headline ids failed")
	}

	headlines, err := b.news.GetTopHeadlines(3, s.DedupWindowMins, recentIDs)
	if err != nil {
		b.logger.Warn().Err(err).Msg("select top headlines failed")
		return nil
	}
	return headlines
}

func (b *Builder) writeAndValidate(ctx context.Context, s settings.Settings, host *models.Host, weatherData []weather.Conditions, marketData *market.Data, headlines []news.Headline, isBreaking bool) (string, int, error) {
	minWords, maxWords := s.MinWords, s.MaxWords
	if isBreaking {
		minWords, maxWords = s.BreakingMinWords, s.BreakingMaxWords
	}
	bounds := validator.Bounds{MinWords: minWords, MaxWords: maxWords, MaxChars: s.MaxChars}

	script, err := b.lm.WriteScript(ctx, lm.WriteScriptParams{
		Weather:      weatherData,
		Market:       marketData,
		Headlines:    headlines,
		HostPrompt:   host.PersonalityPrompt,
		MasterPrompt: s.MasterScriptPrompt,
		IsBreaking:   isBreaking,
		HostID:       host.ID,
	})
	if err != nil || script == "" {
		return "", 0, fmt.Errorf("lm write failed: %w", err)
	}

	ok, reason := validator.Validate(script, isBreaking, bounds)
	if !ok {
		return "", 0, fmt.Errorf("content filter rejected: %s", reason)
	}

	return script, 0, nil
}

func (b *Builder) writeAndValidateDialog(ctx context.Context, s settings.Settings, host *models.Host, weatherData []weather.Conditions, marketData *market.Data, headlines []news.Headline, isBreaking bool) (*models.Script, int, error) {
	minWords, maxWords := s.MinWords, s.MaxWords
	if isBreaking {
		minWords, maxWords = s.BreakingMinWords, s.BreakingMaxWords
	}
	bounds := validator.Bounds{MinWords: minWords, MaxWords: maxWords, MaxChars: s.MaxChars}

	raw, err := b.lm.WriteDialogScript(ctx, lm.WriteScriptParams{
		Weather:      weatherData,
		Market:       marketData,
		Headlines:    headlines,
		HostPrompt:   host.PersonalityPrompt,
		MasterPrompt: s.MasterScriptPrompt,
		IsBreaking:   isBreaking,
		HostID:       host.ID,
	})
	if err != nil || raw == nil {
		return nil, 0, fmt.Errorf("lm dialog write failed: %w", err)
	}

	script := dialogOutToScript(raw)

	flat := flattenDialog(script)
	ok, reason := validator.Validate(flat, isBreaking, bounds)
	if !ok {
		return nil, 0, fmt.Errorf("content filter rejected: %s", reason)
	}

	return script, 0, nil
}

// dialogOutToScript converts the LM's raw dialog JSON shape into the
// orchestrator's Script model.
func dialogOutToScript(raw *lm.DialogScriptOut) *models.Script {
	script := &models.Script{
		Title:      raw.Title,
		Characters: raw.Characters,
	}
	for _, sceneOut := range raw.Scenes {
		scene := models.Scene{SceneID: sceneOut.SceneID, Background: sceneOut.Background}
		for _, lineOut := range sceneOut.Lines {
			scene.Lines = append(scene.Lines, models.DialogLine{
				Speaker:    lineOut.Character,
				Text:       lineOut.Text,
				Emotion:    lineOut.Emotion,
				CameraHint: lineOut.CameraHint,
			})
		}
		script.Scenes = append(script.Scenes, scene)
	}
	return script
}

// flattenDialog joins every line's text in order, for content
// filtering and for the events log; the per-line text is what
// actually reaches speech synthesis.
func flattenDialog(script *models.Script) string {
	var parts []string
	for _, scene := range script.Scenes {
		for _, line := range scene.Lines {
			parts = append(parts, line.Text)
		}
	}
	return strings.Join(parts, " ")
}

// renderVideo runs the director over a synthesized dialog script and
// composites the resulting EDL into an MP4, returning its path.
func (b *Builder) renderVideo(ctx context.Context, id string, script *models.Script) (string, error) {
	pack := assets.New(b.assetsDir)
	if err := pack.Load(script.Characters); err != nil {
		return "", fmt.Errorf("breakbuilder: load assets: %w", err)
	}

	b.directorMu.Lock()
	edl := b.director.Generate(*script)
	b.directorMu.Unlock()

	workDir := filepath.Join(b.videoDir, id+"_work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("breakbuilder: create video work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputPath := filepath.Join(b.videoDir, id+".mp4")
	if err := os.MkdirAll(b.videoDir, 0o755); err != nil {
		return "", fmt.Errorf("breakbuilder: create video dir: %w", err)
	}

	if err := b.compositor.RenderEDL(ctx, edl, pack, workDir, outputPath); err != nil {
		return "", fmt.Errorf("breakbuilder: render edl: %w", err)
	}
	return outputPath, nil
}

func (b *Builder) fallbackOrFail(ctx context.Context, id string, start time.Time, host *models.Host, weatherData []weather.Conditions, cause error) error {
	b.logger.Warn().Err(cause).Msg("falling back to degradation ladder")

	wlike := make([]degradation.WeatherLike, 0, len(weatherData))
	for _, w := range weatherData {
		wlike = append(wlike, degradation.WeatherLike{CityLabel: w.CityLabel, Temp: w.Temp, Condition: w.Condition})
	}

	script, level := b.degr.GetFallback(wlike)
	elapsed := time.Since(start).Milliseconds()

	switch level {
	case degradation.LevelTemplateWeather:
		return b.finishWithFallbackScript(ctx, id, start, host, script, int(level), elapsed)
	case degradation.LevelStingOnly:
		return b.stingFallbackOrFail(id, start, cause.Error())
	default:
		if err := b.queue.MarkFailed(id, "all fallbacks exhausted"); err != nil {
			b.logger.Warn().Err(err).Msg("mark failed error")
		}
		telemetry.BreakBuildsTotal.WithLabelValues("failed").Inc()
		telemetry.BreakDegradationLevel.Observe(float64(degradation.LevelTotalFailure))
		b.logEvent("break_failed", map[string]any{"break_id": id, "error": "all_fallbacks_failed"}, elapsed)
		return fmt.Errorf("breakbuilder: all fallbacks exhausted: %w", cause)
	}
}

func (b *Builder) finishWithFallbackScript(ctx context.Context, id string, start time.Time, host *models.Host, script string, level int, elapsedMS int64) error {
	audioPath, err := b.speech.Synthesize(ctx, script, *host, id)
	if err != nil {
		b.logger.Warn().Err(err).Msg("fallback tts failed, trying sting fallback")
		return b.stingFallbackOrFail(id, start, "tts_failed: "+err.Error())
	}

	if err := b.queue.MarkReady(id, script, audioPath, level, elapsedMS, models.BreakMeta{DegradationLevel: level}); err != nil {
		return fmt.Errorf("breakbuilder: mark ready (fallback): %w", err)
	}

	pushed := b.playout.PushBreak(audioPath)
	b.playout.ResetCounter()
	if pushed {
		if err := b.queue.MarkPlayed(id); err != nil {
			b.logger.Warn().Err(err).Str("break_id", id).Msg("failed to mark played")
		}
	}

	telemetry.BreakBuildsTotal.WithLabelValues(outcomeLabel(pushed)).Inc()
	telemetry.BreakDegradationLevel.Observe(float64(level))
	b.logEvent("break_ready", map[string]any{"break_id": id, "degradation_level": level}, elapsedMS)
	return nil
}

func (b *Builder) stingFallbackOrFail(id string, start time.Time, reason string) error {
	elapsed := time.Since(start).Milliseconds()
	stingPath := b.degr.StingPath("station_id")
	if stingPath == "" {
		if err := b.queue.MarkFailed(id, reason); err != nil {
			b.logger.Warn().Err(err).Msg("mark failed error")
		}
		telemetry.BreakBuildsTotal.WithLabelValues("failed").Inc()
		telemetry.BreakDegradationLevel.Observe(float64(degradation.LevelTotalFailure))
		b.logEvent("break_failed", map[string]any{"break_id": id, "error": reason}, elapsed)
		return fmt.Errorf("breakbuilder: %s, no sting available", reason)
	}

	if err := b.queue.MarkReady(id, "", stingPath, int(degradation.LevelStingOnly), elapsed, models.BreakMeta{DegradationLevel: int(degradation.LevelStingOnly)}); err != nil {
		return fmt.Errorf("breakbuilder: mark ready (sting): %w", err)
	}

	pushed := b.playout.PushBreak(stingPath)
	if pushed {
		if err := b.queue.MarkPlayed(id); err != nil {
			b.logger.Warn().Err(err).Msg("mark played error")
		}
	}
	telemetry.BreakBuildsTotal.WithLabelValues(outcomeLabel(pushed)).Inc()
	telemetry.BreakDegradationLevel.Observe(float64(degradation.LevelStingOnly))
	b.logEvent("break_ready", map[string]any{"break_id": id, "degradation_level": int(degradation.LevelStingOnly)}, elapsed)
	return nil
}

func (b *Builder) logEvent(eventType string, payload map[string]any, latencyMS int64) {
	if b.eventLog == nil {
		return
	}
	if err := b.eventLog.Append(eventType, payload, latencyMS); err != nil {
		b.logger.Warn().Err(err).Str("event_type", eventType).Msg("event log append failed")
	}
}
