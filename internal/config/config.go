/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package config reads process-level configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseBackend selects the relational store driver.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	BreaksDir  string
	StingsDir  string
	ModelsDir  string
	AssetsDir  string
	VideoDir   string
	DataDir    string
	LogDir     string

	SchedulerDefaultIntervalMinutes int

	GStreamerBin string
	FFmpegBin    string
	FFprobeBin   string
	PiperBin     string

	JWTSigningKey   string
	BreakingAPIKey  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheDisabled bool

	// LM provider
	LMAPIBase  string
	LMAPIKey   string
	LMModel    string

	// Speech cloud providers
	SpeechCloudABase string
	SpeechCloudAKey  string
	SpeechCloudBBase string
	SpeechCloudBKey  string

	// Weather provider
	WeatherAPIBase string
	WeatherAPIKey  string

	// Market provider
	MarketAPIURL    string
	MarketAPIKey    string
	MarketEnabled   bool
	MarketCacheTTL  time.Duration

	// S3 object storage (optional, mirrors teacher's dual fs/s3 media backend)
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	// NATS (optional event fan-out)
	NATSURL     string
	NATSEnabled bool
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("BREAKCAST_ENV", "development"),
		HTTPBind:    getEnv("BREAKCAST_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("BREAKCAST_HTTP_PORT", 8080),
		MetricsBind: getEnv("BREAKCAST_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("BREAKCAST_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("BREAKCAST_DB_DSN", "./data/breakcast.db"),

		BreaksDir: getEnv("BREAKCAST_BREAKS_DIR", "./data/breaks"),
		StingsDir: getEnv("BREAKCAST_STINGS_DIR", "./data/stings"),
		ModelsDir: getEnv("BREAKCAST_MODELS_DIR", "./data/models"),
		AssetsDir: getEnv("BREAKCAST_ASSETS_DIR", "./data/assets"),
		VideoDir:  getEnv("BREAKCAST_VIDEO_DIR", "./data/video"),
		DataDir:   getEnv("BREAKCAST_DATA_DIR", "./data"),
		LogDir:    getEnv("BREAKCAST_LOG_DIR", "./data/logs"),

		SchedulerDefaultIntervalMinutes: getEnvInt("BREAKCAST_SCHEDULER_INTERVAL_MINUTES", 20),

		GStreamerBin: getEnv("BREAKCAST_GSTREAMER_BIN", "gst-launch-1.0"),
		FFmpegBin:    getEnv("BREAKCAST_FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:   getEnv("BREAKCAST_FFPROBE_BIN", "ffprobe"),
		PiperBin:     getEnv("BREAKCAST_PIPER_BIN", "piper"),

		JWTSigningKey:  getEnv("BREAKCAST_JWT_SIGNING_KEY", ""),
		BreakingAPIKey: getEnv("BREAKCAST_BREAKING_API_KEY", ""),

		RedisAddr:     getEnv("BREAKCAST_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("BREAKCAST_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("BREAKCAST_REDIS_DB", 0),
		CacheDisabled: getEnvBool("BREAKCAST_CACHE_DISABLED", false),

		LMAPIBase: getEnv("BREAKCAST_LM_API_BASE", "https://api.openai.com/v1"),
		LMAPIKey:  getEnv("BREAKCAST_LM_API_KEY", ""),
		LMModel:   getEnv("BREAKCAST_LM_MODEL", "gpt-4o-mini"),

		SpeechCloudABase: getEnv("BREAKCAST_SPEECH_CLOUD_A_BASE", "https://api.elevenlabs.io/v1"),
		SpeechCloudAKey:  getEnv("BREAKCAST_SPEECH_CLOUD_A_KEY", ""),
		SpeechCloudBBase: getEnv("BREAKCAST_SPEECH_CLOUD_B_BASE", "https://api.openai.com/v1"),
		SpeechCloudBKey:  getEnv("BREAKCAST_SPEECH_CLOUD_B_KEY", ""),

		WeatherAPIBase: getEnv("BREAKCAST_WEATHER_API_BASE", "https://api.weatherapi.com/v1/current.json"),
		WeatherAPIKey:  getEnv("BREAKCAST_WEATHER_API_KEY", ""),

		MarketAPIURL:   getEnv("BREAKCAST_MARKET_API_URL", ""),
		MarketAPIKey:   getEnv("BREAKCAST_MARKET_API_KEY", ""),
		MarketEnabled:  getEnvBool("BREAKCAST_MARKET_ENABLED", false),
		MarketCacheTTL: time.Duration(getEnvInt("BREAKCAST_MARKET_CACHE_TTL_SECONDS", 300)) * time.Second,

		S3Bucket:          getEnv("BREAKCAST_S3_BUCKET", ""),
		S3Region:          getEnv("BREAKCAST_S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("BREAKCAST_S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("BREAKCAST_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("BREAKCAST_S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnvBool("BREAKCAST_S3_USE_PATH_STYLE", false),

		NATSURL:     getEnv("BREAKCAST_NATS_URL", ""),
		NATSEnabled: getEnvBool("BREAKCAST_NATS_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("config: unknown db backend %q", c.DBBackend)
	}
	if c.HTTPPort <= 0 {
		return fmt.Errorf("config: invalid http port %d", c.HTTPPort)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}
