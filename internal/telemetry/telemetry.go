/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry registers the Prometheus metrics used across the
// break production pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTicksTotal counts scheduler wakeups.
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakcast_scheduler_ticks_total",
		Help: "Total number of scheduler ticks.",
	})

	// SchedulerSkippedTotal counts ticks skipped due to quiet mode.
	SchedulerSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakcast_scheduler_skipped_total",
		Help: "Total number of scheduler ticks skipped due to quiet mode.",
	})

	// BreakBuildsTotal counts break build attempts by outcome.
	BreakBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakcast_break_builds_total",
		Help: "Total break builds by outcome (played, ready, failed).",
	}, []string{"outcome"})

	// BreakDegradationLevel observes the degradation level settled on.
	BreakDegradationLevel = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakcast_break_degradation_level",
		Help:    "Degradation level (0-4) a break settled on.",
		Buckets: []float64{0, 1, 2, 3, 4},
	})

	// BreakBuildDuration observes end-to-end build latency.
	BreakBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakcast_break_build_duration_seconds",
		Help:    "Duration of a full break build, in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// ProviderErrorsTotal counts provider failures by provider+stage.
	ProviderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakcast_provider_errors_total",
		Help: "Total provider errors by provider and stage.",
	}, []string{"provider", "stage"})

	// FeedHealthStatus gauges the status of a news feed (0=healthy,1=unhealthy,2=dead).
	FeedHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breakcast_feed_health_status",
		Help: "News feed health status (0=healthy, 1=unhealthy, 2=dead).",
	}, []string{"source_id"})

	// VideoRenderDuration observes compositor render time.
	VideoRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakcast_video_render_duration_seconds",
		Help:    "Duration of a full break video render, in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// DatabaseQueryDuration observes gorm operation latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "breakcast_db_query_duration_seconds",
		Help:    "Duration of database operations by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts gorm operation errors by operation and kind.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakcast_db_errors_total",
		Help: "Total database errors by operation and kind.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges the open connection pool size.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breakcast_db_connections_active",
		Help: "Currently open database connections.",
	})

	// APIRequestDuration observes HTTP handler latency by method, route, and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "breakcast_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by method, route, and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// APIRequestsTotal counts HTTP requests by method, route, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakcast_http_requests_total",
		Help: "Total HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breakcast_http_active_connections",
		Help: "Currently in-flight HTTP requests.",
	})
)
