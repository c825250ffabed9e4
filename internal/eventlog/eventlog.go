/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventlog appends pipeline events (llm_score, llm_write,
// break_ready, break_failed, ...) to the database, prunes entries
// older than a week, and optionally fans them out over NATS for
// external collaborators.
package eventlog

import (
	"encoding/json"
	"time"

	"github.com/airwaveco/breakcast/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/airwaveco/breakcast/internal/models"
)

// Retention is how long event log rows are kept.
const Retention = 7 * 24 * time.Hour

// Log appends events to the database and fans them out locally (and,
// optionally, over NATS).
type Log struct {
	db   *gorm.DB
	bus  *events.Bus
	nc   *nats.Conn
	logger zerolog.Logger
}

// New constructs a Log. nc may be nil if NATS fan-out is disabled.
func New(database *gorm.DB, bus *events.Bus, nc *nats.Conn, logger zerolog.Logger) *Log {
	return &Log{db: database, bus: bus, nc: nc, logger: logger.With().Str("component", "eventlog").Logger()}
}

// Append records an event row and publishes it on the in-process bus
// and, if configured, on NATS subject "breakcast.events.<eventType>".
func (l *Log) Append(eventType string, payload map[string]any, latencyMS int64) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	row := models.EventLogEntry{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PayloadJSON: string(body),
		LatencyMS:   latencyMS,
	}
	if err := l.db.Create(&row).Error; err != nil {
		return err
	}

	if l.bus != nil {
		l.bus.Publish(events.EventType(eventType), events.Payload(payload))
	}

	if l.nc != nil {
		if err := l.nc.Publish("breakcast.events."+eventType, body); err != nil {
			l.logger.Debug().Err(err).Str("event_type", eventType).Msg("nats publish failed")
		}
	}

	return nil
}

// Prune deletes rows older than Retention.
func (l *Log) Prune() (int64, error) {
	cutoff := time.Now().UTC().Add(-Retention)
	result := l.db.Where("timestamp < ?", cutoff).Delete(&models.EventLogEntry{})
	return result.RowsAffected, result.Error
}
