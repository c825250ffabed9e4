/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package hostrotation picks the host for the next break: always the
// designated breaking host for a breaking-news break, otherwise a
// parity-based round robin between two regular hosts.
package hostrotation

import (
	"fmt"

	"github.com/airwaveco/breakcast/internal/models"
	"gorm.io/gorm"
)

const rotationRowID = 1

// Rotator selects and records the next host.
type Rotator struct {
	db *gorm.DB
}

// New constructs a Rotator.
func New(database *gorm.DB) *Rotator {
	return &Rotator{db: database}
}

// Next returns the host for the upcoming break. For a breaking break
// it is always the enabled host flagged IsBreakingHost. For a regular
// break, odd break counts rotate to "host_b", even to "host_a"; if
// that slot is disabled or missing, it falls back to any enabled
// host. The rotation state is updated as a side effect.
func (r *Rotator) Next(isBreaking bool) (*models.Host, error) {
	if isBreaking {
		var host models.Host
		err := r.db.Where("is_breaking_host = ? AND enabled = ?", true, true).First(&host).Error
		if err != nil {
			return nil, fmt.Errorf("hostrotation: no enabled breaking host: %w", err)
		}
		return &host, nil
	}

	var rotation models.HostRotation
	if err := r.db.FirstOrCreate(&rotation, models.HostRotation{ID: rotationRowID}).Error; err != nil {
		return nil, fmt.Errorf("hostrotation: load rotation state: %w", err)
	}

	breakCount := rotation.BreakCount + 1
	nextID := "host_a"
	if breakCount%2 == 1 {
		nextID = "host_b"
	}

	var host models.Host
	err := r.db.Where("id = ? AND enabled = ?", nextID, true).First(&host).Error
	if err != nil {
		if err := r.db.Where("enabled = ?", true).First(&host).Error; err != nil {
			return nil, fmt.Errorf("hostrotation: no enabled hosts available: %w", err)
		}
	}

	rotation.LastHostID = host.ID
	rotation.BreakCount = breakCount
	if err := r.db.Save(&rotation).Error; err != nil {
		return nil, fmt.Errorf("hostrotation: persist rotation state: %w", err)
	}

	return &host, nil
}
