/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/airwaveco/breakcast/internal/models"
)

//go:embed seeds/fallback_templates.yaml
var fallbackTemplatesYAML []byte

type fallbackTemplateSeed struct {
	ID           string `yaml:"id"`
	TemplateText string `yaml:"template_text"`
}

// SeedFallbackTemplates inserts the bundled fallback-template fixture
// data the first time the table is empty. It is a no-op on every
// subsequent start, so the degradation ladder's least-used-template
// selection and use-count bumps are never reset underneath an
// operator who has since edited the rows.
func SeedFallbackTemplates(database *gorm.DB) error {
	var count int64
	if err := database.Model(&models.FallbackTemplate{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count fallback templates: %w", err)
	}
	if count > 0 {
		return nil
	}

	var seeds []fallbackTemplateSeed
	if err := yaml.Unmarshal(fallbackTemplatesYAML, &seeds); err != nil {
		return fmt.Errorf("db: parse fallback template seed: %w", err)
	}

	for _, s := range seeds {
		row := models.FallbackTemplate{ID: s.ID, TemplateText: s.TemplateText}
		if err := database.Create(&row).Error; err != nil {
			return fmt.Errorf("db: seed fallback template %s: %w", s.ID, err)
		}
	}
	return nil
}
