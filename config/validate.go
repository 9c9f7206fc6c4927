// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"

	"github.com/gogpu/upscale"
)

// Validate checks cfg for values Apply would reject or clamp silently.
func Validate(cfg *Config) error {
	if len(cfg.Algorithms) == 0 {
		return errors.New("algorithms: at least one identifier is required")
	}
	seen := make(map[string]bool, len(cfg.Algorithms))
	for _, id := range cfg.Algorithms {
		if id == "" {
			return errors.New("algorithms: empty identifier")
		}
		if seen[id] {
			return fmt.Errorf("algorithms: %q listed twice", id)
		}
		seen[id] = true
	}

	q, err := upscale.ParseQuality(cfg.Quality)
	if err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if q == upscale.QualityCustom && cfg.CustomScale < 1 {
		return fmt.Errorf("custom_scale must be >= 1, got %v", cfg.CustomScale)
	}
	if s := cfg.Sharpening.Sharpness; s < 0 || s > 1 {
		return fmt.Errorf("sharpening.sharpness must be in [0,1], got %v", s)
	}
	if _, err := cfg.AutoReactive.Params(); err != nil {
		return fmt.Errorf("auto_reactive: %w", err)
	}
	if b := cfg.TAA.BlendFactor; b < 0 || b > 1 {
		return fmt.Errorf("taa.blend_factor must be in [0,1], got %v", b)
	}
	if _, err := parseFormat(cfg.TAA.HistoryFormat); err != nil {
		return fmt.Errorf("taa.history_format: %w", err)
	}
	if _, err := parseFilter(cfg.Spatial.Filter); err != nil {
		return fmt.Errorf("spatial.filter: %w", err)
	}
	if cfg.Pool.Capacity < 0 {
		return fmt.Errorf("pool.capacity must be >= 0, got %d", cfg.Pool.Capacity)
	}
	return nil
}
