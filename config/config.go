// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config loads upscaling settings from YAML and applies them to a
// Controller and a texture pool.
//
// A minimal file:
//
//	algorithms: [gogpu.taa, gogpu.spatial]
//	quality: Balanced
//	sharpening:
//	  enabled: true
//	  sharpness: 0.6
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/upscale"
	"github.com/gogpu/upscale/algorithms/spatial"
	"github.com/gogpu/upscale/algorithms/taa"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// Config is the complete upscaling configuration of a view.
type Config struct {
	// Algorithms is the selection chain, primary first.
	Algorithms   []string           `yaml:"algorithms"`
	Quality      string             `yaml:"quality"`
	CustomScale  float32            `yaml:"custom_scale"` // used with quality Custom
	Sharpening   SharpeningConfig   `yaml:"sharpening"`
	AutoReactive AutoReactiveConfig `yaml:"auto_reactive"`
	TAA          TAAConfig          `yaml:"taa"`
	Spatial      SpatialConfig      `yaml:"spatial"`
	Pool         PoolConfig         `yaml:"pool"`
}

// SharpeningConfig contains sharpening settings.
type SharpeningConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Sharpness float32 `yaml:"sharpness"` // [0,1]
}

// AutoReactiveConfig contains the auto reactive mask settings. Zero values
// take the defaults.
type AutoReactiveConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Scale           float32  `yaml:"scale"`
	CutoffThreshold float32  `yaml:"cutoff_threshold"`
	BinaryValue     float32  `yaml:"binary_value"`
	Flags           []string `yaml:"flags"` // tonemap, inverse_tonemap, threshold, components_max
}

// TAAConfig contains temporal upscaler settings.
type TAAConfig struct {
	BlendFactor   float32 `yaml:"blend_factor"`
	HistoryFormat string  `yaml:"history_format"` // e.g. RGBA16Float; empty picks per view
}

// SpatialConfig contains spatial upscaler settings.
type SpatialConfig struct {
	Filter string `yaml:"filter"` // nearest, bilinear, catmullrom
}

// PoolConfig contains texture pool settings.
type PoolConfig struct {
	Capacity int    `yaml:"capacity"`
	Lifetime uint64 `yaml:"lifetime"` // frames
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := render.DefaultReactiveMaskParams()
	return &Config{
		Algorithms:  []string{taa.Identifier, spatial.Identifier},
		Quality:     upscale.QualityQuality.String(),
		CustomScale: 1,
		Sharpening:  SharpeningConfig{Sharpness: 0.5},
		AutoReactive: AutoReactiveConfig{
			Scale:           p.Scale,
			CutoffThreshold: p.CutoffThreshold,
			BinaryValue:     p.BinaryValue,
			Flags:           flagNames(p.Flags),
		},
		TAA:     TAAConfig{BlendFactor: taa.DefaultBlendFactor},
		Spatial: SpatialConfig{Filter: "catmullrom"},
		Pool:    PoolConfig{Capacity: pool.DefaultCapacity, Lifetime: pool.DefaultLifetime},
	}
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates YAML. Fields missing from data keep their
// Default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Apply configures c. Algorithm settings are applied only for algorithms
// registered in the controller's registry.
func (cfg *Config) Apply(c *upscale.Controller) error {
	q, err := upscale.ParseQuality(cfg.Quality)
	if err != nil {
		return err
	}
	c.SetChain(cfg.Algorithms...)
	c.SetQuality(q)
	c.SetCustomScale(cfg.CustomScale)
	c.SetSharpening(cfg.Sharpening.Enabled, cfg.Sharpening.Sharpness)

	params, err := cfg.AutoReactive.Params()
	if err != nil {
		return err
	}
	c.SetAutoReactive(cfg.AutoReactive.Enabled)
	c.SetAutoReactiveParams(params)

	if s, ok := c.Settings(taa.Identifier).(*taa.Settings); ok {
		format, err := parseFormat(cfg.TAA.HistoryFormat)
		if err != nil {
			return err
		}
		s.BlendFactor = cfg.TAA.BlendFactor
		s.HistoryFormat = format
	}
	if s, ok := c.Settings(spatial.Identifier).(*spatial.Settings); ok {
		f, err := parseFilter(cfg.Spatial.Filter)
		if err != nil {
			return err
		}
		s.Filter = f
	}
	return nil
}

// PoolOptions returns the pool options of cfg.
func (cfg *Config) PoolOptions() []pool.Option {
	var opts []pool.Option
	if cfg.Pool.Capacity > 0 {
		opts = append(opts, pool.WithCapacity(cfg.Pool.Capacity))
	}
	if cfg.Pool.Lifetime > 0 {
		opts = append(opts, pool.WithLifetime(cfg.Pool.Lifetime))
	}
	return opts
}

// Params converts the auto reactive settings, filling zero values with the
// defaults.
func (a AutoReactiveConfig) Params() (render.ReactiveMaskParams, error) {
	p := render.DefaultReactiveMaskParams()
	if a.Scale != 0 {
		p.Scale = a.Scale
	}
	if a.CutoffThreshold != 0 {
		p.CutoffThreshold = a.CutoffThreshold
	}
	if a.BinaryValue != 0 {
		p.BinaryValue = a.BinaryValue
	}
	if a.Flags != nil {
		p.Flags = 0
		for _, name := range a.Flags {
			f, ok := reactiveFlags[strings.ToLower(name)]
			if !ok {
				return p, fmt.Errorf("config: unknown auto reactive flag %q", name)
			}
			p.Flags |= f
		}
	}
	return p, nil
}

var reactiveFlags = map[string]render.AutoReactiveFlags{
	"tonemap":         render.ApplyTonemap,
	"inverse_tonemap": render.ApplyInverseTonemap,
	"threshold":       render.ApplyThreshold,
	"components_max":  render.UseComponentsMax,
}

func flagNames(flags render.AutoReactiveFlags) []string {
	var names []string
	for _, name := range []string{"tonemap", "inverse_tonemap", "threshold", "components_max"} {
		if flags.Has(reactiveFlags[name]) {
			names = append(names, name)
		}
	}
	return names
}

// historyFormats are the formats a history target may use.
var historyFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA32Float,
}

func parseFormat(s string) (gputypes.TextureFormat, error) {
	if s == "" {
		return gputypes.TextureFormatUndefined, nil
	}
	for _, f := range historyFormats {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("config: unsupported history format %q", s)
}

func parseFilter(s string) (render.Filter, error) {
	for _, f := range []render.Filter{render.FilterBilinear, render.FilterNearest, render.FilterCatmullRom} {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return render.FilterBilinear, fmt.Errorf("config: unknown filter %q", s)
}
