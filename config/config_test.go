// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/upscale"
	"github.com/gogpu/upscale/algorithms/spatial"
	"github.com/gogpu/upscale/algorithms/taa"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

const sample = `
algorithms: [gogpu.spatial, gogpu.taa]
quality: balanced
sharpening:
  enabled: true
  sharpness: 0.8
auto_reactive:
  enabled: true
  scale: 0.5
  flags: [tonemap, components_max]
taa:
  blend_factor: 0.2
  history_format: rgba32float
spatial:
  filter: nearest
pool:
  capacity: 8
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Default()
	want.Algorithms = []string{spatial.Identifier, taa.Identifier}
	want.Quality = "balanced"
	want.Sharpening = SharpeningConfig{Enabled: true, Sharpness: 0.8}
	want.AutoReactive.Enabled = true
	want.AutoReactive.Scale = 0.5
	want.AutoReactive.Flags = []string{"tonemap", "components_max"}
	want.TAA = TAAConfig{BlendFactor: 0.2, HistoryFormat: "rgba32float"}
	want.Spatial.Filter = "nearest"
	want.Pool.Capacity = 8

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Parse(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"no algorithms", func(c *Config) { c.Algorithms = nil }, "at least one"},
		{"duplicate", func(c *Config) { c.Algorithms = []string{"a", "a"} }, "listed twice"},
		{"empty id", func(c *Config) { c.Algorithms = []string{""} }, "empty identifier"},
		{"quality", func(c *Config) { c.Quality = "ultra" }, "quality"},
		{"custom scale", func(c *Config) { c.Quality = "custom"; c.CustomScale = 0.5 }, "custom_scale"},
		{"sharpness", func(c *Config) { c.Sharpening.Sharpness = 2 }, "sharpness"},
		{"flag", func(c *Config) { c.AutoReactive.Flags = []string{"glow"} }, "auto_reactive"},
		{"blend", func(c *Config) { c.TAA.BlendFactor = -1 }, "blend_factor"},
		{"history format", func(c *Config) { c.TAA.HistoryFormat = "BGRA8Unorm" }, "history_format"},
		{"filter", func(c *Config) { c.Spatial.Filter = "lanczos" }, "spatial.filter"},
		{"pool", func(c *Config) { c.Pool.Capacity = -1 }, "pool.capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upscale.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.Capacity != 8 {
		t.Errorf("Pool.Capacity = %d, want 8", cfg.Pool.Capacity)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
	if _, err := Parse([]byte("algorithms: [")); err == nil {
		t.Error("Parse of malformed YAML should fail")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestApply(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dev := render.NewSoftwareDevice()
	reg := upscale.NewRegistry()
	reg.Register(taa.NewDescriptor(dev))
	reg.Register(spatial.NewDescriptor(dev))
	c := upscale.NewController(reg)

	if err := cfg.Apply(c); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff([]string{spatial.Identifier, taa.Identifier}, c.Chain()); diff != "" {
		t.Errorf("Chain() mismatch (-want +got):\n%s", diff)
	}
	if c.Quality() != upscale.QualityBalanced {
		t.Errorf("Quality() = %v, want Balanced", c.Quality())
	}
	if on, s := c.Sharpening(); !on || s != 0.8 {
		t.Errorf("Sharpening() = %v, %v, want true, 0.8", on, s)
	}
	on, params := c.AutoReactive()
	if !on || params.Scale != 0.5 || params.Flags != render.ApplyTonemap|render.UseComponentsMax {
		t.Errorf("AutoReactive() = %v, %+v", on, params)
	}
	ts := c.Settings(taa.Identifier).(*taa.Settings)
	if ts.BlendFactor != 0.2 || ts.HistoryFormat != gputypes.TextureFormatRGBA32Float {
		t.Errorf("taa settings = %+v", ts)
	}
	if ss := c.Settings(spatial.Identifier).(*spatial.Settings); ss.Filter != render.FilterNearest {
		t.Errorf("spatial filter = %v, want Nearest", ss.Filter)
	}
}

func TestPoolOptions(t *testing.T) {
	cfg := Default()
	cfg.Pool = PoolConfig{Capacity: 4, Lifetime: 9}
	p := pool.New(cfg.PoolOptions()...)
	if p.Capacity() != 4 || p.Lifetime() != 9 {
		t.Errorf("pool capacity, lifetime = %d, %d, want 4, 9", p.Capacity(), p.Lifetime())
	}
	if opts := (&Config{}).PoolOptions(); len(opts) != 0 {
		t.Errorf("zero pool config gave %d options, want 0", len(opts))
	}
}
