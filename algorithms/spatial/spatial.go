// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package spatial provides a single-frame upscaler: a bicubic resample of the
// rendered region followed by optional contrast adaptive sharpening.
//
// It needs no history and no jitter, so it runs on any device and is the
// usual last entry of a fallback chain:
//
//	reg.Register(spatial.NewDescriptor(dev))
//	err := view.Initialize([]string{taa.Identifier, spatial.Identifier}, "", params)
package spatial

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/upscale"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// Identifier is the registry identifier of the spatial upscaler.
const Identifier = "gogpu.spatial"

// DefaultPriority is the registry priority of descriptors created without
// WithPriority.
const DefaultPriority = 0

// sharpenName binds the pre-sharpen temporary in the pool.
const sharpenName = "spatial.upscaled"

// Settings configures the spatial upscaler. Changes apply on the next frame
// without a restart.
type Settings struct {
	upscale.NoSettings

	// Filter is the resampling kernel.
	Filter render.Filter
}

// DefaultSettings returns Catmull-Rom resampling.
func DefaultSettings() *Settings {
	return &Settings{Filter: render.FilterCatmullRom}
}

// Option configures a Descriptor.
type Option func(*Descriptor)

// WithPriority sets the registry priority.
func WithPriority(p int) Option {
	return func(d *Descriptor) { d.priority = p }
}

// Descriptor registers the spatial upscaler.
type Descriptor struct {
	dev      render.Device
	priority int
}

// NewDescriptor creates a descriptor for dev.
func NewDescriptor(dev render.Device, opts ...Option) *Descriptor {
	d := &Descriptor{dev: dev, priority: DefaultPriority}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Descriptor) Identifier() string  { return Identifier }
func (d *Descriptor) Name() upscale.Name  { return upscale.NameNone }
func (d *Descriptor) DisplayName() string { return "Spatial (Catmull-Rom + RCAS)" }
func (d *Descriptor) Priority() int       { return d.priority }

// Supported reports whether a device is attached. Every device can blit.
func (d *Descriptor) Supported() bool { return d.dev != nil }

// Capabilities reports a dynamic-resolution, alpha-preserving upscaler.
func (d *Descriptor) Capabilities() upscale.Capabilities {
	return upscale.Capabilities{DynamicResolution: true, AlphaUpscale: true}
}

func (d *Descriptor) NewSettings() upscale.Settings { return DefaultSettings() }

// CreateInstance creates an instance. Foreign settings are replaced by the
// defaults.
func (d *Descriptor) CreateInstance(s upscale.Settings, params upscale.InitParams) (upscale.Instance, error) {
	settings, ok := s.(*Settings)
	if !ok || settings == nil {
		settings = DefaultSettings()
	}
	if params.Device == nil {
		return nil, errors.New("spatial: nil device")
	}
	return &Instance{settings: settings}, nil
}

// Cleanup is a no-op; the descriptor owns no shared resources.
func (d *Descriptor) Cleanup() {}

// Instance is a running spatial upscaler.
type Instance struct {
	upscale.BaseInstance

	settings *Settings
	params   upscale.InitParams
	alloc    *pool.Allocator
}

// Initialize captures the view parameters.
func (in *Instance) Initialize(params upscale.InitParams) error {
	in.params = params
	in.alloc = pool.NewAllocator(params.Pool, params.Device)
	upscale.Logger().Debug("spatial: initialized",
		slog.String("view", params.View.Name),
		slog.String("display", params.DisplaySize.String()),
		slog.String("filter", in.settings.Filter.String()))
	return nil
}

// Dispatch resamples the rendered region of Color onto Output and sharpens
// the result when requested.
func (in *Instance) Dispatch(p *upscale.DispatchParams) error {
	if in.alloc == nil {
		return upscale.ErrNotInitialized
	}
	src, err := p.Color.Texture()
	if err != nil {
		return fmt.Errorf("spatial: color: %w", err)
	}
	dst, err := p.Output.Texture()
	if err != nil {
		return fmt.Errorf("spatial: output: %w", err)
	}
	if src == nil || dst == nil {
		return fmt.Errorf("spatial: %w: color and output are required", upscale.ErrInvalidParams)
	}

	in.alloc.BeginFrame(p.Frame)
	defer in.alloc.EndFrame()

	dev := in.params.Device
	slice := 0
	if in.params.TextureArrays {
		slice = p.ViewIndex
	}
	opts := render.BlitOptions{
		SrcRect:  p.RenderSizeOrColor().Rect(),
		SrcSlice: slice,
		DstSlice: slice,
		Filter:   in.settings.Filter,
	}
	if !p.Sharpening {
		return dev.Blit(src, dst, opts)
	}

	desc := dst.Descriptor()
	desc.Label = ""
	tmp, err := in.alloc.Get(desc, sharpenName)
	if err != nil {
		return err
	}
	if err := dev.Blit(src, tmp, opts); err != nil {
		return err
	}
	return dev.Sharpen(tmp, dst, render.SharpenOptions{Sharpness: p.Sharpness, Slice: slice})
}

// Destroy drops the allocator. Temporaries were already retired to the pool
// at the end of their frame.
func (in *Instance) Destroy() {
	in.alloc = nil
}

var (
	_ upscale.Descriptor = (*Descriptor)(nil)
	_ upscale.Instance   = (*Instance)(nil)
)
