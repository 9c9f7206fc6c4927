// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package taa provides a temporal upscaler.
//
// Every frame the rendered region is resampled to display resolution and
// blended into a display-resolution history with an exponential moving
// average. The reactive mask raises the weight of the current frame where
// history would ghost. Two history targets per slice are ping-ponged and are
// taken from and returned to the shared pool.
//
// The upscaler consumes the view's sub-pixel jitter, so hosts must render
// with the projection returned by ViewContext.JitteredProjection.
package taa

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/upscale"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// Identifier is the registry identifier of the temporal upscaler.
const Identifier = "gogpu.taa"

// DefaultPriority is the registry priority of descriptors created without
// WithPriority.
const DefaultPriority = 10

// Pool names of the targets the instance owns or borrows.
const (
	historyName   = "taa.history"
	upsampledName = "taa.upsampled"
)

// MinRenderSize is the smallest render size the upscaler accepts. Smaller
// frames are served by the view's fallback resize.
var MinRenderSize = upscale.Sz(8, 8)

// Option configures a Descriptor.
type Option func(*Descriptor)

// WithPriority sets the registry priority.
func WithPriority(p int) Option {
	return func(d *Descriptor) { d.priority = p }
}

// Descriptor registers the temporal upscaler.
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
func (d *Descriptor) DisplayName() string { return "Temporal AA upscaler" }
func (d *Descriptor) Priority() int       { return d.priority }

// Supported reports whether the device can run the accumulation pass.
func (d *Descriptor) Supported() bool {
	if d.dev == nil {
		return false
	}
	caps := d.dev.Capabilities()
	return caps.Software || caps.SupportsCompute
}

func (d *Descriptor) Capabilities() upscale.Capabilities {
	return upscale.Capabilities{
		Temporal:            true,
		DynamicResolution:   true,
		AcceptsReactiveMask: true,
	}
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
		return nil, errors.New("taa: nil device")
	}
	return &Instance{settings: settings}, nil
}

// Cleanup is a no-op; the descriptor owns no shared resources.
func (d *Descriptor) Cleanup() {}

// history is the ping-pong pair of one array slice.
type history struct {
	cur   int
	valid bool
}

// Instance is a running temporal upscaler.
type Instance struct {
	upscale.BaseInstance

	settings *Settings
	params   upscale.InitParams
	alloc    *pool.Allocator

	histDesc render.TextureDescriptor
	targets  [2]render.Texture
	slices   []history

	exposure  float32
	lastFrame uint64
}

// MinimumRenderSize returns MinRenderSize.
func (in *Instance) MinimumRenderSize() upscale.Size { return MinRenderSize }

// Initialize acquires the history targets.
func (in *Instance) Initialize(params upscale.InitParams) error {
	in.params = params
	in.alloc = pool.NewAllocator(params.Pool, params.Device)
	in.histDesc = params.TextureDescriptor(params.DisplaySize, in.settings.historyFormat(params.HDR, params.OutputFormat))
	in.slices = make([]history, in.histDesc.Slices)

	for i := range in.targets {
		tex, err := in.acquire()
		if err != nil {
			in.Destroy()
			return fmt.Errorf("taa: history: %w", err)
		}
		in.targets[i] = tex
	}
	upscale.Logger().Debug("taa: initialized",
		slog.String("view", params.View.Name),
		slog.String("history", in.histDesc.String()))
	return nil
}

func (in *Instance) acquire() (render.Texture, error) {
	if p := in.params.Pool; p != nil {
		if tex, ok := p.TryGet(in.histDesc, historyName); ok {
			return tex, nil
		}
	}
	desc := in.histDesc
	desc.Label = historyName
	return in.params.Device.CreateTexture(desc)
}

// Dispatch accumulates one frame into history and writes the result to
// Output.
func (in *Instance) Dispatch(p *upscale.DispatchParams) error {
	if in.alloc == nil {
		return upscale.ErrNotInitialized
	}
	src, err := p.Color.Texture()
	if err != nil {
		return fmt.Errorf("taa: color: %w", err)
	}
	dst, err := p.Output.Texture()
	if err != nil {
		return fmt.Errorf("taa: output: %w", err)
	}
	if src == nil || dst == nil {
		return fmt.Errorf("taa: %w: color and output are required", upscale.ErrInvalidParams)
	}
	var reactive render.Texture
	if p.ReactiveMask.IsValid() {
		if reactive, err = p.ReactiveMask.Texture(); err != nil {
			return fmt.Errorf("taa: reactive mask: %w", err)
		}
	}

	slice := 0
	if in.params.TextureArrays {
		slice = p.ViewIndex
	}
	if slice < 0 || slice >= len(in.slices) {
		return fmt.Errorf("taa: %w: view index %d", upscale.ErrInvalidParams, p.ViewIndex)
	}

	in.alloc.BeginFrame(p.Frame)
	defer in.alloc.EndFrame()
	in.lastFrame = p.Frame

	dev := in.params.Device
	renderSize := p.RenderSizeOrColor()
	upsampled, err := in.alloc.Get(in.histDesc, upsampledName)
	if err != nil {
		return err
	}
	err = dev.Blit(src, upsampled, render.BlitOptions{
		SrcRect:  renderSize.Rect(),
		SrcSlice: slice,
		DstSlice: slice,
		Filter:   render.FilterCatmullRom,
	})
	if err != nil {
		return err
	}

	h := &in.slices[slice]
	prev, next := in.targets[h.cur], in.targets[1-h.cur]
	exposure := p.ExposureScale()
	if !h.valid || p.ResetHistory || exposure != in.exposure {
		err = copySlice(dev, upsampled, next, slice)
	} else {
		err = dev.Accumulate(prev, upsampled, reactive, next, render.AccumulateOptions{
			BlendFactor:  in.settings.blendFactor(),
			ReactiveRect: renderSize.Rect(),
			Slice:        slice,
		})
	}
	if err != nil {
		return err
	}
	h.cur, h.valid = 1-h.cur, true
	in.exposure = exposure

	return in.resolve(next, dst, p, slice)
}

// resolve writes the accumulated history to the output.
func (in *Instance) resolve(src, dst render.Texture, p *upscale.DispatchParams, slice int) error {
	dev := in.params.Device
	sameSize := src.Width() == dst.Width() && src.Height() == dst.Height()
	switch {
	case p.Sharpening && sameSize:
		return dev.Sharpen(src, dst, render.SharpenOptions{Sharpness: p.Sharpness, Slice: slice})
	case sameSize:
		return copySlice(dev, src, dst, slice)
	default:
		return dev.Blit(src, dst, render.BlitOptions{SrcSlice: slice, DstSlice: slice})
	}
}

// copySlice copies one slice between equally sized textures. Device.Copy
// would touch the history of every other view sharing the array.
func copySlice(dev render.Device, src, dst render.Texture, slice int) error {
	return dev.Blit(src, dst, render.BlitOptions{SrcSlice: slice, DstSlice: slice, Filter: render.FilterNearest})
}

// Destroy returns the history targets to the pool, or releases them when
// the pool is full.
func (in *Instance) Destroy() {
	for i, tex := range in.targets {
		if tex == nil {
			continue
		}
		if p := in.params.Pool; p == nil || !p.Add(in.histDesc, historyName, tex, in.lastFrame) {
			tex.Release()
		}
		in.targets[i] = nil
	}
	in.alloc = nil
	in.slices = nil
}

var (
	_ upscale.Descriptor = (*Descriptor)(nil)
	_ upscale.Instance   = (*Instance)(nil)
	_ upscale.Settings   = (*Settings)(nil)
)
