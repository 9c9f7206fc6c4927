// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"

	"github.com/gogpu/upscale/internal/cache"
	"github.com/gogpu/upscale/render"
)

// DefaultPipelineCacheSize bounds the compiled pipelines a Device keeps.
// Six passes in four storage formats fit without eviction.
const DefaultPipelineCacheSize = 32

// Device is a render.Device recording compute passes on a HAL device.
//
// Device is safe for concurrent use; passes are serialized.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	caps   render.DeviceCapabilities

	pipelines *cache.Cache[pipelineKey, *pipeline]
	cacheSize int

	// pending holds frees waiting for their submission to complete.
	pending    []pendingFree
	lastSubmit uint64
	passes     uint64

	live      atomic.Int64
	destroyed bool
}

type pendingFree struct {
	index uint64
	free  func()
}

// Option configures a Device.
type Option func(*Device)

// WithCapabilities overrides the reported device capabilities.
func WithCapabilities(caps render.DeviceCapabilities) Option {
	return func(d *Device) { d.caps = caps }
}

// WithPipelineCacheSize sets the number of compiled pipelines kept.
func WithPipelineCacheSize(n int) Option {
	return func(d *Device) { d.cacheSize = n }
}

// New creates a Device on a HAL device and queue owned by the caller.
// Destroy releases what the Device created, never the HAL device itself.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	d := &Device{
		device: device,
		queue:  queue,
		caps: render.DeviceCapabilities{
			MaxTextureSize:          gputypes.DefaultLimits().MaxTextureDimension2D,
			MaxTextureArrayLayers:   gputypes.DefaultLimits().MaxTextureArrayLayers,
			SupportsCompute:         true,
			SupportsStorageTextures: true,
			VendorName:              "gogpu",
			DeviceName:              "wgpu-hal",
		},
		cacheSize: DefaultPipelineCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	// The evict callback runs inside GetOrCreate or Clear, both called with
	// d.mu held.
	d.pipelines = cache.New[pipelineKey, *pipeline](d.cacheSize, func(_ pipelineKey, p *pipeline) {
		d.retireLocked(d.lastSubmit, func() { p.destroy(d.device) })
	})
	return d, nil
}

// FromProvider creates a Device from a host device provider exposing
// HalDevice() any and HalQueue() any.
func FromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHALProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHALProvider, hp.HalQueue())
	}
	d, err := New(device, queue, opts...)
	if err != nil {
		return nil, err
	}
	if info, ok := provider.(interface{ AdapterInfo() gpucontext.AdapterInfo }); ok {
		ai := info.AdapterInfo()
		if ai.Name != "" {
			d.caps.DeviceName = ai.Name
		}
		slogger().Info("native: device from provider",
			slog.String("adapter", ai.Name),
			slog.String("type", ai.Type.String()))
	}
	return d, nil
}

// Capabilities returns the device limits.
func (d *Device) Capabilities() render.DeviceCapabilities { return d.caps }

// Stats describes the state of a Device.
type Stats struct {
	LiveTextures int
	Pipelines    int
	Hits, Misses uint64
	Evictions    uint64
	PendingFrees int
	Passes       uint64
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs := d.pipelines.Stats()
	return Stats{
		LiveTextures: int(d.live.Load()),
		Pipelines:    cs.Len,
		Hits:         cs.Hits,
		Misses:       cs.Misses,
		Evictions:    cs.Evictions,
		PendingFrees: len(d.pending),
		Passes:       d.passes,
	}
}

// CreateTexture allocates a texture backed by a storage-capable format.
func (d *Device) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("native: texture %dx%d exceeds device limit %d", desc.Width, desc.Height, d.caps.MaxTextureSize)
	}
	if desc.Slices > d.caps.MaxTextureArrayLayers {
		return nil, fmt.Errorf("native: %d slices exceed device limit %d", desc.Slices, d.caps.MaxTextureArrayLayers)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDeviceDestroyed
	}

	physical, usage := d.physical(desc)
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.Slices},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        physical,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %s: %w", desc, err)
	}
	t := &Texture{dev: d, desc: desc, physical: physical, raw: raw, owned: true}
	if err := t.createViews(); err != nil {
		d.device.DestroyTexture(raw)
		return nil, err
	}
	d.live.Add(1)
	return t, nil
}

// physical returns the HAL format and usage of a texture described by desc.
func (d *Device) physical(desc render.TextureDescriptor) (gputypes.TextureFormat, gputypes.TextureUsage) {
	if desc.Format == gputypes.TextureFormatUndefined {
		return desc.DepthStencilFormat, gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment
	}
	f, _ := storageFormat(desc.Format)
	return f, gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding
}

// Import wraps a host texture. The Device creates views of it but never
// destroys the texture itself. Its format is used as is, so it can only be
// a pass destination if it is storage-capable.
func (d *Device) Import(raw hal.Texture, desc render.TextureDescriptor) (*Texture, error) {
	if raw == nil {
		return nil, render.ErrInvalidReference
	}
	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDeviceDestroyed
	}
	physical := desc.Format
	if physical == gputypes.TextureFormatUndefined {
		physical = desc.DepthStencilFormat
	}
	t := &Texture{dev: d, desc: desc, physical: physical, raw: raw}
	if err := t.createViews(); err != nil {
		return nil, err
	}
	return t, nil
}

// View returns an opaque reference to t that CopyFromView resolves.
func View(t *Texture) gpucontext.TextureView {
	if t == nil {
		return gpucontext.TextureView{}
	}
	return gpucontext.NewTextureView(unsafe.Pointer(t))
}

// WriteImage uploads img into slice 0 of an RGBA8-backed texture.
func (d *Device) WriteImage(dst render.Texture, img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	if t.physical != gputypes.TextureFormatRGBA8Unorm {
		return fmt.Errorf("%w: upload to %s", ErrUnsupportedFormat, t.physical)
	}
	b := image.Rect(0, 0, t.Width(), t.Height())
	rgba := image.NewNRGBA(b)
	draw.Draw(rgba, b, img, img.Bounds().Min, draw.Src)
	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		rgba.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(rgba.Stride), RowsPerImage: uint32(b.Dy())},
		&hal.Extent3D{Width: uint32(b.Dx()), Height: uint32(b.Dy()), DepthOrArrayLayers: 1},
	)
}

// LiveTextures returns the number of device-created textures not yet
// released.
func (d *Device) LiveTextures() int { return int(d.live.Load()) }

// Destroy waits for the queue, then releases pipelines and every pending
// transient object. Textures must be released by their owners.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("native: wait idle failed", slog.String("error", err.Error()))
	}
	for _, p := range d.pending {
		p.free()
	}
	d.pending = nil
	d.destroyed = true
	d.pipelines.Clear()
}

// retireLocked schedules free to run once submission index completes.
// Caller must hold d.mu.
func (d *Device) retireLocked(index uint64, free func()) {
	if index == 0 || d.destroyed {
		free()
		return
	}
	d.pending = append(d.pending, pendingFree{index: index, free: free})
}

// collectLocked runs the frees of completed submissions.
// Caller must hold d.mu.
func (d *Device) collectLocked() {
	if len(d.pending) == 0 {
		return
	}
	done := d.queue.PollCompleted()
	keep := d.pending[:0]
	for _, p := range d.pending {
		if p.index <= done {
			p.free()
			continue
		}
		keep = append(keep, p)
	}
	clear(d.pending[len(keep):])
	d.pending = keep
}

// textureLocked checks that t is a live texture of this device.
func (d *Device) textureLocked(t render.Texture) (*Texture, error) {
	nt, ok := t.(*Texture)
	if !ok || nt == nil || nt.dev != d {
		return nil, render.ErrForeignTexture
	}
	if nt.released {
		return nil, render.ErrReleased
	}
	return nt, nil
}

var _ render.Device = (*Device)(nil)
