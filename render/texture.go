// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// TextureDescriptor describes a render target.
//
// Every field that changes the memory layout of the target takes part in the
// pool key, so two descriptors that compare equal after Normalize are
// interchangeable.
type TextureDescriptor struct {
	// Label is an optional debug label. It is not part of the pool key.
	Label string

	// Width and Height are the texture size in pixels.
	Width  uint32
	Height uint32

	// Slices is the array layer count. Use 1 for regular 2D textures.
	Slices uint32

	// Format is the color format. TextureFormatUndefined for depth-only
	// targets.
	Format gputypes.TextureFormat

	// DepthStencilFormat is the depth/stencil format, or
	// TextureFormatUndefined for color targets.
	DepthStencilFormat gputypes.TextureFormat

	// Dimension is the view dimension: 2D or 2DArray.
	Dimension gputypes.TextureViewDimension

	// MipLevelCount is the number of mip levels. Use 1 for no mipmaps.
	MipLevelCount uint32

	// AutoGenerateMips requests mip generation after writes.
	AutoGenerateMips bool

	// RandomWrite requests storage (unordered access) binding.
	RandomWrite bool

	// DynamicScale marks targets that follow dynamic resolution scaling.
	DynamicScale bool

	// AlphaUpscale marks targets that carry an upscaled alpha channel.
	AlphaUpscale bool
}

// DefaultTextureDescriptor returns a TextureDescriptor with sensible defaults.
// Only Width, Height, and Format need to be set.
func DefaultTextureDescriptor(width, height uint32, format gputypes.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Width:         width,
		Height:        height,
		Slices:        1,
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		MipLevelCount: 1,
	}
}

// Normalize fills zero values with their defaults.
func (d TextureDescriptor) Normalize() TextureDescriptor {
	if d.Slices == 0 {
		d.Slices = 1
	}
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	if d.Dimension == gputypes.TextureViewDimensionUndefined {
		if d.Slices > 1 {
			d.Dimension = gputypes.TextureViewDimension2DArray
		} else {
			d.Dimension = gputypes.TextureViewDimension2D
		}
	}
	return d
}

// Validate reports descriptor errors.
func (d TextureDescriptor) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("render: invalid texture size %dx%d", d.Width, d.Height)
	}
	if d.Format == gputypes.TextureFormatUndefined && d.DepthStencilFormat == gputypes.TextureFormatUndefined {
		return fmt.Errorf("render: texture %q has no format", d.Label)
	}
	if d.Format.IsSrgb() && d.RandomWrite {
		return fmt.Errorf("render: sRGB format %s cannot be written randomly", d.Format)
	}
	return nil
}

// Usage returns the texture usage flags implied by the descriptor.
func (d TextureDescriptor) Usage() gputypes.TextureUsage {
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if d.RandomWrite {
		usage |= gputypes.TextureUsageStorageBinding
	} else {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	return usage
}

// GPU converts the descriptor to its WebGPU form.
func (d TextureDescriptor) GPU() gputypes.TextureDescriptor {
	d = d.Normalize()
	format := d.Format
	if format == gputypes.TextureFormatUndefined {
		format = d.DepthStencilFormat
	}
	return gputypes.TextureDescriptor{
		Label:         d.Label,
		Size:          gputypes.Extent3D{Width: d.Width, Height: d.Height, DepthOrArrayLayers: d.Slices},
		MipLevelCount: d.MipLevelCount,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         d.Usage(),
	}
}

// String returns a short human readable form used in debug dumps.
func (d TextureDescriptor) String() string {
	s := fmt.Sprintf("%dx%d %s", d.Width, d.Height, d.Format)
	if d.Slices > 1 {
		s += fmt.Sprintf(" x%d", d.Slices)
	}
	if d.RandomWrite {
		s += " rw"
	}
	return s
}

// Texture is a concrete, directly addressable render target.
//
// Width and Height come from gpucontext.Texture so host code can treat a
// Texture like any other gogpu texture.
type Texture interface {
	gpucontext.Texture

	// Descriptor returns the normalized descriptor the texture was created with.
	Descriptor() TextureDescriptor

	// Format returns the color format.
	Format() gputypes.TextureFormat

	// NativeHandle returns the raw device handle, or 0 if there is none.
	NativeHandle() uintptr

	// Release frees the texture. Release is idempotent.
	Release()
}
