// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"
)

func TestTextureDescriptorDefault(t *testing.T) {
	desc := DefaultTextureDescriptor(256, 128, gputypes.TextureFormatRGBA8Unorm)

	want := TextureDescriptor{
		Width:         256,
		Height:        128,
		Slices:        1,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		MipLevelCount: 1,
	}
	if diff := cmp.Diff(want, desc); diff != "" {
		t.Errorf("DefaultTextureDescriptor() mismatch (-want +got):\n%s", diff)
	}
}

func TestTextureDescriptorNormalize(t *testing.T) {
	tests := []struct {
		name    string
		desc    TextureDescriptor
		slices  uint32
		mips    uint32
		viewDim gputypes.TextureViewDimension
	}{
		{"zero", TextureDescriptor{Width: 4, Height: 4}, 1, 1, gputypes.TextureViewDimension2D},
		{"array", TextureDescriptor{Width: 4, Height: 4, Slices: 2}, 2, 1, gputypes.TextureViewDimension2DArray},
		{"explicit", TextureDescriptor{Width: 4, Height: 4, Slices: 1, MipLevelCount: 3, Dimension: gputypes.TextureViewDimension2DArray}, 1, 3, gputypes.TextureViewDimension2DArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.desc.Normalize()
			if got.Slices != tt.slices {
				t.Errorf("Slices = %d, want %d", got.Slices, tt.slices)
			}
			if got.MipLevelCount != tt.mips {
				t.Errorf("MipLevelCount = %d, want %d", got.MipLevelCount, tt.mips)
			}
			if got.Dimension != tt.viewDim {
				t.Errorf("Dimension = %v, want %v", got.Dimension, tt.viewDim)
			}
		})
	}
}

func TestTextureDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    TextureDescriptor
		wantErr bool
	}{
		{"valid", DefaultTextureDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm), false},
		{"zero width", DefaultTextureDescriptor(0, 8, gputypes.TextureFormatRGBA8Unorm), true},
		{"no format", TextureDescriptor{Width: 8, Height: 8}, true},
		{"depth only", TextureDescriptor{Width: 8, Height: 8, DepthStencilFormat: gputypes.TextureFormatDepth32Float}, false},
		{"srgb storage", TextureDescriptor{Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8UnormSrgb, RandomWrite: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTextureDescriptorGPU(t *testing.T) {
	desc := DefaultTextureDescriptor(64, 32, gputypes.TextureFormatRGBA16Float)
	desc.Slices = 2
	desc.RandomWrite = true

	gpu := desc.GPU()
	if gpu.Size != (gputypes.Extent3D{Width: 64, Height: 32, DepthOrArrayLayers: 2}) {
		t.Errorf("Size = %+v, want 64x32x2", gpu.Size)
	}
	if !gpu.Usage.Contains(gputypes.TextureUsageStorageBinding) {
		t.Error("random-write descriptor should request storage binding")
	}
	if gpu.Usage.Contains(gputypes.TextureUsageRenderAttachment) {
		t.Error("random-write descriptor should not request render attachment")
	}
	if gpu.Dimension != gputypes.TextureDimension2D {
		t.Errorf("Dimension = %v, want 2D", gpu.Dimension)
	}
}

func TestAutoReactiveFlags(t *testing.T) {
	f := DefaultAutoReactiveFlags
	if !f.Has(ApplyTonemap | ApplyThreshold) {
		t.Error("default flags should tonemap and threshold")
	}
	if f.Has(ApplyInverseTonemap) {
		t.Error("default flags should not inverse tonemap")
	}

	p := DefaultReactiveMaskParams()
	if p.Scale != 0.9 || p.CutoffThreshold != 0.05 || p.BinaryValue != 0.5 {
		t.Errorf("DefaultReactiveMaskParams() = %+v", p)
	}
}

func TestFilterString(t *testing.T) {
	tests := []struct {
		f    Filter
		want string
	}{
		{FilterBilinear, "Bilinear"},
		{FilterNearest, "Nearest"},
		{FilterCatmullRom, "CatmullRom"},
		{Filter(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("Filter(%d).String() = %q, want %q", tt.f, got, tt.want)
		}
	}
}
