// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
)

func newMask(t *testing.T, dev *SoftwareDevice, w, h int, v float32) *SoftwareTexture {
	t.Helper()
	tex, err := dev.CreateTexture(DefaultTextureDescriptor(uint32(w), uint32(h), gputypes.TextureFormatR8Unorm))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := dev.Clear(tex, [4]float32{v, v, v, 1}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	return tex.(*SoftwareTexture)
}

func red(tex *SoftwareTexture, x, y int) float32 {
	return texel(tex.Image(0), x, y)[0]
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1.0/1024
}

func TestSoftwareDeviceCreateTexture(t *testing.T) {
	dev := NewSoftwareDevice()

	tex, err := dev.CreateTexture(TextureDescriptor{Width: 4, Height: 2, Slices: 3, Format: gputypes.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	st := tex.(*SoftwareTexture)
	if st.Descriptor().Dimension != gputypes.TextureViewDimension2DArray {
		t.Errorf("Dimension = %v, want 2DArray", st.Descriptor().Dimension)
	}
	for i := 0; i < 3; i++ {
		if st.Image(i) == nil {
			t.Errorf("Image(%d) = nil", i)
		}
	}
	if st.Image(3) != nil {
		t.Error("Image(3) should be nil")
	}
	if dev.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want 1", dev.LiveTextures())
	}

	tex.Release()
	tex.Release()
	if dev.LiveTextures() != 0 {
		t.Errorf("LiveTextures() after release = %d, want 0", dev.LiveTextures())
	}
	if tex.NativeHandle() != 0 {
		t.Error("NativeHandle() after release should be 0")
	}
	if err := dev.Clear(tex, [4]float32{}); !errors.Is(err, ErrReleased) {
		t.Errorf("Clear on released texture = %v, want ErrReleased", err)
	}

	if _, err := dev.CreateTexture(DefaultTextureDescriptor(1<<15, 1, gputypes.TextureFormatRGBA8Unorm)); err == nil {
		t.Error("CreateTexture beyond MaxTextureSize should fail")
	}
}

func TestSoftwareDeviceForeignTexture(t *testing.T) {
	a, b := NewSoftwareDevice(), NewSoftwareDevice()
	ta := newMask(t, a, 2, 2, 0)
	tb := newMask(t, b, 2, 2, 0)

	if err := a.Copy(tb, ta); !errors.Is(err, ErrForeignTexture) {
		t.Errorf("Copy with foreign source = %v, want ErrForeignTexture", err)
	}
}

func TestSoftwareDeviceClearAndCopy(t *testing.T) {
	dev := NewSoftwareDevice()
	src := newMask(t, dev, 4, 4, 0.25)
	dst := newMask(t, dev, 4, 4, 0)

	if err := dev.Copy(src, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := red(dst, x, y); !near(got, 0.25) {
				t.Fatalf("dst(%d,%d) = %v, want 0.25", x, y, got)
			}
		}
	}
}

func TestSoftwareDeviceMergeMasks(t *testing.T) {
	dev := NewSoftwareDevice()
	dst := newMask(t, dev, 4, 4, 0)
	a := newMask(t, dev, 4, 4, 0.25)
	b := newMask(t, dev, 4, 4, 0.5)
	c := newMask(t, dev, 2, 2, 0.5)

	tests := []struct {
		name string
		srcs []Texture
		want float32
	}{
		{"two", []Texture{a, b}, 1 - 0.75*0.5},
		{"three", []Texture{a, b, c}, 1 - 0.75*0.5*0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := dev.MergeMasks(dst, tt.srcs); err != nil {
				t.Fatalf("MergeMasks: %v", err)
			}
			if got := red(dst, 0, 0); !near(got, tt.want) {
				t.Errorf("merged(0,0) = %v, want %v", got, tt.want)
			}
			if got := red(dst, 0, 0); near(got, 0.25) || near(got, 0.5) {
				t.Errorf("merged(0,0) = %v equals a single input", got)
			}
		})
	}

	// c only covers the top-left quadrant.
	if got := red(dst, 3, 3); !near(got, 1-0.75*0.5) {
		t.Errorf("merged(3,3) = %v, want %v", got, 1-0.75*0.5)
	}

	if err := dev.MergeMasks(dst, []Texture{a}); !errors.Is(err, ErrMergeInputs) {
		t.Errorf("MergeMasks(1 source) = %v, want ErrMergeInputs", err)
	}
	if err := dev.MergeMasks(dst, []Texture{a, b, c, a, b}); !errors.Is(err, ErrMergeInputs) {
		t.Errorf("MergeMasks(5 sources) = %v, want ErrMergeInputs", err)
	}
}

func TestSoftwareDeviceBlit(t *testing.T) {
	dev := NewSoftwareDevice()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}
	src, err := dev.NewTextureFromImage(img, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("NewTextureFromImage: %v", err)
	}
	dstTex, err := dev.CreateTexture(DefaultTextureDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	dst := dstTex.(*SoftwareTexture)

	// Only the red half is read and stretched over the whole destination.
	err = dev.Blit(src, dst, BlitOptions{SrcRect: image.Rect(0, 0, 2, 4), Filter: FilterNearest})
	if err != nil {
		t.Fatalf("Blit: %v", err)
	}
	for _, p := range []image.Point{{0, 0}, {7, 7}, {4, 3}} {
		got := texel(dst.Image(0), p.X, p.Y)
		if !near(got[0], 1) || !near(got[2], 0) {
			t.Errorf("dst%v = %v, want red", p, got)
		}
	}

	err = dev.Blit(src, dst, BlitOptions{SrcRect: image.Rect(10, 10, 20, 20)})
	if err == nil {
		t.Error("Blit with a source rectangle outside the texture should fail")
	}
}

func TestSoftwareDeviceCopyFromView(t *testing.T) {
	dev := NewSoftwareDevice()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{0, 255, 0, 255})
	dst := newMask(t, dev, 2, 2, 0)

	if err := dev.CopyFromView(SoftwareView(img), dst); err != nil {
		t.Fatalf("CopyFromView: %v", err)
	}
	if got := texel(dst.Image(0), 1, 1); !near(got[1], 1) {
		t.Errorf("dst(1,1) = %v, want green", got)
	}
	if err := dev.CopyFromView(SoftwareView(nil), dst); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("CopyFromView(nil view) = %v, want ErrInvalidReference", err)
	}
}

func TestReactiveValue(t *testing.T) {
	p := DefaultReactiveMaskParams()
	same := [4]float32{0.3, 0.3, 0.3, 1}
	if got := ReactiveValue(same, same, p); got != 0 {
		t.Errorf("ReactiveValue(equal colors) = %v, want 0", got)
	}

	bright := [4]float32{1, 1, 1, 1}
	dark := [4]float32{0, 0, 0, 1}
	if got := ReactiveValue(dark, bright, p); got != p.BinaryValue {
		t.Errorf("ReactiveValue(large delta) = %v, want %v", got, p.BinaryValue)
	}

	p.Flags = UseComponentsMax
	p.Scale = 1
	if got := ReactiveValue(dark, [4]float32{0.2, 0.4, 0.1, 1}, p); !near(got, 0.4) {
		t.Errorf("ReactiveValue(components max) = %v, want 0.4", got)
	}
}

func TestSoftwareDeviceGenerateReactiveMask(t *testing.T) {
	dev := NewSoftwareDevice()
	opaque := newMask(t, dev, 4, 4, 0)
	final := newMask(t, dev, 4, 4, 1)
	dst := newMask(t, dev, 4, 4, 0)

	params := DefaultReactiveMaskParams()
	params.RenderSize = image.Pt(2, 2)
	if err := dev.GenerateReactiveMask(opaque, final, dst, params); err != nil {
		t.Fatalf("GenerateReactiveMask: %v", err)
	}
	if got := red(dst, 0, 0); !near(got, 0.5) {
		t.Errorf("mask(0,0) = %v, want 0.5", got)
	}
	if got := red(dst, 3, 3); got != 0 {
		t.Errorf("mask(3,3) outside render size = %v, want 0", got)
	}
}

func TestSoftwareDeviceSharpen(t *testing.T) {
	dev := NewSoftwareDevice()

	flat := newMask(t, dev, 4, 4, 0.5)
	out := newMask(t, dev, 4, 4, 0)
	if err := dev.Sharpen(flat, out, SharpenOptions{Sharpness: 1}); err != nil {
		t.Fatalf("Sharpen: %v", err)
	}
	if got := red(out, 1, 1); !near(got, 0.5) {
		t.Errorf("sharpened flat image = %v, want 0.5", got)
	}

	// A bright pixel on a dark background gets brighter relative to its
	// blurred neighbourhood, never darker than the source.
	edge := newMask(t, dev, 3, 3, 0.2)
	setTexel(edge.Image(0), 1, 1, [4]float32{0.6, 0.6, 0.6, 1})
	out3 := newMask(t, dev, 3, 3, 0)
	if err := dev.Sharpen(edge, out3, SharpenOptions{Sharpness: 1}); err != nil {
		t.Fatalf("Sharpen: %v", err)
	}
	if got := red(out3, 1, 1); got < 0.6-1.0/1024 {
		t.Errorf("sharpened center = %v, want >= 0.6", got)
	}

	if err := dev.Sharpen(flat, flat, SharpenOptions{}); err == nil {
		t.Error("Sharpen in place should fail")
	}
	if err := dev.Sharpen(flat, out3, SharpenOptions{}); err == nil {
		t.Error("Sharpen with mismatched sizes should fail")
	}
}

func TestSharpnessScale(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, 0.25},
		{0.5, 0.5},
		{1, 1},
		{2, 1},
		{-1, 0.25},
	}
	for _, tt := range tests {
		if got := SharpnessScale(tt.in); !near(got, tt.want) {
			t.Errorf("SharpnessScale(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAccumulateWeight(t *testing.T) {
	tests := []struct {
		blend, reactive, want float32
	}{
		{0.1, 0, 0.1},
		{0.1, 1, 1},
		{0.5, 0.5, 0.75},
		{-1, 0, 0},
		{0.2, 2, 1},
	}
	for _, tt := range tests {
		if got := AccumulateWeight(tt.blend, tt.reactive); !near(got, tt.want) {
			t.Errorf("AccumulateWeight(%v, %v) = %v, want %v", tt.blend, tt.reactive, got, tt.want)
		}
	}
}

func TestSoftwareDeviceAccumulate(t *testing.T) {
	dev := NewSoftwareDevice()
	history := newMask(t, dev, 4, 4, 0)
	current := newMask(t, dev, 4, 4, 1)
	dst := newMask(t, dev, 4, 4, 0)

	if err := dev.Accumulate(history, current, nil, dst, AccumulateOptions{BlendFactor: 0.25}); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	if got := red(dst, 1, 1); !near(got, 0.25) {
		t.Errorf("without mask = %v, want 0.25", got)
	}

	// A full reactive mask on the left half replaces history there.
	reactive := newMask(t, dev, 2, 2, 0)
	reactive.Image(0).SetRGBA64(0, 0, color.RGBA64{R: 0xffff, A: 0xffff})
	reactive.Image(0).SetRGBA64(0, 1, color.RGBA64{R: 0xffff, A: 0xffff})
	if err := dev.Accumulate(history, current, reactive, dst, AccumulateOptions{BlendFactor: 0.25}); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	if got := red(dst, 0, 3); !near(got, 1) {
		t.Errorf("reactive texel = %v, want 1", got)
	}
	if got := red(dst, 3, 0); !near(got, 0.25) {
		t.Errorf("non-reactive texel = %v, want 0.25", got)
	}

	small := newMask(t, dev, 2, 2, 0)
	if err := dev.Accumulate(small, current, nil, dst, AccumulateOptions{}); err == nil {
		t.Error("Accumulate with mismatched sizes should fail")
	}
}

// gradient fills an RGBA16Float texture with a deterministic pattern.
func gradient(t *testing.T, dev *SoftwareDevice, w, h int, seed int) *SoftwareTexture {
	t.Helper()
	tex, err := dev.CreateTexture(DefaultTextureDescriptor(uint32(w), uint32(h), gputypes.TextureFormatRGBA16Float))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	st := tex.(*SoftwareTexture)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32((x*7+y*13+seed)%64) / 63
			setTexel(st.Image(0), x, y, [4]float32{v, 1 - v, v / 2, 1})
		}
	}
	return st
}

func TestSoftwareDeviceWorkersMatchSerial(t *testing.T) {
	const w, h = 67, 90

	run := func(dev *SoftwareDevice) *image.RGBA64 {
		a := gradient(t, dev, w, h, 0)
		b := gradient(t, dev, w, h, 5)
		mask := newMask(t, dev, w, h, 0)
		merged := newMask(t, dev, w, h, 0)
		sharp := gradient(t, dev, w, h, 0)
		out := gradient(t, dev, w, h, 0)

		if err := dev.GenerateReactiveMask(a, b, mask, DefaultReactiveMaskParams()); err != nil {
			t.Fatalf("GenerateReactiveMask: %v", err)
		}
		if err := dev.MergeMasks(merged, []Texture{mask, mask}); err != nil {
			t.Fatalf("MergeMasks: %v", err)
		}
		if err := dev.Sharpen(b, sharp, SharpenOptions{Sharpness: 0.8}); err != nil {
			t.Fatalf("Sharpen: %v", err)
		}
		if err := dev.Accumulate(a, sharp, merged, out, AccumulateOptions{BlendFactor: 0.1}); err != nil {
			t.Fatalf("Accumulate: %v", err)
		}
		return out.Image(0)
	}

	serial := run(NewSoftwareDevice())

	dev := NewSoftwareDevice(WithWorkers(4))
	defer dev.Close()
	par := run(dev)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if s, p := serial.RGBA64At(x, y), par.RGBA64At(x, y); s != p {
				t.Fatalf("texel (%d,%d): serial %v, parallel %v", x, y, s, p)
			}
		}
	}
}

func TestSoftwareDeviceClosedWorkersRunInline(t *testing.T) {
	dev := NewSoftwareDevice(WithWorkers(2))
	dev.Close()

	src := newMask(t, dev, 40, 40, 0.5)
	dst := newMask(t, dev, 40, 40, 0)
	if err := dev.Sharpen(src, dst, SharpenOptions{Sharpness: 1}); err != nil {
		t.Fatalf("Sharpen after Close: %v", err)
	}
	if got := red(dst, 20, 39); !near(got, 0.5) {
		t.Errorf("sharpened flat image = %v, want 0.5", got)
	}
}
