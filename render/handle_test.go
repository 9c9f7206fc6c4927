// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func TestTextureHandleZero(t *testing.T) {
	var h TextureHandle
	if h.IsValid() {
		t.Error("zero handle should be invalid")
	}
	tex, err := h.Texture()
	if tex != nil || err != nil {
		t.Errorf("Texture() = %v, %v, want nil, nil", tex, err)
	}
	if h.NativeHandle() != 0 {
		t.Error("NativeHandle() of zero handle should be 0")
	}
	if NewTextureHandle(nil).IsValid() {
		t.Error("NewTextureHandle(nil) should be invalid")
	}
	if NewOpaqueTextureHandle(gpucontext.TextureView{}, TextureDescriptor{}, nil).IsValid() {
		t.Error("opaque handle with nil reference should be invalid")
	}
}

func TestTextureHandleConcrete(t *testing.T) {
	dev := NewSoftwareDevice()
	tex, err := dev.CreateTexture(DefaultTextureDescriptor(32, 16, gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer tex.Release()

	h := NewTextureHandle(tex)
	if !h.IsValid() || !h.IsConcrete() {
		t.Fatal("handle should be valid and concrete")
	}
	if h.Width() != 32 || h.Height() != 16 {
		t.Errorf("size = %dx%d, want 32x16", h.Width(), h.Height())
	}
	if h.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", h.Format())
	}
	got, err := h.Texture()
	if err != nil || got != tex {
		t.Errorf("Texture() = %v, %v, want the wrapped texture", got, err)
	}
	if h.NativeHandle() == 0 {
		t.Error("NativeHandle() should be non-zero for a live software texture")
	}
}

func TestTextureHandleOpaque(t *testing.T) {
	dev := NewSoftwareDevice()
	img := image.NewRGBA64(image.Rect(0, 0, 8, 8))
	ref := SoftwareView(img)
	desc := DefaultTextureDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm)

	calls := 0
	m := func(r gpucontext.TextureView, d TextureDescriptor) (Texture, error) {
		calls++
		if r != ref {
			t.Error("materializer received a different reference")
		}
		tex, err := dev.CreateTexture(d)
		if err != nil {
			return nil, err
		}
		return tex, dev.CopyFromView(r, tex)
	}

	h := NewOpaqueTextureHandle(ref, desc, m)
	if !h.IsValid() || h.IsConcrete() {
		t.Fatal("handle should be valid and opaque")
	}
	if h.Width() != 8 || h.Height() != 8 {
		t.Errorf("size = %dx%d, want 8x8", h.Width(), h.Height())
	}

	resolved, err := h.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.IsConcrete() {
		t.Error("Resolve() should return a concrete handle")
	}
	if _, err := resolved.Texture(); err != nil {
		t.Errorf("Texture() on resolved handle: %v", err)
	}
	if calls != 1 {
		t.Errorf("materializer calls = %d, want 1", calls)
	}

	if h.NativeHandle() == 0 {
		t.Error("NativeHandle() should materialize and return a handle")
	}
	if calls != 2 {
		t.Errorf("materializer calls = %d, want 2", calls)
	}
}

func TestTextureHandleOpaqueWithoutMaterializer(t *testing.T) {
	ref := SoftwareView(image.NewRGBA64(image.Rect(0, 0, 1, 1)))
	h := NewOpaqueTextureHandle(ref, DefaultTextureDescriptor(1, 1, gputypes.TextureFormatRGBA8Unorm), nil)

	if _, err := h.Texture(); !errors.Is(err, ErrNoMaterializer) {
		t.Errorf("Texture() error = %v, want ErrNoMaterializer", err)
	}
	if h.NativeHandle() != 0 {
		t.Error("NativeHandle() should be 0 when nothing resolves")
	}
}
