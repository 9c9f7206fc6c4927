// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pool

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/upscale/render"
)

func TestAllocatorReusesAcrossFrames(t *testing.T) {
	dev := render.NewSoftwareDevice()
	p := New()
	a := NewAllocator(p, dev)
	desc := colorDesc(8, 8)

	a.BeginFrame(1)
	first, err := a.Get(desc, "tmp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Live() != 1 {
		t.Errorf("Live() = %d, want 1", a.Live())
	}
	if released := a.EndFrame(); released != 0 {
		t.Errorf("EndFrame released %d, want 0", released)
	}
	if p.Len() != 1 {
		t.Fatalf("pool Len() = %d, want 1", p.Len())
	}

	a.BeginFrame(2)
	second, err := a.Get(desc, "tmp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second != first {
		t.Error("allocator should reuse the texture retired last frame")
	}
	a.EndFrame()
	if dev.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want 1", dev.LiveTextures())
	}
}

func TestAllocatorSameFrameDoesNotReuse(t *testing.T) {
	dev := render.NewSoftwareDevice()
	p := New()
	desc := colorDesc(8, 8)

	// Another view retired a texture in frame 3.
	retired, _ := dev.CreateTexture(desc)
	p.Add(desc, "tmp", retired, 3)

	a := NewAllocator(p, dev)
	a.BeginFrame(3)
	got, err := a.Get(desc, "tmp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == retired {
		t.Error("texture retired in the current frame must not be handed out")
	}
	a.EndFrame()
}

func TestAllocatorReleasesRejected(t *testing.T) {
	dev := render.NewSoftwareDevice()
	p := New(WithCapacity(1))
	a := NewAllocator(p, dev)

	a.BeginFrame(1)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := a.Get(colorDesc(4, 4), name); err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
	}
	if released := a.EndFrame(); released != 2 {
		t.Errorf("EndFrame released %d, want 2", released)
	}
	if dev.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want 1", dev.LiveTextures())
	}
}

func TestAllocatorWithoutPool(t *testing.T) {
	dev := render.NewSoftwareDevice()
	a := NewAllocator(nil, dev)
	if _, err := a.Get(colorDesc(4, 4), "tmp"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if released := a.EndFrame(); released != 1 {
		t.Errorf("EndFrame released %d, want 1", released)
	}
	if dev.LiveTextures() != 0 {
		t.Errorf("LiveTextures() = %d, want 0", dev.LiveTextures())
	}
}

func TestAllocatorMaterializer(t *testing.T) {
	dev := render.NewSoftwareDevice()
	a := NewAllocator(New(), dev)
	a.BeginFrame(1)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{255, 255, 255, 255})
	h := render.NewOpaqueTextureHandle(render.SoftwareView(img), colorDesc(4, 4), a.Materializer("color"))

	tex, err := h.Texture()
	if err != nil {
		t.Fatalf("Texture: %v", err)
	}
	st := tex.(*render.SoftwareTexture)
	if c := st.Image(0).RGBA64At(2, 2); c.R != 0xffff {
		t.Errorf("materialized pixel = %v, want white", c)
	}
	if a.Live() != 1 {
		t.Errorf("Live() = %d, want 1", a.Live())
	}
	a.EndFrame()
}

func TestAllocatorRetire(t *testing.T) {
	dev := render.NewSoftwareDevice()
	p := New()
	a := NewAllocator(p, dev)
	desc := colorDesc(4, 4)

	a.BeginFrame(2)
	tex, err := a.Get(desc, "tmp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !a.Retire(tex) {
		t.Fatal("Retire should accept an allocated texture")
	}
	if a.Retire(tex) {
		t.Error("second Retire should report false")
	}
	if a.Live() != 0 || p.Len() != 1 {
		t.Errorf("Live() = %d, pool Len() = %d, want 0, 1", a.Live(), p.Len())
	}

	// Retired this frame, so the same frame allocates a new one.
	again, err := a.Get(desc, "tmp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again == tex {
		t.Error("texture retired this frame must not be handed out again")
	}
	a.EndFrame()
}
