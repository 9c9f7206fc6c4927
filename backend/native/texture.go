// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/upscale/render"
)

// Texture is a texture of a native Device. It keeps one 2D view per array
// slice; passes bind those views.
type Texture struct {
	dev      *Device
	desc     render.TextureDescriptor
	physical gputypes.TextureFormat
	raw      hal.Texture
	views    []hal.TextureView

	// usage is the last usage the texture was transitioned to.
	usage    gputypes.TextureUsage
	owned    bool
	released bool
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return int(t.desc.Width) }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return int(t.desc.Height) }

// Descriptor returns the normalized creation descriptor.
func (t *Texture) Descriptor() render.TextureDescriptor { return t.desc }

// Format returns the requested format. PhysicalFormat may differ.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// PhysicalFormat returns the format of the HAL texture.
func (t *Texture) PhysicalFormat() gputypes.TextureFormat { return t.physical }

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// NativeHandle returns the HAL texture handle.
func (t *Texture) NativeHandle() uintptr {
	if t.raw == nil {
		return 0
	}
	return t.raw.NativeHandle()
}

// Release frees the views, and the texture itself when the device created
// it. Destruction is deferred until submitted passes using it complete.
func (t *Texture) Release() {
	d := t.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	views, raw, owned := t.views, t.raw, t.owned
	t.views = nil
	d.retireLocked(d.lastSubmit, func() {
		for _, v := range views {
			d.device.DestroyTextureView(v)
		}
		if owned {
			d.device.DestroyTexture(raw)
		}
	})
	if owned {
		d.live.Add(-1)
	}
}

func (t *Texture) view(slice int) (hal.TextureView, error) {
	if slice < 0 || slice >= len(t.views) {
		return nil, fmt.Errorf("native: slice %d out of range [0,%d)", slice, len(t.views))
	}
	return t.views[slice], nil
}

// createViews creates one 2D view per slice.
func (t *Texture) createViews() error {
	t.views = make([]hal.TextureView, 0, t.desc.Slices)
	for i := uint32(0); i < t.desc.Slices; i++ {
		v, err := t.dev.device.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
			Label:           t.desc.Label,
			Format:          t.physical,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			BaseArrayLayer:  i,
			ArrayLayerCount: 1,
		})
		if err != nil {
			for _, created := range t.views {
				t.dev.device.DestroyTextureView(created)
			}
			t.views = nil
			return fmt.Errorf("native: view of slice %d: %w", i, err)
		}
		t.views = append(t.views, v)
	}
	return nil
}

var _ render.Texture = (*Texture)(nil)
