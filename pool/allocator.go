// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pool

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/upscale/render"
)

// allocation is a texture handed out for the current frame.
type allocation struct {
	name    string
	desc    render.TextureDescriptor
	texture render.Texture
}

// Allocator hands out frame-scoped temporaries.
//
// Textures come from the pool when a matching entry retired in an earlier
// frame exists and are created on the device otherwise. EndFrame retires
// everything handed out back into the pool. An Allocator belongs to one view
// and is not safe for concurrent use.
type Allocator struct {
	pool  *Pool
	dev   render.Device
	frame uint64
	live  []allocation
}

// NewAllocator creates an allocator. A nil pool makes every temporary a
// fresh allocation released at EndFrame.
func NewAllocator(p *Pool, dev render.Device) *Allocator {
	return &Allocator{pool: p, dev: dev}
}

// BeginFrame sets the frame the following allocations belong to.
func (a *Allocator) BeginFrame(frame uint64) {
	a.frame = frame
}

// Frame returns the current frame.
func (a *Allocator) Frame() uint64 { return a.frame }

// Get returns a temporary texture matching desc, bound under name.
func (a *Allocator) Get(desc render.TextureDescriptor, name string) (render.Texture, error) {
	desc = desc.Normalize()
	if a.pool != nil {
		if tex, ok := a.pool.TryGetForFrame(desc, name, a.frame); ok {
			a.live = append(a.live, allocation{name: name, desc: desc, texture: tex})
			return tex, nil
		}
	}
	if desc.Label == "" {
		desc.Label = name
	}
	tex, err := a.dev.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("pool: allocate %q (%s): %w", name, desc, err)
	}
	a.live = append(a.live, allocation{name: name, desc: desc, texture: tex})
	return tex, nil
}

// Materializer returns a render.Materializer that copies opaque references
// into temporaries bound under name.
func (a *Allocator) Materializer(name string) render.Materializer {
	return func(ref gpucontext.TextureView, desc render.TextureDescriptor) (render.Texture, error) {
		tex, err := a.Get(desc, name)
		if err != nil {
			return nil, err
		}
		if err := a.dev.CopyFromView(ref, tex); err != nil {
			return nil, fmt.Errorf("pool: materialize %q: %w", name, err)
		}
		return tex, nil
	}
}

// Retire hands tex back before the end of the frame. It is pooled under the
// current frame, so no allocation of this frame gets it again. Retire
// reports whether tex was allocated by a.
func (a *Allocator) Retire(tex render.Texture) bool {
	for i, al := range a.live {
		if al.texture != tex {
			continue
		}
		a.live = append(a.live[:i], a.live[i+1:]...)
		if a.pool == nil {
			al.texture.Release()
			return true
		}
		if err := a.pool.Put(al.desc, al.name, al.texture, a.frame); err != nil {
			slogger().Debug("pool: releasing retired texture", slog.String("error", err.Error()))
			al.texture.Release()
		}
		return true
	}
	return false
}

// Live returns the number of temporaries handed out this frame.
func (a *Allocator) Live() int { return len(a.live) }

// EndFrame retires every temporary into the pool. Textures the pool rejects
// are released. It returns the number of released textures.
func (a *Allocator) EndFrame() int {
	released := 0
	for _, al := range a.live {
		if a.pool != nil && a.pool.Add(al.desc, al.name, al.texture, a.frame) {
			continue
		}
		al.texture.Release()
		released++
	}
	if released > 0 && a.pool != nil {
		slogger().Debug("pool: released temporaries the pool rejected",
			slog.Int("count", released),
			slog.Uint64("frame", a.frame))
	}
	clear(a.live)
	a.live = a.live[:0]
	return released
}
