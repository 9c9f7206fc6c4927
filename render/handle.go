// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ErrNoMaterializer is returned when an opaque handle has no way to produce a
// concrete texture.
var ErrNoMaterializer = errors.New("render: opaque texture handle has no materializer")

// Materializer turns an opaque reference into a concrete texture, typically by
// taking a buffer from the resource pool and copying the reference into it.
type Materializer func(ref gpucontext.TextureView, desc TextureDescriptor) (Texture, error)

// TextureHandle references a render target supplied by the host for one frame.
//
// A handle is either concrete (wrapping a Texture) or opaque (wrapping a
// gpucontext.TextureView with an explicit descriptor and a Materializer).
// Handles are built fresh every frame and must not be kept across frames.
// The zero value is an invalid handle.
type TextureHandle struct {
	texture     Texture
	ref         gpucontext.TextureView
	desc        TextureDescriptor
	materialize Materializer
}

// NewTextureHandle wraps a concrete texture. Size and format are taken from it.
func NewTextureHandle(tex Texture) TextureHandle {
	if tex == nil {
		return TextureHandle{}
	}
	return TextureHandle{texture: tex, desc: tex.Descriptor()}
}

// NewOpaqueTextureHandle wraps an opaque reference. Opaque references carry no
// metadata, so the caller describes them.
func NewOpaqueTextureHandle(ref gpucontext.TextureView, desc TextureDescriptor, m Materializer) TextureHandle {
	if ref.IsNil() {
		return TextureHandle{}
	}
	return TextureHandle{ref: ref, desc: desc.Normalize(), materialize: m}
}

// IsValid reports whether the handle references anything.
func (h TextureHandle) IsValid() bool {
	return h.texture != nil || !h.ref.IsNil()
}

// IsConcrete reports whether the handle wraps a Texture directly.
func (h TextureHandle) IsConcrete() bool {
	return h.texture != nil
}

// Width returns the width in pixels.
func (h TextureHandle) Width() int { return int(h.desc.Width) }

// Height returns the height in pixels.
func (h TextureHandle) Height() int { return int(h.desc.Height) }

// Format returns the color format.
func (h TextureHandle) Format() gputypes.TextureFormat { return h.desc.Format }

// Descriptor returns the descriptor of the referenced target.
func (h TextureHandle) Descriptor() TextureDescriptor { return h.desc }

// Ref returns the opaque reference, or a nil view for concrete handles.
func (h TextureHandle) Ref() gpucontext.TextureView { return h.ref }

// Texture returns the concrete texture, materializing an opaque reference if
// needed. Every call on an opaque handle materializes again; callers that
// need the texture more than once keep the result.
func (h TextureHandle) Texture() (Texture, error) {
	if h.texture != nil {
		return h.texture, nil
	}
	if h.ref.IsNil() {
		return nil, nil
	}
	if h.materialize == nil {
		return nil, ErrNoMaterializer
	}
	return h.materialize(h.ref, h.desc)
}

// NativeHandle returns the raw device handle of the resolved texture, or 0 if
// nothing resolves.
func (h TextureHandle) NativeHandle() uintptr {
	tex, err := h.Texture()
	if err != nil || tex == nil {
		return 0
	}
	return tex.NativeHandle()
}

// Resolve returns the concrete form of h. Opaque handles are materialized
// once, so the result can be read repeatedly within the frame.
func (h TextureHandle) Resolve() (TextureHandle, error) {
	if h.texture != nil || !h.IsValid() {
		return h, nil
	}
	tex, err := h.Texture()
	if err != nil {
		return TextureHandle{}, err
	}
	return NewTextureHandle(tex), nil
}
