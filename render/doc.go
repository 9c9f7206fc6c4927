// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the GPU boundary of the upscaling orchestrator.
//
// The orchestrator never creates a GPU device. The host application injects a
// Device, and every buffer the host hands over per frame is wrapped in a
// TextureHandle.
//
// # Core Types
//
//   - TextureDescriptor: shape and format of a render target, used for
//     allocation and as the pool key
//   - Texture: a concrete, directly addressable render target
//   - TextureHandle: either a Texture or an opaque gpucontext.TextureView plus
//     a descriptor and a Materializer that copies it into a Texture on demand
//   - Device: texture allocation and the auxiliary passes the orchestrator
//     issues itself (fallback resize, mask clear/copy/merge, auto reactive
//     mask, sharpening)
//
// # Device Implementations
//
//   - SoftwareDevice: CPU device backed by *image.RGBA64 slices and
//     golang.org/x/image/draw scalers
//   - backend/native.Device: wgpu HAL device running WGSL compute passes
//
// # Opaque References
//
// Host renderers that cannot expose a Texture pass a gpucontext.TextureView.
// Such references carry no metadata, so the host supplies the descriptor:
//
//	ref := render.SoftwareView(img)
//	desc := render.DefaultTextureDescriptor(1280, 720, gputypes.TextureFormatRGBA8Unorm)
//	h := render.NewOpaqueTextureHandle(ref, desc, alloc.Materializer("color"))
//	tex, err := h.Texture() // copied into a pooled texture
package render
