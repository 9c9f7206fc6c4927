// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements render.Device on a gogpu/wgpu HAL device.
//
// Every pass is a WGSL compute shader compiled to SPIR-V with naga the first
// time it is used for a destination format. Compiled pipelines are kept in an
// LRU cache. Passes are submitted one command buffer each; the transient
// uniform buffers and bind groups of a pass are freed once the queue reports
// its submission complete.
//
// # Creating a Device
//
// Hosts that already own a HAL device pass it directly:
//
//	dev, err := native.New(halDevice, halQueue)
//
// Hosts built on gogpu pass their device provider:
//
//	dev, err := native.FromProvider(app.DeviceProvider())
//
// # Formats
//
// Destinations are written as storage textures, so every texture the device
// creates is backed by a storage-capable format: R8Unorm and R16Float masks
// are stored as R32Float, sRGB and BGRA color as RGBA8Unorm. Texture.Format
// still reports the requested format. Imported host textures used as a pass
// destination must already be storage-capable.
package native
