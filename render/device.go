// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"

	"github.com/gogpu/gpucontext"
)

// DeviceHandle provides GPU device access from the host application.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider. The native backend
// accepts one to build its Device from the host's HAL device and queue.
type DeviceHandle = gpucontext.DeviceProvider

// Errors returned by Device implementations.
var (
	// ErrReleased is returned when a pass touches a released texture.
	ErrReleased = errors.New("render: texture released")

	// ErrForeignTexture is returned when a texture created by another
	// device is passed to a pass.
	ErrForeignTexture = errors.New("render: texture belongs to another device")

	// ErrInvalidReference is returned when an opaque reference cannot be
	// resolved by the device.
	ErrInvalidReference = errors.New("render: invalid opaque texture reference")

	// ErrMergeInputs is returned when MergeMasks is called with fewer than
	// two or more than four sources.
	ErrMergeInputs = errors.New("render: mask merge needs 2 to 4 sources")
)

// MaxMergeInputs is the largest number of masks a single merge pass combines.
const MaxMergeInputs = 4

// Device is the GPU surface the orchestrator and the reference algorithms
// record their work against.
//
// All passes are recorded synchronously in call order. A Device is used from
// a single goroutine per view.
type Device interface {
	// Capabilities reports live device limits. Descriptors consult it from
	// their Supported method.
	Capabilities() DeviceCapabilities

	// CreateTexture allocates a texture matching desc.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CopyFromView copies an opaque host reference into dst.
	CopyFromView(src gpucontext.TextureView, dst Texture) error

	// Copy copies the overlapping region of every slice of src into dst.
	Copy(src, dst Texture) error

	// Blit resamples a region of src onto the whole of dst.
	Blit(src, dst Texture, opts BlitOptions) error

	// Clear fills every slice of dst with value.
	Clear(dst Texture, value [4]float32) error

	// MergeMasks combines 2 to 4 masks into dst. Every channel is merged as
	// 1 - prod(1 - m), so overlapping contributions accumulate instead of
	// overwriting each other.
	MergeMasks(dst Texture, srcs []Texture) error

	// GenerateReactiveMask derives a reactive mask from the difference
	// between the opaque-only color and the final color.
	GenerateReactiveMask(opaque, color, dst Texture, params ReactiveMaskParams) error

	// Sharpen applies contrast adaptive sharpening from src to dst.
	Sharpen(src, dst Texture, opts SharpenOptions) error

	// Accumulate blends current into history and writes the result to dst.
	// A non-nil reactive mask raises the weight of current per texel.
	Accumulate(history, current, reactive, dst Texture, opts AccumulateOptions) error
}

// DeviceCapabilities describes the capabilities of a device.
type DeviceCapabilities struct {
	// MaxTextureSize is the maximum texture dimension supported.
	MaxTextureSize uint32

	// MaxTextureArrayLayers is the maximum number of array slices.
	MaxTextureArrayLayers uint32

	// SupportsCompute indicates if compute passes can be recorded.
	SupportsCompute bool

	// SupportsStorageTextures indicates if random-write targets are available.
	SupportsStorageTextures bool

	// VendorName is the GPU vendor name.
	VendorName string

	// DeviceName is the GPU device name.
	DeviceName string

	// Software is set for CPU devices.
	Software bool
}

// Filter selects the resampling kernel of a Blit.
type Filter uint8

const (
	// FilterBilinear is the default resampling filter.
	FilterBilinear Filter = iota

	// FilterNearest picks the closest source texel.
	FilterNearest

	// FilterCatmullRom is a bicubic filter. Devices without a bicubic pass
	// fall back to bilinear.
	FilterCatmullRom
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterBilinear:
		return "Bilinear"
	case FilterNearest:
		return "Nearest"
	case FilterCatmullRom:
		return "CatmullRom"
	default:
		return "Unknown"
	}
}

// BlitOptions configures a resampling copy.
type BlitOptions struct {
	// SrcRect is the region of the source to read. The zero rectangle means
	// the whole source.
	SrcRect image.Rectangle

	// SrcSlice and DstSlice select the array slices.
	SrcSlice int
	DstSlice int

	Filter Filter
}

// SharpenOptions configures a sharpening pass.
type SharpenOptions struct {
	// Sharpness in [0,1]; 0 leaves the image nearly untouched.
	Sharpness float32
	Slice     int
}

// AccumulateOptions configures a temporal accumulation pass.
type AccumulateOptions struct {
	// BlendFactor is the weight of the current frame in [0,1].
	BlendFactor float32

	// ReactiveRect is the region of the reactive mask covering dst. The zero
	// rectangle means the whole mask.
	ReactiveRect image.Rectangle
	Slice        int
}

// AccumulateWeight returns the weight of the current frame for a texel with
// the given reactive value.
func AccumulateWeight(blend, reactive float32) float32 {
	b := min(max(blend, 0), 1)
	r := min(max(reactive, 0), 1)
	return b + r*(1-b)
}

// AutoReactiveFlags selects the steps of the auto reactive mask pass.
type AutoReactiveFlags uint32

const (
	// ApplyTonemap compresses both colors with a reversible tonemap first.
	ApplyTonemap AutoReactiveFlags = 1 << iota
	// ApplyInverseTonemap expands both colors with the inverse tonemap.
	ApplyInverseTonemap
	// ApplyThreshold turns the mask binary using CutoffThreshold and BinaryValue.
	ApplyThreshold
	// UseComponentsMax uses the largest channel difference instead of the
	// length of the difference vector.
	UseComponentsMax
)

// DefaultAutoReactiveFlags is the flag set used when none is configured.
const DefaultAutoReactiveFlags = ApplyTonemap | ApplyThreshold | UseComponentsMax

// Has reports whether every flag in mask is set.
func (f AutoReactiveFlags) Has(mask AutoReactiveFlags) bool {
	return f&mask == mask
}

// ReactiveMaskParams configures GenerateReactiveMask.
type ReactiveMaskParams struct {
	Scale           float32
	CutoffThreshold float32
	BinaryValue     float32
	Flags           AutoReactiveFlags

	// RenderSize limits the pass to the rendered region; zero means the
	// whole destination.
	RenderSize image.Point
	Slice      int
}

// DefaultReactiveMaskParams returns the default auto reactive settings.
func DefaultReactiveMaskParams() ReactiveMaskParams {
	return ReactiveMaskParams{
		Scale:           0.9,
		CutoffThreshold: 0.05,
		BinaryValue:     0.5,
		Flags:           DefaultAutoReactiveFlags,
	}
}
