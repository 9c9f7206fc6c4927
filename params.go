package upscale

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// ViewGeometry describes the camera of a view.
type ViewGeometry struct {
	// Name identifies the view in logs and metrics.
	Name string

	Near, Far   float32
	FieldOfView float32 // vertical, radians; 0 for orthographic views
}

// InitParams are the parameters an algorithm instance is created with.
// A view captures them on Initialize and reuses them for every restart.
type InitParams struct {
	View ViewGeometry

	// TextureArrays is set when inputs are array textures; ViewIndex of
	// DispatchParams then selects the slice.
	TextureArrays bool
	Slices        int

	HDR                   bool
	InvertedDepth         bool
	HighResMotionVectors  bool
	JitteredMotionVectors bool

	// MaxRenderSize is the largest render size any frame will use.
	MaxRenderSize Size

	// DisplaySize is the output size.
	DisplaySize Size

	// OutputFormat is the format of the output target.
	OutputFormat gputypes.TextureFormat

	Device render.Device
	Pool   *pool.Pool
}

// Validate checks that the parameters describe a usable view.
func (p InitParams) Validate() error {
	if p.Device == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidParams)
	}
	if p.DisplaySize.IsZero() {
		return fmt.Errorf("%w: display size %v", ErrInvalidParams, p.DisplaySize)
	}
	if p.MaxRenderSize.IsZero() {
		return fmt.Errorf("%w: max render size %v", ErrInvalidParams, p.MaxRenderSize)
	}
	if p.DisplaySize.SmallerThan(p.MaxRenderSize) {
		return fmt.Errorf("%w: max render size %v exceeds display size %v",
			ErrInvalidParams, p.MaxRenderSize, p.DisplaySize)
	}
	if p.TextureArrays && p.Slices < 1 {
		return fmt.Errorf("%w: texture arrays with %d slices", ErrInvalidParams, p.Slices)
	}
	return nil
}

// SliceCount returns the number of array slices of view targets.
func (p InitParams) SliceCount() uint32 {
	if p.TextureArrays && p.Slices > 1 {
		return uint32(p.Slices)
	}
	return 1
}

// TextureDescriptor returns a descriptor for a view target of size and
// format, with the slice layout of the view.
func (p InitParams) TextureDescriptor(size Size, format gputypes.TextureFormat) render.TextureDescriptor {
	d := render.DefaultTextureDescriptor(uint32(size.Width), uint32(size.Height), format)
	d.Slices = p.SliceCount()
	if p.TextureArrays {
		d.Dimension = gputypes.TextureViewDimension2DArray
	}
	return d
}

// DispatchParams are the per-frame inputs of one view.
//
// Handles are built fresh every frame by the integration layer. The view
// fills JitterOffset and the defaulted inputs before Dispatch.
type DispatchParams struct {
	// Projection is the non-jittered projection matrix.
	Projection Mat4

	// ViewIndex selects the array slice when the view uses texture arrays.
	ViewIndex int

	Color         render.TextureHandle
	Depth         render.TextureHandle
	MotionVectors render.TextureHandle
	Exposure      render.TextureHandle
	ReactiveMask  render.TextureHandle
	OpaqueOnly    render.TextureHandle
	Output        render.TextureHandle

	// RenderSize is the region of the inputs rendered this frame.
	RenderSize Size

	// MotionVectorScale converts motion vector texels to pixels.
	MotionVectorScale Vec2

	// JitterOffset is the pixel jitter of this frame. Filled by the view.
	JitterOffset Vec2

	// PreExposure is the exposure the color input was multiplied by.
	// Zero means 1.
	PreExposure float32

	// Sharpening and Sharpness are replaced by the view's Controller
	// settings when the view has one.
	Sharpening bool
	Sharpness  float32

	// ResetHistory discards temporal history, e.g. after a camera cut.
	ResetHistory bool

	// Frame is the monotonically increasing frame counter.
	Frame uint64
}

// ExposureScale returns PreExposure, or 1 when unset.
func (p *DispatchParams) ExposureScale() float32 {
	if p.PreExposure <= 0 {
		return 1
	}
	return p.PreExposure
}

// RenderSizeOrColor returns RenderSize, or the color input size when unset.
func (p *DispatchParams) RenderSizeOrColor() Size {
	if !p.RenderSize.IsZero() {
		return p.RenderSize
	}
	return Sz(p.Color.Width(), p.Color.Height())
}
