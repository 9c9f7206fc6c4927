package upscale

import (
	"github.com/gogpu/gputypes"
)

// Settings is the per-algorithm configuration object. The view context passes
// it from the descriptor's factory to the instance without inspecting it.
type Settings interface {
	// RestartRequired reports whether a setting changed in a way the running
	// instance cannot absorb.
	RestartRequired() bool

	// UpdateCachedValues is called once at the end of every frame so settings
	// can snapshot values they compare against in RestartRequired.
	UpdateCachedValues()
}

// NoSettings is the Settings of algorithms without configuration.
type NoSettings struct{}

func (NoSettings) RestartRequired() bool { return false }
func (NoSettings) UpdateCachedValues()   {}

// Capabilities describes what an algorithm does and needs.
type Capabilities struct {
	// Temporal algorithms accumulate history and consume jitter.
	Temporal bool

	// DynamicResolution algorithms accept a render size that changes every
	// frame up to the max render size.
	DynamicResolution bool

	// MachineLearning marks inference-based algorithms.
	MachineLearning bool

	// AcceptsReactiveMask enables the reactive mask build before dispatch.
	AcceptsReactiveMask bool

	// ReactiveMaskFormat is the format of the merged mask target.
	ReactiveMaskFormat gputypes.TextureFormat

	// AlphaUpscale algorithms carry alpha through the upscale.
	AlphaUpscale bool
}

// Descriptor describes an algorithm to the registry.
//
// A Descriptor is immutable after registration, except that Supported is
// evaluated live against the current device every time it is called.
type Descriptor interface {
	// Identifier uniquely identifies the implementation. Registering two
	// descriptors with the same identifier keeps only the first.
	Identifier() string

	// Name is the algorithm family the descriptor competes for.
	Name() Name

	// DisplayName is a human readable name.
	DisplayName() string

	// Priority resolves Name conflicts: the higher priority stays registered.
	Priority() int

	// Supported reports whether the algorithm can run on the current device.
	Supported() bool

	Capabilities() Capabilities

	// NewSettings returns a fresh Settings object for this algorithm.
	NewSettings() Settings

	// CreateInstance creates an instance. The view calls Initialize on the
	// result before the first dispatch.
	CreateInstance(settings Settings, params InitParams) (Instance, error)

	// Cleanup releases descriptor-level resources shared by all instances.
	Cleanup()
}

// Instance is a running algorithm owned by one view.
type Instance interface {
	// MinimumRenderSize is the smallest render size Dispatch accepts.
	MinimumRenderSize() Size

	// RequiresOpaqueOnlyInput reports whether DispatchParams.OpaqueOnly must
	// be set. Unset opaque-only inputs default to the color input.
	RequiresOpaqueOnlyInput() bool

	// RequiresRandomWriteOutput reports whether Output must be a storage target.
	RequiresRandomWriteOutput() bool

	// Initialize prepares the instance for params. An error discards the
	// instance and moves the view to the next fallback candidate.
	Initialize(params InitParams) error

	// Dispatch records the upscale of one frame.
	Dispatch(params *DispatchParams) error

	// Destroy releases everything the instance owns.
	Destroy()

	// RestartRequired reports that the instance must be recreated before the
	// next dispatch.
	RestartRequired() bool

	// JitterOffset returns the pixel jitter for frame. Only temporal
	// algorithms are asked.
	JitterOffset(frame uint64, renderWidth, displayWidth int) Vec2
}

// BaseInstance provides defaults for the optional parts of Instance.
// Embed it and implement Initialize, Dispatch and Destroy.
type BaseInstance struct{}

// MinimumRenderSize returns 1x1.
func (BaseInstance) MinimumRenderSize() Size { return Sz(1, 1) }

func (BaseInstance) RequiresOpaqueOnlyInput() bool   { return false }
func (BaseInstance) RequiresRandomWriteOutput() bool { return false }
func (BaseInstance) RestartRequired() bool           { return false }

// JitterOffset returns the default Halton pattern.
func (BaseInstance) JitterOffset(frame uint64, renderWidth, displayWidth int) Vec2 {
	return DefaultJitterOffset(frame, renderWidth, displayWidth)
}
