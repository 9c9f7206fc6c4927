package upscale

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/upscale/render"
)

// Controller holds the user-facing upscaling configuration of one view: the
// algorithm selection chain, quality, sharpening, per-algorithm settings and
// the reactive mask sources.
//
// A view reads its controller every frame, so changing the primary algorithm
// here triggers a restart on the next Execute. Controller is safe for
// concurrent use; a settings UI may update it while the render loop reads it.
type Controller struct {
	mu sync.Mutex

	registry *Registry
	chain    []string

	quality     Quality
	customScale float32

	sharpening bool
	sharpness  float32

	settings map[string]Settings

	autoReactive       bool
	autoReactiveParams render.ReactiveMaskParams
	customMask         render.Texture
}

// NewController creates a controller selecting from reg. The first entry of
// chain is the primary algorithm; the rest are fallbacks in order.
func NewController(reg *Registry, chain ...string) *Controller {
	return &Controller{
		registry:           reg,
		chain:              slices.Clone(chain),
		quality:            QualityQuality,
		customScale:        1,
		sharpness:          0.5,
		settings:           make(map[string]Settings),
		autoReactiveParams: render.DefaultReactiveMaskParams(),
	}
}

// Chain returns a copy of the selection chain, primary first.
func (c *Controller) Chain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.chain)
}

// SetChain replaces the selection chain.
func (c *Controller) SetChain(chain ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chain = slices.Clone(chain)
}

// Primary returns the selected algorithm identifier, or "" for an empty chain.
func (c *Controller) Primary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chain) == 0 {
		return ""
	}
	return c.chain[0]
}

// SetPrimary moves id to the front of the chain, inserting it if absent.
func (c *Controller) SetPrimary(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.chain, id); i >= 0 {
		c.chain = slices.Delete(c.chain, i, i+1)
	}
	c.chain = slices.Insert(c.chain, 0, id)
}

// SetPrimaryByName selects the descriptor registered for name.
func (c *Controller) SetPrimaryByName(name Name) error {
	if c.registry == nil {
		return fmt.Errorf("upscale: controller has no registry")
	}
	d := c.registry.FindByName(name)
	if d == nil {
		return &AlgorithmNotFoundError{Identifier: name.String()}
	}
	c.SetPrimary(d.Identifier())
	return nil
}

// Quality returns the quality level.
func (c *Controller) Quality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// SetQuality sets the quality level.
func (c *Controller) SetQuality(q Quality) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quality = q
}

// SetCustomScale sets the scale used with QualityCustom. Values below 1 are
// clamped to 1.
func (c *Controller) SetCustomScale(scale float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customScale = max(scale, 1)
}

// Scale returns the effective display/render ratio.
func (c *Controller) Scale() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quality == QualityCustom {
		return c.customScale
	}
	return c.quality.Scale()
}

// Enabled reports whether upscaling is on.
func (c *Controller) Enabled() bool {
	return c.Quality().Enabled()
}

// MaxRenderSize returns the render size for display at the current quality.
func (c *Controller) MaxRenderSize(display Size) Size {
	if !c.Enabled() {
		return display
	}
	return MaxRenderSize(display, c.Scale())
}

// Sharpening returns whether sharpening is on and its strength.
func (c *Controller) Sharpening() (bool, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharpening, c.sharpness
}

// SetSharpening toggles sharpening. sharpness is clamped to [0,1].
func (c *Controller) SetSharpening(enabled bool, sharpness float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharpening = enabled
	c.sharpness = min(max(sharpness, 0), 1)
}

// Settings returns the settings object of the algorithm registered under id,
// creating it on first use. It returns nil for unknown identifiers.
func (c *Controller) Settings(id string) Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.settings[id]; ok {
		return s
	}
	if c.registry == nil {
		return nil
	}
	d := c.registry.FindByIdentifier(id)
	if d == nil {
		return nil
	}
	s := d.NewSettings()
	if s == nil {
		s = NoSettings{}
	}
	c.settings[id] = s
	return s
}

// EndFrame lets every settings object snapshot its values for the next
// frame's restart check.
func (c *Controller) EndFrame() {
	c.mu.Lock()
	all := make([]Settings, 0, len(c.settings))
	for _, s := range c.settings {
		all = append(all, s)
	}
	c.mu.Unlock()

	for _, s := range all {
		s.UpdateCachedValues()
	}
}

// AutoReactive returns whether the auto reactive mask is generated and its
// parameters.
func (c *Controller) AutoReactive() (bool, render.ReactiveMaskParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoReactive, c.autoReactiveParams
}

// SetAutoReactive toggles auto reactive mask generation.
func (c *Controller) SetAutoReactive(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReactive = enabled
}

// SetAutoReactiveParams sets the auto reactive mask parameters. RenderSize
// and Slice are filled per frame by the view.
func (c *Controller) SetAutoReactiveParams(p render.ReactiveMaskParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReactiveParams = p
}

// CustomReactiveMask returns the user supplied reactive mask, or nil.
func (c *Controller) CustomReactiveMask() render.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customMask
}

// SetCustomReactiveMask sets a persistent reactive mask merged into every
// frame's mask. Pass nil to remove it. The controller does not own tex.
func (c *Controller) SetCustomReactiveMask(tex render.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customMask = tex
}
