package upscale

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/upscale/render"
)

// reactiveSources collects this frame's reactive mask inputs in merge order:
// the pipeline's mask, the controller's custom mask, then the auto-generated
// mask. The auto mask is written straight into target when it is the only
// source, otherwise into a temporary.
func (v *ViewContext) reactiveSources(params *DispatchParams, renderSize Size, target render.Texture) ([]render.Texture, error) {
	var srcs []render.Texture

	if params.ReactiveMask.IsValid() {
		tex, err := params.ReactiveMask.Texture()
		if err != nil {
			return nil, fmt.Errorf("pipeline mask: %w", err)
		}
		srcs = append(srcs, tex)
	}

	c := v.opts.controller
	if c == nil {
		return srcs, nil
	}
	if custom := c.CustomReactiveMask(); custom != nil {
		srcs = append(srcs, custom)
	}

	auto, mp := c.AutoReactive()
	if !auto {
		return srcs, nil
	}
	opaque, err := params.OpaqueOnly.Texture()
	if err != nil {
		return nil, fmt.Errorf("opaque-only input: %w", err)
	}
	color, err := params.Color.Texture()
	if err != nil {
		return nil, fmt.Errorf("color input: %w", err)
	}
	if opaque == nil || color == nil {
		return srcs, nil
	}

	dst := target
	if len(srcs) > 0 {
		dst, err = v.alloc.Get(v.reactiveDesc, autoReactiveName)
		if err != nil {
			return nil, err
		}
	}
	mp.RenderSize = image.Pt(renderSize.Width, renderSize.Height)
	mp.Slice = v.slice(params)
	if err := v.params.Device.GenerateReactiveMask(opaque, color, dst, mp); err != nil {
		return nil, fmt.Errorf("auto reactive mask: %w", err)
	}
	return append(srcs, dst), nil
}

// buildReactiveMask fills the view's mask target from up to four sources:
// none clears it, one is copied, more are merged so every source contributes.
func (v *ViewContext) buildReactiveMask(params *DispatchParams, renderSize Size) (render.Texture, error) {
	target, err := v.reactiveTarget()
	if err != nil {
		return nil, err
	}
	srcs, err := v.reactiveSources(params, renderSize, target)
	if err != nil {
		return nil, err
	}

	dev := v.params.Device
	switch {
	case len(srcs) == 0:
		err = dev.Clear(target, [4]float32{})
	case len(srcs) == 1 && srcs[0] == target:
		// auto mask generated in place
	case len(srcs) == 1:
		err = dev.Copy(srcs[0], target)
	case len(srcs) <= render.MaxMergeInputs:
		err = dev.MergeMasks(target, srcs)
	default:
		err = fmt.Errorf("%w: %d reactive mask sources", render.ErrMergeInputs, len(srcs))
	}
	if err != nil {
		return nil, err
	}
	return target, nil
}

// reactiveTarget returns the view's merged mask target, taking it from the
// pool or creating it at the max render size on first use.
func (v *ViewContext) reactiveTarget() (render.Texture, error) {
	if v.reactive != nil {
		return v.reactive, nil
	}

	format := v.active.Capabilities().ReactiveMaskFormat
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatR8Unorm
	}
	desc := v.params.TextureDescriptor(v.params.MaxRenderSize, format)
	desc.Label = reactiveMaskName

	if p := v.params.Pool; p != nil {
		if tex, ok := p.TryGetForFrame(desc, reactiveMaskName, v.frame); ok {
			v.reactive, v.reactiveDesc = tex, desc
			return tex, nil
		}
	}
	tex, err := v.params.Device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("reactive mask target: %w", err)
	}
	v.reactive, v.reactiveDesc = tex, desc
	return tex, nil
}

// releaseReactive hands the mask target back to the pool, or releases it when
// the pool is full or absent.
func (v *ViewContext) releaseReactive() {
	if v.reactive == nil {
		return
	}
	if p := v.params.Pool; p == nil || !p.Add(v.reactiveDesc, reactiveMaskName, v.reactive, v.frame) {
		v.reactive.Release()
	}
	v.reactive = nil
}
