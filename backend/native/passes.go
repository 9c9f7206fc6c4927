// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/upscale/render"
)

// paramsSize is the size of the Params uniform block in bytes.
const paramsSize = 64

// passParams mirrors the Params block of every shader.
type passParams struct {
	A, B [4]float32
	Rect [4]int32
	Size [4]uint32
}

func (p passParams) bytes() []byte {
	b := make([]byte, 0, paramsSize)
	for _, v := range p.A {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	for _, v := range p.B {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	for _, v := range p.Rect {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	for _, v := range p.Size {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// binding is one slice of a texture bound to a pass.
type binding struct {
	tex  *Texture
	view hal.TextureView
}

func bind(t *Texture, slice int) (binding, error) {
	v, err := t.view(slice)
	if err != nil {
		return binding{}, err
	}
	return binding{tex: t, view: v}, nil
}

// CopyFromView copies a reference created by View into slice 0 of dst.
func (d *Device) CopyFromView(src gpucontext.TextureView, dst render.Texture) error {
	if src.IsNil() {
		return render.ErrInvalidReference
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.textureLocked((*Texture)(src.Pointer()))
	if err != nil {
		return fmt.Errorf("%w: %w", render.ErrInvalidReference, err)
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	return d.copyLocked(st, dt, 1)
}

// Copy copies the overlapping region of every slice. Textures backed by the
// same format are copied on the transfer queue, others through a compute
// pass.
func (d *Device) Copy(src, dst render.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.textureLocked(src)
	if err != nil {
		return err
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	return d.copyLocked(st, dt, min(len(st.views), len(dt.views)))
}

func (d *Device) copyLocked(st, dt *Texture, slices int) error {
	w := min(st.desc.Width, dt.desc.Width)
	h := min(st.desc.Height, dt.desc.Height)
	if st.physical == dt.physical {
		return d.encodeLocked("upscale_copy", func(enc hal.CommandEncoder) {
			d.transition(enc, st, gputypes.TextureUsageCopySrc)
			d.transition(enc, dt, gputypes.TextureUsageCopyDst)
			enc.CopyTextureToTexture(st.raw, dt.raw, []hal.TextureCopy{{
				SrcBase: hal.ImageCopyTexture{Texture: st.raw, Aspect: gputypes.TextureAspectAll},
				DstBase: hal.ImageCopyTexture{Texture: dt.raw, Aspect: gputypes.TextureAspectAll},
				Size:    hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: uint32(slices)},
			}})
		}, nil)
	}
	for i := 0; i < slices; i++ {
		in, err := bind(st, i)
		if err != nil {
			return err
		}
		out, err := bind(dt, i)
		if err != nil {
			return err
		}
		p := passParams{
			Rect: [4]int32{0, 0, int32(w), int32(h)},
			Size: [4]uint32{w, h, blitCopy, 0},
		}
		if err := d.runLocked(passBlit, p, []binding{in}, out, w, h); err != nil {
			return err
		}
	}
	return nil
}

// Blit resamples opts.SrcRect of src onto the whole of dst.
func (d *Device) Blit(src, dst render.Texture, opts render.BlitOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.textureLocked(src)
	if err != nil {
		return err
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	in, err := bind(st, opts.SrcSlice)
	if err != nil {
		return err
	}
	out, err := bind(dt, opts.DstSlice)
	if err != nil {
		return err
	}
	sr := image.Rect(0, 0, st.Width(), st.Height())
	if !opts.SrcRect.Empty() {
		sr = opts.SrcRect.Intersect(sr)
	}
	if sr.Empty() {
		return fmt.Errorf("native: empty blit source rectangle %v", opts.SrcRect)
	}
	mode := uint32(blitBilinear)
	switch opts.Filter {
	case render.FilterNearest:
		mode = blitNearest
	case render.FilterCatmullRom:
		mode = blitCatmullRom
	}
	w, h := dt.desc.Width, dt.desc.Height
	p := passParams{
		Rect: [4]int32{int32(sr.Min.X), int32(sr.Min.Y), int32(sr.Dx()), int32(sr.Dy())},
		Size: [4]uint32{w, h, mode, 0},
	}
	return d.runLocked(passBlit, p, []binding{in}, out, w, h)
}

// Clear fills every slice with value.
func (d *Device) Clear(dst render.Texture, value [4]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	w, h := dt.desc.Width, dt.desc.Height
	for i := range dt.views {
		out, err := bind(dt, i)
		if err != nil {
			return err
		}
		p := passParams{A: value, Size: [4]uint32{w, h, 0, 0}}
		if err := d.runLocked(passClear, p, nil, out, w, h); err != nil {
			return err
		}
	}
	return nil
}

// MergeMasks combines 2 to 4 masks as 1 - prod(1 - m) per channel.
func (d *Device) MergeMasks(dst render.Texture, srcs []render.Texture) error {
	if len(srcs) < 2 || len(srcs) > render.MaxMergeInputs {
		return render.ErrMergeInputs
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	inputs := make([]*Texture, len(srcs))
	for i, s := range srcs {
		if inputs[i], err = d.textureLocked(s); err != nil {
			return err
		}
	}
	w, h := dt.desc.Width, dt.desc.Height
	for si := range dt.views {
		out, err := bind(dt, si)
		if err != nil {
			return err
		}
		var p passParams
		p.Size = [4]uint32{w, h, 0, 0}
		bound := make([]binding, render.MaxMergeInputs)
		for i, in := range inputs {
			if si >= len(in.views) {
				continue
			}
			if bound[i], err = bind(in, si); err != nil {
				return err
			}
			p.B[i] = 1
		}
		// Disabled slots still need a view; reuse any enabled one.
		var fill binding
		for _, b := range bound {
			if b.view != nil {
				fill = b
				break
			}
		}
		if fill.view == nil {
			fill, _ = bind(inputs[0], 0)
		}
		for i := range bound {
			if bound[i].view == nil {
				bound[i] = fill
			}
		}
		if err := d.runLocked(passMerge, p, bound, out, w, h); err != nil {
			return err
		}
	}
	return nil
}

// GenerateReactiveMask writes the auto reactive mask of params.Slice.
func (d *Device) GenerateReactiveMask(opaque, final, dst render.Texture, params render.ReactiveMaskParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ot, err := d.textureLocked(opaque)
	if err != nil {
		return err
	}
	ct, err := d.textureLocked(final)
	if err != nil {
		return err
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	pre, err := bind(ot, params.Slice)
	if err != nil {
		return err
	}
	post, err := bind(ct, params.Slice)
	if err != nil {
		return err
	}
	out, err := bind(dt, params.Slice)
	if err != nil {
		return err
	}
	region := image.Rect(0, 0, dt.Width(), dt.Height()).
		Intersect(image.Rect(0, 0, ot.Width(), ot.Height())).
		Intersect(image.Rect(0, 0, ct.Width(), ct.Height()))
	if params.RenderSize != (image.Point{}) {
		region = region.Intersect(image.Rectangle{Max: params.RenderSize})
	}
	if region.Empty() {
		return nil
	}
	w, h := uint32(region.Dx()), uint32(region.Dy())
	p := passParams{
		A:    [4]float32{params.Scale, params.CutoffThreshold, params.BinaryValue, 0},
		Size: [4]uint32{w, h, uint32(params.Flags), 0},
	}
	return d.runLocked(passReactive, p, []binding{pre, post}, out, w, h)
}

// Sharpen applies robust contrast adaptive sharpening. src and dst must
// have the same size and must not alias.
func (d *Device) Sharpen(src, dst render.Texture, opts render.SharpenOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.textureLocked(src)
	if err != nil {
		return err
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	if st.desc.Width != dt.desc.Width || st.desc.Height != dt.desc.Height {
		return fmt.Errorf("native: sharpen size mismatch %dx%d != %dx%d",
			st.desc.Width, st.desc.Height, dt.desc.Width, dt.desc.Height)
	}
	if st == dt {
		return fmt.Errorf("native: sharpen source and destination alias")
	}
	in, err := bind(st, opts.Slice)
	if err != nil {
		return err
	}
	out, err := bind(dt, opts.Slice)
	if err != nil {
		return err
	}
	w, h := dt.desc.Width, dt.desc.Height
	p := passParams{
		A:    [4]float32{render.SharpnessScale(opts.Sharpness), 0, 0, 0},
		Size: [4]uint32{w, h, 0, 0},
	}
	return d.runLocked(passSharpen, p, []binding{in}, out, w, h)
}

// Accumulate blends current into history using the blend factor and the
// optional reactive mask.
func (d *Device) Accumulate(history, current, reactive, dst render.Texture, opts render.AccumulateOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ht, err := d.textureLocked(history)
	if err != nil {
		return err
	}
	ct, err := d.textureLocked(current)
	if err != nil {
		return err
	}
	dt, err := d.textureLocked(dst)
	if err != nil {
		return err
	}
	w, h := dt.desc.Width, dt.desc.Height
	if ht.desc.Width != w || ht.desc.Height != h || ct.desc.Width != w || ct.desc.Height != h {
		return fmt.Errorf("native: accumulate size mismatch %dx%d, %dx%d, %dx%d",
			ht.desc.Width, ht.desc.Height, ct.desc.Width, ct.desc.Height, w, h)
	}
	prev, err := bind(ht, opts.Slice)
	if err != nil {
		return err
	}
	cur, err := bind(ct, opts.Slice)
	if err != nil {
		return err
	}
	out, err := bind(dt, opts.Slice)
	if err != nil {
		return err
	}

	p := passParams{
		A:    [4]float32{opts.BlendFactor, 0, 0, 0},
		Size: [4]uint32{w, h, 0, 0},
	}
	mask := cur
	if reactive != nil {
		rt, err := d.textureLocked(reactive)
		if err != nil {
			return err
		}
		if mask, err = bind(rt, opts.Slice); err != nil {
			return err
		}
		mr := image.Rect(0, 0, rt.Width(), rt.Height())
		if !opts.ReactiveRect.Empty() {
			mr = opts.ReactiveRect.Intersect(mr)
		}
		if mr.Empty() {
			mask = cur
		} else {
			p.A[1] = 1
			p.Rect = [4]int32{int32(mr.Min.X), int32(mr.Min.Y), int32(mr.Dx()), int32(mr.Dy())}
		}
	}
	return d.runLocked(passAccumulate, p, []binding{prev, cur, mask}, out, w, h)
}

// runLocked records and submits one compute pass over w x h texels.
// Caller must hold d.mu.
func (d *Device) runLocked(kind passKind, p passParams, inputs []binding, dst binding, w, h uint32) error {
	if d.destroyed {
		return ErrDeviceDestroyed
	}
	d.collectLocked()

	key := pipelineKey{pass: kind, format: dst.tex.physical}
	pl, err := d.pipelines.GetOrCreate(key, func() (*pipeline, error) {
		return newPipeline(d.device, key)
	})
	if err != nil {
		return err
	}

	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "upscale_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: %s params buffer: %w", kind, err)
	}
	if err := d.queue.WriteBuffer(ub, 0, p.bytes()); err != nil {
		d.device.DestroyBuffer(ub)
		return fmt.Errorf("native: %s params upload: %w", kind, err)
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(inputs)+2)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Size: paramsSize},
	})
	for i, in := range inputs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1),
			Resource: gputypes.TextureViewBinding{TextureView: in.view.NativeHandle()},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  uint32(len(inputs) + 1),
		Resource: gputypes.TextureViewBinding{TextureView: dst.view.NativeHandle()},
	})
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "upscale_" + kind.String(),
		Layout:  pl.bindLayout,
		Entries: entries,
	})
	if err != nil {
		d.device.DestroyBuffer(ub)
		return fmt.Errorf("native: %s bind group: %w", kind, err)
	}

	return d.encodeLocked("upscale_"+kind.String(), func(enc hal.CommandEncoder) {
		for _, in := range inputs {
			d.transition(enc, in.tex, gputypes.TextureUsageTextureBinding)
		}
		d.transition(enc, dst.tex, gputypes.TextureUsageStorageBinding)
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: kind.String()})
		pass.SetPipeline(pl.compute)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch((w+workgroupSize-1)/workgroupSize, (h+workgroupSize-1)/workgroupSize, 1)
		pass.End()
	}, func() {
		d.device.DestroyBindGroup(bg)
		d.device.DestroyBuffer(ub)
	})
}

// encodeLocked records one command buffer with record and submits it.
// release frees the pass resources once the submission completes.
func (d *Device) encodeLocked(label string, record func(hal.CommandEncoder), release func()) error {
	if release == nil {
		release = func() {}
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		release()
		return fmt.Errorf("native: %s encoder: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		release()
		return fmt.Errorf("native: %s begin encoding: %w", label, err)
	}
	record(enc)
	cb, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		release()
		return fmt.Errorf("native: %s end encoding: %w", label, err)
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		d.device.FreeCommandBuffer(cb)
		enc.Destroy()
		release()
		return fmt.Errorf("native: %s submit: %w", label, err)
	}
	d.lastSubmit = max(d.lastSubmit, idx)
	d.passes++
	d.retireLocked(idx, func() {
		d.device.FreeCommandBuffer(cb)
		enc.Destroy()
		release()
	})
	return nil
}

// transition records a barrier moving t to usage if it is not there yet.
func (d *Device) transition(enc hal.CommandEncoder, t *Texture, usage gputypes.TextureUsage) {
	if t.usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.raw,
		Range: hal.TextureRange{
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   t.desc.MipLevelCount,
			ArrayLayerCount: t.desc.Slices,
		},
		Usage: hal.TextureUsageTransition{OldUsage: t.usage, NewUsage: usage},
	}})
	t.usage = usage
}
