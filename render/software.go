// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/upscale/internal/parallel"
)

// SoftwareDevice is a CPU Device.
//
// Textures are stored as one *image.RGBA64 per array slice, so values are
// clamped to [0,1] with 16-bit precision regardless of the declared format.
// It is the device used by tests and by hosts without a GPU.
//
// Example:
//
//	dev := render.NewSoftwareDevice()
//	src, _ := dev.NewTextureFromImage(img, gputypes.TextureFormatRGBA8Unorm)
//	dst, _ := dev.CreateTexture(render.DefaultTextureDescriptor(1920, 1080, gputypes.TextureFormatRGBA8Unorm))
//	_ = dev.Blit(src, dst, render.BlitOptions{Filter: render.FilterCatmullRom})
type SoftwareDevice struct {
	nextID atomic.Uint64
	live   atomic.Int64
	caps   DeviceCapabilities

	// workers runs per-texel passes in row bands; nil runs them inline.
	workers *parallel.WorkerPool
}

// SoftwareOption configures a SoftwareDevice.
type SoftwareOption func(*SoftwareDevice)

// WithWorkers runs per-texel passes on n goroutines. n <= 0 uses
// GOMAXPROCS. A device with workers must be closed with Close.
func WithWorkers(n int) SoftwareOption {
	return func(d *SoftwareDevice) {
		d.workers = parallel.NewWorkerPool(n)
	}
}

// NewSoftwareDevice creates a CPU device. Without options every pass runs on
// the calling goroutine.
func NewSoftwareDevice(opts ...SoftwareOption) *SoftwareDevice {
	d := &SoftwareDevice{
		caps: DeviceCapabilities{
			MaxTextureSize:          16384,
			MaxTextureArrayLayers:   256,
			SupportsCompute:         true,
			SupportsStorageTextures: true,
			VendorName:              "gogpu",
			DeviceName:              "software",
			Software:                true,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close stops the worker goroutines. Passes still work afterwards, inline.
func (d *SoftwareDevice) Close() {
	if d.workers != nil {
		d.workers.Close()
	}
}

// Capabilities returns the device limits.
func (d *SoftwareDevice) Capabilities() DeviceCapabilities { return d.caps }

// LiveTextures returns the number of textures created and not yet released.
func (d *SoftwareDevice) LiveTextures() int { return int(d.live.Load()) }

// CreateTexture allocates a zeroed texture.
func (d *SoftwareDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	return d.newTexture(desc)
}

func (d *SoftwareDevice) newTexture(desc TextureDescriptor) (*SoftwareTexture, error) {
	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("render: texture %dx%d exceeds device limit %d", desc.Width, desc.Height, d.caps.MaxTextureSize)
	}
	if desc.Slices > d.caps.MaxTextureArrayLayers {
		return nil, fmt.Errorf("render: %d slices exceed device limit %d", desc.Slices, d.caps.MaxTextureArrayLayers)
	}
	t := &SoftwareTexture{
		dev:    d,
		desc:   desc,
		id:     d.nextID.Add(1),
		slices: make([]*image.RGBA64, desc.Slices),
	}
	for i := range t.slices {
		t.slices[i] = image.NewRGBA64(image.Rect(0, 0, int(desc.Width), int(desc.Height)))
	}
	d.live.Add(1)
	return t, nil
}

// NewTextureFromImage creates a single-slice texture holding a copy of img.
func (d *SoftwareDevice) NewTextureFromImage(img image.Image, format gputypes.TextureFormat) (*SoftwareTexture, error) {
	b := img.Bounds()
	t, err := d.newTexture(DefaultTextureDescriptor(uint32(b.Dx()), uint32(b.Dy()), format))
	if err != nil {
		return nil, err
	}
	draw.Draw(t.slices[0], t.slices[0].Bounds(), img, b.Min, draw.Src)
	return t, nil
}

type softwareRef struct {
	img image.Image
}

// SoftwareView wraps an image as an opaque reference that SoftwareDevice can
// copy from. It models host buffers the orchestrator cannot address directly.
func SoftwareView(img image.Image) gpucontext.TextureView {
	if img == nil {
		return gpucontext.TextureView{}
	}
	return gpucontext.NewTextureView(unsafe.Pointer(&softwareRef{img: img}))
}

// CopyFromView copies an opaque reference created by SoftwareView into
// slice 0 of dst.
func (d *SoftwareDevice) CopyFromView(src gpucontext.TextureView, dst Texture) error {
	if src.IsNil() {
		return ErrInvalidReference
	}
	ref := (*softwareRef)(src.Pointer())
	if ref.img == nil {
		return ErrInvalidReference
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	out := dt.slices[0]
	draw.Draw(out, out.Bounds(), ref.img, ref.img.Bounds().Min, draw.Src)
	return nil
}

// Copy copies the overlapping region of every slice.
func (d *SoftwareDevice) Copy(src, dst Texture) error {
	st, err := d.texture(src)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	for i := 0; i < len(st.slices) && i < len(dt.slices); i++ {
		draw.Draw(dt.slices[i], dt.slices[i].Bounds(), st.slices[i], image.Point{}, draw.Src)
	}
	return nil
}

// Blit resamples opts.SrcRect of src onto the whole of dst.
func (d *SoftwareDevice) Blit(src, dst Texture, opts BlitOptions) error {
	st, err := d.texture(src)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	in, err := st.slice(opts.SrcSlice)
	if err != nil {
		return err
	}
	out, err := dt.slice(opts.DstSlice)
	if err != nil {
		return err
	}
	sr := in.Bounds()
	if !opts.SrcRect.Empty() {
		sr = opts.SrcRect.Intersect(sr)
	}
	if sr.Empty() {
		return fmt.Errorf("render: empty blit source rectangle %v", opts.SrcRect)
	}
	var k draw.Interpolator
	switch opts.Filter {
	case FilterNearest:
		k = draw.NearestNeighbor
	case FilterCatmullRom:
		k = draw.CatmullRom
	default:
		k = draw.BiLinear
	}
	k.Scale(out, out.Bounds(), in, sr, draw.Src, nil)
	return nil
}

// Clear fills every slice with value.
func (d *SoftwareDevice) Clear(dst Texture, value [4]float32) error {
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	c := toRGBA64(value)
	for _, img := range dt.slices {
		draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return nil
}

// MergeMasks combines 2 to 4 masks as 1 - prod(1 - m) per channel. Texels
// outside a source count as zero.
func (d *SoftwareDevice) MergeMasks(dst Texture, srcs []Texture) error {
	if len(srcs) < 2 || len(srcs) > MaxMergeInputs {
		return ErrMergeInputs
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	inputs := make([]*SoftwareTexture, len(srcs))
	for i, s := range srcs {
		if inputs[i], err = d.texture(s); err != nil {
			return err
		}
	}
	for si, out := range dt.slices {
		b := out.Bounds()
		d.workers.Rows(b, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					keep := [4]float32{1, 1, 1, 1}
					for _, in := range inputs {
						if si >= len(in.slices) {
							continue
						}
						img := in.slices[si]
						if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
							continue
						}
						v := texel(img, x, y)
						for c := range keep {
							keep[c] *= 1 - v[c]
						}
					}
					setTexel(out, x, y, [4]float32{1 - keep[0], 1 - keep[1], 1 - keep[2], 1 - keep[3]})
				}
			}
		})
	}
	return nil
}

// GenerateReactiveMask writes a single-channel reactive mask, replicated to
// RGB with alpha 1, derived from the opaque-only and final colors.
func (d *SoftwareDevice) GenerateReactiveMask(opaque, final, dst Texture, params ReactiveMaskParams) error {
	ot, err := d.texture(opaque)
	if err != nil {
		return err
	}
	ct, err := d.texture(final)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	pre, err := ot.slice(params.Slice)
	if err != nil {
		return err
	}
	post, err := ct.slice(params.Slice)
	if err != nil {
		return err
	}
	out, err := dt.slice(params.Slice)
	if err != nil {
		return err
	}
	region := out.Bounds().Intersect(pre.Bounds()).Intersect(post.Bounds())
	if params.RenderSize != (image.Point{}) {
		region = region.Intersect(image.Rectangle{Max: params.RenderSize})
	}
	d.workers.Rows(region, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := region.Min.X; x < region.Max.X; x++ {
				v := ReactiveValue(texel(pre, x, y), texel(post, x, y), params)
				setTexel(out, x, y, [4]float32{v, v, v, 1})
			}
		}
	})
	return nil
}

// ReactiveValue computes the auto reactive mask value of one pixel. Both
// devices implement the same formula; this is the reference.
func ReactiveValue(opaque, final [4]float32, params ReactiveMaskParams) float32 {
	pre := [3]float32{opaque[0], opaque[1], opaque[2]}
	post := [3]float32{final[0], final[1], final[2]}
	if params.Flags.Has(ApplyTonemap) {
		pre, post = tonemap(pre), tonemap(post)
	}
	if params.Flags.Has(ApplyInverseTonemap) {
		pre, post = inverseTonemap(pre), inverseTonemap(post)
	}
	var delta [3]float32
	for i := range delta {
		delta[i] = float32(math.Abs(float64(post[i] - pre[i])))
	}
	var v float32
	if params.Flags.Has(UseComponentsMax) {
		v = max(delta[0], delta[1], delta[2])
	} else {
		v = float32(math.Sqrt(float64(delta[0]*delta[0] + delta[1]*delta[1] + delta[2]*delta[2])))
	}
	v *= params.Scale
	if params.Flags.Has(ApplyThreshold) {
		if v < params.CutoffThreshold {
			return 0
		}
		return params.BinaryValue
	}
	return min(max(v, 0), 1)
}

func tonemap(c [3]float32) [3]float32 {
	s := 1 / (1 + max(c[0], c[1], c[2]))
	return [3]float32{c[0] * s, c[1] * s, c[2] * s}
}

func inverseTonemap(c [3]float32) [3]float32 {
	s := 1 / max(1.0/32768, 1-max(c[0], c[1], c[2]))
	return [3]float32{c[0] * s, c[1] * s, c[2] * s}
}

// rcasLimit bounds the negative lobe so the filter stays normalized.
const rcasLimit = 0.25 - 1.0/16

// SharpnessScale maps a [0,1] sharpness to the RCAS lobe multiplier.
func SharpnessScale(sharpness float32) float32 {
	s := min(max(sharpness, 0), 1)
	return float32(math.Pow(2, float64(2*s-2)))
}

// Sharpen applies robust contrast adaptive sharpening from src to dst.
// Both textures must have the same size.
func (d *SoftwareDevice) Sharpen(src, dst Texture, opts SharpenOptions) error {
	st, err := d.texture(src)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	in, err := st.slice(opts.Slice)
	if err != nil {
		return err
	}
	out, err := dt.slice(opts.Slice)
	if err != nil {
		return err
	}
	if in.Bounds() != out.Bounds() {
		return fmt.Errorf("render: sharpen size mismatch %v != %v", in.Bounds(), out.Bounds())
	}
	if in == out {
		return fmt.Errorf("render: sharpen source and destination alias")
	}
	scale := SharpnessScale(opts.Sharpness)
	b := in.Bounds()
	clampX := func(x int) int { return min(max(x, b.Min.X), b.Max.X-1) }
	clampY := func(y int) int { return min(max(y, b.Min.Y), b.Max.Y-1) }
	d.workers.Rows(b, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := texel(in, x, y)
				n := texel(in, x, clampY(y-1))
				s := texel(in, x, clampY(y+1))
				w := texel(in, clampX(x-1), y)
				e := texel(in, clampX(x+1), y)
				setTexel(out, x, y, rcas(c, n, s, w, e, scale))
			}
		}
	})
	return nil
}

func rcas(c, n, s, w, e [4]float32, scale float32) [4]float32 {
	lobe := float32(-rcasLimit)
	for i := 0; i < 3; i++ {
		mn := min(n[i], s[i], w[i], e[i], c[i])
		mx := max(n[i], s[i], w[i], e[i], c[i])
		var hitMin, hitMax float32
		if mx > 0 {
			hitMin = mn / (4 * mx)
		}
		if denom := 4*mn - 4; denom < 0 {
			hitMax = (1 - mx) / denom
		}
		lobe = max(lobe, max(-hitMin, hitMax))
	}
	lobe = min(lobe, 0) * scale
	rcp := 1 / (4*lobe + 1)
	var out [4]float32
	for i := 0; i < 3; i++ {
		out[i] = min(max((lobe*(n[i]+s[i]+w[i]+e[i])+c[i])*rcp, 0), 1)
	}
	out[3] = c[3]
	return out
}

// Accumulate writes mix(history, current, w) to dst, where w is derived from
// the blend factor and the reactive mask. history, current and dst must have
// the same size; the reactive mask is sampled nearest over ReactiveRect.
func (d *SoftwareDevice) Accumulate(history, current, reactive, dst Texture, opts AccumulateOptions) error {
	ht, err := d.texture(history)
	if err != nil {
		return err
	}
	ct, err := d.texture(current)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	prev, err := ht.slice(opts.Slice)
	if err != nil {
		return err
	}
	cur, err := ct.slice(opts.Slice)
	if err != nil {
		return err
	}
	out, err := dt.slice(opts.Slice)
	if err != nil {
		return err
	}
	b := out.Bounds()
	if prev.Bounds() != b || cur.Bounds() != b {
		return fmt.Errorf("render: accumulate size mismatch %v, %v, %v", prev.Bounds(), cur.Bounds(), b)
	}

	var mask *image.RGBA64
	var mr image.Rectangle
	if reactive != nil {
		rt, err := d.texture(reactive)
		if err != nil {
			return err
		}
		if mask, err = rt.slice(opts.Slice); err != nil {
			return err
		}
		mr = mask.Bounds()
		if !opts.ReactiveRect.Empty() {
			mr = opts.ReactiveRect.Intersect(mr)
		}
		if mr.Empty() {
			mask = nil
		}
	}

	d.workers.Rows(b, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				var r float32
				if mask != nil {
					mx := mr.Min.X + (x-b.Min.X)*mr.Dx()/b.Dx()
					my := mr.Min.Y + (y-b.Min.Y)*mr.Dy()/b.Dy()
					r = texel(mask, mx, my)[0]
				}
				w := AccumulateWeight(opts.BlendFactor, r)
				h, c := texel(prev, x, y), texel(cur, x, y)
				var v [4]float32
				for i := range v {
					v[i] = h[i] + (c[i]-h[i])*w
				}
				setTexel(out, x, y, v)
			}
		}
	})
	return nil
}

// texture checks that t is a live texture of this device.
func (d *SoftwareDevice) texture(t Texture) (*SoftwareTexture, error) {
	st, ok := t.(*SoftwareTexture)
	if !ok || st == nil {
		return nil, ErrForeignTexture
	}
	if st.dev != d {
		return nil, ErrForeignTexture
	}
	if st.slices == nil {
		return nil, ErrReleased
	}
	return st, nil
}

func texel(img *image.RGBA64, x, y int) [4]float32 {
	c := img.RGBA64At(x, y)
	return [4]float32{
		float32(c.R) / 0xffff,
		float32(c.G) / 0xffff,
		float32(c.B) / 0xffff,
		float32(c.A) / 0xffff,
	}
}

func setTexel(img *image.RGBA64, x, y int, v [4]float32) {
	img.SetRGBA64(x, y, toRGBA64(v))
}

func toRGBA64(v [4]float32) color.RGBA64 {
	q := func(f float32) uint16 {
		return uint16(min(max(f, 0), 1)*0xffff + 0.5)
	}
	return color.RGBA64{R: q(v[0]), G: q(v[1]), B: q(v[2]), A: q(v[3])}
}

// SoftwareTexture is a texture of a SoftwareDevice.
type SoftwareTexture struct {
	dev    *SoftwareDevice
	desc   TextureDescriptor
	id     uint64
	slices []*image.RGBA64
}

// Width returns the texture width in pixels.
func (t *SoftwareTexture) Width() int { return int(t.desc.Width) }

// Height returns the texture height in pixels.
func (t *SoftwareTexture) Height() int { return int(t.desc.Height) }

// Descriptor returns the normalized creation descriptor.
func (t *SoftwareTexture) Descriptor() TextureDescriptor { return t.desc }

// Format returns the color format.
func (t *SoftwareTexture) Format() gputypes.TextureFormat { return t.desc.Format }

// ID returns the device-unique texture id.
func (t *SoftwareTexture) ID() uint64 { return t.id }

// Image returns the pixels of a slice, or nil after Release.
func (t *SoftwareTexture) Image(slice int) *image.RGBA64 {
	img, err := t.slice(slice)
	if err != nil {
		return nil
	}
	return img
}

// NativeHandle returns the address of the first slice's pixel buffer.
func (t *SoftwareTexture) NativeHandle() uintptr {
	if len(t.slices) == 0 || len(t.slices[0].Pix) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&t.slices[0].Pix[0]))
}

// Release drops the pixel storage.
func (t *SoftwareTexture) Release() {
	if t.slices == nil {
		return
	}
	t.slices = nil
	t.dev.live.Add(-1)
}

func (t *SoftwareTexture) slice(i int) (*image.RGBA64, error) {
	if t.slices == nil {
		return nil, ErrReleased
	}
	if i < 0 || i >= len(t.slices) {
		return nil, fmt.Errorf("render: slice %d out of range [0,%d)", i, len(t.slices))
	}
	return t.slices[i], nil
}

var (
	_ Device  = (*SoftwareDevice)(nil)
	_ Texture = (*SoftwareTexture)(nil)
)
