package upscale

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// fakeDescriptor is a scriptable algorithm used across the package tests.
type fakeDescriptor struct {
	id        string
	name      Name
	priority  int
	supported bool
	caps      Capabilities

	createErr error
	initErr   error
	panicOn   string
	minSize   Size

	newSettings func() Settings

	created  []*fakeInstance
	cleanups int
}

func newFake(id string) *fakeDescriptor {
	return &fakeDescriptor{id: id, supported: true}
}

func (d *fakeDescriptor) Identifier() string         { return d.id }
func (d *fakeDescriptor) Name() Name                 { return d.name }
func (d *fakeDescriptor) DisplayName() string        { return "fake " + d.id }
func (d *fakeDescriptor) Priority() int              { return d.priority }
func (d *fakeDescriptor) Supported() bool            { return d.supported }
func (d *fakeDescriptor) Capabilities() Capabilities { return d.caps }
func (d *fakeDescriptor) Cleanup()                   { d.cleanups++ }

func (d *fakeDescriptor) NewSettings() Settings {
	if d.newSettings != nil {
		return d.newSettings()
	}
	return NoSettings{}
}

func (d *fakeDescriptor) CreateInstance(s Settings, _ InitParams) (Instance, error) {
	if d.panicOn == "create" {
		panic("create exploded")
	}
	if d.createErr != nil {
		return nil, d.createErr
	}
	inst := &fakeInstance{desc: d, settings: s}
	d.created = append(d.created, inst)
	return inst, nil
}

// fakeInstance records every call made by the view.
type fakeInstance struct {
	BaseInstance
	desc     *fakeDescriptor
	settings Settings

	initialized int
	destroyed   int
	restart     bool
	dispatchErr error

	dispatches []DispatchParams
}

func (i *fakeInstance) MinimumRenderSize() Size {
	if !i.desc.minSize.IsZero() {
		return i.desc.minSize
	}
	return i.BaseInstance.MinimumRenderSize()
}

func (i *fakeInstance) Initialize(InitParams) error {
	if i.desc.panicOn == "initialize" {
		panic("initialize exploded")
	}
	i.initialized++
	return i.desc.initErr
}

func (i *fakeInstance) Dispatch(p *DispatchParams) error {
	if i.desc.panicOn == "dispatch" {
		panic("dispatch exploded")
	}
	i.dispatches = append(i.dispatches, *p)
	return i.dispatchErr
}

func (i *fakeInstance) Destroy() {
	i.destroyed++
	if i.desc.panicOn == "destroy" {
		panic("destroy exploded")
	}
}

func (i *fakeInstance) RestartRequired() bool { return i.restart }

func (i *fakeInstance) JitterOffset(frame uint64, renderWidth, displayWidth int) Vec2 {
	if i.desc.panicOn == "jitter" {
		panic("jitter exploded")
	}
	return i.BaseInstance.JitterOffset(frame, renderWidth, displayWidth)
}

func (i *fakeInstance) RequiresRandomWriteOutput() bool {
	if i.desc.panicOn == "requirements" {
		panic("requirements exploded")
	}
	return i.BaseInstance.RequiresRandomWriteOutput()
}

// last returns the most recent instance of d, or nil.
func (d *fakeDescriptor) last() *fakeInstance {
	if len(d.created) == 0 {
		return nil
	}
	return d.created[len(d.created)-1]
}

// dispatchCount sums dispatches over every instance of d.
func (d *fakeDescriptor) dispatchCount() int {
	n := 0
	for _, i := range d.created {
		n += len(i.dispatches)
	}
	return n
}

// fakeSettings asks for a restart when dirty differs from the cached value.
type fakeSettings struct {
	dirty, cached bool
	updates       int
}

func (s *fakeSettings) RestartRequired() bool { return s.dirty != s.cached }
func (s *fakeSettings) UpdateCachedValues()   { s.cached = s.dirty; s.updates++ }

// fixture is a software device, pool and registry with a 4x4 red color
// input upscaled to an 8x8 output.
type fixture struct {
	dev    *render.SoftwareDevice
	pool   *pool.Pool
	reg    *Registry
	color  *render.SoftwareTexture
	output render.Texture
}

func newFixture(t *testing.T, descs ...Descriptor) *fixture {
	t.Helper()
	f := &fixture{
		dev:  render.NewSoftwareDevice(),
		pool: pool.New(),
		reg:  NewRegistry(),
	}
	for _, d := range descs {
		if !f.reg.Register(d) {
			t.Fatalf("Register(%s) rejected", d.Identifier())
		}
	}

	var err error
	f.color, err = f.dev.NewTextureFromImage(solid(4, 4, color.RGBA{255, 0, 0, 255}), gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("NewTextureFromImage: %v", err)
	}
	f.output, err = f.dev.CreateTexture(render.DefaultTextureDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return f
}

func (f *fixture) initParams() InitParams {
	return InitParams{
		View:          ViewGeometry{Name: "test"},
		MaxRenderSize: Sz(4, 4),
		DisplaySize:   Sz(8, 8),
		Device:        f.dev,
		Pool:          f.pool,
	}
}

func (f *fixture) frame(n uint64) *DispatchParams {
	return &DispatchParams{
		Projection: Identity(),
		Color:      render.NewTextureHandle(f.color),
		Output:     render.NewTextureHandle(f.output),
		RenderSize: Sz(4, 4),
		Frame:      n,
	}
}

// mask creates a mask texture filled with v.
func (f *fixture) mask(t *testing.T, v float32) render.Texture {
	t.Helper()
	tex, err := f.dev.CreateTexture(render.DefaultTextureDescriptor(4, 4, gputypes.TextureFormatR8Unorm))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := f.dev.Clear(tex, [4]float32{v, v, v, 1}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	return tex
}

// red returns the red channel of tex at (x, y) in [0,1].
func red(tex render.Texture, x, y int) float32 {
	return float32(tex.(*render.SoftwareTexture).Image(0).RGBA64At(x, y).R) / 0xffff
}

func near(a, b float32) bool {
	d := a - b
	return d < 1.0/512 && d > -1.0/512
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
