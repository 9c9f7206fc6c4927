package upscale

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

// State is the lifecycle state of a ViewContext.
type State int

const (
	// StateUninitialized is the state before the first Initialize.
	StateUninitialized State = iota

	// StateActive has an algorithm instance dispatching every frame.
	StateActive

	// StatePendingRestart is entered on the frame a restart is detected.
	// That frame is served by the fallback resize only.
	StatePendingRestart

	// StateReinitializing tears the old instance down and walks the chain
	// again. It is left before Execute returns.
	StateReinitializing

	// StateNoAlgorithm is the steady fallback-resize mode entered when the
	// chain is exhausted.
	StateNoAlgorithm

	// StateDestroyed is terminal.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StatePendingRestart:
		return "PendingRestart"
	case StateReinitializing:
		return "Reinitializing"
	case StateNoAlgorithm:
		return "NoAlgorithm"
	case StateDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ViewStats counts what a view did.
type ViewStats struct {
	Frames           uint64
	Dispatches       uint64
	Fallbacks        uint64
	Restarts         uint64
	DispatchFailures uint64
	Undersized       uint64
}

// String returns a human-readable summary.
func (s ViewStats) String() string {
	return fmt.Sprintf("View[%d frames, %d dispatched, %d fallback, %d restarts, %d failed, %d undersized]",
		s.Frames, s.Dispatches, s.Fallbacks, s.Restarts, s.DispatchFailures, s.Undersized)
}

// OutputRequirements are the constraints the active instance puts on the
// integration layer's buffers.
type OutputRequirements struct {
	RandomWrite bool
	OpaqueOnly  bool
}

// Pool binding names of the targets a view owns.
const (
	reactiveMaskName = "upscale.reactiveMask"
	autoReactiveName = "upscale.autoReactive"
)

// ViewContext drives upscaling for one view.
//
// It owns at most one algorithm instance, walks the fallback chain when
// algorithms are unsupported or fail, swaps algorithms when the selection
// changes or the instance asks for it, and builds the auxiliary inputs
// before every dispatch.
//
// A ViewContext is not safe for concurrent use. Several views may share a
// Registry and a pool.Pool.
type ViewContext struct {
	registry *Registry
	opts     viewOptions

	state State

	chain    []string
	selected string

	// initSelection is the selection the current instance was created for.
	initSelection string

	params   InitParams
	active   Descriptor
	instance Instance
	settings Settings

	alloc *pool.Allocator

	// reactive is the merged reactive mask target, allocated on first need.
	reactive     render.Texture
	reactiveDesc render.TextureDescriptor

	frame uint64

	noAlgorithmLogged bool
	lastErr           error
	stats             ViewStats
}

// NewViewContext creates an uninitialized view selecting from reg.
func NewViewContext(reg *Registry, opts ...ViewOption) *ViewContext {
	o := defaultViewOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ViewContext{registry: reg, opts: o}
}

// Initialize adopts the first algorithm that is supported and initializes,
// trying primary first and then chain in order.
//
// When nothing can be adopted the view enters StateNoAlgorithm and serves
// every frame with the fallback resize; Initialize still returns nil. Only
// invalid params and a destroyed view are errors.
//
// With a controller attached, an empty chain and primary are taken from it.
func (v *ViewContext) Initialize(chain []string, primary string, params InitParams) error {
	if v.state == StateDestroyed {
		return ErrViewDestroyed
	}
	if err := params.Validate(); err != nil {
		return err
	}

	v.teardown()

	if c := v.opts.controller; c != nil {
		if len(chain) == 0 {
			chain = c.Chain()
		}
		if primary == "" {
			primary = c.Primary()
		}
	}
	if primary == "" && len(chain) > 0 {
		primary = chain[0]
	}

	v.chain = slices.Clone(chain)
	v.selected = primary
	v.params = params
	v.alloc = pool.NewAllocator(params.Pool, params.Device)
	v.noAlgorithmLogged = false

	v.adopt()
	return nil
}

// adopt walks the selection and the chain and activates the first candidate
// that initializes.
func (v *ViewContext) adopt() {
	v.initSelection = v.selection()

	candidates := make([]string, 0, len(v.chain)+1)
	if v.initSelection != "" {
		candidates = append(candidates, v.initSelection)
	}
	for _, id := range v.chain {
		if !slices.Contains(candidates, id) {
			candidates = append(candidates, id)
		}
	}

	var errs []error
	for _, id := range candidates {
		err := v.tryActivate(id)
		if err == nil {
			v.lastErr = nil
			v.setState(StateActive)
			Logger().Info("upscale: algorithm adopted",
				slog.String("view", v.Name()),
				slog.String("algorithm", id),
				slog.String("render", v.params.MaxRenderSize.String()),
				slog.String("display", v.params.DisplaySize.String()))
			return
		}
		errs = append(errs, err)
		Logger().Debug("upscale: candidate rejected",
			slog.String("view", v.Name()),
			slog.String("algorithm", id),
			slog.String("error", err.Error()))
	}

	v.lastErr = errors.Join(append([]error{ErrNoAlgorithmAvailable}, errs...)...)
	v.setState(StateNoAlgorithm)
	if !v.noAlgorithmLogged {
		v.noAlgorithmLogged = true
		Logger().Warn("upscale: no algorithm available, using fallback resize",
			slog.String("view", v.Name()),
			slog.Int("candidates", len(candidates)))
	}
}

// tryActivate creates and initializes the algorithm registered under id.
// On failure the view is left without an instance.
func (v *ViewContext) tryActivate(id string) error {
	d := v.registry.FindByIdentifier(id)
	if d == nil {
		v.opts.metrics.RecordInitFailure(id, "not_found")
		return &AlgorithmNotFoundError{Identifier: id}
	}
	if !d.Supported() {
		v.opts.metrics.RecordInitFailure(id, "unsupported")
		return &AlgorithmError{Identifier: id, Op: "select", Err: ErrUnsupportedAlgorithm}
	}

	settings := v.settingsFor(d)
	inst, err := safeCreate(d, settings, v.params)
	if err == nil && inst == nil {
		err = errors.New("factory returned no instance")
	}
	if err != nil {
		v.opts.metrics.RecordInitFailure(id, "create")
		return &AlgorithmError{Identifier: id, Op: "create", Err: errors.Join(ErrCreationFailure, err)}
	}
	if err := safeInitialize(inst, v.params); err != nil {
		_ = safeDestroy(inst)
		v.opts.metrics.RecordInitFailure(id, "initialize")
		return &AlgorithmError{Identifier: id, Op: "initialize", Err: errors.Join(ErrCreationFailure, err)}
	}

	v.active = d
	v.instance = inst
	v.settings = settings
	return nil
}

// settingsFor returns the controller's settings for d, or fresh ones.
func (v *ViewContext) settingsFor(d Descriptor) Settings {
	if c := v.opts.controller; c != nil {
		if s := c.Settings(d.Identifier()); s != nil {
			return s
		}
	}
	if s := d.NewSettings(); s != nil {
		return s
	}
	return NoSettings{}
}

// selection returns the identifier the user currently wants.
func (v *ViewContext) selection() string {
	if c := v.opts.controller; c != nil {
		if id := c.Primary(); id != "" {
			return id
		}
	}
	return v.selected
}

// Select changes the selected algorithm. The swap happens on the next
// Execute. With a controller attached, use Controller.SetPrimary instead.
func (v *ViewContext) Select(id string) {
	v.selected = id
	if c := v.opts.controller; c != nil {
		c.SetPrimary(id)
	}
}

// restartReason returns why the view must restart, or "".
func (v *ViewContext) restartReason() string {
	if v.selection() != v.initSelection {
		return "selection"
	}
	if v.instance == nil {
		return ""
	}
	if v.settings != nil && v.settings.RestartRequired() {
		return "settings"
	}
	if safeRestartRequired(v.instance) {
		return "instance"
	}
	return ""
}

// Execute upscales one frame.
//
// On the frame a restart is detected Execute only performs the fallback
// resize, then recreates the algorithm before returning, so no dispatch is
// in flight while the old instance is destroyed. Without an algorithm, or
// with a render size below the algorithm's minimum, the frame is a fallback
// resize. Otherwise the view fills defaults, builds the reactive mask,
// computes jitter and dispatches.
//
// Backend failures never escape: a failed or panicking dispatch falls back
// for that frame. Execute returns an error only when even the fallback
// resize cannot run or the view is not usable.
//
// Execute fills params.JitterOffset and the defaulted inputs.
func (v *ViewContext) Execute(params *DispatchParams) (err error) {
	switch {
	case v.state == StateDestroyed:
		return ErrViewDestroyed
	case v.state == StateUninitialized:
		return ErrNotInitialized
	case params == nil:
		return fmt.Errorf("%w: nil dispatch params", ErrInvalidParams)
	}

	v.frame = params.Frame
	v.stats.Frames++
	v.alloc.BeginFrame(params.Frame)
	defer v.endFrame()

	if reason := v.restartReason(); reason != "" {
		return v.restart(params, reason)
	}

	if v.instance == nil {
		return v.fallback(params)
	}

	renderSize := params.RenderSizeOrColor()
	if minSize := safeMinimumRenderSize(v.instance); renderSize.SmallerThan(minSize) {
		v.stats.Undersized++
		v.lastErr = &AlgorithmError{
			Identifier: v.active.Identifier(),
			Op:         "dispatch",
			Err:        fmt.Errorf("%w: %v below %v", ErrUndersizedRenderTarget, renderSize, minSize),
		}
		Logger().Debug("upscale: render size below algorithm minimum",
			slog.String("view", v.Name()),
			slog.String("algorithm", v.active.Identifier()),
			slog.String("render", renderSize.String()),
			slog.String("minimum", minSize.String()))
		return v.fallback(params)
	}

	if err := v.dispatch(params, renderSize); err != nil {
		v.stats.DispatchFailures++
		v.lastErr = err
		Logger().Warn("upscale: dispatch failed, using fallback resize",
			slog.String("view", v.Name()),
			slog.String("algorithm", v.active.Identifier()),
			slog.String("error", err.Error()))
		return v.fallback(params)
	}
	v.lastErr = nil
	return nil
}

// endFrame retires the frame's temporaries and lets settings snapshot.
func (v *ViewContext) endFrame() {
	v.alloc.EndFrame()
	if p := v.params.Pool; p != nil {
		p.PurgeStale(v.frame)
	}
	if c := v.opts.controller; c != nil {
		c.EndFrame()
	} else if v.settings != nil {
		v.settings.UpdateCachedValues()
	}
}

// restart serves the frame with the fallback resize, then recreates the
// algorithm for the current selection.
func (v *ViewContext) restart(params *DispatchParams, reason string) error {
	v.setState(StatePendingRestart)
	v.stats.Restarts++
	v.opts.metrics.RecordRestart(reason)
	Logger().Info("upscale: restarting algorithm",
		slog.String("view", v.Name()),
		slog.String("reason", reason),
		slog.String("from", v.initSelection),
		slog.String("to", v.selection()))

	err := v.fallback(params)

	v.setState(StateReinitializing)
	v.teardown()
	v.adopt()
	return err
}

// dispatch prepares params and calls the active instance.
func (v *ViewContext) dispatch(params *DispatchParams, renderSize Size) error {
	id := v.active.Identifier()
	caps := v.active.Capabilities()

	if err := v.resolveInputs(params); err != nil {
		return &AlgorithmError{Identifier: id, Op: "dispatch", Err: err}
	}
	if !params.OpaqueOnly.IsValid() {
		params.OpaqueOnly = params.Color
	}

	if caps.AcceptsReactiveMask {
		mask, err := v.buildReactiveMask(params, renderSize)
		if err != nil {
			return &AlgorithmError{Identifier: id, Op: "reactive", Err: err}
		}
		params.ReactiveMask = render.NewTextureHandle(mask)
	}

	params.JitterOffset = v.JitterOffset(params.Frame, renderSize)
	if c := v.opts.controller; c != nil {
		params.Sharpening, params.Sharpness = c.Sharpening()
	}

	start := time.Now()
	if err := safeDispatch(v.instance, params); err != nil {
		return &AlgorithmError{Identifier: id, Op: "dispatch", Err: err}
	}
	v.opts.metrics.RecordDispatchDuration(id, time.Since(start))
	v.opts.metrics.RecordDispatch(id, false)
	v.stats.Dispatches++
	return nil
}

// resolveInputs materializes every opaque input once for this frame.
func (v *ViewContext) resolveInputs(params *DispatchParams) error {
	inputs := []*render.TextureHandle{
		&params.Color, &params.Depth, &params.MotionVectors, &params.Exposure,
		&params.ReactiveMask, &params.OpaqueOnly,
	}
	for _, h := range inputs {
		if !h.IsValid() {
			continue
		}
		resolved, err := h.Resolve()
		if err != nil {
			return err
		}
		*h = resolved
	}
	return nil
}

// fallback resamples the rendered region of the color input onto the output.
func (v *ViewContext) fallback(params *DispatchParams) error {
	v.stats.Fallbacks++
	v.opts.metrics.RecordDispatch(v.algorithmLabel(), true)

	src, err := params.Color.Texture()
	if err != nil {
		return fmt.Errorf("upscale: fallback color: %w", err)
	}
	dst, err := v.output(params)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: no color input", ErrInvalidParams)
	}

	slice := v.slice(params)
	renderSize := params.RenderSizeOrColor()
	err = v.params.Device.Blit(src, dst, render.BlitOptions{
		SrcRect:  renderSize.Rect(),
		SrcSlice: slice,
		DstSlice: slice,
		Filter:   v.opts.fallbackFilter,
	})
	if err != nil {
		return fmt.Errorf("upscale: fallback resize: %w", err)
	}
	return nil
}

// output returns the output texture. Outputs are written, so they must be
// concrete: materializing an opaque output would write into a copy.
func (v *ViewContext) output(params *DispatchParams) (render.Texture, error) {
	if !params.Output.IsConcrete() {
		return nil, fmt.Errorf("%w: output must be a concrete texture", ErrInvalidParams)
	}
	return params.Output.Texture()
}

// slice returns the array slice of this frame's targets.
func (v *ViewContext) slice(params *DispatchParams) int {
	if v.params.TextureArrays {
		return params.ViewIndex
	}
	return 0
}

// JitterOffset returns the pixel jitter the view applies at frame. Temporal
// algorithms supply their own pattern; everything else gets zero.
// The integration layer calls it before drawing the scene to jitter the
// projection.
func (v *ViewContext) JitterOffset(frame uint64, renderSize Size) Vec2 {
	if v.instance == nil || v.active == nil || !v.active.Capabilities().Temporal {
		return Vec2{}
	}
	return safeJitterOffset(v.instance, frame, renderSize.Width, v.params.DisplaySize.Width)
}

// JitteredProjection returns proj with this frame's jitter applied in clip
// space.
func (v *ViewContext) JitteredProjection(proj Mat4, frame uint64, renderSize Size) Mat4 {
	return proj.Jittered(JitterTranslation(v.JitterOffset(frame, renderSize), renderSize))
}

// teardown destroys the instance and returns owned targets to the pool.
func (v *ViewContext) teardown() {
	if v.instance != nil {
		if err := safeDestroy(v.instance); err != nil {
			Logger().Warn("upscale: algorithm destroy failed",
				slog.String("view", v.Name()),
				slog.String("algorithm", v.active.Identifier()),
				slog.String("error", err.Error()))
		}
	}
	v.active = nil
	v.instance = nil
	v.settings = nil
	v.releaseReactive()
}

// Destroy tears the view down. It is safe to call more than once.
func (v *ViewContext) Destroy() {
	if v.state == StateDestroyed {
		return
	}
	v.teardown()
	if v.alloc != nil {
		v.alloc.EndFrame()
	}
	v.setState(StateDestroyed)
}

// State returns the lifecycle state.
func (v *ViewContext) State() State { return v.state }

// Available reports whether an algorithm is active.
func (v *ViewContext) Available() bool {
	return v.state == StateActive && v.instance != nil
}

// ActiveDescriptor returns the descriptor of the active algorithm, or nil.
func (v *ViewContext) ActiveDescriptor() Descriptor { return v.active }

// Selected returns the currently selected identifier.
func (v *ViewContext) Selected() string { return v.selection() }

// Err returns why the last frame did not reach the algorithm, or nil once a
// dispatch succeeds. In StateNoAlgorithm it matches ErrNoAlgorithmAvailable,
// after an undersized frame ErrUndersizedRenderTarget.
func (v *ViewContext) Err() error { return v.lastErr }

// Stats returns the view counters.
func (v *ViewContext) Stats() ViewStats { return v.stats }

// OutputRequirements reports the buffer constraints of the active algorithm.
func (v *ViewContext) OutputRequirements() OutputRequirements {
	if v.instance == nil {
		return OutputRequirements{}
	}
	return safeOutputRequirements(v.instance)
}

// Name returns the view name used in logs and metrics.
func (v *ViewContext) Name() string {
	if v.opts.name != "" {
		return v.opts.name
	}
	if v.params.View.Name != "" {
		return v.params.View.Name
	}
	return "default"
}

func (v *ViewContext) algorithmLabel() string {
	if v.active == nil {
		return "none"
	}
	return v.active.Identifier()
}

func (v *ViewContext) setState(s State) {
	v.state = s
	v.opts.metrics.RecordViewState(v.Name(), int(s))
}

// Backend calls are isolated so a panicking implementation cannot take the
// render loop down.

func safeCreate(d Descriptor, s Settings, p InitParams) (inst Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, panicError(r)
		}
	}()
	return d.CreateInstance(s, p)
}

func safeInitialize(inst Instance, p InitParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return inst.Initialize(p)
}

func safeDispatch(inst Instance, p *DispatchParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return inst.Dispatch(p)
}

func safeDestroy(inst Instance) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	inst.Destroy()
	return nil
}

func safeRestartRequired(inst Instance) (restart bool) {
	defer func() {
		if r := recover(); r != nil {
			restart = true
		}
	}()
	return inst.RestartRequired()
}

func safeMinimumRenderSize(inst Instance) (size Size) {
	defer func() {
		if r := recover(); r != nil {
			size = Size{}
		}
	}()
	return inst.MinimumRenderSize()
}

func safeJitterOffset(inst Instance, frame uint64, renderWidth, displayWidth int) (offset Vec2) {
	defer func() {
		if r := recover(); r != nil {
			offset = Vec2{}
			Logger().Warn("upscale: jitter offset failed, using zero jitter",
				slog.String("error", panicError(r).Error()))
		}
	}()
	return inst.JitterOffset(frame, renderWidth, displayWidth)
}

func safeOutputRequirements(inst Instance) (req OutputRequirements) {
	defer func() {
		if r := recover(); r != nil {
			req = OutputRequirements{}
		}
	}()
	return OutputRequirements{
		RandomWrite: inst.RequiresRandomWriteOutput(),
		OpaqueOnly:  inst.RequiresOpaqueOnlyInput(),
	}
}
