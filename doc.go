// Package upscale orchestrates pluggable real-time upscaling algorithms.
//
// # Overview
//
// An application registers algorithm descriptors in a [Registry], creates
// one [ViewContext] per rendered view and calls [ViewContext.Execute] every
// frame with the view's buffers. The view picks the first algorithm of its
// fallback chain that is supported and initializes, builds the auxiliary
// inputs the algorithm needs, computes jitter and dispatches. When no
// algorithm can run, the view keeps producing output with a plain resize.
//
// # Quick Start
//
//	dev := render.NewSoftwareDevice()
//	textures := pool.New()
//
//	reg := upscale.NewRegistry()
//	reg.Register(taa.NewDescriptor(dev))
//	reg.Register(spatial.NewDescriptor(dev))
//
//	view := upscale.NewViewContext(reg)
//	err := view.Initialize([]string{taa.Identifier, spatial.Identifier}, "", upscale.InitParams{
//	    MaxRenderSize: upscale.QualityQuality.RenderSize(display),
//	    DisplaySize:   display,
//	    Device:        dev,
//	    Pool:          textures,
//	})
//
//	// every frame:
//	err = view.Execute(&upscale.DispatchParams{
//	    Color:      render.NewTextureHandle(color),
//	    Output:     render.NewTextureHandle(output),
//	    RenderSize: renderSize,
//	    Frame:      frame,
//	})
//
// # Restarts
//
// Changing the selected algorithm, or an instance or its settings asking for
// a restart, is handled on the next Execute: that frame is served by the
// fallback resize only, then the old instance is destroyed and the chain is
// walked again. No dispatch is ever in flight while an instance is destroyed,
// and a restart costs exactly one frame.
//
// # Resources
//
// Temporary targets come from a shared [pool.Pool] through a per-view
// [pool.Allocator]. Targets retired during a frame are not handed out again
// in the same frame, and unused targets are released after the pool
// lifetime.
//
// # Logging
//
// upscale is silent by default. Call [SetLogger] to route its diagnostics to
// a [log/slog] logger.
package upscale
