// Command upscaledemo runs an image through an upscaling view for a number
// of frames and writes the upscaled result.
//
// Usage:
//
//	upscaledemo -i frame.png -o out.png -q Performance -a gogpu.taa -n 16
//
// Without --input a test pattern is rendered. The software device is used,
// so the demo runs anywhere.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/upscale"
	"github.com/gogpu/upscale/algorithms/spatial"
	"github.com/gogpu/upscale/algorithms/taa"
	"github.com/gogpu/upscale/config"
	"github.com/gogpu/upscale/metrics"
	"github.com/gogpu/upscale/pool"
	"github.com/gogpu/upscale/render"
)

func main() {
	opts := NewOptions()
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if err := opts.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "upscaledemo:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "upscaledemo:", err)
		os.Exit(1)
	}
}

// run executes the demo described by opts and writes a summary to w.
func run(ctx context.Context, opts *Options, w io.Writer) error {
	level, err := opts.level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	upscale.SetLogger(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var devOpts []render.SoftwareOption
	if opts.Workers > 0 {
		devOpts = append(devOpts, render.WithWorkers(opts.Workers))
	}
	dev := render.NewSoftwareDevice(devOpts...)
	defer dev.Close()
	reg := upscale.NewRegistry()
	reg.Register(taa.NewDescriptor(dev))
	reg.Register(spatial.NewDescriptor(dev))
	defer reg.Cleanup()

	m := metrics.New()
	promReg := prometheus.NewRegistry()
	if err := m.Register(promReg); err != nil {
		return err
	}
	p := pool.New(append(cfg.PoolOptions(), pool.WithMetrics(m))...)
	defer p.Cleanup()

	c := upscale.NewController(reg)
	if err := cfg.Apply(c); err != nil {
		return err
	}

	img, err := loadInput(opts)
	if err != nil {
		return err
	}
	renderSize := upscale.Sz(img.Bounds().Dx(), img.Bounds().Dy())
	displaySize := displayFor(renderSize, c)

	out, err := dev.CreateTexture(render.DefaultTextureDescriptor(
		uint32(displaySize.Width), uint32(displaySize.Height), gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		return err
	}
	defer out.Release()

	view := upscale.NewViewContext(reg,
		upscale.WithController(c),
		upscale.WithMetrics(m),
		upscale.WithName("demo"))
	defer view.Destroy()

	err = view.Initialize(nil, "", upscale.InitParams{
		View:          upscale.ViewGeometry{Name: "demo"},
		MaxRenderSize: renderSize,
		DisplaySize:   displaySize,
		OutputFormat:  gputypes.TextureFormatRGBA8Unorm,
		Device:        dev,
		Pool:          p,
	})
	if err != nil {
		return err
	}

	// The host frame arrives as an opaque reference; the view copies it
	// into a pooled texture every frame.
	colorDesc := render.DefaultTextureDescriptor(uint32(renderSize.Width), uint32(renderSize.Height), gputypes.TextureFormatRGBA8Unorm)
	colorRef := render.SoftwareView(img)
	alloc := pool.NewAllocator(p, dev)
	materialize := alloc.Materializer("demo.color")
	start := time.Now()
	for frame := 1; frame <= opts.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		alloc.BeginFrame(uint64(frame))
		params := &upscale.DispatchParams{
			Color:      render.NewOpaqueTextureHandle(colorRef, colorDesc, materialize),
			Output:     render.NewTextureHandle(out),
			RenderSize: renderSize,
			Frame:      uint64(frame),
		}
		if on, _ := c.AutoReactive(); on {
			params.OpaqueOnly = params.Color
		}
		err := view.Execute(params)
		alloc.EndFrame()
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	elapsed := time.Since(start)

	if err := writePNG(opts.Output, out); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %v -> %v with %s (%s)\n", view.Name(), renderSize, displaySize, view.Selected(), view.State())
	fmt.Fprintf(w, "%s in %v\n", view.Stats(), elapsed.Round(time.Microsecond))
	pr := message.NewPrinter(language.English)
	pr.Fprintf(w, "%d output texels per frame, %.1f frames/s\n",
		displaySize.Width*displaySize.Height, float64(opts.Frames)/max(elapsed.Seconds(), 1e-9))
	fmt.Fprintf(w, "%s\n", p.Stats())
	fmt.Fprintf(w, "wrote %s\n", opts.Output)

	if opts.MetricsAddr == "" {
		return nil
	}
	return serveMetrics(ctx, opts.MetricsAddr, promReg)
}

// loadConfig reads --config and lets explicitly set flags override it.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	override := func(name string) bool { return opts.Config == "" || opts.Changed(name) }
	if override("quality") {
		cfg.Quality = opts.Quality
	}
	if len(opts.Algorithms) > 0 {
		cfg.Algorithms = opts.Algorithms
	}
	if override("sharpen") {
		cfg.Sharpening.Enabled = opts.Sharpen
	}
	if override("sharpness") {
		cfg.Sharpening.Sharpness = opts.Sharpness
	}
	if override("auto-reactive") {
		cfg.AutoReactive.Enabled = opts.Reactive
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// displayFor returns the output size the render size upscales to.
func displayFor(renderSize upscale.Size, c *upscale.Controller) upscale.Size {
	if !c.Enabled() {
		return renderSize
	}
	s := float64(c.Scale())
	return upscale.Sz(
		int(math.Round(float64(renderSize.Width)*s)),
		int(math.Round(float64(renderSize.Height)*s)))
}

func loadInput(opts *Options) (image.Image, error) {
	if opts.Input == "" {
		return testPattern(opts.PatternWidth, opts.PatternHeight), nil
	}
	f, err := os.Open(opts.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", opts.Input, err)
	}
	return img, nil
}

// testPattern renders a checkerboard over a gradient, which makes resampling
// artifacts easy to spot.
func testPattern(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(255 * x / max(w-1, 1))
			g := uint8(255 * y / max(h-1, 1))
			b := uint8(64)
			if (x/8+y/8)%2 == 0 {
				b = 224
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func writePNG(path string, tex render.Texture) error {
	st, ok := tex.(*render.SoftwareTexture)
	if !ok {
		return fmt.Errorf("write %s: %T is not readable", path, tex)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, st.Image(0)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	upscale.Logger().Info("serving metrics", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
