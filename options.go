package upscale

import (
	"github.com/gogpu/upscale/metrics"
	"github.com/gogpu/upscale/render"
)

// ViewOption configures a ViewContext during creation.
//
// Example:
//
//	ctrl := upscale.NewController(reg, "taa", "spatial")
//	view := upscale.NewViewContext(reg,
//	    upscale.WithController(ctrl),
//	    upscale.WithMetrics(m))
type ViewOption func(*viewOptions)

// viewOptions holds optional configuration for ViewContext creation.
type viewOptions struct {
	name           string
	controller     *Controller
	metrics        *metrics.Metrics
	fallbackFilter render.Filter
}

// defaultViewOptions returns the default view options.
func defaultViewOptions() viewOptions {
	return viewOptions{
		fallbackFilter: render.FilterBilinear,
	}
}

// WithController attaches a controller. The view then takes its selection,
// settings, sharpening and reactive mask sources from it, and calls its
// EndFrame after every Execute.
func WithController(c *Controller) ViewOption {
	return func(o *viewOptions) {
		o.controller = c
	}
}

// WithMetrics records view activity into m.
func WithMetrics(m *metrics.Metrics) ViewOption {
	return func(o *viewOptions) {
		o.metrics = m
	}
}

// WithName names the view in logs and metrics. Without it the view uses
// InitParams.View.Name.
func WithName(name string) ViewOption {
	return func(o *viewOptions) {
		o.name = name
	}
}

// WithFallbackFilter sets the resampling filter of the fallback resize.
func WithFallbackFilter(f render.Filter) ViewOption {
	return func(o *viewOptions) {
		o.fallbackFilter = f
	}
}
