package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/gogpu/upscale"
)

// Options contains the command-line configuration of upscaledemo.
type Options struct {
	Input  string // PNG at render resolution; empty renders a test pattern.
	Output string
	Config string // optional YAML file, see package config

	Frames     int
	Quality    string
	Algorithms []string
	Sharpen    bool
	Sharpness  float32
	Reactive   bool
	Workers    int // CPU passes run on this many goroutines; 0 runs them inline

	PatternWidth  int
	PatternHeight int

	LogLevel    string
	MetricsAddr string // serve Prometheus metrics until interrupted

	fs *pflag.FlagSet
}

// NewOptions returns Options with default values.
func NewOptions() *Options {
	return &Options{
		Output:        "upscaled.png",
		Frames:        8,
		Quality:       upscale.QualityQuality.String(),
		Sharpness:     0.5,
		PatternWidth:  320,
		PatternHeight: 180,
		LogLevel:      "info",
	}
}

// AddFlags binds the Options fields to flags on fs.
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVarP(&opts.Input, "input", "i", opts.Input,
		"PNG rendered at render resolution. Empty renders a test pattern.")
	fs.StringVarP(&opts.Output, "output", "o", opts.Output,
		"PNG file the upscaled last frame is written to.")
	fs.StringVar(&opts.Config, "config", opts.Config,
		"YAML configuration file. Flags set explicitly override it.")
	fs.IntVarP(&opts.Frames, "frames", "n", opts.Frames,
		"Number of frames to run through the view.")
	fs.StringVarP(&opts.Quality, "quality", "q", opts.Quality,
		"Quality level: NativeAA, UltraQuality, Quality, Balanced, Performance, UltraPerformance.")
	fs.StringSliceVarP(&opts.Algorithms, "algorithm", "a", opts.Algorithms,
		"Algorithm identifiers in selection order. Repeatable.")
	fs.BoolVar(&opts.Sharpen, "sharpen", opts.Sharpen,
		"Apply contrast adaptive sharpening.")
	fs.Float32Var(&opts.Sharpness, "sharpness", opts.Sharpness,
		"Sharpening strength in [0,1].")
	fs.BoolVar(&opts.Reactive, "auto-reactive", opts.Reactive,
		"Generate the reactive mask from the color input.")
	fs.IntVarP(&opts.Workers, "workers", "j", opts.Workers,
		"Goroutines the software device splits passes across. 0 runs them inline.")
	fs.IntVar(&opts.PatternWidth, "pattern-width", opts.PatternWidth,
		"Width of the generated test pattern.")
	fs.IntVar(&opts.PatternHeight, "pattern-height", opts.PatternHeight,
		"Height of the generated test pattern.")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel,
		"Log level: debug, info, warn, error.")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr,
		"Address to serve Prometheus metrics on after the run, e.g. :9090.")
}

// Changed reports whether the flag name was set on the command line.
func (opts *Options) Changed(name string) bool {
	if opts.fs == nil {
		return false
	}
	f := opts.fs.Lookup(name)
	return f != nil && f.Changed
}

// Validate checks the Options for invalid values.
func (opts *Options) Validate() error {
	if opts.Output == "" {
		return errors.New("--output is required")
	}
	if opts.Frames < 1 {
		return fmt.Errorf("invalid value %d for flag \"frames\": must be >= 1", opts.Frames)
	}
	if opts.Workers < 0 {
		return fmt.Errorf("invalid value %d for flag \"workers\": must be >= 0", opts.Workers)
	}
	if _, err := upscale.ParseQuality(opts.Quality); err != nil {
		return fmt.Errorf("invalid value for flag \"quality\": %w", err)
	}
	if opts.Sharpness < 0 || opts.Sharpness > 1 {
		return fmt.Errorf("invalid value %v for flag \"sharpness\": must be in [0,1]", opts.Sharpness)
	}
	if opts.Input == "" && (opts.PatternWidth < 1 || opts.PatternHeight < 1) {
		return fmt.Errorf("invalid test pattern size %dx%d", opts.PatternWidth, opts.PatternHeight)
	}
	if _, err := opts.level(); err != nil {
		return err
	}
	return nil
}

func (opts *Options) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(opts.LogLevel))); err != nil {
		return l, fmt.Errorf("invalid value %q for flag \"log-level\"", opts.LogLevel)
	}
	return l, nil
}
