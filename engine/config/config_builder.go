package config

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
)

// ConfigBuilderOption overrides one setting of a Config. The host maps explicitly set command-line
// flags to options and applies them after Load.
type ConfigBuilderOption func(c *Config)

// New returns Default with options applied.
//
// Parameters:
//   - options: the overrides, applied in order
//
// Returns:
//   - Config: the configuration
func New(options ...ConfigBuilderOption) Config {
	c := Default()
	c.Apply(options...)
	return c
}

// Apply applies options to c in order.
func (c *Config) Apply(options ...ConfigBuilderOption) {
	for _, opt := range options {
		opt(c)
	}
}

// WithRenderPath selects the lighting strategy.
//
// Parameters:
//   - path: the strategy
//
// Returns:
//   - ConfigBuilderOption: option function to apply
func WithRenderPath(path renderer.RenderPath) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.Path = path
	}
}

// WithToneMapping selects the tone-mapping curve.
//
// Parameters:
//   - mode: the curve
//
// Returns:
//   - ConfigBuilderOption: option function to apply
func WithToneMapping(mode tonemap.Mode) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.ToneMapping = mode
	}
}

func WithMultipleScattering(enabled bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.MultipleScattering = enabled
	}
}

func WithWhiteFurnace(enabled bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.WhiteFurnace = enabled
	}
}

func WithVSync(enabled bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.VSync = enabled
	}
}

// WithHeadless renders with the software backend and no window, stopping after frames frames.
//
// Parameters:
//   - frames: the frame count; 0 renders until interrupted
//
// Returns:
//   - ConfigBuilderOption: option function to apply
func WithHeadless(frames int) ConfigBuilderOption {
	return func(c *Config) {
		c.Renderer.Headless = true
		c.Renderer.Frames = frames
	}
}

// WithLightCount sets the number of generated point lights.
func WithLightCount(n int) ConfigBuilderOption {
	return func(c *Config) {
		c.Lights.Count = n
	}
}

// WithMaxLights bounds the light count.
func WithMaxLights(n int) ConfigBuilderOption {
	return func(c *Config) {
		c.Lights.Max = n
	}
}

// WithMovingLights makes the lights orbit the scene centre.
func WithMovingLights(moving bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Lights.Moving = moving
	}
}

// WithWindowSize sets the initial window size in pixels.
//
// Parameters:
//   - width, height: the size
//
// Returns:
//   - ConfigBuilderOption: option function to apply
func WithWindowSize(width, height int) ConfigBuilderOption {
	return func(c *Config) {
		c.Window.Width = width
		c.Window.Height = height
	}
}

// WithLogFile sets the file that mirrors the log; empty disables the file sink.
func WithLogFile(path string) ConfigBuilderOption {
	return func(c *Config) {
		c.Output.LogFile = path
	}
}

func WithLogLevel(level string) ConfigBuilderOption {
	return func(c *Config) {
		c.Output.LogLevel = level
	}
}

// WithScreenshotDir sets the directory screenshots are written to.
func WithScreenshotDir(dir string) ConfigBuilderOption {
	return func(c *Config) {
		c.Output.ScreenshotDir = dir
	}
}

func WithProfile(enabled bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Output.Profile = enabled
	}
}
