package renderer

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via New.
type RendererBuilderOption func(*renderPass)

// WithLogger sets the logger shared by the renderer and its sub-shaders.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger *zap.Logger) RendererBuilderOption {
	return func(r *renderPass) {
		if logger != nil {
			r.logger = logger.Named("renderer")
		}
	}
}

// WithScene sets the scene rendered from the first frame.
//
// Parameters:
//   - s: the scene
//
// Returns:
//   - RendererBuilderOption: a function that applies the scene option to a renderer
func WithScene(s scene.Scene) RendererBuilderOption {
	return func(r *renderPass) {
		r.sc = s
	}
}

// WithToneMapping selects the initial tone-mapping curve. The default is tonemap.ModeACES.
//
// Parameters:
//   - mode: the curve
//
// Returns:
//   - RendererBuilderOption: a function that applies the tone-mapping option to a renderer
func WithToneMapping(mode tonemap.Mode) RendererBuilderOption {
	return func(r *renderPass) {
		r.toneMapping = mode
	}
}

// WithMultipleScattering toggles the specular energy compensation, enabled by default.
//
// Parameters:
//   - enabled: true to compensate
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithMultipleScattering(enabled bool) RendererBuilderOption {
	return func(r *renderPass) {
		r.multipleScatt = enabled
	}
}

// WithWhiteFurnace replaces every material with the white furnace test material.
//
// Parameters:
//   - enabled: true to replace materials
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithWhiteFurnace(enabled bool) RendererBuilderOption {
	return func(r *renderPass) {
		r.whiteFurnace = enabled
	}
}

// WithDebugVisualization enables the strategy's debug overlay from the first frame.
func WithDebugVisualization(enabled bool) RendererBuilderOption {
	return func(r *renderPass) {
		r.debug = enabled
	}
}

// WithLightCapacity sizes the initial point light buffer. It grows on demand either way.
func WithLightCapacity(n int) RendererBuilderOption {
	return func(r *renderPass) {
		r.lightCapacity = n
	}
}
