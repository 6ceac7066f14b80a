package pipeline

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline.
//
// Parameters:
//   - s: the fragment shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithState sets the blend, cull and depth state.
//
// Parameters:
//   - state: the fixed-function state flags
//
// Returns:
//   - PipelineBuilderOption: a function that sets the state for this pipeline
func WithState(state gpu.StateFlags) PipelineBuilderOption {
	return func(p *pipeline) {
		p.state = state
	}
}

// WithColorFormats sets the color target formats in attachment order.
//
// Parameters:
//   - formats: one format per color attachment
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color formats for this pipeline
func WithColorFormats(formats ...gpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.colorFormats = formats
	}
}

// WithDepthFormat sets the depth attachment format.
//
// Parameters:
//   - format: the depth format, gpu.FormatUndefined for no depth attachment
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth format for this pipeline
func WithDepthFormat(format gpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}

// WithSurfaceTarget marks the pipeline as rendering into the presentation surface.
//
// Returns:
//   - PipelineBuilderOption: a function that marks the pipeline as a surface pipeline
func WithSurfaceTarget() PipelineBuilderOption {
	return func(p *pipeline) {
		p.surfaceTarget = true
		p.colorFormats = nil
	}
}

// WithDepthBias sets a constant depth bias.
//
// Parameters:
//   - bias: the constant depth bias to apply
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias for this pipeline
func WithDepthBias(bias int32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias = bias
	}
}

// WithHostKernel attaches the host-side twin of the compute shader.
//
// Parameters:
//   - k: the kernel run once per invocation
//
// Returns:
//   - PipelineBuilderOption: a function that sets the host kernel for this pipeline
func WithHostKernel(k gpu.HostKernel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.hostKernel = k
	}
}

// WithHostFragment attaches the host-side twin of a fullscreen fragment shader.
//
// Parameters:
//   - f: the function run once per target pixel
//
// Returns:
//   - PipelineBuilderOption: a function that sets the host fragment for this pipeline
func WithHostFragment(f gpu.HostFragment) PipelineBuilderOption {
	return func(p *pipeline) {
		p.hostFragment = f
	}
}
