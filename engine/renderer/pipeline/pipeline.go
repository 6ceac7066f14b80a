package pipeline

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	vertexShader, fragmentShader, computeShader shader.Shader

	// state is the fixed-function state baked into the pipeline.
	state gpu.StateFlags
	// colorFormats lists the formats of the color targets, in attachment order.
	colorFormats []gpu.TextureFormat
	// depthFormat is the depth attachment format, FormatUndefined for no depth.
	depthFormat gpu.TextureFormat
	// surfaceTarget is true when the single color target is the presentation surface.
	surfaceTarget bool
	// depthBias is a constant depth offset applied to every fragment.
	depthBias int32

	// hostKernel executes the compute stage on backends without a device.
	hostKernel gpu.HostKernel
	// hostFragment executes a fullscreen fragment stage on backends without a device.
	hostFragment gpu.HostFragment
}

// Pipeline describes a compute pipeline (compute shader) or a render pipeline (vertex +
// fragment shaders with fixed-function state and target formats). It carries no backend
// objects; backends compile it in RegisterPipeline and look it up by key afterwards.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader of the given stage, nil when not set.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// State returns the blend, cull and depth state of a render pipeline.
	//
	// Returns:
	//   - gpu.StateFlags: the fixed-function state
	State() gpu.StateFlags

	// ColorFormats returns the color target formats in attachment order.
	//
	// Returns:
	//   - []gpu.TextureFormat: the color formats
	ColorFormats() []gpu.TextureFormat

	// DepthFormat returns the depth target format, gpu.FormatUndefined without depth.
	//
	// Returns:
	//   - gpu.TextureFormat: the depth format
	DepthFormat() gpu.TextureFormat

	// SurfaceTarget reports whether the pipeline renders to the presentation surface, whose
	// format is only known to the backend.
	//
	// Returns:
	//   - bool: true for surface pipelines
	SurfaceTarget() bool

	// DepthBias returns the constant depth bias.
	//
	// Returns:
	//   - int32: the depth bias
	DepthBias() int32

	// HostKernel returns the host-side compute implementation, nil if the pipeline has none.
	//
	// Returns:
	//   - gpu.HostKernel: the kernel or nil
	HostKernel() gpu.HostKernel

	// HostFragment returns the host-side fullscreen fragment implementation, nil if none.
	//
	// Returns:
	//   - gpu.HostFragment: the fragment function or nil
	HostFragment() gpu.HostFragment

	// WithState returns a copy of this pipeline with a different key and state, used to build
	// per-material variants of a base pipeline.
	//
	// Parameters:
	//   - key: the key of the variant
	//   - state: the state of the variant
	//
	// Returns:
	//   - Pipeline: the variant
	WithState(key string, state gpu.StateFlags) Pipeline
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. Render pipelines default to
// gpu.StateDefault with a single RGBA16F color target and no depth.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		state:        gpu.StateDefault,
		colorFormats: []gpu.TextureFormat{gpu.FormatRGBA16F},
		depthFormat:  gpu.FormatUndefined,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) State() gpu.StateFlags {
	return p.state
}

func (p *pipeline) ColorFormats() []gpu.TextureFormat {
	return p.colorFormats
}

func (p *pipeline) DepthFormat() gpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) SurfaceTarget() bool {
	return p.surfaceTarget
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) HostKernel() gpu.HostKernel {
	return p.hostKernel
}

func (p *pipeline) HostFragment() gpu.HostFragment {
	return p.hostFragment
}

func (p *pipeline) WithState(key string, state gpu.StateFlags) Pipeline {
	v := *p
	v.pipelineKey = key
	v.state = state
	v.colorFormats = append([]gpu.TextureFormat(nil), p.colorFormats...)
	return &v
}
