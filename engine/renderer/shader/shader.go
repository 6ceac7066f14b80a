package shader

import (
	"fmt"
)

// ShaderType identifies the pipeline stage a shader feeds.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a render pipeline.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	workgroupSize [3]uint32
	bindings      []Binding
	vertexLayout  VertexLayout
	hasVertex     bool
	declarations  []Annotation
}

// Shader is a pre-processed WGSL shader together with the metadata backends need to build
// pipelines: entry point, workgroup size, bindings and vertex layout.
type Shader interface {
	// Key returns the unique identifier of this shader.
	//
	// Returns:
	//   - string: the shader key
	Key() string

	// Source returns the processed WGSL source.
	//
	// Returns:
	//   - string: WGSL code with all annotations expanded
	Source() string

	// ShaderType returns the stage this shader feeds.
	//
	// Returns:
	//   - ShaderType: vertex, fragment or compute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for the shader's stage.
	//
	// Returns:
	//   - string: the entry point function name
	EntryPoint() string

	// WorkgroupSize returns the compute workgroup size, [0,0,0] for render stages.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every resource binding declared by the shader, sorted by group then binding.
	//
	// Returns:
	//   - []Binding: the declared bindings
	Bindings() []Binding

	// Binding looks up a single declared binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - Binding: the declaration
	//   - bool: false if the shader does not declare it
	Binding(group, binding int) (Binding, bool)

	// VertexLayout returns the vertex buffer layout of a vertex shader's input struct.
	//
	// Returns:
	//   - VertexLayout: the layout
	//   - bool: false when the shader pulls no vertex attributes
	VertexLayout() (VertexLayout, bool)

	// Declarations returns the @oxy:group annotations found during pre-processing.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes source against registry and reflects the result.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the shader feeds
//   - source: raw WGSL source, usually embedded from an asset file
//   - registry: the include and struct sources available to annotations
//
// Returns:
//   - Shader: the processed shader
//   - error: an error if pre-processing fails or the entry point is missing
func NewShader(key string, shaderType ShaderType, source string, registry Registry) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: empty source", key)
	}
	pp := NewPreProcessor(registry)
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		entryPoint:   parseEntryPoint(processed, shaderType),
		bindings:     parseBindings(processed),
		declarations: append([]Annotation(nil), pp.Declarations()...),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point", key, shaderType)
	}
	switch shaderType {
	case ShaderTypeCompute:
		s.workgroupSize = parseWorkgroupSize(processed)
	case ShaderTypeVertex:
		s.vertexLayout, s.hasVertex = parseVertexLayout(processed)
	}
	return s, nil
}

// MustShader is NewShader for embedded sources that are known to be valid; it panics on error.
func MustShader(key string, shaderType ShaderType, source string, registry Registry) Shader {
	s, err := NewShader(key, shaderType, source, registry)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) Binding(group, binding int) (Binding, bool) {
	for _, b := range s.bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

func (s *shader) VertexLayout() (VertexLayout, bool) {
	return s.vertexLayout, s.hasVertex
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
