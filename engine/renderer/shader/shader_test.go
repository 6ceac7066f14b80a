package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRegistry = Registry{
	"point_light": {
		Source: "struct PointLight {\n    position: vec3<f32>,\n    radius: f32,\n    intensity: vec3<f32>,\n    pad: f32,\n}",
		Type:   "PointLight",
	},
	"light_header": {
		Source: "struct LightHeader {\n    ambient: vec3<f32>,\n    count: f32,\n}",
		Type:   "LightHeader",
	},
	"light_math": {
		Source: "//@oxy:include point_light\nfn light_radius(l: PointLight) -> f32 { return l.radius; }",
	},
}

const cullSource = `
//@oxy:include light_header
//@oxy:include light_math
//@oxy:group 0 0 storage_uniform header light_header
//@oxy:group 0 1 storage_read lights array<point_light>
@group(1) @binding(0) var<storage, read_write> counter: atomic<u32>;
@group(1) @binding(1) var lut: texture_storage_2d<rgba16float, write>;

const THREADS_Z: u32 = 2u;

@compute @workgroup_size(16, 8, THREADS_Z)
fn cull(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestNewShaderExpandsIncludesAndGroups(t *testing.T) {
	s, err := NewShader("cull", ShaderTypeCompute, cullSource, testRegistry)
	require.NoError(t, err)

	src := s.Source()
	assert.Equal(t, 1, strings.Count(src, "struct PointLight"), "nested include is expanded once")
	assert.Contains(t, src, "@group(0) @binding(0) var<uniform> header: LightHeader;")
	assert.Contains(t, src, "@group(0) @binding(1) var<storage, read> lights: array<PointLight>;")
	assert.NotContains(t, src, "@oxy:")

	assert.Equal(t, "cull", s.EntryPoint())
	assert.Equal(t, [3]uint32{16, 8, 2}, s.WorkgroupSize())
	assert.Len(t, s.Declarations(), 2)
}

func TestShaderBindings(t *testing.T) {
	s, err := NewShader("cull", ShaderTypeCompute, cullSource, testRegistry)
	require.NoError(t, err)

	bindings := s.Bindings()
	require.Len(t, bindings, 4)

	header, ok := s.Binding(0, 0)
	require.True(t, ok)
	assert.Equal(t, BindingUniform, header.Kind)
	assert.Equal(t, uint64(16), header.MinSize)

	lights, ok := s.Binding(0, 1)
	require.True(t, ok)
	assert.Equal(t, BindingStorageRead, lights.Kind)
	assert.Equal(t, uint64(32), lights.MinSize, "runtime array binds at least one element")

	counter, ok := s.Binding(1, 0)
	require.True(t, ok)
	assert.Equal(t, BindingStorageReadWrite, counter.Kind)
	assert.Equal(t, uint64(4), counter.MinSize)

	lut, ok := s.Binding(1, 1)
	require.True(t, ok)
	assert.Equal(t, BindingStorageTexture, lut.Kind)
	assert.Equal(t, "rgba16float", lut.StorageFormat)
}

func TestVertexLayout(t *testing.T) {
	src := `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
}
struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
}
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    return out;
}
`
	s, err := NewShader("mesh", ShaderTypeVertex, src, nil)
	require.NoError(t, err)

	layout, ok := s.VertexLayout()
	require.True(t, ok)
	assert.Equal(t, uint64(32), layout.Stride)
	require.Len(t, layout.Attributes, 3)
	assert.Equal(t, VertexAttribute{Location: 2, Format: VertexFloat32x2, Offset: 24}, layout.Attributes[2])
	assert.Equal(t, [3]uint32{0, 0, 0}, s.WorkgroupSize())
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("empty", ShaderTypeCompute, "", nil)
	assert.Error(t, err)

	_, err = NewShader("unknown", ShaderTypeFragment, "//@oxy:include nope\n@fragment fn fs() {}", testRegistry)
	assert.ErrorContains(t, err, "unknown include")

	_, err = NewShader("stage", ShaderTypeFragment, "@vertex fn vs() {}", nil)
	assert.ErrorContains(t, err, "no @fragment entry point")

	_, err = NewShader("space", ShaderTypeCompute, "//@oxy:group 0 0 storage_private x point_light\n@compute @workgroup_size(1) fn cs() {}", testRegistry)
	assert.ErrorContains(t, err, "unknown address space")

	_, err = NewShader("untyped", ShaderTypeCompute, "//@oxy:group 0 0 storage_read x light_math\n@compute @workgroup_size(1) fn cs() {}", testRegistry)
	assert.ErrorContains(t, err, "cannot be bound")
}

func TestStripComments(t *testing.T) {
	src := "a /* b /* nested */ c */ d // e\nf"
	assert.Equal(t, "a  d \nf", stripComments(src))
}
