package backend

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countSource = `
@group(0) @binding(0) var<storage, read_write> counter: atomic<u32>;
@group(0) @binding(1) var<storage, read_write> ids: array<u32>;

@compute @workgroup_size(4, 2, 1)
fn count(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

const blitVertex = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const blitFragment = `
@group(0) @binding(0) var src: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func countPipeline(t *testing.T) pipeline.Pipeline {
	t.Helper()
	cs, err := shader.NewShader("count", shader.ShaderTypeCompute, countSource, nil)
	require.NoError(t, err)
	return pipeline.NewPipeline("count", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cs),
		pipeline.WithHostKernel(func(inv gpu.Invocation, b gpu.HostBindings) {
			slot := gpu.AtomicAddUint32(b.Bytes(0, 0), 0, 1) - 1
			flat := inv.GlobalID[1]*inv.NumWorkgroups[0]*4 + inv.GlobalID[0]
			binary.LittleEndian.PutUint32(b.Bytes(0, 1)[slot*4:], flat+1)
		}),
	)
}

func blitPipeline(t *testing.T) pipeline.Pipeline {
	t.Helper()
	vs, err := shader.NewShader("blit_vs", shader.ShaderTypeVertex, blitVertex, nil)
	require.NoError(t, err)
	fs, err := shader.NewShader("blit_fs", shader.ShaderTypeFragment, blitFragment, nil)
	require.NoError(t, err)
	return pipeline.NewPipeline("blit", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithSurfaceTarget(),
		pipeline.WithHostFragment(func(x, y int, b gpu.HostBindings) [4]float32 {
			c := b.Image(0, 0).At(x, y)
			return [4]float32{c[0] * 0.5, c[1] * 0.5, c[2] * 0.5, 1}
		}),
	)
}

func TestSoftwareDispatchRunsEveryInvocation(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		b := NewSoftwareBackend(WithParallelism(parallelism))
		require.NoError(t, b.RegisterPipeline(countPipeline(t)))

		counter, err := b.CreateBuffer(gpu.BufferDescriptor{Label: "counter", Size: 4, Usage: gpu.BufferUsageStorage})
		require.NoError(t, err)
		ids, err := b.CreateBuffer(gpu.BufferDescriptor{Label: "ids", Size: 4 * 64, Usage: gpu.BufferUsageStorage})
		require.NoError(t, err)
		group := bind_group_provider.NewBindGroupProvider("count",
			bind_group_provider.WithBuffer(0, counter),
			bind_group_provider.WithBuffer(1, ids),
		)

		require.NoError(t, b.BeginFrame())
		require.NoError(t, b.Dispatch("count", []bind_group_provider.BindGroupProvider{group}, [3]uint32{2, 4, 1}))
		require.NoError(t, b.EndFrame())

		data, err := b.ReadBuffer(counter)
		require.NoError(t, err)
		assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(data), "parallelism %d", parallelism)

		seen := map[uint32]bool{}
		raw, err := b.ReadBuffer(ids)
		require.NoError(t, err)
		for i := range 64 {
			seen[binary.LittleEndian.Uint32(raw[i*4:])] = true
		}
		assert.Len(t, seen, 64, "every invocation writes a distinct id")
		assert.False(t, seen[0])
		assert.Equal(t, 1, b.Stats().Dispatches["count"])

		counter.Release()
		ids.Release()
		require.NoError(t, b.Shutdown())
	}
}

func TestSoftwareDispatchRequiresFrame(t *testing.T) {
	b := NewSoftwareBackend(WithParallelism(1))
	require.NoError(t, b.RegisterPipeline(countPipeline(t)))
	err := b.Dispatch("count", nil, [3]uint32{1, 1, 1})
	assert.ErrorIs(t, err, errNoFrame)

	require.NoError(t, b.BeginFrame())
	assert.Error(t, b.Dispatch("missing", nil, [3]uint32{1, 1, 1}))
	assert.ErrorIs(t, b.BeginFrame(), errFrameActive)
}

func TestSoftwareDispatchWithoutHostKernelIsUnsupported(t *testing.T) {
	b := NewSoftwareBackend(WithParallelism(1))
	cs, err := shader.NewShader("count", shader.ShaderTypeCompute, countSource, nil)
	require.NoError(t, err)
	require.NoError(t, b.RegisterPipeline(pipeline.NewPipeline("bare", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))))

	require.NoError(t, b.BeginFrame())
	assert.ErrorIs(t, b.Dispatch("bare", nil, [3]uint32{1, 1, 1}), gpu.ErrUnsupported)
}

func TestSoftwarePassClearsAndBlits(t *testing.T) {
	b := NewSoftwareBackend(WithParallelism(2))
	require.NoError(t, b.ConfigureSurface(4, 3))
	require.NoError(t, b.RegisterPipeline(blitPipeline(t)))

	src, err := b.CreateTexture(gpu.TextureDescriptor{
		Label: "hdr", Width: 4, Height: 3, Format: gpu.FormatRGBA16F,
		Usage: gpu.TextureUsageRenderAttachment | gpu.TextureUsageSampled,
	})
	require.NoError(t, err)
	group := bind_group_provider.NewBindGroupProvider("blit", bind_group_provider.WithTexture(0, src))

	require.NoError(t, b.BeginFrame())
	require.NoError(t, b.BeginPass(gpu.PassDescriptor{
		Label: "scene",
		Color: []gpu.ColorAttachment{{Texture: src, Load: gpu.LoadClear, Clear: gpu.Color{R: 0.8, G: 0.4, B: 0.2, A: 1}}},
	}))
	require.NoError(t, b.EndPass())
	require.NoError(t, b.BeginPass(gpu.PassDescriptor{Label: "blit", Color: []gpu.ColorAttachment{{Load: gpu.LoadKeep}}}))
	require.NoError(t, b.Draw(DrawCall{Pipeline: "blit", Groups: []bind_group_provider.BindGroupProvider{group}, VertexCount: 3}))
	require.NoError(t, b.EndPass())
	require.NoError(t, b.EndFrame())
	require.NoError(t, b.Present())

	surface := b.SurfaceImage()
	for y := range 3 {
		for x := range 4 {
			c := surface.At(x, y)
			assert.InDeltaSlice(t, []float32{0.4, 0.2, 0.1, 1}, c[:], 1e-6)
		}
	}
	assert.Equal(t, 1, b.Stats().Draws["blit"])
	assert.Equal(t, 1, b.Stats().TextureAllocations["hdr"])
}

func TestSoftwareCaptureEncodesSurface(t *testing.T) {
	b := NewSoftwareBackend(WithParallelism(1))
	require.NoError(t, b.ConfigureSurface(2, 2))

	_, err := b.ReadSurface()
	assert.Error(t, err, "nothing captured yet")

	b.CaptureSurface()
	require.NoError(t, b.BeginFrame())
	require.NoError(t, b.BeginPass(gpu.PassDescriptor{
		Color: []gpu.ColorAttachment{{Load: gpu.LoadClear, Clear: gpu.Color{R: 1, G: 0.5, B: 0, A: 1}}},
	}))
	require.NoError(t, b.EndPass())
	require.NoError(t, b.EndFrame())

	img, err := b.ReadSurface()
	require.NoError(t, err)
	c := img.At(1, 1)
	assert.InDelta(t, 1, c[0], 1e-6)
	assert.InDelta(t, 0.7354, c[1], 1e-3, "linear 0.5 encodes to sRGB")
	assert.InDelta(t, 0, c[2], 1e-6)
}

func TestSoftwareTextureLifecycle(t *testing.T) {
	caps := softwareCapabilities()
	caps.RenderableFormats = []gpu.TextureFormat{gpu.FormatRGBA8, gpu.FormatD32F}
	b := NewSoftwareBackend(WithParallelism(1), WithCapabilities(caps))

	_, err := b.CreateTexture(gpu.TextureDescriptor{
		Label: "hdr", Width: 2, Height: 2, Format: gpu.FormatRGBA16F, Usage: gpu.TextureUsageRenderAttachment,
	})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	a, err := b.CreateTexture(gpu.TextureDescriptor{Label: "depth", Width: 2, Height: 2, Format: gpu.FormatD32F})
	require.NoError(t, err)
	c, err := b.CreateTexture(gpu.TextureDescriptor{Label: "depth copy", Width: 2, Height: 2, Format: gpu.FormatD32F})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Stats().LiveTextures)

	require.NoError(t, b.BeginFrame())
	require.NoError(t, b.BeginPass(gpu.PassDescriptor{Depth: &gpu.DepthAttachment{Texture: a, Load: gpu.LoadClear, Clear: 0.25}}))
	require.NoError(t, b.EndPass())
	require.NoError(t, b.CopyTexture(a, c))
	require.NoError(t, b.EndFrame())
	assert.InDelta(t, 0.25, b.TextureImage(c).At(0, 0)[0], 1e-6)

	a.Release()
	a.Release()
	c.Release()
	assert.Equal(t, 0, b.Stats().LiveTextures)
	assert.Equal(t, 2, b.Stats().TextureAllocations["depth"]+b.Stats().TextureAllocations["depth copy"])

	require.NoError(t, b.BeginFrame())
	err = b.BeginPass(gpu.PassDescriptor{Depth: &gpu.DepthAttachment{Texture: a}})
	assert.ErrorIs(t, err, gpu.ErrReleased)
}

func TestSoftwareWriteBufferBounds(t *testing.T) {
	b := NewSoftwareBackend(WithParallelism(1))
	buf, err := b.CreateBuffer(gpu.BufferDescriptor{Label: "u", Size: 8, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)

	assert.Error(t, b.WriteBuffer(buf, 4, make([]byte, 8)))
	require.NoError(t, b.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, b.BufferBytes(buf))

	p := bind_group_provider.NewBindGroupProvider("u", bind_group_provider.WithBuffer(0, buf))
	require.NoError(t, b.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p, Binding: 0, Offset: 0, Data: []byte{9}},
		{Provider: p, Binding: 3, Offset: 0, Data: []byte{7}},
	}))
	assert.Equal(t, byte(9), b.BufferBytes(buf)[0])

	err = b.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p, Binding: 0, Offset: 6, Data: []byte{5, 5, 5, 5}},
		{Provider: p, Binding: 0, Offset: 1, Data: []byte{8}},
	})
	assert.ErrorContains(t, err, "u binding 0")
	assert.Equal(t, byte(8), b.BufferBytes(buf)[1], "a failed write does not stop the batch")
}

func TestMergeBindGroupLayoutsUnionsVisibility(t *testing.T) {
	vs := []shader.Binding{{Group: 0, Binding: 0, Kind: shader.BindingUniform}}
	fs := []shader.Binding{
		{Group: 0, Binding: 0, Kind: shader.BindingUniform},
		{Group: 2, Binding: 1, Kind: shader.BindingSampler},
		{Group: 2, Binding: 0, Kind: shader.BindingTexture},
	}
	entries, bindings := mergeBindGroupLayouts(
		stageBindings{visibility: 1, bindings: vs},
		stageBindings{visibility: 2, bindings: fs},
	)
	require.Len(t, entries, 3)
	assert.Len(t, entries[0], 1)
	assert.EqualValues(t, 3, entries[0][0].Visibility)
	assert.Empty(t, entries[1], "unused group slots stay empty")
	require.Len(t, bindings[2], 2)
	assert.Equal(t, 0, bindings[2][0].Binding)
	assert.Equal(t, 1, bindings[2][1].Binding)
}
