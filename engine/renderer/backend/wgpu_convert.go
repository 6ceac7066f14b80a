package backend

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var wgpuFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.FormatRGBA8:   wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatBGRA8:   wgpu.TextureFormatBGRA8Unorm,
	gpu.FormatRGBA16F: wgpu.TextureFormatRGBA16Float,
	gpu.FormatRG16F:   wgpu.TextureFormatRG16Float,
	gpu.FormatR32F:    wgpu.TextureFormatR32Float,
	gpu.FormatRGBA32F: wgpu.TextureFormatRGBA32Float,
	gpu.FormatD16:     wgpu.TextureFormatDepth16Unorm,
	gpu.FormatD24S8:   wgpu.TextureFormatDepth24PlusStencil8,
	gpu.FormatD32F:    wgpu.TextureFormatDepth32Float,
}

var wgslStorageFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rg16float":   wgpu.TextureFormatRG16Float,
	"r32float":    wgpu.TextureFormatR32Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
}

var wgpuVertexFormats = map[shader.VertexFormat]wgpu.VertexFormat{
	shader.VertexFloat32:   wgpu.VertexFormatFloat32,
	shader.VertexFloat32x2: wgpu.VertexFormatFloat32x2,
	shader.VertexFloat32x3: wgpu.VertexFormatFloat32x3,
	shader.VertexFloat32x4: wgpu.VertexFormatFloat32x4,
	shader.VertexUint32:    wgpu.VertexFormatUint32,
	shader.VertexUint32x2:  wgpu.VertexFormatUint32x2,
	shader.VertexUint32x4:  wgpu.VertexFormatUint32x4,
}

func toWGPUBufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&gpu.BufferUsageMapRead != 0 {
		out |= wgpu.BufferUsageMapRead
	}
	// every buffer accepts queue writes; MapRead|CopyDst is also the valid staging combination
	out |= wgpu.BufferUsageCopyDst
	return out
}

func toWGPUTextureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&gpu.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&gpu.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func toWGPUCompare(s gpu.StateFlags) wgpu.CompareFunction {
	switch s.DepthTest() {
	case gpu.StateDepthTestLess:
		return wgpu.CompareFunctionLess
	case gpu.StateDepthTestLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.StateDepthTestGreater:
		return wgpu.CompareFunctionGreater
	case gpu.StateDepthTestGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func toWGPUCullMode(s gpu.StateFlags) wgpu.CullMode {
	switch s.Cull() {
	case gpu.StateCullBack:
		return wgpu.CullModeBack
	case gpu.StateCullFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeNone
	}
}

func toWGPUBlend(s gpu.StateFlags) *wgpu.BlendState {
	switch s.Blend() {
	case gpu.StateBlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case gpu.StateBlendAdd:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	default:
		return nil
	}
}

func toWGPUWriteMask(s gpu.StateFlags) wgpu.ColorWriteMask {
	var m wgpu.ColorWriteMask
	if s.Has(gpu.StateWriteRGB) {
		m |= wgpu.ColorWriteMaskRed | wgpu.ColorWriteMaskGreen | wgpu.ColorWriteMaskBlue
	}
	if s.Has(gpu.StateWriteAlpha) {
		m |= wgpu.ColorWriteMaskAlpha
	}
	return m
}

func toWGPUVertexLayout(l shader.VertexLayout) wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
	for _, a := range l.Attributes {
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         wgpuVertexFormats[a.Format],
			Offset:         a.Offset,
			ShaderLocation: uint32(a.Location),
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.Stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}
}

// layoutEntry builds the bind group layout entry for a reflected binding.
func layoutEntry(b shader.Binding, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(b.Binding),
		Visibility: visibility,
	}
	switch b.Kind {
	case shader.BindingUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingStorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingStorageReadWrite:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingUnfilterableTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingDepthTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingStorageTexture:
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		entry.StorageTexture.Format = wgslStorageFormats[b.StorageFormat]
		entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.BindingNonFilteringSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
	}
	return entry
}

// stageBindings pairs the reflected bindings of a shader with the stage visibility they get.
type stageBindings struct {
	visibility wgpu.ShaderStage
	bindings   []shader.Binding
}

// mergeBindGroupLayouts combines the bindings of every stage of a pipeline into per-group layout
// entries. A binding declared in several stages gets the union of their visibilities.
//
// Parameters:
//   - stages: the bindings of each stage
//
// Returns:
//   - [][]wgpu.BindGroupLayoutEntry: entries indexed by group, sorted by binding
//   - [][]shader.Binding: the reflected bindings indexed by group, sorted by binding
func mergeBindGroupLayouts(stages ...stageBindings) ([][]wgpu.BindGroupLayoutEntry, [][]shader.Binding) {
	type merged struct {
		entry   wgpu.BindGroupLayoutEntry
		binding shader.Binding
	}
	groups := map[int]map[int]*merged{}
	maxGroup := -1
	for _, st := range stages {
		for _, b := range st.bindings {
			if groups[b.Group] == nil {
				groups[b.Group] = map[int]*merged{}
			}
			if m, ok := groups[b.Group][b.Binding]; ok {
				m.entry.Visibility |= st.visibility
				continue
			}
			groups[b.Group][b.Binding] = &merged{entry: layoutEntry(b, st.visibility), binding: b}
			maxGroup = max(maxGroup, b.Group)
		}
	}

	entries := make([][]wgpu.BindGroupLayoutEntry, maxGroup+1)
	bindings := make([][]shader.Binding, maxGroup+1)
	for g := range maxGroup + 1 {
		keys := make([]int, 0, len(groups[g]))
		for k := range groups[g] {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			entries[g] = append(entries[g], groups[g][k].entry)
			bindings[g] = append(bindings[g], groups[g][k].binding)
		}
	}
	return entries, bindings
}
