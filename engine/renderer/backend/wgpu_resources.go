package backend

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label     string
	buf       *wgpu.Buffer
	size      uint64
	usage     gpu.BufferUsage
	released  atomic.Bool
	onRelease func()
}

var _ gpu.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string          { return b.label }
func (b *wgpuBuffer) Size() uint64           { return b.size }
func (b *wgpuBuffer) Usage() gpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Released() bool         { return b.released.Load() }

func (b *wgpuBuffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.buf.Release()
	if b.onRelease != nil {
		b.onRelease()
	}
}

type wgpuTexture struct {
	label     string
	tex       *wgpu.Texture
	view      *wgpu.TextureView
	width     int
	height    int
	format    gpu.TextureFormat
	released  atomic.Bool
	onRelease func()
}

var _ gpu.Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string             { return t.label }
func (t *wgpuTexture) Width() int                { return t.width }
func (t *wgpuTexture) Height() int               { return t.height }
func (t *wgpuTexture) Format() gpu.TextureFormat { return t.format }
func (t *wgpuTexture) Released() bool            { return t.released.Load() }

func (t *wgpuTexture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.view.Release()
	t.tex.Release()
	if t.onRelease != nil {
		t.onRelease()
	}
}

type wgpuSampler struct {
	label    string
	sampler  *wgpu.Sampler
	filter   gpu.FilterMode
	released atomic.Bool
}

var _ gpu.Sampler = &wgpuSampler{}

func (s *wgpuSampler) Label() string          { return s.label }
func (s *wgpuSampler) Filter() gpu.FilterMode { return s.filter }
func (s *wgpuSampler) Released() bool         { return s.released.Load() }

func (s *wgpuSampler) Release() {
	if s.released.Swap(true) {
		return
	}
	s.sampler.Release()
}

// wgpuPipeline is a compiled pipeline with the layouts needed to build its bind groups.
type wgpuPipeline struct {
	desc     pipeline.Pipeline
	render   *wgpu.RenderPipeline
	compute  *wgpu.ComputePipeline
	layouts  []*wgpu.BindGroupLayout
	bindings [][]shader.Binding
	// empty holds bind groups for layout slots that no stage uses.
	empty map[int]*wgpu.BindGroup
}

func (p *wgpuPipeline) release() {
	for _, bg := range p.empty {
		bg.Release()
	}
	for _, l := range p.layouts {
		l.Release()
	}
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
}

// surfaceCapture is a pending copy of the surface into a map-readable buffer.
type surfaceCapture struct {
	buf         *wgpu.Buffer
	width       int
	height      int
	bytesPerRow int
	bgra        bool
}
