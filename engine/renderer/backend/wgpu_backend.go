package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

type wgpuBackend struct {
	mu sync.Mutex

	logger *zap.Logger
	stats  *statsRecorder
	caps   gpu.Capabilities

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	width, height int

	pipelines map[string]*wgpuPipeline

	// Frame state. The surface texture is acquired by the first pass that targets it.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	captureArmed bool
	capture      *surfaceCapture
	shutdown     bool
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates a WebGPU device rendering into the surface described by surfaceDescriptor.
// The calling goroutine is locked to its OS thread, as required by the native surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface, e.g. from wgpuglfw.GetSurfaceDescriptor
//   - options: a variadic list of options to configure the backend
//
// Returns:
//   - Backend: the device backend
//   - error: an error if no adapter or device could be obtained
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (Backend, error) {
	opts := defaultBackendOptions()
	for _, opt := range options {
		opt(&opts)
	}

	runtime.LockOSThread()
	b := &wgpuBackend{
		logger:      opts.logger.Named("wgpu"),
		stats:       newStatsRecorder(),
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		pipelines:   make(map[string]*wgpuPipeline),
	}
	if opts.vsync {
		b.presentMode = wgpu.PresentModeFifo
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	// WebGPU guarantees these for every conforming device at the default limits.
	b.caps = gpu.Capabilities{
		Compute:               true,
		Index32:               true,
		TextureCopy:           true,
		FragmentDepth:         true,
		HomogeneousDepth:      false,
		MaxColorAttachments:   8,
		MaxComputeInvocations: 256,
		RenderableFormats:     gpu.AllFormats(),
	}
	if opts.capabilities != nil {
		b.caps = *opts.capabilities
	}

	b.logger.Info("device ready", zap.Bool("fallbackAdapter", opts.forceFallbackAdapter))
	return b, nil
}

func (b *wgpuBackend) Name() string {
	return "wgpu"
}

func (b *wgpuBackend) Capabilities() gpu.Capabilities {
	return b.caps
}

func (b *wgpuBackend) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("create buffer %q: zero size", desc.Label)
	}
	// uniform and storage bindings require 4-byte multiples
	size := (desc.Size + 3) &^ 3
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: toWGPUBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	b.stats.bufferCreated()
	return &wgpuBuffer{
		label:     desc.Label,
		buf:       buf,
		size:      desc.Size,
		usage:     desc.Usage,
		onRelease: b.stats.bufferReleased,
	}, nil
}

func (b *wgpuBackend) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("write buffer: foreign buffer %T", buf)
	}
	if wb.Released() {
		return fmt.Errorf("write buffer %q: %w", wb.label, gpu.ErrReleased)
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("write buffer %q: %d bytes at offset %d exceed size %d", wb.label, len(data), offset, wb.size)
	}
	if len(data) == 0 {
		return nil
	}
	b.queue.WriteBuffer(wb.buf, offset, data)
	return nil
}

func (b *wgpuBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	var errs []error
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			b.logger.Debug("buffer write skipped", zap.String("provider", w.Provider.Label()), zap.Int("binding", w.Binding))
			continue
		}
		if err := b.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			errs = append(errs, fmt.Errorf("%s binding %d: %w", w.Provider.Label(), w.Binding, err))
		}
	}
	return errors.Join(errs...)
}

func (b *wgpuBackend) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return nil, fmt.Errorf("read buffer: foreign buffer %T", buf)
	}
	if wb.Released() {
		return nil, fmt.Errorf("read buffer %q: %w", wb.label, gpu.ErrReleased)
	}
	size := (wb.size + 3) &^ 3

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("read buffer %q: %w", wb.label, err)
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("read buffer %q: %w", wb.label, err)
	}
	encoder.CopyBufferToBuffer(wb.buf, 0, staging, 0, size)
	if err := b.submit(encoder); err != nil {
		return nil, fmt.Errorf("read buffer %q: %w", wb.label, err)
	}

	data, err := b.mapRead(staging, size)
	if err != nil {
		return nil, fmt.Errorf("read buffer %q: %w", wb.label, err)
	}
	return data[:wb.size], nil
}

// mapRead maps a staging buffer, waits for the device and copies the mapped range out.
func (b *wgpuBackend) mapRead(staging *wgpu.Buffer, size uint64) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus
	err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New("buffer map was not successful")
	}
	mapped := staging.GetMappedRange(0, uint(size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	staging.Unmap()
	return out, nil
}

func (b *wgpuBackend) submit(encoder *wgpu.CommandEncoder) error {
	defer encoder.Release()
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	return nil
}

func (b *wgpuBackend) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	format, ok := wgpuFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("create texture %q: format %s: %w", desc.Label, desc.Format, gpu.ErrUnsupported)
	}
	if desc.Usage&gpu.TextureUsageRenderAttachment != 0 && !b.caps.SupportsFormat(desc.Format) {
		return nil, fmt.Errorf("create texture %q: %s is not renderable: %w", desc.Label, desc.Format, gpu.ErrUnsupported)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("create texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     toWGPUTextureUsage(desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}

	b.stats.textureCreated(desc.Label)
	return &wgpuTexture{
		label:     desc.Label,
		tex:       tex,
		view:      view,
		width:     desc.Width,
		height:    desc.Height,
		format:    desc.Format,
		onRelease: b.stats.textureReleased,
	}, nil
}

func (b *wgpuBackend) WriteTexture(tex gpu.Texture, data []byte) error {
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("write texture: foreign texture %T", tex)
	}
	if wt.Released() {
		return fmt.Errorf("write texture %q: %w", wt.label, gpu.ErrReleased)
	}
	bpt := wt.format.BytesPerTexel()
	if len(data) < wt.width*wt.height*bpt {
		return fmt.Errorf("write texture %q: have %d bytes, need %d", wt.label, len(data), wt.width*wt.height*bpt)
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(wt.width * bpt),
			RowsPerImage: uint32(wt.height),
		},
		&wgpu.Extent3D{
			Width:              uint32(wt.width),
			Height:             uint32(wt.height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuBackend) CopyTexture(src, dst gpu.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok1 := src.(*wgpuTexture)
	d, ok2 := dst.(*wgpuTexture)
	if !ok1 || !ok2 {
		return errors.New("copy texture: foreign texture")
	}
	if s.Released() || d.Released() {
		return fmt.Errorf("copy texture %q -> %q: %w", s.label, d.label, gpu.ErrReleased)
	}
	if s.format != d.format || s.width != d.width || s.height != d.height {
		return fmt.Errorf("copy texture %q -> %q: size or format mismatch", s.label, d.label)
	}
	if b.framePass != nil {
		return fmt.Errorf("copy texture %q -> %q: %w", s.label, d.label, errPassOpen)
	}

	encoder := b.frameEncoder
	standalone := encoder == nil
	if standalone {
		var err error
		if encoder, err = b.device.CreateCommandEncoder(nil); err != nil {
			return fmt.Errorf("copy texture: %w", err)
		}
	}
	encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: s.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: d.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: uint32(s.width), Height: uint32(s.height), DepthOrArrayLayers: 1},
	)
	if standalone {
		return b.submit(encoder)
	}
	return nil
}

func (b *wgpuBackend) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if desc.Filter == gpu.FilterNearest {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	address := wgpu.AddressModeRepeat
	if desc.Address == gpu.AddressClamp {
		address = wgpu.AddressModeClampToEdge
	}

	s, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{label: desc.Label, sampler: s, filter: desc.Filter}, nil
}

func (b *wgpuBackend) RegisterPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pipelines[p.PipelineKey()]; ok {
		return nil
	}

	var (
		compiled *wgpuPipeline
		err      error
	)
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		compiled, err = b.compileCompute(p)
	case pipeline.PipelineTypeRender:
		compiled, err = b.compileRender(p)
	default:
		err = fmt.Errorf("unknown pipeline type %d", p.Type())
	}
	if err != nil {
		return fmt.Errorf("register %q: %w", p.PipelineKey(), err)
	}
	b.pipelines[p.PipelineKey()] = compiled
	return nil
}

func (b *wgpuBackend) createModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
}

// createLayouts builds one bind group layout per group index, including empty layouts for
// unused slots, and the pipeline layout over them.
func (b *wgpuBackend) createLayouts(key string, stages ...stageBindings) (*wgpuPipeline, *wgpu.PipelineLayout, error) {
	entries, bindings := mergeBindGroupLayouts(stages...)
	compiled := &wgpuPipeline{
		bindings: bindings,
		empty:    make(map[int]*wgpu.BindGroup),
	}
	for g, groupEntries := range entries {
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", key, g),
			Entries: groupEntries,
		})
		if err != nil {
			compiled.release()
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		compiled.layouts = append(compiled.layouts, layout)
		if len(groupEntries) == 0 {
			bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:  fmt.Sprintf("%s empty group %d", key, g),
				Layout: layout,
			})
			if err != nil {
				compiled.release()
				return nil, nil, fmt.Errorf("failed to create empty bind group %d: %w", g, err)
			}
			compiled.empty[g] = bg
		}
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key,
		BindGroupLayouts: compiled.layouts,
	})
	if err != nil {
		compiled.release()
		return nil, nil, err
	}
	return compiled, pipelineLayout, nil
}

func (b *wgpuBackend) compileCompute(p pipeline.Pipeline) (*wgpuPipeline, error) {
	cs := p.Shader(shader.ShaderTypeCompute)
	if cs == nil {
		return nil, errors.New("compute shader must be set to create a compute pipeline")
	}
	module, err := b.createModule(cs)
	if err != nil {
		return nil, err
	}
	defer module.Release()

	compiled, layout, err := b.createLayouts(p.PipelineKey(), stageBindings{wgpu.ShaderStageCompute, cs.Bindings()})
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: cs.EntryPoint(),
		},
	})
	if err != nil {
		compiled.release()
		return nil, err
	}
	compiled.desc = p
	compiled.compute = created
	return compiled, nil
}

func (b *wgpuBackend) compileRender(p pipeline.Pipeline) (*wgpuPipeline, error) {
	vs, fs := p.Shader(shader.ShaderTypeVertex), p.Shader(shader.ShaderTypeFragment)
	if vs == nil || fs == nil {
		return nil, errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}
	vsModule, err := b.createModule(vs)
	if err != nil {
		return nil, err
	}
	defer vsModule.Release()
	fsModule, err := b.createModule(fs)
	if err != nil {
		return nil, err
	}
	defer fsModule.Release()

	compiled, layout, err := b.createLayouts(p.PipelineKey(),
		stageBindings{wgpu.ShaderStageVertex, vs.Bindings()},
		stageBindings{wgpu.ShaderStageFragment, fs.Bindings()},
	)
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	var buffers []wgpu.VertexBufferLayout
	if vl, ok := vs.VertexLayout(); ok {
		buffers = append(buffers, toWGPUVertexLayout(vl))
	}

	state := p.State()
	formats := []wgpu.TextureFormat{b.surfaceFormat}
	if !p.SurfaceTarget() {
		formats = formats[:0]
		for _, f := range p.ColorFormats() {
			formats = append(formats, wgpuFormats[f])
		}
	}
	targets := make([]wgpu.ColorTargetState, 0, len(formats))
	for _, f := range formats {
		targets = append(targets, wgpu.ColorTargetState{
			Format:    f,
			Blend:     toWGPUBlend(state),
			WriteMask: toWGPUWriteMask(state),
		})
	}

	var depthStencil *wgpu.DepthStencilState
	if df := p.DepthFormat(); df != gpu.FormatUndefined {
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpuFormats[df],
			DepthWriteEnabled: state.Has(gpu.StateDepthWrite),
			DepthCompare:      toWGPUCompare(state),
			DepthBias:         p.DepthBias(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vsModule,
			EntryPoint: vs.EntryPoint(),
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: fs.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCW,
			CullMode:  toWGPUCullMode(state),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		compiled.release()
		return nil, err
	}
	compiled.desc = p
	compiled.render = created
	return compiled, nil
}

func (b *wgpuBackend) HasPipeline(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pipelines[key]
	return ok
}

// bindGroup returns the bind group of provider for group g of pipeline p, compiling and caching it
// on the provider on first use. Callers hold mu.
func (b *wgpuBackend) bindGroup(p *wgpuPipeline, g int, provider bind_group_provider.BindGroupProvider) (*wgpu.BindGroup, error) {
	if bg, ok := p.empty[g]; ok {
		return bg, nil
	}
	if provider == nil {
		return nil, fmt.Errorf("group %d has no provider", g)
	}

	key := fmt.Sprintf("%s#%d", p.desc.PipelineKey(), g)
	if obj, ok := provider.Cached(key); ok {
		if bg, ok := obj.(*wgpu.BindGroup); ok {
			return bg, nil
		}
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(p.bindings[g]))
	for _, binding := range p.bindings[g] {
		entry := wgpu.BindGroupEntry{Binding: uint32(binding.Binding)}
		switch {
		case binding.Kind.IsBuffer():
			wb, ok := provider.Buffer(binding.Binding).(*wgpuBuffer)
			if !ok || wb.Released() {
				return nil, fmt.Errorf("%s binding %d (%s) has no live buffer", provider.Label(), binding.Binding, binding.Name)
			}
			entry.Buffer = wb.buf
			entry.Size = wgpu.WholeSize
		case binding.Kind.IsTexture():
			wt, ok := provider.Texture(binding.Binding).(*wgpuTexture)
			if !ok || wt.Released() {
				return nil, fmt.Errorf("%s binding %d (%s) has no live texture", provider.Label(), binding.Binding, binding.Name)
			}
			entry.TextureView = wt.view
		case binding.Kind.IsSampler():
			ws, ok := provider.Sampler(binding.Binding).(*wgpuSampler)
			if !ok || ws.Released() {
				return nil, fmt.Errorf("%s binding %d (%s) has no live sampler", provider.Label(), binding.Binding, binding.Name)
			}
			entry.Sampler = ws.sampler
		}
		entries = append(entries, entry)
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  p.layouts[g],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", provider.Label(), err)
	}
	provider.SetCached(key, bg)
	return bg, nil
}

func (b *wgpuBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		return errFrameActive
	}
	// a previous frame's surface must be presented before another is acquired
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.frameEncoder = encoder
	b.stats.frame()
	return nil
}

func (b *wgpuBackend) Dispatch(key string, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("dispatch %q: %w", key, errNoFrame)
	}
	if b.framePass != nil {
		return fmt.Errorf("dispatch %q: %w", key, errPassOpen)
	}
	p, ok := b.pipelines[key]
	if !ok || p.compute == nil {
		return fmt.Errorf("dispatch %q: compute pipeline not registered", key)
	}

	bindGroups := make([]*wgpu.BindGroup, len(p.layouts))
	for g := range p.layouts {
		var provider bind_group_provider.BindGroupProvider
		if g < len(groups) {
			provider = groups[g]
		}
		bg, err := b.bindGroup(p, g, provider)
		if err != nil {
			return fmt.Errorf("dispatch %q: %w", key, err)
		}
		bindGroups[g] = bg
	}

	pass := b.frameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.compute)
	for g, bg := range bindGroups {
		pass.SetBindGroup(uint32(g), bg, nil)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	pass.End()
	pass.Release()

	b.stats.dispatch(key)
	return nil
}

// acquireSurface gets the swapchain texture for this frame. Callers hold mu.
func (b *wgpuBackend) acquireSurface() (*wgpu.TextureView, error) {
	if b.frameView != nil {
		return b.frameView, nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return view, nil
}

func (b *wgpuBackend) BeginPass(desc gpu.PassDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("begin pass %q: %w", desc.Label, errNoFrame)
	}
	if b.framePass != nil {
		return fmt.Errorf("begin pass %q: %w", desc.Label, errPassOpen)
	}

	rp := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for i, ca := range desc.Color {
		var view *wgpu.TextureView
		if ca.Texture == nil {
			v, err := b.acquireSurface()
			if err != nil {
				return fmt.Errorf("begin pass %q: acquire surface: %w", desc.Label, err)
			}
			view = v
		} else {
			wt, ok := ca.Texture.(*wgpuTexture)
			if !ok || wt.Released() {
				return fmt.Errorf("begin pass %q: color attachment %d: %w", desc.Label, i, gpu.ErrReleased)
			}
			view = wt.view
		}
		load := wgpu.LoadOpLoad
		if ca.Load == gpu.LoadClear {
			load = wgpu.LoadOpClear
		}
		rp.ColorAttachments = append(rp.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  load,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(ca.Clear.R), G: float64(ca.Clear.G), B: float64(ca.Clear.B), A: float64(ca.Clear.A),
			},
		})
	}
	if desc.Depth != nil {
		wt, ok := desc.Depth.Texture.(*wgpuTexture)
		if !ok || wt.Released() {
			return fmt.Errorf("begin pass %q: depth attachment: %w", desc.Label, gpu.ErrReleased)
		}
		load := wgpu.LoadOpLoad
		if desc.Depth.Load == gpu.LoadClear {
			load = wgpu.LoadOpClear
		}
		attachment := &wgpu.RenderPassDepthStencilAttachment{
			View:            wt.view,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.Depth.Clear,
		}
		if wt.format == gpu.FormatD24S8 {
			attachment.StencilLoadOp = wgpu.LoadOpClear
			attachment.StencilStoreOp = wgpu.StoreOpDiscard
		}
		rp.DepthStencilAttachment = attachment
	}

	b.framePass = b.frameEncoder.BeginRenderPass(rp)
	return nil
}

func (b *wgpuBackend) Draw(call DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("draw %q: %w", call.Pipeline, errNoPass)
	}
	p, ok := b.pipelines[call.Pipeline]
	if !ok || p.render == nil {
		return fmt.Errorf("draw %q: render pipeline not registered", call.Pipeline)
	}

	b.framePass.SetPipeline(p.render)
	for g := range p.layouts {
		var provider bind_group_provider.BindGroupProvider
		if g < len(call.Groups) {
			provider = call.Groups[g]
		}
		bg, err := b.bindGroup(p, g, provider)
		if err != nil {
			return fmt.Errorf("draw %q: %w", call.Pipeline, err)
		}
		b.framePass.SetBindGroup(uint32(g), bg, nil)
	}

	instances := max(call.Instances, 1)
	if call.Geometry == nil {
		b.framePass.Draw(call.VertexCount, instances, 0, call.FirstInstance)
	} else {
		vb, ok1 := call.Geometry.VertexBuffer().(*wgpuBuffer)
		ib, ok2 := call.Geometry.IndexBuffer().(*wgpuBuffer)
		if !ok1 || !ok2 {
			return fmt.Errorf("draw %q: geometry %q has no vertex or index buffer", call.Pipeline, call.Geometry.Label())
		}
		b.framePass.SetVertexBuffer(0, vb.buf, 0, wgpu.WholeSize)
		b.framePass.SetIndexBuffer(ib.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		b.framePass.DrawIndexed(uint32(call.Geometry.IndexCount()), instances, 0, 0, call.FirstInstance)
	}

	b.stats.draw(call.Pipeline)
	return nil
}

func (b *wgpuBackend) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass == nil {
		return errNoPass
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
	return nil
}

func (b *wgpuBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}
	if b.framePass != nil {
		return errors.New("end frame: pass still open")
	}

	if b.captureArmed && b.frameSurface != nil {
		b.encodeCapture()
		b.captureArmed = false
	}

	encoder := b.frameEncoder
	b.frameEncoder = nil
	if err := b.submit(encoder); err != nil {
		b.releaseFrameSurface()
		return fmt.Errorf("end frame: %w", err)
	}
	return nil
}

// encodeCapture copies the acquired surface into a map-readable buffer. Callers hold mu.
func (b *wgpuBackend) encodeCapture() {
	bytesPerRow := (b.width*4 + 255) &^ 255
	size := uint64(bytesPerRow * b.height)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Surface Capture",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.logger.Warn("surface capture skipped", zap.Error(err))
		return
	}
	b.frameEncoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  b.frameSurface,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(bytesPerRow),
				RowsPerImage: uint32(b.height),
			},
		},
		&wgpu.Extent3D{Width: uint32(b.width), Height: uint32(b.height), DepthOrArrayLayers: 1},
	)
	if b.capture != nil {
		b.capture.buf.Release()
	}
	b.capture = &surfaceCapture{
		buf:         buf,
		width:       b.width,
		height:      b.height,
		bytesPerRow: bytesPerRow,
		bgra:        b.surfaceFormat == wgpu.TextureFormatBGRA8Unorm || b.surfaceFormat == wgpu.TextureFormatBGRA8UnormSrgb,
	}
}

func (b *wgpuBackend) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return nil
	}
	b.surface.Present()
	b.releaseFrameSurface()
	return nil
}

func (b *wgpuBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("configure surface: invalid size %dx%d", width, height)
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("configure surface: no supported formats")
	}

	// the tone-map blit writes linear values and relies on the surface to encode them
	b.surfaceFormat = capabilities.Formats[0]
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb || f == wgpu.TextureFormatRGBA8UnormSrgb {
			b.surfaceFormat = f
			break
		}
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = width, height
	return nil
}

func (b *wgpuBackend) SurfaceFormat() gpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.surfaceFormat {
	case wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8
	default:
		return gpu.FormatRGBA8
	}
}

func (b *wgpuBackend) SetVSync(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enabled {
		b.presentMode = wgpu.PresentModeFifo
	} else {
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuBackend) CaptureSurface() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captureArmed = true
}

func (b *wgpuBackend) ReadSurface() (*gpu.HostImage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.capture
	if c == nil {
		return nil, errors.New("read surface: nothing captured")
	}
	b.capture = nil
	defer c.buf.Release()

	data, err := b.mapRead(c.buf, uint64(c.bytesPerRow*c.height))
	if err != nil {
		return nil, fmt.Errorf("read surface: %w", err)
	}
	return gpu.HostImageFromRGBA8(data, c.width, c.height, c.bytesPerRow, c.bgra), nil
}

func (b *wgpuBackend) Stats() Stats {
	return b.stats.snapshot()
}

func (b *wgpuBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return nil
	}
	b.shutdown = true

	if b.framePass != nil {
		b.framePass.End()
		b.framePass.Release()
		b.framePass = nil
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseFrameSurface()
	if b.capture != nil {
		b.capture.buf.Release()
		b.capture = nil
	}
	for key, p := range b.pipelines {
		p.release()
		delete(b.pipelines, key)
	}

	s := b.stats.snapshot()
	if s.LiveBuffers != 0 || s.LiveTextures != 0 {
		b.logger.Warn("resources still alive at shutdown",
			zap.Int("buffers", s.LiveBuffers),
			zap.Int("textures", s.LiveTextures))
	}

	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
	return nil
}
