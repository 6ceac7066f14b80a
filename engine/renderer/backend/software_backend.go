package backend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"go.uber.org/zap"
)

var (
	errNoFrame     = errors.New("no frame in progress")
	errNoPass      = errors.New("no render pass open")
	errPassOpen    = errors.New("render pass already open")
	errFrameActive = errors.New("frame already in progress")
)

type softwarePass struct {
	label string
	color []*gpu.HostImage
	depth *gpu.HostImage
}

type softwareBackend struct {
	mu sync.Mutex

	opts   backendOptions
	caps   gpu.Capabilities
	logger *zap.Logger
	stats  *statsRecorder

	// pool runs host kernels and fullscreen fragments; unused when parallelism is 1.
	pool worker.DynamicWorkerPool

	pipelines map[string]pipeline.Pipeline
	surface   *gpu.HostImage
	inFrame   bool
	pass      *softwarePass
	shutdown  bool

	captureArmed bool
	captured     *gpu.HostImage
}

// SoftwareBackend is a Backend that keeps every resource in host memory. Compute pipelines run
// through their host kernels, render passes perform their clears, fullscreen draws with a host
// fragment are rasterized on the CPU, and all other draws are counted without rasterization.
type SoftwareBackend interface {
	Backend

	// SurfaceImage returns a copy of the linear surface contents.
	SurfaceImage() *gpu.HostImage

	// TextureImage returns the live texels of a texture created by this backend, or nil.
	TextureImage(tex gpu.Texture) *gpu.HostImage

	// BufferBytes returns the live contents of a buffer created by this backend, or nil.
	BufferBytes(buf gpu.Buffer) []byte
}

var _ SoftwareBackend = &softwareBackend{}

// NewSoftwareBackend creates a host-memory backend.
//
// Parameters:
//   - options: a variadic list of options, see WithParallelism and WithCapabilities
//
// Returns:
//   - SoftwareBackend: the new backend
func NewSoftwareBackend(options ...BackendBuilderOption) SoftwareBackend {
	opts := defaultBackendOptions()
	for _, opt := range options {
		opt(&opts)
	}

	b := &softwareBackend{
		opts:      opts,
		caps:      softwareCapabilities(),
		logger:    opts.logger.Named("software"),
		stats:     newStatsRecorder(),
		pipelines: make(map[string]pipeline.Pipeline),
	}
	if opts.capabilities != nil {
		b.caps = *opts.capabilities
	}
	if opts.parallelism > 1 {
		b.pool = worker.NewDynamicWorkerPool(opts.parallelism, max(256, opts.parallelism*4), 1*time.Second)
	}
	return b
}

func softwareCapabilities() gpu.Capabilities {
	return gpu.Capabilities{
		Compute:               true,
		Index32:               true,
		TextureCopy:           true,
		FragmentDepth:         true,
		HomogeneousDepth:      false,
		MaxColorAttachments:   8,
		MaxComputeInvocations: 256,
		RenderableFormats:     gpu.AllFormats(),
	}
}

func (b *softwareBackend) Name() string {
	return "software"
}

func (b *softwareBackend) Capabilities() gpu.Capabilities {
	return b.caps
}

func (b *softwareBackend) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("create buffer %q: zero size", desc.Label)
	}
	buf := &softwareBuffer{
		softwareResource: softwareResource{label: desc.Label, onRelease: b.stats.bufferReleased},
		data:             make([]byte, desc.Size),
		usage:            desc.Usage,
	}
	b.stats.bufferCreated()
	return buf, nil
}

func (b *softwareBackend) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	sb, ok := buf.(*softwareBuffer)
	if !ok {
		return fmt.Errorf("write buffer: foreign buffer %T", buf)
	}
	if sb.Released() {
		return fmt.Errorf("write buffer %q: %w", sb.label, gpu.ErrReleased)
	}
	if offset+uint64(len(data)) > uint64(len(sb.data)) {
		return fmt.Errorf("write buffer %q: %d bytes at offset %d exceed size %d", sb.label, len(data), offset, len(sb.data))
	}
	copy(sb.data[offset:], data)
	return nil
}

func (b *softwareBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
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

func (b *softwareBackend) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	sb, ok := buf.(*softwareBuffer)
	if !ok {
		return nil, fmt.Errorf("read buffer: foreign buffer %T", buf)
	}
	if sb.Released() {
		return nil, fmt.Errorf("read buffer %q: %w", sb.label, gpu.ErrReleased)
	}
	out := make([]byte, len(sb.data))
	copy(out, sb.data)
	return out, nil
}

func (b *softwareBackend) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("create texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Format.BytesPerTexel() == 0 {
		return nil, fmt.Errorf("create texture %q: format %s: %w", desc.Label, desc.Format, gpu.ErrUnsupported)
	}
	if desc.Usage&gpu.TextureUsageRenderAttachment != 0 && !b.caps.SupportsFormat(desc.Format) {
		return nil, fmt.Errorf("create texture %q: %s is not renderable: %w", desc.Label, desc.Format, gpu.ErrUnsupported)
	}

	tex := &softwareTexture{
		softwareResource: softwareResource{label: desc.Label, onRelease: b.stats.textureReleased},
		img:              gpu.NewHostImage(desc.Width, desc.Height),
		format:           desc.Format,
	}
	b.stats.textureCreated(desc.Label)
	return tex, nil
}

func (b *softwareBackend) WriteTexture(tex gpu.Texture, data []byte) error {
	st, ok := tex.(*softwareTexture)
	if !ok {
		return fmt.Errorf("write texture: foreign texture %T", tex)
	}
	if st.Released() {
		return fmt.Errorf("write texture %q: %w", st.label, gpu.ErrReleased)
	}
	img, err := gpu.DecodeTexels(st.format, data, st.img.Width, st.img.Height)
	if err != nil {
		return fmt.Errorf("write texture %q: %w", st.label, err)
	}
	copy(st.img.Pix, img.Pix)
	return nil
}

func (b *softwareBackend) CopyTexture(src, dst gpu.Texture) error {
	if !b.caps.TextureCopy {
		return fmt.Errorf("copy texture: %w", gpu.ErrUnsupported)
	}
	s, ok1 := src.(*softwareTexture)
	d, ok2 := dst.(*softwareTexture)
	if !ok1 || !ok2 {
		return fmt.Errorf("copy texture: foreign texture")
	}
	if s.Released() || d.Released() {
		return fmt.Errorf("copy texture %q -> %q: %w", s.label, d.label, gpu.ErrReleased)
	}
	if s.format != d.format || s.img.Width != d.img.Width || s.img.Height != d.img.Height {
		return fmt.Errorf("copy texture %q -> %q: size or format mismatch", s.label, d.label)
	}
	copy(d.img.Pix, s.img.Pix)
	return nil
}

func (b *softwareBackend) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	return &softwareSampler{
		softwareResource: softwareResource{label: desc.Label},
		filter:           desc.Filter,
	}, nil
}

func (b *softwareBackend) RegisterPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pipelines[p.PipelineKey()]; ok {
		return nil
	}
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		if p.Shader(shader.ShaderTypeCompute) == nil {
			return fmt.Errorf("register %q: compute shader must be set", p.PipelineKey())
		}
	case pipeline.PipelineTypeRender:
		if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
			return fmt.Errorf("register %q: both vertex and fragment shaders must be set", p.PipelineKey())
		}
		if len(p.ColorFormats()) > b.caps.MaxColorAttachments {
			return fmt.Errorf("register %q: %d color targets: %w", p.PipelineKey(), len(p.ColorFormats()), gpu.ErrUnsupported)
		}
	}
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *softwareBackend) HasPipeline(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pipelines[key]
	return ok
}

func (b *softwareBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return errFrameActive
	}
	b.inFrame = true
	b.stats.frame()
	return nil
}

func (b *softwareBackend) Dispatch(key string, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inFrame {
		return fmt.Errorf("dispatch %q: %w", key, errNoFrame)
	}
	p, ok := b.pipelines[key]
	if !ok || p.Type() != pipeline.PipelineTypeCompute {
		return fmt.Errorf("dispatch %q: compute pipeline not registered", key)
	}
	kernel := p.HostKernel()
	if kernel == nil {
		return fmt.Errorf("dispatch %q: no host kernel: %w", key, gpu.ErrUnsupported)
	}
	bindings, err := snapshotBindings(groups)
	if err != nil {
		return fmt.Errorf("dispatch %q: %w", key, err)
	}

	size := p.Shader(shader.ShaderTypeCompute).WorkgroupSize()
	for i := range size {
		size[i] = max(size[i], 1)
	}
	total := int(workgroups[0] * workgroups[1] * workgroups[2])

	b.parallel(total, func(i int) {
		id := uint32(i)
		wgID := [3]uint32{
			id % workgroups[0],
			(id / workgroups[0]) % workgroups[1],
			id / (workgroups[0] * workgroups[1]),
		}
		for lz := range size[2] {
			for ly := range size[1] {
				for lx := range size[0] {
					local := [3]uint32{lx, ly, lz}
					kernel(gpu.Invocation{
						GlobalID: [3]uint32{
							wgID[0]*size[0] + lx,
							wgID[1]*size[1] + ly,
							wgID[2]*size[2] + lz,
						},
						LocalID:       local,
						WorkgroupID:   wgID,
						NumWorkgroups: workgroups,
					}, bindings)
				}
			}
		}
	})

	b.stats.dispatch(key)
	return nil
}

func (b *softwareBackend) BeginPass(desc gpu.PassDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inFrame {
		return fmt.Errorf("begin pass %q: %w", desc.Label, errNoFrame)
	}
	if b.pass != nil {
		return fmt.Errorf("begin pass %q: %w", desc.Label, errPassOpen)
	}
	if len(desc.Color) > b.caps.MaxColorAttachments {
		return fmt.Errorf("begin pass %q: %d color attachments: %w", desc.Label, len(desc.Color), gpu.ErrUnsupported)
	}

	pass := &softwarePass{label: desc.Label}
	for i, ca := range desc.Color {
		var img *gpu.HostImage
		if ca.Texture == nil {
			if b.surface == nil {
				return fmt.Errorf("begin pass %q: surface not configured", desc.Label)
			}
			img = b.surface
		} else {
			st, ok := ca.Texture.(*softwareTexture)
			if !ok || st.Released() {
				return fmt.Errorf("begin pass %q: color attachment %d: %w", desc.Label, i, gpu.ErrReleased)
			}
			img = st.img
		}
		if ca.Load == gpu.LoadClear {
			img.Fill([4]float32{ca.Clear.R, ca.Clear.G, ca.Clear.B, ca.Clear.A})
		}
		pass.color = append(pass.color, img)
	}
	if desc.Depth != nil {
		st, ok := desc.Depth.Texture.(*softwareTexture)
		if !ok || st.Released() {
			return fmt.Errorf("begin pass %q: depth attachment: %w", desc.Label, gpu.ErrReleased)
		}
		if desc.Depth.Load == gpu.LoadClear && !desc.Depth.ReadOnly {
			st.img.Fill([4]float32{desc.Depth.Clear, 0, 0, 1})
		}
		pass.depth = st.img
	}

	b.pass = pass
	return nil
}

func (b *softwareBackend) Draw(call DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return fmt.Errorf("draw %q: %w", call.Pipeline, errNoPass)
	}
	p, ok := b.pipelines[call.Pipeline]
	if !ok || p.Type() != pipeline.PipelineTypeRender {
		return fmt.Errorf("draw %q: render pipeline not registered", call.Pipeline)
	}
	if call.Geometry == nil && call.VertexCount == 0 {
		return fmt.Errorf("draw %q: no geometry and no vertex count", call.Pipeline)
	}
	if call.Geometry != nil && (call.Geometry.VertexBuffer() == nil || call.Geometry.IndexBuffer() == nil) {
		return fmt.Errorf("draw %q: geometry %q has no vertex or index buffer", call.Pipeline, call.Geometry.Label())
	}
	bindings, err := snapshotBindings(call.Groups)
	if err != nil {
		return fmt.Errorf("draw %q: %w", call.Pipeline, err)
	}

	if f := p.HostFragment(); f != nil && call.Geometry == nil && len(b.pass.color) > 0 {
		target := b.pass.color[0]
		b.parallel(target.Height, func(y int) {
			for x := range target.Width {
				target.Set(x, y, f(x, y, bindings))
			}
		})
	}

	b.stats.draw(call.Pipeline)
	return nil
}

func (b *softwareBackend) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pass == nil {
		return errNoPass
	}
	b.pass = nil
	return nil
}

func (b *softwareBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errNoFrame
	}
	if b.pass != nil {
		return fmt.Errorf("end frame: pass %q still open", b.pass.label)
	}
	b.inFrame = false
	if b.captureArmed && b.surface != nil {
		b.captured = gpu.NewHostImage(b.surface.Width, b.surface.Height)
		copy(b.captured.Pix, b.surface.Pix)
		b.captureArmed = false
	}
	return nil
}

func (b *softwareBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("present: %w", errFrameActive)
	}
	return nil
}

func (b *softwareBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("configure surface: invalid size %dx%d", width, height)
	}
	if b.surface != nil && b.surface.Width == width && b.surface.Height == height {
		return nil
	}
	b.surface = gpu.NewHostImage(width, height)
	return nil
}

func (b *softwareBackend) SurfaceFormat() gpu.TextureFormat {
	return gpu.FormatRGBA32F
}

func (b *softwareBackend) SetVSync(enabled bool) {
	b.opts.vsync = enabled
}

func (b *softwareBackend) CaptureSurface() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captureArmed = true
}

func (b *softwareBackend) ReadSurface() (*gpu.HostImage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captured == nil {
		return nil, errors.New("read surface: nothing captured")
	}
	out := gpu.NewHostImage(b.captured.Width, b.captured.Height)
	for i, v := range b.captured.Pix {
		if i%4 == 3 {
			out.Pix[i] = max(0, min(v, 1))
			continue
		}
		out.Pix[i] = common.LinearToSRGB(v)
	}
	return out, nil
}

func (b *softwareBackend) SurfaceImage() *gpu.HostImage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == nil {
		return nil
	}
	out := gpu.NewHostImage(b.surface.Width, b.surface.Height)
	copy(out.Pix, b.surface.Pix)
	return out
}

func (b *softwareBackend) TextureImage(tex gpu.Texture) *gpu.HostImage {
	if st, ok := tex.(*softwareTexture); ok {
		return st.img
	}
	return nil
}

func (b *softwareBackend) BufferBytes(buf gpu.Buffer) []byte {
	if sb, ok := buf.(*softwareBuffer); ok {
		return sb.data
	}
	return nil
}

func (b *softwareBackend) Stats() Stats {
	return b.stats.snapshot()
}

func (b *softwareBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	b.pipelines = make(map[string]pipeline.Pipeline)
	s := b.stats.snapshot()
	if s.LiveBuffers != 0 || s.LiveTextures != 0 {
		b.logger.Warn("resources still alive at shutdown",
			zap.Int("buffers", s.LiveBuffers),
			zap.Int("textures", s.LiveTextures))
	}
	return nil
}

// parallel calls fn(i) for every i in [0, n). Work is spread over the worker pool in interleaved
// chunks and parallel returns once every call has completed.
func (b *softwareBackend) parallel(n int, fn func(i int)) {
	if b.opts.parallelism < 2 || n < 2 {
		for i := range n {
			fn(i)
		}
		return
	}

	tasks := min(n, b.opts.parallelism*4)
	var wg sync.WaitGroup
	wg.Add(tasks)
	for t := range tasks {
		b.pool.SubmitTask(worker.Task{
			ID: t,
			Do: func() (any, error) {
				defer wg.Done()
				for i := t; i < n; i += tasks {
					fn(i)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// hostBindings resolves (group, binding) pairs to host memory for kernels and fragments.
type hostBindings struct {
	buffers map[[2]int][]byte
	images  map[[2]int]*gpu.HostImage
}

var _ gpu.HostBindings = &hostBindings{}

func snapshotBindings(groups []bind_group_provider.BindGroupProvider) (*hostBindings, error) {
	h := &hostBindings{
		buffers: make(map[[2]int][]byte),
		images:  make(map[[2]int]*gpu.HostImage),
	}
	for g, p := range groups {
		if p == nil {
			continue
		}
		for binding, buf := range p.Buffers() {
			if buf == nil {
				continue
			}
			sb, ok := buf.(*softwareBuffer)
			if !ok {
				return nil, fmt.Errorf("group %d binding %d: foreign buffer %T", g, binding, buf)
			}
			if sb.Released() {
				return nil, fmt.Errorf("group %d binding %d (%s): %w", g, binding, sb.label, gpu.ErrReleased)
			}
			h.buffers[[2]int{g, binding}] = sb.data
		}
		for binding, tex := range p.Textures() {
			if tex == nil {
				continue
			}
			st, ok := tex.(*softwareTexture)
			if !ok {
				return nil, fmt.Errorf("group %d binding %d: foreign texture %T", g, binding, tex)
			}
			if st.Released() {
				return nil, fmt.Errorf("group %d binding %d (%s): %w", g, binding, st.label, gpu.ErrReleased)
			}
			h.images[[2]int{g, binding}] = st.img
		}
	}
	return h, nil
}

func (h *hostBindings) Bytes(group, binding int) []byte {
	return h.buffers[[2]int{group, binding}]
}

func (h *hostBindings) Image(group, binding int) *gpu.HostImage {
	return h.images[[2]int{group, binding}]
}
