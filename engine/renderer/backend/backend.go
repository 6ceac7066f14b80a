// Package backend executes the renderer's passes and dispatches. Two implementations exist: a WebGPU
// device backend for interactive use and a host-memory software backend that runs compute stages
// through their host kernels, used for headless runs and tests.
package backend

import (
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
)

// DrawCall describes one draw inside the active render pass.
type DrawCall struct {
	// Pipeline is the key of a registered render pipeline.
	Pipeline string
	// Groups are bound in order, Groups[i] at @group(i).
	Groups []bind_group_provider.BindGroupProvider
	// Geometry supplies the vertex and index buffers. When nil, VertexCount vertices are drawn without buffers.
	Geometry bind_group_provider.BindGroupProvider
	// VertexCount is used for non-indexed draws (fullscreen triangles).
	VertexCount uint32
	// Instances is the instance count; zero draws one instance.
	Instances uint32
	// FirstInstance offsets instance_index, used to address per-light data in light-volume draws.
	FirstInstance uint32
}

// Stats counts backend work. Tests inspect it to verify caching and allocation behaviour.
type Stats struct {
	// Frames is the number of BeginFrame calls.
	Frames int
	// Dispatches counts compute dispatches per pipeline key.
	Dispatches map[string]int
	// Draws counts draw calls per pipeline key.
	Draws map[string]int
	// TextureAllocations counts texture creations per label.
	TextureAllocations map[string]int
	// LiveBuffers and LiveTextures count created resources not yet released.
	LiveBuffers  int
	LiveTextures int
}

// Backend abstracts the GPU. All methods are called from the render goroutine.
//
// A frame is bracketed by BeginFrame and EndFrame. Between them, compute dispatches and render passes
// execute in submission order, which is the only synchronization the renderer relies on.
type Backend interface {
	// Name returns a short identifier, e.g. "wgpu" or "software".
	Name() string

	// Capabilities reports the features available on this backend.
	//
	// Returns:
	//   - gpu.Capabilities: the capability report
	Capabilities() gpu.Capabilities

	// CreateBuffer allocates a zero-filled buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - gpu.Buffer: the new buffer
	//   - error: an error if allocation failed
	CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error)

	// WriteBuffer uploads data at a byte offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into buf
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write is out of range or the buffer was released
	WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error

	// WriteBuffers performs a batch of writes against provider bindings. Writes whose binding has no
	// buffer are skipped; a failed write does not stop the rest of the batch.
	//
	// Parameters:
	//   - writes: the writes to perform, in order
	//
	// Returns:
	//   - error: the failed writes, joined
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// ReadBuffer copies the buffer contents back to host memory, waiting for pending work.
	//
	// Parameters:
	//   - buf: the buffer to read; it needs BufferUsageCopySrc on device backends
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: an error if the read-back failed
	ReadBuffer(buf gpu.Buffer) ([]byte, error)

	// CreateTexture allocates a 2D texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - gpu.Texture: the new texture
	//   - error: gpu.ErrUnsupported if the format cannot be used as requested
	CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error)

	// WriteTexture uploads tightly packed texels in the texture's format.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - data: width*height texels
	//
	// Returns:
	//   - error: an error if the upload failed
	WriteTexture(tex gpu.Texture, data []byte) error

	// CopyTexture copies src into dst. Both must share size and format.
	//
	// Parameters:
	//   - src: the source texture
	//   - dst: the destination texture
	//
	// Returns:
	//   - error: an error if the copy is invalid or unsupported
	CopyTexture(src, dst gpu.Texture) error

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - desc: the sampler descriptor
	//
	// Returns:
	//   - gpu.Sampler: the new sampler
	//   - error: an error if creation failed
	CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error)

	// RegisterPipeline compiles a pipeline and stores it under its key. Registering an existing
	// key is a no-op.
	//
	// Parameters:
	//   - p: the pipeline description
	//
	// Returns:
	//   - error: an error if compilation failed
	RegisterPipeline(p pipeline.Pipeline) error

	// HasPipeline reports whether a pipeline is registered under key.
	HasPipeline(key string) bool

	// BeginFrame starts recording a frame.
	//
	// Returns:
	//   - error: an error if a frame is already in progress
	BeginFrame() error

	// Dispatch records a compute dispatch.
	//
	// Parameters:
	//   - key: the compute pipeline key
	//   - groups: the bind group providers, groups[i] at @group(i)
	//   - workgroups: the workgroup counts in x, y and z
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or cannot run on this backend
	Dispatch(key string, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error

	// BeginPass starts a render pass. A color attachment with a nil Texture targets the surface.
	//
	// Parameters:
	//   - desc: the pass attachments and load operations
	//
	// Returns:
	//   - error: an error if a pass is already open or an attachment is invalid
	BeginPass(desc gpu.PassDescriptor) error

	// Draw records a draw into the open pass.
	//
	// Parameters:
	//   - call: the draw description
	//
	// Returns:
	//   - error: an error if no pass is open or the pipeline is unknown
	Draw(call DrawCall) error

	// EndPass closes the open render pass.
	EndPass() error

	// EndFrame submits the recorded frame.
	EndFrame() error

	// Present shows the surface image produced by the frame.
	Present() error

	// ConfigureSurface resizes the presentation surface.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	ConfigureSurface(width, height int) error

	// SurfaceFormat returns the color format of the presentation surface.
	SurfaceFormat() gpu.TextureFormat

	// SetVSync switches between FIFO and immediate presentation. Takes effect on the next ConfigureSurface.
	SetVSync(enabled bool)

	// CaptureSurface arms a copy of the surface at the end of the next frame. The copy can be read
	// with ReadSurface once that frame has been submitted.
	CaptureSurface()

	// ReadSurface returns the most recently captured surface image, display encoded.
	//
	// Returns:
	//   - *gpu.HostImage: the surface contents
	//   - error: an error if nothing was captured or the read-back failed
	ReadSurface() (*gpu.HostImage, error)

	// Stats returns a snapshot of the work counters.
	Stats() Stats

	// Shutdown releases the device. Resources created by the backend must be released by their owners first.
	Shutdown() error
}

// statsRecorder accumulates Stats behind a mutex; host kernels may allocate from worker goroutines.
type statsRecorder struct {
	mu sync.Mutex
	s  Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		s: Stats{
			Dispatches:         make(map[string]int),
			Draws:              make(map[string]int),
			TextureAllocations: make(map[string]int),
		},
	}
}

func (r *statsRecorder) frame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Frames++
}

func (r *statsRecorder) dispatch(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Dispatches[key]++
}

func (r *statsRecorder) draw(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Draws[key]++
}

func (r *statsRecorder) textureCreated(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.TextureAllocations[label]++
	r.s.LiveTextures++
}

func (r *statsRecorder) textureReleased() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.LiveTextures--
}

func (r *statsRecorder) bufferCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.LiveBuffers++
}

func (r *statsRecorder) bufferReleased() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.LiveBuffers--
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.s
	out.Dispatches = maps.Clone(r.s.Dispatches)
	out.Draws = maps.Clone(r.s.Draws)
	out.TextureAllocations = maps.Clone(r.s.TextureAllocations)
	return out
}
