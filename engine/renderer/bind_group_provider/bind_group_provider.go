package bind_group_provider

import (
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
)

// Releaser is any backend object that must be released, e.g. a compiled bind group.
type Releaser interface {
	Release()
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu sync.Mutex

	// label is a debug label added for convenience.
	label string

	// buffers, textures and samplers hold the resources bound at each binding index.
	// The provider references them; the component that created them owns and releases them.
	buffers  map[int]gpu.Buffer
	textures map[int]gpu.Texture
	samplers map[int]gpu.Sampler

	// vertexBuffer and indexBuffer describe the geometry drawn with this provider, if any.
	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
	indexCount   int

	// version increases whenever a binding changes so cached backend objects can be rebuilt.
	version uint64
	// cache holds backend bind groups compiled from this provider, keyed by pipeline and group.
	cache map[string]Releaser
}

// BindGroupProvider describes the resources of one bind group: which buffer, texture or sampler
// sits at each binding index. Components (the cluster grid, the material and light shaders,
// the strategies) create providers, and backends compile them into native bind groups on
// first use, caching the result on the provider until a binding changes.
//
// Usage pattern:
//  1. A component creates its GPU resources through the backend
//  2. It creates a provider and sets the resources at their binding indices
//  3. It passes the provider, in group order, to Backend.Dispatch or Backend.Draw
//  4. The backend compiles and caches the bind group; Set* calls invalidate the cache
type BindGroupProvider interface {
	// Release releases the cached backend objects. The bound resources are not released.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Version returns a counter that increases on every binding change.
	//
	// Returns:
	//   - uint64: the current version
	Version() uint64

	// Buffer returns the buffer at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(binding int) gpu.Buffer

	// Buffers returns a copy of all buffers keyed by binding index.
	//
	// Returns:
	//   - map[int]gpu.Buffer: the buffers
	Buffers() map[int]gpu.Buffer

	// Texture returns the texture at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Texture: the texture or nil
	Texture(binding int) gpu.Texture

	// Textures returns a copy of all textures keyed by binding index.
	//
	// Returns:
	//   - map[int]gpu.Texture: the textures
	Textures() map[int]gpu.Texture

	// Sampler returns the sampler at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Sampler: the sampler or nil
	Sampler(binding int) gpu.Sampler

	// VertexBuffer returns the vertex buffer, or nil.
	//
	// Returns:
	//   - gpu.Buffer: the vertex buffer or nil
	VertexBuffer() gpu.Buffer

	// IndexBuffer returns the 32-bit index buffer, or nil.
	//
	// Returns:
	//   - gpu.Buffer: the index buffer or nil
	IndexBuffer() gpu.Buffer

	// IndexCount returns the number of indices for draw calls.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// SetBuffer binds a buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	SetBuffer(binding int, buf gpu.Buffer)

	// SetTexture binds a texture.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tex: the texture
	SetTexture(binding int, tex gpu.Texture)

	// SetSampler binds a sampler.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s gpu.Sampler)

	// SetGeometry sets the vertex and index buffers drawn with this provider.
	//
	// Parameters:
	//   - vertices: the vertex buffer
	//   - indices: the 32-bit index buffer
	//   - indexCount: the number of indices
	SetGeometry(vertices, indices gpu.Buffer, indexCount int)

	// Cached returns the backend object cached under key.
	//
	// Parameters:
	//   - key: the cache key, typically pipeline key plus group index
	//
	// Returns:
	//   - Releaser: the cached object
	//   - bool: false if nothing is cached
	Cached(key string) (Releaser, bool)

	// SetCached stores a backend object, releasing any previous object under the same key.
	//
	// Parameters:
	//   - key: the cache key
	//   - obj: the backend object
	SetCached(key string, obj Releaser)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  make(map[int]gpu.Buffer),
		textures: make(map[int]gpu.Texture),
		samplers: make(map[int]gpu.Sampler),
		cache:    make(map[string]Releaser),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *bindGroupProvider) Buffer(binding int) gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.buffers)
}

func (p *bindGroupProvider) Texture(binding int) gpu.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textures[binding]
}

func (p *bindGroupProvider) Textures() map[int]gpu.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.textures)
}

func (p *bindGroupProvider) Sampler(binding int) gpu.Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplers[binding]
}

func (p *bindGroupProvider) VertexBuffer() gpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() gpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBuffer(binding int, buf gpu.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffers[binding] == buf {
		return
	}
	p.buffers[binding] = buf
	p.invalidate()
}

func (p *bindGroupProvider) SetTexture(binding int, tex gpu.Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.textures[binding] == tex {
		return
	}
	p.textures[binding] = tex
	p.invalidate()
}

func (p *bindGroupProvider) SetSampler(binding int, s gpu.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.samplers[binding] == s {
		return
	}
	p.samplers[binding] = s
	p.invalidate()
}

func (p *bindGroupProvider) SetGeometry(vertices, indices gpu.Buffer, indexCount int) {
	p.vertexBuffer = vertices
	p.indexBuffer = indices
	p.indexCount = indexCount
}

func (p *bindGroupProvider) Cached(key string) (Releaser, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.cache[key]
	return obj, ok
}

func (p *bindGroupProvider) SetCached(key string, obj Releaser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.cache[key]; ok && old != nil {
		old.Release()
	}
	p.cache[key] = obj
}

// invalidate bumps the version and drops compiled bind groups. Callers hold mu.
func (p *bindGroupProvider) invalidate() {
	p.version++
	for k, obj := range p.cache {
		if obj != nil {
			obj.Release()
		}
		delete(p.cache, k)
	}
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidate()
}
