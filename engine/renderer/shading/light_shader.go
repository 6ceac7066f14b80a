package shading

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const defaultLightCapacity = 64

// lightShader is the implementation of the LightShader interface.
type lightShader struct {
	mu     *sync.Mutex
	logger *zap.Logger

	backend  backend.Backend
	header   gpu.Buffer
	lights   gpu.Buffer
	provider bind_group_provider.BindGroupProvider

	initialCapacity int
	capacity        int

	// the state last uploaded, compared on every bind
	list     light.PointLightList
	version  uint64
	count    int
	ambient  mgl32.Vec3
	uploaded bool
}

// LightShader uploads the scene's point lights and ambient irradiance for the light bind group
// at LightGroup. Every light is visible to every fragment; culling is left to the strategies.
type LightShader interface {
	// Initialize creates the header uniform, the light storage buffer and the bind group.
	// Calling it again does nothing.
	//
	// Parameters:
	//   - b: the backend that owns the buffers
	//
	// Returns:
	//   - error: an error if a buffer cannot be created
	Initialize(b backend.Backend) error

	// BindLights uploads the light count, clamped to light.MaxExactLightCount, the ambient
	// irradiance and the lights of s. The light buffer is only rewritten when the list changed
	// since the previous call, and grows when the list outgrows it.
	//
	// Parameters:
	//   - s: the scene whose lights are bound
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the light bind group
	//   - error: ErrNotInitialized, or an error from an upload
	BindLights(s scene.Scene) (bind_group_provider.BindGroupProvider, error)

	// Provider returns the light bind group, nil before Initialize.
	Provider() bind_group_provider.BindGroupProvider

	// HeaderBuffer returns the LightHeader uniform buffer.
	HeaderBuffer() gpu.Buffer

	// LightBuffer returns the PointLight storage buffer. It is replaced when it grows.
	LightBuffer() gpu.Buffer

	// Count returns the number of lights uploaded by the last BindLights call.
	Count() int

	// Shutdown releases the buffers and the bind group.
	Shutdown()
}

var _ LightShader = &lightShader{}

// NewLightShader creates an uninitialized light shader.
//
// Parameters:
//   - options: a variadic list of options, see WithLightLogger and WithInitialCapacity
//
// Returns:
//   - LightShader: the new shader
func NewLightShader(options ...LightShaderBuilderOption) LightShader {
	s := &lightShader{
		mu:              &sync.Mutex{},
		logger:          zap.NewNop(),
		initialCapacity: defaultLightCapacity,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *lightShader) Initialize(b backend.Backend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != nil {
		return nil
	}
	s.backend = b

	header, err := b.CreateBuffer(gpu.BufferDescriptor{
		Label: "light header",
		Size:  light.GPULightHeaderSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("light shader: %w", err)
	}
	lights, err := s.createLightBuffer(s.initialCapacity)
	if err != nil {
		header.Release()
		return fmt.Errorf("light shader: %w", err)
	}

	s.header = header
	s.lights = lights
	s.capacity = s.initialCapacity
	s.provider = bind_group_provider.NewBindGroupProvider("lights",
		bind_group_provider.WithBuffer(LightHeaderBinding, header),
		bind_group_provider.WithBuffer(LightBufferBinding, lights),
	)
	s.uploaded = false
	return nil
}

func (s *lightShader) createLightBuffer(capacity int) (gpu.Buffer, error) {
	return s.backend.CreateBuffer(gpu.BufferDescriptor{
		Label: "point lights",
		Size:  uint64(capacity * light.GPUPointLightSize),
		Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDst,
	})
}

func (s *lightShader) BindLights(sc scene.Scene) (bind_group_provider.BindGroupProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return nil, ErrNotInitialized
	}

	list := sc.Lights()
	version := list.Version()
	lightsChanged := !s.uploaded || list != s.list || version != s.version

	var writes []bind_group_provider.BufferWrite
	count := s.count
	if lightsChanged {
		lights := list.Lights()
		count = min(len(lights), light.MaxExactLightCount)
		lights = lights[:count]
		if count > s.capacity {
			if err := s.grow(count); err != nil {
				return nil, fmt.Errorf("bind lights: %w", err)
			}
		}
		if count > 0 {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: s.provider,
				Binding:  LightBufferBinding,
				Data:     light.MarshalPointLights(lights),
			})
		}
	}

	ambient := sc.Ambient().Irradiance
	if lightsChanged || ambient != s.ambient || count != s.count {
		h := light.NewGPULightHeader(ambient, count)
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: s.provider,
			Binding:  LightHeaderBinding,
			Data:     h.Marshal(),
		})
	}
	if len(writes) > 0 {
		if err := s.backend.WriteBuffers(writes); err != nil {
			return nil, fmt.Errorf("bind lights: %w", err)
		}
	}

	s.list = list
	s.version = version
	s.count = count
	s.ambient = ambient
	s.uploaded = true
	return s.provider, nil
}

// grow replaces the light buffer with one holding at least n lights. Caller must hold the mutex.
func (s *lightShader) grow(n int) error {
	capacity := max(n, 2*s.capacity)
	buf, err := s.createLightBuffer(capacity)
	if err != nil {
		return err
	}
	s.lights.Release()
	s.lights = buf
	s.capacity = capacity
	s.provider.SetBuffer(LightBufferBinding, buf)
	s.logger.Debug("light buffer grown", zap.Int("capacity", capacity))
	return nil
}

func (s *lightShader) Provider() bind_group_provider.BindGroupProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

func (s *lightShader) HeaderBuffer() gpu.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

func (s *lightShader) LightBuffer() gpu.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lights
}

func (s *lightShader) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *lightShader) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return
	}
	s.provider.Release()
	s.header.Release()
	s.lights.Release()
	s.provider, s.header, s.lights = nil, nil, nil
	s.list = nil
	s.uploaded = false
	s.count = 0
}
