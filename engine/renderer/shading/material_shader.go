// Package shading owns the GPU side of surface shading shared by every render strategy: material
// bind groups with their placeholder textures, the directional albedo table used for multiple
// scattering compensation, and the point light buffers.
package shading

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned when a shader is used before Initialize.
var ErrNotInitialized = errors.New("shader not initialized")

// materialBinding is the GPU state owned for one material.
type materialBinding struct {
	provider bind_group_provider.BindGroupProvider
	uniform  gpu.Buffer
	// whiteFurnace is the mode the uniform was last uploaded with.
	whiteFurnace bool
	uploaded     bool
}

// materialShader is the implementation of the MaterialShader interface.
type materialShader struct {
	mu     *sync.Mutex
	logger *zap.Logger

	backend     backend.Backend
	initialized bool

	sampler      gpu.Sampler
	placeholders [material.TextureSlotCount]gpu.Texture
	lut          gpu.Texture
	ones         gpu.Texture
	lutProvider  bind_group_provider.BindGroupProvider
	lutGenerated bool

	multipleScattering bool
	whiteFurnace       bool

	bound    map[material.Material]*materialBinding
	textures map[*common.ImportedTexture]gpu.Texture
}

// MaterialShader binds materials for drawing. Each material gets a uniform buffer and a bind
// group at MaterialGroup holding its textures, with 1x1 placeholders for missing ones, and the
// albedo table.
type MaterialShader interface {
	// Initialize creates the sampler, the placeholder textures and the albedo table, and
	// registers the table's compute pipeline. Calling it again does nothing.
	//
	// Parameters:
	//   - b: the backend that owns every resource created by the shader
	//
	// Returns:
	//   - error: an error if a resource cannot be created
	Initialize(b backend.Backend) error

	// GenerateAlbedoLUT fills the AlbedoLUTSize x AlbedoLUTSize table of single-scattering
	// directional albedo, indexed by (NdotV, roughness), in its own compute frame. It runs once;
	// later calls return immediately. Must not be called while a frame is open.
	//
	// Returns:
	//   - error: ErrNotInitialized, or an error from the dispatch
	GenerateAlbedoLUT() error

	// BindMaterial uploads the material's factors and texture mask, binds its textures and
	// returns the bind group for MaterialGroup.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - gpu.StateFlags: StateBlendAlpha for blended materials, and StateCullNone for
	//     double-sided materials or StateCullBack otherwise
	//   - bind_group_provider.BindGroupProvider: the material's bind group
	//   - error: ErrNotInitialized, or an error creating the material's resources
	BindMaterial(m material.Material) (gpu.StateFlags, bind_group_provider.BindGroupProvider, error)

	// AlbedoLUT returns the table currently bound to materials: the generated table when
	// multiple scattering is enabled and the table exists, a 1x1 table of ones otherwise.
	AlbedoLUT() gpu.Texture

	// Sampler returns the linear repeat sampler bound to materials.
	Sampler() gpu.Sampler

	// MultipleScattering reports whether the albedo table is bound.
	MultipleScattering() bool

	// SetMultipleScattering enables or disables multiple scattering compensation.
	//
	// Parameters:
	//   - enabled: false binds an all-ones table, which leaves the specular lobe unscaled
	SetMultipleScattering(enabled bool)

	// WhiteFurnace reports whether materials are overridden with a white, non-emissive albedo.
	WhiteFurnace() bool

	// SetWhiteFurnace toggles the white furnace override. Material uniforms are re-uploaded on
	// their next bind.
	//
	// Parameters:
	//   - enabled: true to override albedo and emission
	SetWhiteFurnace(enabled bool)

	// Shutdown releases every resource created by the shader and detaches the bind groups from
	// their materials.
	Shutdown()
}

var _ MaterialShader = &materialShader{}

// NewMaterialShader creates an uninitialized material shader. Multiple scattering is enabled by
// default.
//
// Parameters:
//   - options: a variadic list of options, see WithLogger, WithMultipleScattering and WithWhiteFurnace
//
// Returns:
//   - MaterialShader: the new shader
func NewMaterialShader(options ...MaterialShaderBuilderOption) MaterialShader {
	s := &materialShader{
		mu:                 &sync.Mutex{},
		logger:             zap.NewNop(),
		multipleScattering: true,
		bound:              make(map[material.Material]*materialBinding),
		textures:           make(map[*common.ImportedTexture]gpu.Texture),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *materialShader) Initialize(b backend.Backend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.backend = b

	sampler, err := b.CreateSampler(gpu.SamplerDescriptor{Label: "material sampler", Filter: gpu.FilterLinear, Address: gpu.AddressRepeat})
	if err != nil {
		return fmt.Errorf("material shader: %w", err)
	}
	s.sampler = sampler

	white := []byte{255, 255, 255, 255}
	flatNormal := []byte{128, 128, 255, 255}
	for slot := range material.TextureSlotCount {
		texel := white
		if slot == material.TextureNormal {
			texel = flatNormal
		}
		tex, err := s.createTexture("placeholder "+slot.String(), 1, 1, gpu.FormatRGBA8, gpu.TextureUsageSampled|gpu.TextureUsageCopyDst, texel)
		if err != nil {
			s.releaseLocked()
			return fmt.Errorf("material shader: %w", err)
		}
		s.placeholders[slot] = tex
	}

	ones, err := gpu.EncodeTexels(AlbedoLUTFormat, &gpu.HostImage{Width: 1, Height: 1, Pix: []float32{1, 1, 1, 1}})
	if err == nil {
		s.ones, err = s.createTexture("albedo lut ones", 1, 1, AlbedoLUTFormat, gpu.TextureUsageSampled|gpu.TextureUsageCopyDst, ones)
	}
	if err != nil {
		s.releaseLocked()
		return fmt.Errorf("material shader: %w", err)
	}

	if b.Capabilities().Compute {
		if err := s.createAlbedoLUT(); err != nil {
			s.releaseLocked()
			return fmt.Errorf("material shader: %w", err)
		}
	} else {
		s.logger.Warn("compute unavailable, multiple scattering compensation disabled")
	}

	s.initialized = true
	return nil
}

func (s *materialShader) createTexture(label string, w, h int, format gpu.TextureFormat, usage gpu.TextureUsage, data []byte) (gpu.Texture, error) {
	tex, err := s.backend.CreateTexture(gpu.TextureDescriptor{Label: label, Width: w, Height: h, Format: format, Usage: usage})
	if err != nil {
		return nil, err
	}
	if err := s.backend.WriteTexture(tex, data); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}

func (s *materialShader) createAlbedoLUT() error {
	lut, err := s.backend.CreateTexture(gpu.TextureDescriptor{
		Label:  "albedo lut",
		Width:  AlbedoLUTSize,
		Height: AlbedoLUTSize,
		Format: AlbedoLUTFormat,
		Usage:  gpu.TextureUsageStorage | gpu.TextureUsageSampled,
	})
	if err != nil {
		return err
	}
	s.lut = lut
	s.lutProvider = bind_group_provider.NewBindGroupProvider("albedo lut", bind_group_provider.WithTexture(0, lut))

	cs, err := shader.NewShader(albedoLUTPipeline, shader.ShaderTypeCompute, albedoLUTSource, Registry())
	if err != nil {
		return err
	}
	return s.backend.RegisterPipeline(pipeline.NewPipeline(albedoLUTPipeline, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cs),
		pipeline.WithHostKernel(albedoLUTKernel),
	))
}

func (s *materialShader) GenerateAlbedoLUT() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.lutGenerated || s.lut == nil {
		return nil
	}

	groups := uint32(common.CeilDiv(AlbedoLUTSize, albedoLUTWorkgroup))
	if err := s.backend.BeginFrame(); err != nil {
		return fmt.Errorf("albedo lut: %w", err)
	}
	dispatchErr := s.backend.Dispatch(albedoLUTPipeline, []bind_group_provider.BindGroupProvider{s.lutProvider}, [3]uint32{groups, groups, 1})
	if err := errors.Join(dispatchErr, s.backend.EndFrame()); err != nil {
		return fmt.Errorf("albedo lut: %w", err)
	}
	s.lutGenerated = true
	s.logger.Debug("albedo lut generated", zap.Int("size", AlbedoLUTSize), zap.Int("samples", AlbedoLUTSamples))
	return nil
}

func (s *materialShader) BindMaterial(m material.Material) (gpu.StateFlags, bind_group_provider.BindGroupProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return gpu.StateNone, nil, ErrNotInitialized
	}

	binding, ok := s.bound[m]
	if !ok {
		var err error
		binding, err = s.createBinding(m)
		if err != nil {
			return gpu.StateNone, nil, fmt.Errorf("bind material %q: %w", m.Name(), err)
		}
		s.bound[m] = binding
		m.SetBindGroupProvider(binding.provider)
	}

	if !binding.uploaded || binding.whiteFurnace != s.whiteFurnace {
		u := material.NewGPUMaterialUniform(m, s.whiteFurnace)
		if err := s.backend.WriteBuffer(binding.uniform, 0, u.Marshal()); err != nil {
			return gpu.StateNone, nil, fmt.Errorf("bind material %q: %w", m.Name(), err)
		}
		binding.uploaded = true
		binding.whiteFurnace = s.whiteFurnace
	}
	binding.provider.SetTexture(AlbedoLUTBinding, s.activeLUT())

	state := gpu.StateCullBack
	if m.DoubleSided() {
		state = gpu.StateCullNone
	}
	if m.Blend() {
		state |= gpu.StateBlendAlpha
	}
	return state, binding.provider, nil
}

// createBinding allocates the uniform buffer and uploads the textures of m. Textures that fail
// to decode are replaced by their placeholder. Caller must hold the mutex.
func (s *materialShader) createBinding(m material.Material) (*materialBinding, error) {
	uniform, err := s.backend.CreateBuffer(gpu.BufferDescriptor{
		Label: "material " + m.Name(),
		Size:  material.GPUMaterialUniformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	opts := []bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithBuffer(MaterialUniformBinding, uniform),
		bind_group_provider.WithSampler(MaterialSamplerBinding, s.sampler),
	}
	for slot := range material.TextureSlotCount {
		tex := s.placeholders[slot]
		if src := m.Texture(slot); src != nil {
			if uploaded, err := s.uploadTexture(src, slot); err != nil {
				s.logger.Warn("failed to load material texture",
					zap.String("material", m.Name()), zap.Stringer("slot", slot), zap.Error(err))
			} else {
				tex = uploaded
			}
		}
		opts = append(opts, bind_group_provider.WithTexture(MaterialTextureBinding+int(slot), tex))
	}

	return &materialBinding{
		provider: bind_group_provider.NewBindGroupProvider("material "+m.Name(), opts...),
		uniform:  uniform,
	}, nil
}

// uploadTexture decodes src once and shares the texture between materials.
func (s *materialShader) uploadTexture(src *common.ImportedTexture, slot material.TextureSlot) (gpu.Texture, error) {
	if tex, ok := s.textures[src]; ok {
		return tex, nil
	}
	data, err := src.Decode()
	if err != nil {
		return nil, err
	}
	label := src.Name
	if label == "" {
		label = slot.String()
	}
	tex, err := s.createTexture(label, int(data.Width), int(data.Height), gpu.FormatRGBA8,
		gpu.TextureUsageSampled|gpu.TextureUsageCopyDst, data.Pixels)
	if err != nil {
		return nil, err
	}
	s.textures[src] = tex
	return tex, nil
}

// activeLUT returns the table to bind. Caller must hold the mutex.
func (s *materialShader) activeLUT() gpu.Texture {
	if s.multipleScattering && s.lutGenerated {
		return s.lut
	}
	return s.ones
}

func (s *materialShader) AlbedoLUT() gpu.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLUT()
}

func (s *materialShader) Sampler() gpu.Sampler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampler
}

func (s *materialShader) MultipleScattering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multipleScattering
}

func (s *materialShader) SetMultipleScattering(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multipleScattering = enabled
}

func (s *materialShader) WhiteFurnace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.whiteFurnace
}

func (s *materialShader) SetWhiteFurnace(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whiteFurnace = enabled
}

func (s *materialShader) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.initialized = false
}

// releaseLocked releases every owned resource. Caller must hold the mutex.
func (s *materialShader) releaseLocked() {
	for m, binding := range s.bound {
		binding.provider.Release()
		binding.uniform.Release()
		m.SetBindGroupProvider(nil)
	}
	clear(s.bound)
	for _, tex := range s.textures {
		tex.Release()
	}
	clear(s.textures)

	for i, tex := range s.placeholders {
		if tex != nil {
			tex.Release()
			s.placeholders[i] = nil
		}
	}
	if s.lutProvider != nil {
		s.lutProvider.Release()
		s.lutProvider = nil
	}
	for _, r := range []gpu.Resource{s.lut, s.ones, s.sampler} {
		if r != nil && !r.Released() {
			r.Release()
		}
	}
	s.lut, s.ones, s.sampler = nil, nil, nil
	s.lutGenerated = false
}
