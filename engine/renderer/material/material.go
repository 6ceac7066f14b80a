package material

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// TextureSlot names one of the texture inputs of a metallic-roughness material.
type TextureSlot int

const (
	// TextureBaseColor holds sRGB albedo in RGB and coverage in A.
	TextureBaseColor TextureSlot = iota
	// TextureMetallicRoughness holds roughness in G and metallic in B.
	TextureMetallicRoughness
	// TextureNormal holds a tangent-space normal map.
	TextureNormal
	// TextureOcclusion holds ambient occlusion in R.
	TextureOcclusion
	// TextureEmissive holds sRGB emissive color.
	TextureEmissive

	// TextureSlotCount is the number of texture slots.
	TextureSlotCount
)

// String returns the slot name used for labels.
func (s TextureSlot) String() string {
	switch s {
	case TextureBaseColor:
		return "baseColor"
	case TextureMetallicRoughness:
		return "metallicRoughness"
	case TextureNormal:
		return "normal"
	case TextureOcclusion:
		return "occlusion"
	case TextureEmissive:
		return "emissive"
	}
	return "unknown"
}

// SRGB reports whether texels in this slot are sRGB encoded color.
func (s TextureSlot) SRGB() bool {
	return s == TextureBaseColor || s == TextureEmissive
}

// material is the implementation of the Material interface.
type material struct {
	name              string
	baseColor         mgl32.Vec4
	metallic          float32
	roughness         float32
	normalScale       float32
	occlusionStrength float32
	emissive          mgl32.Vec3
	doubleSided       bool
	blend             bool
	textures          [TextureSlotCount]*common.ImportedTexture
	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Material defines the interface for a glTF-style metallic-roughness material, encapsulating
// surface factors, texture references and the GPU resources used to bind it for draw calls.
//
// Surface properties are set at construction time and are read-only through this interface. The
// bind group provider is mutable so the material shader can attach GPU resources on first use.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the linear RGBA base color factor. Alpha is coverage for blended materials.
	//
	// Returns:
	//   - mgl32.Vec4: the base color factor
	BaseColor() mgl32.Vec4

	// Metallic retrieves the metallic factor.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the perceptual roughness factor.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// NormalScale retrieves the scale applied to the XY components of the normal map.
	NormalScale() float32

	// OcclusionStrength retrieves how strongly the occlusion texture darkens ambient light.
	OcclusionStrength() float32

	// Emissive retrieves the linear emissive color factor.
	Emissive() mgl32.Vec3

	// DoubleSided reports whether back faces are rendered.
	DoubleSided() bool

	// Blend reports whether the material is alpha blended. Blended materials are drawn after all
	// opaque geometry.
	Blend() bool

	// Texture retrieves the texture assigned to slot, or nil.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - *common.ImportedTexture: the texture, or nil if the slot is empty or out of range
	Texture(slot TextureSlot) *common.ImportedTexture

	// TextureMask returns a bitmask with bit n set when slot n has a texture.
	TextureMask() uint32

	// BindGroupProvider retrieves the bind group provider holding GPU-side resources for this material.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider, or nil if not yet initialized
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetBindGroupProvider sets the bind group provider for this material.
	//
	// Parameters:
	//   - provider: the bind group provider containing GPU resources for this material
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Unset factors take the glTF defaults: white base color, metallic and roughness of 1, unit
// normal scale and occlusion strength, no emission.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor:         mgl32.Vec4{1, 1, 1, 1},
		metallic:          1.0,
		roughness:         1.0,
		normalScale:       1.0,
		occlusionStrength: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() mgl32.Vec4 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) NormalScale() float32 {
	return m.normalScale
}

func (m *material) OcclusionStrength() float32 {
	return m.occlusionStrength
}

func (m *material) Emissive() mgl32.Vec3 {
	return m.emissive
}

func (m *material) DoubleSided() bool {
	return m.doubleSided
}

func (m *material) Blend() bool {
	return m.blend
}

func (m *material) Texture(slot TextureSlot) *common.ImportedTexture {
	if slot < 0 || slot >= TextureSlotCount {
		return nil
	}
	return m.textures[slot]
}

func (m *material) TextureMask() uint32 {
	var mask uint32
	for i, t := range m.textures {
		if t != nil {
			mask |= 1 << i
		}
	}
	return mask
}

func (m *material) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return m.bindGroupProvider
}

func (m *material) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	m.bindGroupProvider = provider
}
