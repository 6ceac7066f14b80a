package material

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the linear RGBA base color factor of the material.
//
// Parameters:
//   - color: the base color as linear RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color mgl32.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = mgl32.Clamp(metallic, 0, 1)
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = mgl32.Clamp(roughness, 0, 1)
	}
}

// WithNormalScale is an option builder that sets the normal map XY scale.
//
// Parameters:
//   - scale: the normal scale
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal scale option to a material
func WithNormalScale(scale float32) MaterialBuilderOption {
	return func(m *material) {
		m.normalScale = scale
	}
}

// WithOcclusionStrength is an option builder that sets the occlusion strength.
//
// Parameters:
//   - strength: 0 disables the occlusion texture, 1 applies it fully
//
// Returns:
//   - MaterialBuilderOption: a function that applies the occlusion strength option to a material
func WithOcclusionStrength(strength float32) MaterialBuilderOption {
	return func(m *material) {
		m.occlusionStrength = mgl32.Clamp(strength, 0, 1)
	}
}

// WithEmissive is an option builder that sets the linear emissive color factor.
//
// Parameters:
//   - emissive: the emissive color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(emissive mgl32.Vec3) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = emissive
	}
}

// WithDoubleSided is an option builder that disables back-face culling for the material.
//
// Returns:
//   - MaterialBuilderOption: a function that marks a material double sided
func WithDoubleSided() MaterialBuilderOption {
	return func(m *material) {
		m.doubleSided = true
	}
}

// WithBlend is an option builder that marks the material as alpha blended.
//
// Returns:
//   - MaterialBuilderOption: a function that marks a material blended
func WithBlend() MaterialBuilderOption {
	return func(m *material) {
		m.blend = true
	}
}

// WithTexture is an option builder that assigns a texture to a slot. Out-of-range slots are ignored.
//
// Parameters:
//   - slot: the texture slot
//   - tex: the imported texture data
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(slot TextureSlot, tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		if slot >= 0 && slot < TextureSlotCount {
			m.textures[slot] = tex
		}
	}
}

// WithBindGroupProvider is an option builder that sets the bind group provider for the material.
//
// Parameters:
//   - provider: the bind group provider containing GPU resources for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the bind group provider option to a material
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) MaterialBuilderOption {
	return func(m *material) {
		m.bindGroupProvider = provider
	}
}
