package material

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUMaterialUniformSource is the canonical WGSL definition of the MaterialUniform struct.
// Matches GPUMaterialUniform layout exactly (48 bytes).
//
//go:embed assets/material_uniform.wgsl
var GPUMaterialUniformSource string

// GPUMaterialUniformSize is the byte size of the marshalled GPUMaterialUniform.
const GPUMaterialUniformSize = 48

// GPUMaterialUniform is the per-material uniform read by every surface shader.
// Matches the WGSL MaterialUniform struct layout exactly (see GPUMaterialUniformSource).
type GPUMaterialUniform struct {
	BaseColor         mgl32.Vec4 // offset  0: linear RGBA factor
	Emissive          mgl32.Vec3 // offset 16: linear emissive factor
	Metallic          float32    // offset 28
	Roughness         float32    // offset 32
	NormalScale       float32    // offset 36
	OcclusionStrength float32    // offset 40
	TextureMask       uint32     // offset 44: bit n set when TextureSlot n is sampled
}

// NewGPUMaterialUniform converts a material into its uniform. In white furnace mode the base
// color becomes opaque white and emission is dropped, so a correctly energy-conserving BRDF
// reflects all incoming ambient light.
//
// Parameters:
//   - m: the material
//   - whiteFurnace: true to override albedo and emission
//
// Returns:
//   - GPUMaterialUniform: the uniform for m
func NewGPUMaterialUniform(m Material, whiteFurnace bool) GPUMaterialUniform {
	u := GPUMaterialUniform{
		BaseColor:         m.BaseColor(),
		Emissive:          m.Emissive(),
		Metallic:          m.Metallic(),
		Roughness:         m.Roughness(),
		NormalScale:       m.NormalScale(),
		OcclusionStrength: m.OcclusionStrength(),
		TextureMask:       m.TextureMask(),
	}
	if whiteFurnace {
		u.BaseColor = mgl32.Vec4{1, 1, 1, 1}
		u.Emissive = mgl32.Vec3{}
		u.TextureMask &^= 1<<TextureBaseColor | 1<<TextureEmissive
	}
	return u
}

// Marshal serializes the GPUMaterialUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUMaterialUniform) Marshal() []byte {
	buf := make([]byte, GPUMaterialUniformSize)
	off := common.PutFloat32s(buf, 0, g.BaseColor[0], g.BaseColor[1], g.BaseColor[2], g.BaseColor[3])
	off = common.PutFloat32s(buf, off, g.Emissive[0], g.Emissive[1], g.Emissive[2], g.Metallic)
	off = common.PutFloat32s(buf, off, g.Roughness, g.NormalScale, g.OcclusionStrength)
	binary.LittleEndian.PutUint32(buf[off:], g.TextureMask)
	return buf
}
