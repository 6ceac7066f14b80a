package material

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial()
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, m.BaseColor())
	assert.Equal(t, float32(1), m.Metallic())
	assert.Equal(t, float32(1), m.Roughness())
	assert.Equal(t, float32(1), m.NormalScale())
	assert.Equal(t, float32(1), m.OcclusionStrength())
	assert.Equal(t, mgl32.Vec3{}, m.Emissive())
	assert.False(t, m.Blend())
	assert.False(t, m.DoubleSided())
	assert.Zero(t, m.TextureMask())
	assert.Nil(t, m.BindGroupProvider())
}

func TestMaterialOptions(t *testing.T) {
	normal := &common.ImportedTexture{Name: "normal"}
	emissive := &common.ImportedTexture{Name: "emissive"}
	m := NewMaterial(
		WithName("glass"),
		WithMetallic(2),
		WithRoughness(-1),
		WithBlend(),
		WithDoubleSided(),
		WithTexture(TextureNormal, normal),
		WithTexture(TextureEmissive, emissive),
		WithTexture(TextureSlotCount, normal),
	)

	assert.Equal(t, "glass", m.Name())
	assert.Equal(t, float32(1), m.Metallic(), "factors are clamped")
	assert.Equal(t, float32(0), m.Roughness())
	assert.True(t, m.Blend())
	assert.True(t, m.DoubleSided())
	assert.Same(t, normal, m.Texture(TextureNormal))
	assert.Nil(t, m.Texture(TextureBaseColor))
	assert.Nil(t, m.Texture(-1))
	assert.Equal(t, uint32(1<<TextureNormal|1<<TextureEmissive), m.TextureMask())
}

func TestMaterialUniformLayout(t *testing.T) {
	m := NewMaterial(
		WithBaseColor(mgl32.Vec4{0.5, 0.25, 0.125, 0.75}),
		WithEmissive(mgl32.Vec3{2, 3, 4}),
		WithMetallic(0.2),
		WithRoughness(0.6),
		WithNormalScale(0.5),
		WithOcclusionStrength(0.8),
		WithTexture(TextureBaseColor, &common.ImportedTexture{}),
	)
	u := NewGPUMaterialUniform(m, false)
	buf := u.Marshal()
	require.Len(t, buf, GPUMaterialUniformSize)

	assert.Equal(t, float32(0.75), common.Float32At(buf, 12))
	assert.Equal(t, float32(4), common.Float32At(buf, 24))
	assert.InDelta(t, 0.2, common.Float32At(buf, 28), 1e-7)
	assert.InDelta(t, 0.6, common.Float32At(buf, 32), 1e-7)
	assert.Equal(t, float32(0.5), common.Float32At(buf, 36))
	assert.InDelta(t, 0.8, common.Float32At(buf, 40), 1e-7)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[44:]))
}

func TestWhiteFurnaceOverride(t *testing.T) {
	m := NewMaterial(
		WithBaseColor(mgl32.Vec4{0.1, 0.2, 0.3, 0.4}),
		WithEmissive(mgl32.Vec3{5, 5, 5}),
		WithRoughness(0.3),
		WithTexture(TextureBaseColor, &common.ImportedTexture{}),
		WithTexture(TextureEmissive, &common.ImportedTexture{}),
		WithTexture(TextureNormal, &common.ImportedTexture{}),
	)
	u := NewGPUMaterialUniform(m, true)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, u.BaseColor)
	assert.Equal(t, mgl32.Vec3{}, u.Emissive)
	assert.Equal(t, float32(0.3), u.Roughness, "surface response is kept")
	assert.Equal(t, uint32(1<<TextureNormal), u.TextureMask)
}

func TestTextureSlotNames(t *testing.T) {
	assert.Equal(t, "metallicRoughness", TextureMetallicRoughness.String())
	assert.True(t, TextureBaseColor.SRGB())
	assert.True(t, TextureEmissive.SRGB())
	assert.False(t, TextureNormal.SRGB())
}
