package shading

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaterialShader(t *testing.T, b backend.Backend, options ...MaterialShaderBuilderOption) MaterialShader {
	t.Helper()
	s := NewMaterialShader(options...)
	require.NoError(t, s.Initialize(b))
	t.Cleanup(s.Shutdown)
	return s
}

func pngTexture(t *testing.T, name string, w, h int) *common.ImportedTexture {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &common.ImportedTexture{Name: name, Data: buf.Bytes()}
}

func TestDirectionalAlbedo(t *testing.T) {
	assert.InDelta(t, 1.0, DirectionalAlbedo(0.5, 0, 64), 1e-4, "a mirror reflects everything")

	for _, nDotV := range []float32{0.05, 0.5, 1} {
		prev := float32(2)
		for _, roughness := range []float32{0.1, 0.4, 0.7, 1} {
			e := DirectionalAlbedo(nDotV, roughness, AlbedoLUTSamples)
			assert.GreaterOrEqual(t, e, float32(0))
			assert.LessOrEqual(t, e, float32(1.001))
			assert.Less(t, e, prev, "albedo falls with roughness at NdotV %f", nDotV)
			prev = e
		}
	}
}

func TestGenerateAlbedoLUT(t *testing.T) {
	b := backend.NewSoftwareBackend(backend.WithParallelism(4))
	s := newMaterialShader(t, b)

	assert.Equal(t, 1, s.AlbedoLUT().Width(), "ones table until generated")
	require.NoError(t, s.GenerateAlbedoLUT())
	require.NoError(t, s.GenerateAlbedoLUT())
	assert.Equal(t, 1, b.Stats().Dispatches[albedoLUTPipeline], "the table is generated once")

	lut := s.AlbedoLUT()
	require.Equal(t, AlbedoLUTSize, lut.Width())
	img := b.TextureImage(lut)
	require.NotNil(t, img)
	for _, xy := range [][2]int{{0, 0}, {31, 0}, {7, 19}, {31, 31}} {
		want := DirectionalAlbedo((float32(xy[0])+0.5)/AlbedoLUTSize, (float32(xy[1])+0.5)/AlbedoLUTSize, AlbedoLUTSamples)
		assert.InDelta(t, want, img.At(xy[0], xy[1])[0], 1e-5, "texel %v", xy)
	}

	s.SetMultipleScattering(false)
	ones := s.AlbedoLUT()
	assert.Equal(t, 1, ones.Width())
	assert.Equal(t, [4]float32{1, 1, 1, 1}, b.TextureImage(ones).At(0, 0))
}

func TestAlbedoLUTWithoutCompute(t *testing.T) {
	caps := gpu.Capabilities{MaxColorAttachments: 4, RenderableFormats: gpu.AllFormats()}
	b := backend.NewSoftwareBackend(backend.WithCapabilities(caps))
	s := newMaterialShader(t, b)

	require.NoError(t, s.GenerateAlbedoLUT())
	assert.Zero(t, b.Stats().Dispatches[albedoLUTPipeline])
	assert.Equal(t, 1, s.AlbedoLUT().Width())
}

func TestBindMaterialState(t *testing.T) {
	s := newMaterialShader(t, backend.NewSoftwareBackend())

	cases := []struct {
		name    string
		options []material.MaterialBuilderOption
		want    gpu.StateFlags
	}{
		{"opaque", nil, gpu.StateCullBack},
		{"double sided", []material.MaterialBuilderOption{material.WithDoubleSided()}, gpu.StateCullNone},
		{"blend", []material.MaterialBuilderOption{material.WithBlend()}, gpu.StateCullBack | gpu.StateBlendAlpha},
		{"glass", []material.MaterialBuilderOption{material.WithBlend(), material.WithDoubleSided()}, gpu.StateCullNone | gpu.StateBlendAlpha},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, provider, err := s.BindMaterial(material.NewMaterial(tc.options...))
			require.NoError(t, err)
			assert.Equal(t, tc.want, state)
			assert.NotNil(t, provider)
		})
	}
}

func TestBindMaterialUploadsFactors(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := newMaterialShader(t, b)
	m := material.NewMaterial(
		material.WithName("copper"),
		material.WithBaseColor(mgl32.Vec4{0.95, 0.64, 0.54, 1}),
		material.WithEmissive(mgl32.Vec3{0.5, 0, 0}),
		material.WithRoughness(0.3),
	)

	_, provider, err := s.BindMaterial(m)
	require.NoError(t, err)
	assert.Same(t, provider, m.BindGroupProvider())

	want := material.NewGPUMaterialUniform(m, false)
	uniform := provider.Buffer(MaterialUniformBinding)
	assert.Equal(t, want.Marshal(), b.BufferBytes(uniform))
	assert.NotNil(t, provider.Sampler(MaterialSamplerBinding))
	for slot := range material.TextureSlotCount {
		tex := provider.Texture(MaterialTextureBinding + int(slot))
		require.NotNil(t, tex, slot.String())
		assert.Equal(t, 1, tex.Width(), "%s placeholder", slot)
	}
	normal := b.TextureImage(provider.Texture(MaterialTextureBinding + int(material.TextureNormal)))
	assert.InDelta(t, 1, normal.At(0, 0)[2], 1e-6)
	assert.InDelta(t, 128.0/255.0, normal.At(0, 0)[0], 1e-6)

	s.SetWhiteFurnace(true)
	_, again, err := s.BindMaterial(m)
	require.NoError(t, err)
	assert.Same(t, provider, again)
	furnace := material.NewGPUMaterialUniform(m, true)
	assert.Equal(t, furnace.Marshal(), b.BufferBytes(uniform))
}

func TestBindMaterialTogglesAlbedoLUT(t *testing.T) {
	s := newMaterialShader(t, backend.NewSoftwareBackend())
	require.NoError(t, s.GenerateAlbedoLUT())
	m := material.NewMaterial()

	_, provider, err := s.BindMaterial(m)
	require.NoError(t, err)
	assert.Equal(t, AlbedoLUTSize, provider.Texture(AlbedoLUTBinding).Width())

	v := provider.Version()
	s.SetMultipleScattering(false)
	_, provider, err = s.BindMaterial(m)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Texture(AlbedoLUTBinding).Width())
	assert.Greater(t, provider.Version(), v)
}

func TestBindMaterialTextures(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := newMaterialShader(t, b)
	shared := pngTexture(t, "bricks", 4, 2)

	first := material.NewMaterial(material.WithName("a"), material.WithTexture(material.TextureBaseColor, shared))
	second := material.NewMaterial(material.WithName("b"), material.WithTexture(material.TextureEmissive, shared))
	broken := material.NewMaterial(material.WithName("c"),
		material.WithTexture(material.TextureNormal, &common.ImportedTexture{Name: "garbage", Data: []byte("not an image")}))

	_, p1, err := s.BindMaterial(first)
	require.NoError(t, err)
	_, p2, err := s.BindMaterial(second)
	require.NoError(t, err)
	_, p3, err := s.BindMaterial(broken)
	require.NoError(t, err, "undecodable textures fall back to the placeholder")

	base := p1.Texture(MaterialTextureBinding + int(material.TextureBaseColor))
	assert.Equal(t, 4, base.Width())
	assert.Equal(t, 2, base.Height())
	assert.Same(t, base, p2.Texture(MaterialTextureBinding+int(material.TextureEmissive)))
	assert.Equal(t, 1, b.Stats().TextureAllocations["bricks"])
	assert.InDelta(t, 200.0/255.0, b.TextureImage(base).At(3, 1)[0], 1e-6)

	assert.Equal(t, 1, p3.Texture(MaterialTextureBinding+int(material.TextureNormal)).Width())
}

func TestMaterialShaderLifecycle(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := NewMaterialShader()

	_, _, err := s.BindMaterial(material.NewMaterial())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, s.GenerateAlbedoLUT(), ErrNotInitialized)

	require.NoError(t, s.Initialize(b))
	require.NoError(t, s.Initialize(b))
	m := material.NewMaterial(material.WithTexture(material.TextureBaseColor, pngTexture(t, "albedo", 2, 2)))
	_, _, err = s.BindMaterial(m)
	require.NoError(t, err)
	require.NotZero(t, b.Stats().LiveTextures)

	s.Shutdown()
	stats := b.Stats()
	assert.Zero(t, stats.LiveTextures)
	assert.Zero(t, stats.LiveBuffers)
	assert.Nil(t, m.BindGroupProvider())
}

func lightScene(list light.PointLightList) scene.Scene {
	return scene.NewScene("lights", scene.WithLights(list), scene.WithAmbient(mgl32.Vec3{0.1, 0.2, 0.3}))
}

func TestBindLightsUploads(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := NewLightShader()
	require.NoError(t, s.Initialize(b))
	defer s.Shutdown()

	list := light.NewPointLightList()
	list.Add(light.NewPointLight(light.WithPosition(1, 2, 3), light.WithFlux(10, 20, 30)))
	list.Add(light.NewPointLight(light.WithPosition(-4, 0, 1), light.WithFlux(5, 5, 5), light.WithRadius(3)))
	sc := lightScene(list)

	provider, err := s.BindLights(sc)
	require.NoError(t, err)
	assert.Same(t, s.Provider(), provider)
	assert.Equal(t, 2, s.Count())

	header := b.BufferBytes(provider.Buffer(LightHeaderBinding))
	assert.InDelta(t, 0.2, common.Float32At(header, 4), 1e-7)
	assert.Equal(t, float32(2), common.Float32At(header, 12))

	data := b.BufferBytes(provider.Buffer(LightBufferBinding))
	want := light.MarshalPointLights(list.Lights())
	assert.Equal(t, want, data[:len(want)])
	assert.Equal(t, float32(3), common.Float32At(data, light.GPUPointLightSize+12))
}

// batchRecorder records every WriteBuffers batch and fails batches while fail is set.
type batchRecorder struct {
	backend.Backend
	batches [][]bind_group_provider.BufferWrite
	fail    bool
}

func (b *batchRecorder) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.batches = append(b.batches, writes)
	if b.fail {
		return errors.New("device lost")
	}
	return b.Backend.WriteBuffers(writes)
}

func TestBindLightsBatchesUploads(t *testing.T) {
	b := &batchRecorder{Backend: backend.NewSoftwareBackend()}
	s := NewLightShader()
	require.NoError(t, s.Initialize(b))
	defer s.Shutdown()

	list := light.NewPointLightList()
	list.Add(light.NewPointLight(light.WithPosition(1, 2, 3), light.WithFlux(10, 20, 30)))
	sc := lightScene(list)

	_, err := s.BindLights(sc)
	require.NoError(t, err)
	require.Len(t, b.batches, 1, "header and lights go out together")
	bindings := []int{b.batches[0][0].Binding, b.batches[0][1].Binding}
	assert.ElementsMatch(t, []int{LightHeaderBinding, LightBufferBinding}, bindings)

	_, err = s.BindLights(sc)
	require.NoError(t, err)
	assert.Len(t, b.batches, 1, "nothing changed, nothing written")

	sc.SetAmbient(light.AmbientLight{Irradiance: mgl32.Vec3{1, 1, 1}})
	_, err = s.BindLights(sc)
	require.NoError(t, err)
	require.Len(t, b.batches, 2)
	require.Len(t, b.batches[1], 1)
	assert.Equal(t, LightHeaderBinding, b.batches[1][0].Binding)

	b.fail = true
	list.Set(0, light.NewPointLight(light.WithPosition(0, 0, 0), light.WithFlux(1, 1, 1)))
	_, err = s.BindLights(sc)
	assert.ErrorContains(t, err, "device lost")
}

func TestBindLightsSkipsUnchangedLists(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := NewLightShader()
	require.NoError(t, s.Initialize(b))
	defer s.Shutdown()

	list := light.NewPointLightList()
	list.Add(light.NewPointLight(light.WithPosition(1, 1, 1), light.WithFlux(1, 1, 1)))
	sc := lightScene(list)
	_, err := s.BindLights(sc)
	require.NoError(t, err)

	// scribble over the buffer; an unchanged list must not be uploaded again
	data := b.BufferBytes(s.LightBuffer())
	data[0] = 0xAB
	_, err = s.BindLights(sc)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), data[0])

	list.Set(0, light.NewPointLight(light.WithPosition(2, 2, 2), light.WithFlux(1, 1, 1)))
	_, err = s.BindLights(sc)
	require.NoError(t, err)
	assert.Equal(t, float32(2), common.Float32At(data, 0))

	sc.SetAmbient(light.AmbientLight{Irradiance: mgl32.Vec3{1, 1, 1}})
	_, err = s.BindLights(sc)
	require.NoError(t, err)
	assert.Equal(t, float32(1), common.Float32At(b.BufferBytes(s.HeaderBuffer()), 0))
}

func TestBindLightsGrowsBuffer(t *testing.T) {
	b := backend.NewSoftwareBackend()
	s := NewLightShader(WithInitialCapacity(2))
	require.NoError(t, s.Initialize(b))
	defer s.Shutdown()

	list := light.NewPointLightList(light.WithSeed(3))
	sc := lightScene(list)
	list.Resize(5, common.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}})

	before := s.LightBuffer()
	v := s.Provider().Version()
	_, err := s.BindLights(sc)
	require.NoError(t, err)

	after := s.LightBuffer()
	assert.NotSame(t, before, after)
	assert.True(t, before.Released())
	assert.GreaterOrEqual(t, after.Size(), uint64(5*light.GPUPointLightSize))
	assert.Same(t, after, s.Provider().Buffer(LightBufferBinding))
	assert.Greater(t, s.Provider().Version(), v)
	assert.Equal(t, 2, b.Stats().LiveBuffers, "only the header and the new light buffer are live")

	list.Clear()
	_, err = s.BindLights(sc)
	require.NoError(t, err)
	assert.Zero(t, s.Count())
	assert.Zero(t, common.Float32At(b.BufferBytes(s.HeaderBuffer()), 12))
}

func TestBindLightsBeforeInitialize(t *testing.T) {
	_, err := NewLightShader().BindLights(lightScene(light.NewPointLightList()))
	assert.ErrorIs(t, err, ErrNotInitialized)
}
