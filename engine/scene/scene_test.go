package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeMesh(name string, mat int, at mgl32.Vec3) model.Mesh {
	v, i := model.Cube(1)
	return model.NewMesh(model.WithName(name), model.WithGeometry(v, i), model.WithMaterialIndex(mat),
		model.WithTransform(mgl32.Translate3D(at[0], at[1], at[2])))
}

func TestNewSceneDefaults(t *testing.T) {
	s := NewScene("empty")
	assert.Equal(t, "empty", s.Name())
	assert.False(t, s.Loaded())
	assert.Equal(t, mgl32.Vec3{0.03, 0.03, 0.03}, s.Ambient().Irradiance)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, s.SkyColor())
	require.NotNil(t, s.Lights())
	assert.Zero(t, s.Lights().Len())
	assert.NotNil(t, s.Camera())
}

func TestLoadSortsOpaqueFirst(t *testing.T) {
	mats := []material.Material{
		material.NewMaterial(material.WithBlend()),
		material.NewMaterial(),
	}
	s := NewScene("sorted")
	err := s.Load([]model.Mesh{
		cubeMesh("glass-a", 0, mgl32.Vec3{}),
		cubeMesh("solid-a", 1, mgl32.Vec3{}),
		cubeMesh("glass-b", 0, mgl32.Vec3{}),
		cubeMesh("solid-b", 1, mgl32.Vec3{}),
	}, mats, nil)
	require.NoError(t, err)
	require.True(t, s.Loaded())

	var names []string
	for _, m := range s.Meshes() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"solid-a", "solid-b", "glass-a", "glass-b"}, names, "partition is stable")
}

func TestLoadRejectsInvalidScenes(t *testing.T) {
	s := NewScene("bad")
	assert.ErrorIs(t, s.Load(nil, nil, nil), ErrIncompleteScene)

	err := s.Load([]model.Mesh{cubeMesh("orphan", 3, mgl32.Vec3{})}, []material.Material{material.NewMaterial()}, nil)
	assert.ErrorIs(t, err, ErrIncompleteScene)
	assert.ErrorContains(t, err, "orphan")
	assert.False(t, s.Loaded())
}

func TestLoadFitsDefaultCamera(t *testing.T) {
	s := NewScene("fit")
	require.NoError(t, s.Load([]model.Mesh{
		cubeMesh("a", 0, mgl32.Vec3{0, 0, 0}),
		cubeMesh("b", 0, mgl32.Vec3{2, 1, 1}),
	}, []material.Material{material.NewMaterial()}, nil))

	b := s.Bounds()
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, -0.5}, b.Min)
	assert.Equal(t, mgl32.Vec3{2.5, 1.5, 1.5}, b.Max)

	cam := s.Camera()
	assert.InDelta(t, b.Diagonal(), cam.Far(), 1e-5)
	assert.InDelta(t, b.Diagonal()/50, cam.Near(), 1e-6)
	assert.True(t, cam.Position().ApproxEqualThreshold(b.Center(), 1e-6))
}

func TestDefaultCameraWithEmptyBounds(t *testing.T) {
	cam := DefaultCamera(common.EmptyAABB())
	assert.Equal(t, float32(0.1), cam.Near())
	assert.Equal(t, float32(5), cam.Far())
}

func TestClearResetsScene(t *testing.T) {
	lights := light.NewPointLightList()
	s := NewScene("clear", WithLights(lights), WithSkyColor(mgl32.Vec4{0.1, 0.2, 0.3, 1}))
	require.NoError(t, LoadShowcase(s))
	lights.Add(light.NewPointLight(light.WithFlux(1, 1, 1)))

	s.Clear()
	assert.False(t, s.Loaded())
	assert.Empty(t, s.Meshes())
	assert.Nil(t, s.Material(0))
	assert.Zero(t, lights.Len())
	assert.Equal(t, mgl32.Vec4{0.1, 0.2, 0.3, 1}, s.SkyColor(), "sky color is not scene content")
}

func TestShowcase(t *testing.T) {
	s := NewScene("showcase")
	require.NoError(t, LoadShowcase(s))

	meshes := s.Meshes()
	require.Len(t, meshes, 4+ShowcaseGrid*ShowcaseGrid)
	last := meshes[len(meshes)-1]
	assert.True(t, s.Material(last.MaterialIndex()).Blend(), "glass is drawn last")

	b := s.Bounds()
	assert.InDelta(t, -12, b.Min[0], 1e-5)
	assert.InDelta(t, 12, b.Max[2], 1e-5)
	assert.Equal(t, float32(60), s.Camera().Far())
}

func TestUpdateMovesLightsWithinBounds(t *testing.T) {
	s := NewScene("lights", WithLights(light.NewPointLightList(light.WithMoving(), light.WithSeed(3))))
	require.NoError(t, LoadShowcase(s))
	s.Lights().Resize(20, s.Bounds())
	before := s.Lights().Lights()

	s.Update(0.5)
	after := s.Lights().Lights()
	require.Len(t, after, 20)
	for i := range after {
		assert.NotEqual(t, before[i].Position, after[i].Position)
		assert.True(t, s.Bounds().IntersectsSphere(after[i].Position, 1e-4))
	}
}
