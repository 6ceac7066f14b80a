package model

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertOutwardWinding checks that every non-degenerate triangle is clockwise when seen from
// outside, which for these left-handed meshes means the edge cross product follows the normal.
func assertOutwardWinding(t *testing.T, vertices []Vertex, indices []uint32) {
	t.Helper()
	require.Zero(t, len(indices)%3)
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		cross := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if cross.Len() < 1e-6 {
			continue
		}
		n := a.Normal.Add(b.Normal).Add(c.Normal)
		assert.Greater(t, cross.Dot(n), float32(0), "triangle %d", i/3)
	}
}

func TestCube(t *testing.T) {
	v, idx := Cube(2)
	require.Len(t, v, 24)
	require.Len(t, idx, 36)
	assertOutwardWinding(t, v, idx)

	b := NewMesh(WithGeometry(v, idx)).Bounds()
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, b.Max)

	for _, vert := range v {
		assert.InDelta(t, 0, vert.Normal.Dot(vert.Tangent), 1e-6)
		assert.InDelta(t, 1, vert.Position.Dot(vert.Normal), 1e-6, "vertices lie on their face")
	}
}

func TestPlane(t *testing.T) {
	v, idx := Plane(4, 2, 3)
	require.Len(t, v, 4)
	assertOutwardWinding(t, v, idx)
	for _, vert := range v {
		assert.Equal(t, float32(0), vert.Position[1])
		assert.Contains(t, []float32{0, 3}, vert.UV[0])
	}
}

func TestUVSphere(t *testing.T) {
	v, idx := UVSphere(0.5, 16, 8)
	assert.Len(t, v, 17*9)
	assert.Len(t, idx, 16*7*6)
	assertOutwardWinding(t, v, idx)
	for _, vert := range v {
		assert.InDelta(t, 0.5, vert.Position.Len(), 1e-5)
	}

	// degenerate parameters are raised to the minimum
	v, idx = UVSphere(1, 0, 0)
	assert.Len(t, v, 4*3)
	assertOutwardWinding(t, v, idx)
}

func TestMeshBakesTransform(t *testing.T) {
	v, idx := Cube(1)
	m := NewMesh(WithName("box"), WithGeometry(v, idx), WithMaterialIndex(2),
		WithTransform(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(1, 4, 1))))
	assert.Equal(t, "box", m.Name())
	assert.Equal(t, 2, m.MaterialIndex())
	assert.Equal(t, 36, m.IndexCount())
	assert.InDelta(t, 10.5, m.Bounds().Max[0], 1e-6)
	assert.InDelta(t, 2, m.Bounds().Max[1], 1e-6)
	assert.Equal(t, float32(0.5), v[0].Position[0], "source geometry is untouched")
	for _, vert := range m.Vertices() {
		assert.InDelta(t, 1, vert.Normal.Len(), 1e-5)
	}
	assertOutwardWinding(t, m.Vertices(), m.Indices())
}

func TestMeshMirrorKeepsWinding(t *testing.T) {
	v, idx := UVSphere(1, 8, 4)
	m := NewMesh(WithGeometry(v, idx), WithTransform(mgl32.Scale3D(-1, 1, 1)))
	assertOutwardWinding(t, m.Vertices(), m.Indices())
	assert.Equal(t, idx[1], m.Indices()[2])
}

func TestMarshalVertices(t *testing.T) {
	v := []Vertex{
		{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 1, 0}, Tangent: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0.25, 0.75}},
		{Position: mgl32.Vec3{4, 5, 6}},
	}
	buf := MarshalVertices(v)
	require.Len(t, buf, 2*GPUVertexSize)
	assert.Equal(t, float32(3), common.Float32At(buf, 8))
	assert.Equal(t, float32(1), common.Float32At(buf, 16))
	assert.Equal(t, float32(0.75), common.Float32At(buf, 40))
	assert.Equal(t, float32(4), common.Float32At(buf, GPUVertexSize))

	ib := MarshalIndices([]uint32{7, 70000})
	assert.Equal(t, uint32(70000), binary.LittleEndian.Uint32(ib[4:]))
}

func TestMeshTransformUniform(t *testing.T) {
	g := NewGPUMeshTransform(mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 1, 1)))
	buf := g.Marshal()
	require.Len(t, buf, GPUMeshTransformSize)
	assert.Equal(t, float32(3), common.Float32At(buf, 56))
	// the normal matrix is unnormalized: cofactors of diag(2,1,1)
	assert.Equal(t, float32(1), common.Float32At(buf, 64))
	assert.Equal(t, float32(2), common.Float32At(buf, 80+4))
	assert.Equal(t, float32(0), common.Float32At(buf, 64+12), "columns are padded")
}
