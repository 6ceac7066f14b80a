package model

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// mesh is the implementation of the Mesh interface.
type mesh struct {
	mu *sync.Mutex

	name          string
	vertices      []Vertex
	indices       []uint32
	materialIndex int
	bounds        common.AABB

	// bake is applied to the geometry once in NewMesh.
	bake *mgl32.Mat4

	provider bind_group_provider.BindGroupProvider
}

// Mesh is an indexed triangle list in world space drawn with a single material. Geometry is
// immutable after construction.
type Mesh interface {
	// Name retrieves the mesh identifier.
	Name() string

	// Vertices retrieves the vertex data. The returned slice must not be modified.
	//
	// Returns:
	//   - []Vertex: the world-space vertices
	Vertices() []Vertex

	// Indices retrieves the triangle list indices. The returned slice must not be modified.
	//
	// Returns:
	//   - []uint32: three indices per triangle
	Indices() []uint32

	// IndexCount returns len(Indices()).
	IndexCount() int

	// MaterialIndex retrieves the index of the mesh's material in the owning scene.
	MaterialIndex() int

	// Bounds retrieves the bounding box of the vertices.
	Bounds() common.AABB

	// Provider retrieves the bind group provider holding the mesh's vertex and index buffers, or
	// nil before the renderer has uploaded the mesh.
	Provider() bind_group_provider.BindGroupProvider

	// SetProvider attaches the mesh's GPU resources.
	//
	// Parameters:
	//   - p: the provider
	SetProvider(p bind_group_provider.BindGroupProvider)
}

var _ Mesh = &mesh{}

// NewMesh creates a new Mesh configured with the provided options.
//
// Parameters:
//   - options: variadic list of MeshBuilderOption functions to configure the mesh
//
// Returns:
//   - Mesh: a new Mesh instance
func NewMesh(options ...MeshBuilderOption) Mesh {
	m := &mesh{mu: &sync.Mutex{}}
	for _, opt := range options {
		opt(m)
	}
	if m.bake != nil {
		m.vertices, m.indices = bakeTransform(m.vertices, m.indices, *m.bake)
		m.bake = nil
	}
	m.bounds = common.EmptyAABB()
	for i := range m.vertices {
		m.bounds.Extend(m.vertices[i].Position)
	}
	return m
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) Vertices() []Vertex {
	return m.vertices
}

func (m *mesh) Indices() []uint32 {
	return m.indices
}

func (m *mesh) IndexCount() int {
	return len(m.indices)
}

func (m *mesh) MaterialIndex() int {
	return m.materialIndex
}

func (m *mesh) Bounds() common.AABB {
	return m.bounds
}

func (m *mesh) Provider() bind_group_provider.BindGroupProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

func (m *mesh) SetProvider(p bind_group_provider.BindGroupProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = p
}

// bakeTransform returns copies of vertices and indices with t applied. Normals go through the
// normal matrix. Mirroring transforms reverse the triangle winding so front faces stay clockwise,
// and flip the cofactor normal matrix back to outward normals.
func bakeTransform(vertices []Vertex, indices []uint32, t mgl32.Mat4) ([]Vertex, []uint32) {
	linear := t.Mat3()
	normal := common.NormalMatrix(t)
	mirrored := linear.Det() < 0
	if mirrored {
		normal = normal.Mul(-1)
	}
	out := make([]Vertex, len(vertices))
	for i, v := range vertices {
		out[i] = Vertex{
			Position: t.Mul4x1(v.Position.Vec4(1)).Vec3(),
			Normal:   safeNormalize(normal.Mul3x1(v.Normal)),
			Tangent:  safeNormalize(linear.Mul3x1(v.Tangent)),
			UV:       v.UV,
		}
	}
	idx := make([]uint32, len(indices))
	copy(idx, indices)
	if mirrored {
		for i := 0; i+2 < len(idx); i += 3 {
			idx[i+1], idx[i+2] = idx[i+2], idx[i+1]
		}
	}
	return out, idx
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if l := v.Len(); l > 1e-12 {
		return v.Mul(1 / l)
	}
	return v
}
