package model

import "github.com/go-gl/mathgl/mgl32"

// MeshBuilderOption is a function that configures a mesh instance during construction.
type MeshBuilderOption func(*mesh)

// WithName is an option builder that sets the name of the mesh.
//
// Parameters:
//   - name: the identifier for the mesh
//
// Returns:
//   - MeshBuilderOption: a function that applies the name option to a mesh
func WithName(name string) MeshBuilderOption {
	return func(m *mesh) {
		m.name = name
	}
}

// WithGeometry is an option builder that sets the vertices and triangle indices.
//
// Parameters:
//   - vertices: the model-space vertices
//   - indices: three indices per triangle
//
// Returns:
//   - MeshBuilderOption: a function that applies the geometry option to a mesh
func WithGeometry(vertices []Vertex, indices []uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.vertices = vertices
		m.indices = indices
	}
}

// WithMaterialIndex is an option builder that sets the index of the mesh's material.
//
// Parameters:
//   - index: the material index in the owning scene
//
// Returns:
//   - MeshBuilderOption: a function that applies the material option to a mesh
func WithMaterialIndex(index int) MeshBuilderOption {
	return func(m *mesh) {
		m.materialIndex = index
	}
}

// WithTransform is an option builder that places the geometry in world space. The matrix is baked
// into copies of the vertices, so shared primitive geometry is left untouched.
//
// Parameters:
//   - t: the model matrix
//
// Returns:
//   - MeshBuilderOption: a function that applies the transform option to a mesh
func WithTransform(t mgl32.Mat4) MeshBuilderOption {
	return func(m *mesh) {
		m.bake = &t
	}
}
