package model

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for mesh pipelines.
// Matches Vertex layout exactly (44 bytes, tightly packed).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertexSize is the stride of one marshalled Vertex.
const GPUVertexSize = 44

// Vertex is a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
type Vertex struct {
	Position mgl32.Vec3 // offset  0: model-space position
	Normal   mgl32.Vec3 // offset 12: unit normal
	Tangent  mgl32.Vec3 // offset 24: unit tangent along +U
	UV       mgl32.Vec2 // offset 36: texture coordinate
}

// MarshalTo writes the vertex at offset in buf and returns the offset after it.
//
// Parameters:
//   - buf: the destination, at least offset+GPUVertexSize bytes
//   - offset: the byte offset
//
// Returns:
//   - int: offset + GPUVertexSize
func (v *Vertex) MarshalTo(buf []byte, offset int) int {
	offset = common.PutFloat32s(buf, offset, v.Position[0], v.Position[1], v.Position[2])
	offset = common.PutFloat32s(buf, offset, v.Normal[0], v.Normal[1], v.Normal[2])
	offset = common.PutFloat32s(buf, offset, v.Tangent[0], v.Tangent[1], v.Tangent[2])
	return common.PutFloat32s(buf, offset, v.UV[0], v.UV[1])
}

// MarshalVertices serializes vertices into a vertex buffer image.
//
// Parameters:
//   - vertices: the vertices
//
// Returns:
//   - []byte: len(vertices) * GPUVertexSize bytes
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*GPUVertexSize)
	off := 0
	for i := range vertices {
		off = vertices[i].MarshalTo(buf, off)
	}
	return buf
}

// MarshalIndices serializes 32-bit triangle indices.
//
// Parameters:
//   - indices: the indices
//
// Returns:
//   - []byte: 4 bytes per index, little endian
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// GPUMeshTransformSource is the canonical WGSL definition of the MeshTransform struct.
// Matches GPUMeshTransform layout exactly (112 bytes).
//
//go:embed assets/mesh_transform.wgsl
var GPUMeshTransformSource string

// GPUMeshTransformSize is the byte size of the marshalled GPUMeshTransform.
const GPUMeshTransformSize = 112

// GPUMeshTransform is the per-mesh uniform holding the model matrix and its normal matrix.
type GPUMeshTransform struct {
	Model  mgl32.Mat4 // offset  0
	Normal mgl32.Mat3 // offset 64: three columns padded to 16 bytes each
}

// NewGPUMeshTransform builds the uniform for a model matrix.
//
// Parameters:
//   - m: the model matrix
//
// Returns:
//   - GPUMeshTransform: m and the inverse-transpose of its upper 3x3
func NewGPUMeshTransform(m mgl32.Mat4) GPUMeshTransform {
	return GPUMeshTransform{Model: m, Normal: common.NormalMatrix(m)}
}

// Marshal serializes the GPUMeshTransform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload.
func (g *GPUMeshTransform) Marshal() []byte {
	buf := make([]byte, GPUMeshTransformSize)
	off := common.PutMat4(buf, 0, g.Model)
	common.PutMat3(buf, off, g.Normal)
	return buf
}
