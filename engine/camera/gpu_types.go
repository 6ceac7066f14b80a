package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (224 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the per-frame camera data shared by every pass.
type GPUCameraUniform struct {
	View          mgl32.Mat4 // offset   0
	Projection    mgl32.Mat4 // offset  64
	InvProjection mgl32.Mat4 // offset 128
	Position      mgl32.Vec3 // offset 192
	Near          float32    // offset 204
	Viewport      [2]float32 // offset 208: frame buffer size in pixels
	Far           float32    // offset 216
	Exposure      float32    // offset 220
}

// GPUCameraUniformSize is the byte size of the marshalled uniform.
const GPUCameraUniformSize = 224

// NewGPUCameraUniform collects the uniform for c rendered with projection into a width x height target.
//
// Parameters:
//   - c: the camera
//   - projection: the projection matrix for the current backend depth convention
//   - width, height: the render target size in pixels
//
// Returns:
//   - GPUCameraUniform: the uniform contents
func NewGPUCameraUniform(c Camera, projection mgl32.Mat4, width, height int) GPUCameraUniform {
	return GPUCameraUniform{
		View:          c.ViewMatrix(),
		Projection:    projection,
		InvProjection: projection.Inv(),
		Position:      c.Position(),
		Near:          c.Near(),
		Viewport:      [2]float32{float32(width), float32(height)},
		Far:           c.Far(),
		Exposure:      c.Exposure(),
	}
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, GPUCameraUniformSize)
	off := common.PutMat4(buf, 0, g.View)
	off = common.PutMat4(buf, off, g.Projection)
	off = common.PutMat4(buf, off, g.InvProjection)
	off = common.PutFloat32s(buf, off, g.Position[0], g.Position[1], g.Position[2], g.Near)
	common.PutFloat32s(buf, off, g.Viewport[0], g.Viewport[1], g.Far, g.Exposure)
	return buf
}
