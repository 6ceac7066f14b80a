package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// PerspectiveLH builds a left-handed perspective projection matrix. The camera looks down +Z and
// clip-space depth is either mapped to [0, 1] or to the homogeneous [-1, 1] range depending on the
// backend's depth convention.
//
// Parameters:
//   - fovYDeg: vertical field of view in degrees
//   - aspect: viewport width divided by height
//   - near: distance to the near plane (> 0)
//   - far: distance to the far plane (> near)
//   - homogeneousDepth: true for a [-1, 1] depth range, false for [0, 1]
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func PerspectiveLH(fovYDeg, aspect, near, far float32, homogeneousDepth bool) mgl32.Mat4 {
	height := 1.0 / math32.Tan(mgl32.DegToRad(fovYDeg)*0.5)
	width := height / aspect
	diff := far - near

	var aa, bb float32
	if homogeneousDepth {
		aa = (far + near) / diff
		bb = -2.0 * far * near / diff
	} else {
		aa = far / diff
		bb = -near * far / diff
	}

	var m mgl32.Mat4
	m[0] = width
	m[5] = height
	m[10] = aa
	m[11] = 1.0
	m[14] = bb
	return m
}

// NormalMatrix returns the transpose of the adjugate of the model matrix's upper 3x3 part.
// The result transforms normals correctly under non-uniform scale and is defined even for singular
// matrices. Its columns are the pairwise cross products of the model matrix columns.
//
// Parameters:
//   - model: the model matrix
//
// Returns:
//   - mgl32.Mat3: the normal matrix (not normalized by the determinant)
func NormalMatrix(model mgl32.Mat4) mgl32.Mat3 {
	m := model.Mat3()
	c0, c1, c2 := m.Col(0), m.Col(1), m.Col(2)
	return mgl32.Mat3FromCols(c1.Cross(c2), c2.Cross(c0), c0.Cross(c1))
}

// MatricesDiffer reports whether any element of a and b differs by more than epsilon.
// The comparison is absolute, not relative.
func MatricesDiffer(a, b mgl32.Mat4, epsilon float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > epsilon {
			return true
		}
	}
	return false
}

// SRGBToLinear converts a display-encoded sRGB color into linear space.
//
// Parameters:
//   - c: the sRGB color (components in [0, 1])
//
// Returns:
//   - mgl32.Vec3: the linear color
func SRGBToLinear(c mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i, v := range c {
		if v <= 0.04045 {
			out[i] = v / 12.92
		} else {
			out[i] = math32.Pow((v+0.055)/1.055, 2.4)
		}
	}
	return out
}

// LinearToSRGB encodes a linear color component for display. Values are clamped to [0, 1].
func LinearToSRGB(v float32) float32 {
	v = math32.Max(0, math32.Min(v, 1))
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1.0/2.4) - 0.055
}

// ColorFromRGBA8 unpacks a 0xRRGGBBAA color into normalized float components.
func ColorFromRGBA8(c uint32) mgl32.Vec4 {
	return mgl32.Vec4{
		float32((c>>24)&0xff) / 255.0,
		float32((c>>16)&0xff) / 255.0,
		float32((c>>8)&0xff) / 255.0,
		float32(c&0xff) / 255.0,
	}
}

// MaxComponent returns the largest component of v.
func MaxComponent(v mgl32.Vec3) float32 {
	return math32.Max(v[0], math32.Max(v[1], v[2]))
}

// PutFloat32s writes values into buf starting at the given byte offset, little-endian.
// Returns the offset just past the last written value.
func PutFloat32s(buf []byte, offset int, values ...float32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	return offset
}

// Float32At reads a little-endian float32 at the given byte offset.
func Float32At(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

// PutMat4 writes a column-major 4x4 matrix at the given byte offset and returns the next offset.
func PutMat4(buf []byte, offset int, m mgl32.Mat4) int {
	return PutFloat32s(buf, offset, m[:]...)
}

// PutMat3 writes a 3x3 matrix using the WGSL mat3x3<f32> layout (each column padded to 16 bytes).
// Returns the next offset.
func PutMat3(buf []byte, offset int, m mgl32.Mat3) int {
	for c := range 3 {
		col := m.Col(c)
		offset = PutFloat32s(buf, offset, col[0], col[1], col[2], 0)
	}
	return offset
}

// Mat4At reads a column-major 4x4 matrix written by PutMat4.
func Mat4At(buf []byte, offset int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = Float32At(buf, offset+i*4)
	}
	return m
}
