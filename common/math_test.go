package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestPerspectiveLHMapsNearAndFar(t *testing.T) {
	near, far := float32(0.5), float32(50)

	for _, homogeneous := range []bool{false, true} {
		proj := PerspectiveLH(60, 4.0/3.0, near, far, homogeneous)

		n := proj.Mul4x1(mgl32.Vec4{0, 0, near, 1})
		f := proj.Mul4x1(mgl32.Vec4{0, 0, far, 1})

		wantNear := float32(0)
		if homogeneous {
			wantNear = -1
		}
		assert.InDelta(t, wantNear, n[2]/n[3], 1e-5)
		assert.InDelta(t, 1.0, f[2]/f[3], 1e-5)
		assert.InDelta(t, near, n[3], 1e-6, "w carries view-space depth")
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	model := mgl32.Scale3D(2, 1, 1)
	n := NormalMatrix(model)

	// cofactor of diag(2,1,1) is diag(1,2,2), proportional to the inverse transpose
	assert.InDelta(t, 1.0, n.At(0, 0), 1e-6)
	assert.InDelta(t, 2.0, n.At(1, 1), 1e-6)
	assert.InDelta(t, 2.0, n.At(2, 2), 1e-6)

	normal := n.Mul3x1(mgl32.Vec3{1, 1, 0}).Normalize()
	want := mgl32.Vec3{0.5, 1, 0}.Normalize()
	assert.True(t, normal.ApproxEqualThreshold(want, 1e-5))
}

func TestNormalMatrixSingular(t *testing.T) {
	n := NormalMatrix(mgl32.Scale3D(1, 1, 0))
	assert.InDelta(t, 0.0, n.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0, n.At(1, 1), 1e-6)
	assert.InDelta(t, 1.0, n.At(2, 2), 1e-6)
}

func TestMatricesDifferIsAbsolute(t *testing.T) {
	a := mgl32.Ident4()
	b := a
	b[14] = 1e-6
	assert.False(t, MatricesDiffer(a, b, 1e-5))

	b[14] = 1e-4
	assert.True(t, MatricesDiffer(a, b, 1e-5))
}

func TestSRGBToLinear(t *testing.T) {
	out := SRGBToLinear(mgl32.Vec3{0, 0.5, 1})
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 0.21404, out[1], 1e-4)
	assert.InDelta(t, 1.0, out[2], 1e-6)
}

func TestAABBIntersectsSphere(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}

	assert.True(t, box.IntersectsSphere(mgl32.Vec3{0.5, 0.5, 0.5}, 0.1))
	assert.True(t, box.IntersectsSphere(mgl32.Vec3{2, 0.5, 0.5}, 1.0))
	assert.False(t, box.IntersectsSphere(mgl32.Vec3{2, 2, 2}, 1.0))
}

func TestFrustumContainsSphere(t *testing.T) {
	proj := PerspectiveLH(90, 1, 0.1, 100, false)
	f := ExtractFrustum(proj, false)

	assert.True(t, f.ContainsSphere(mgl32.Vec3{0, 0, 10}, 1))
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, -10}, 1), "behind the camera")
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, 200}, 1), "past the far plane")
	assert.True(t, f.ContainsSphere(mgl32.Vec3{0, 0, -0.5}, 1), "overlapping the near plane")
}
