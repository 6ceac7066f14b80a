package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.InDelta(t, 73.7397953, c.Fov(), 1e-5)
	assert.InDelta(t, 0.1, c.Near(), 1e-7)
	assert.InDelta(t, 5.0, c.Far(), 1e-7)
	assert.InDelta(t, 1.0, c.Exposure(), 1e-7)
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Forward())
	assertVec(t, mgl32.Vec3{1, 0, 0}, c.Right())
	assert.True(t, c.ViewMatrix().ApproxEqual(mgl32.Ident4()))
}

func TestLookAtOrientsAxes(t *testing.T) {
	c := NewCamera(WithLookAt(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Forward())
	assertVec(t, mgl32.Vec3{0, 1, 0}, c.Up())

	c.LookAt(mgl32.Vec3{3, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assertVec(t, mgl32.Vec3{-1, 0, 0}, c.Forward())
	assertVec(t, mgl32.Vec3{0, 1, 0}, c.Up())
	// left-handed: right = up x forward
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Right())

	// the target lands on the view-space +Z axis
	target := c.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, target[0], 1e-4)
	assert.InDelta(t, 0, target[1], 1e-4)
	assert.InDelta(t, 3, target[2], 1e-4)
}

func TestLookAtNonOrthogonalUp(t *testing.T) {
	c := NewCamera()
	c.LookAt(mgl32.Vec3{0, 2, -2}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := c.Forward()
	assert.InDelta(t, 0, f.Dot(c.Up()), 1e-4)
	assert.Greater(t, c.Up()[1], float32(0))
}

func TestRotateLimitsPitch(t *testing.T) {
	c := NewCamera()
	for range 100 {
		c.Rotate(5, 0)
	}
	dot := mgl32.Vec3{0, 1, 0}.Dot(c.Forward())
	assert.LessOrEqual(t, dot, float32(1))
	assert.Greater(t, dot, float32(0.9), "pitch stops near the pole")
	assert.Less(t, dot, float32(0.9999))
	// no roll: right stays horizontal
	assert.InDelta(t, 0, c.Right()[1], 1e-4)
}

func TestZoomClamps(t *testing.T) {
	c := NewCamera()
	c.Zoom(1000)
	assert.Equal(t, MinFov, c.Fov())
	c.Zoom(-1000)
	assert.Equal(t, MaxFov, c.Fov())
}

func TestControllerMovesWithHeldKeys(t *testing.T) {
	c := NewCamera()
	cc := NewCameraController(c, WithMoveSpeed(2))

	cc.KeyDown(common.KeyW)
	cc.Update(0.5)
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Position())

	cc.KeyDown(common.KeyLeftShift)
	cc.Update(0.25)
	assertVec(t, mgl32.Vec3{0, 0, 3}, c.Position())

	cc.KeyUp(common.KeyW)
	cc.KeyUp(common.KeyLeftShift)
	cc.Update(1)
	assertVec(t, mgl32.Vec3{0, 0, 3}, c.Position())
}

func TestControllerRotatesOnlyWhileDragging(t *testing.T) {
	c := NewCamera()
	cc := NewCameraController(c, WithMouseSensitivity(1))

	cc.MouseMove(100, 0)
	assertVec(t, mgl32.Vec3{0, 0, 1}, c.Forward())

	cc.BeginRotate(0, 0)
	cc.MouseMove(90, 0)
	assertVec(t, mgl32.Vec3{1, 0, 0}, c.Forward())
	cc.EndRotate()

	cc.Scroll(5)
	assert.InDelta(t, DefaultFov-10, c.Fov(), 1e-4)
}

func TestGPUCameraUniformMarshal(t *testing.T) {
	c := NewCamera(WithExposure(2), WithFar(10))
	proj := common.PerspectiveLH(c.Fov(), 1.5, c.Near(), c.Far(), false)
	u := NewGPUCameraUniform(c, proj, 300, 200)
	buf := u.Marshal()

	assert.Len(t, buf, GPUCameraUniformSize)
	assert.Equal(t, proj, common.Mat4At(buf, 64))
	assert.InDelta(t, 300, common.Float32At(buf, 208), 0)
	assert.InDelta(t, 10, common.Float32At(buf, 216), 0)
	assert.InDelta(t, 2, common.Float32At(buf, 220), 0)
}
