package camera

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	axisX = mgl32.Vec3{1, 0, 0}
	axisY = mgl32.Vec3{0, 1, 0}
	axisZ = mgl32.Vec3{0, 0, 1}
)

const (
	// DefaultFov is 90 degrees of horizontal field of view on a 4:3 display, expressed vertically.
	DefaultFov float32 = 73.7397953

	MinFov float32 = 10
	MaxFov float32 = 90

	// pitchLimit stops rotation once forward is this close to the up axis.
	pitchLimit float32 = 0.99
)

type cameraImpl struct {
	mu *sync.Mutex

	fov      float32
	near     float32
	far      float32
	exposure float32

	position mgl32.Vec3
	upAxis   mgl32.Vec3
	// rotation maps world-space directions into camera space; invRotation is its conjugate.
	rotation    mgl32.Quat
	invRotation mgl32.Quat
}

// Camera is a left-handed perspective camera looking down its local +Z axis.
// Vertical field of view is fixed (Hor+), so wider viewports see more horizontally.
type Camera interface {
	// Position returns the world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the camera position
	Position() mgl32.Vec3

	// Fov returns the full vertical field of view in degrees.
	//
	// Returns:
	//   - float32: the field of view in degrees
	Fov() float32

	// Near returns the near plane distance.
	Near() float32

	// Far returns the far plane distance.
	Far() float32

	// Exposure returns the multiplier applied to radiance arriving at the camera.
	Exposure() float32

	// ViewMatrix returns rotation * translate(-position).
	//
	// Returns:
	//   - mgl32.Mat4: the world-to-view matrix
	ViewMatrix() mgl32.Mat4

	// Forward returns the camera's +Z axis in world space.
	Forward() mgl32.Vec3

	// Up returns the camera's +Y axis in world space.
	Up() mgl32.Vec3

	// Right returns the camera's +X axis in world space.
	Right() mgl32.Vec3

	// Move translates the camera by a world-space offset. Use Forward, Up and Right to move relative
	// to the view.
	//
	// Parameters:
	//   - delta: the world-space offset
	Move(delta mgl32.Vec3)

	// Rotate pitches around the camera X axis and yaws around the world Y axis. Pitch stops before
	// forward aligns with the up axis, which also prevents roll.
	//
	// Parameters:
	//   - pitch: rotation around X in degrees
	//   - yaw: rotation around Y in degrees
	Rotate(pitch, yaw float32)

	// Zoom narrows the field of view by offset degrees, clamped to [MinFov, MaxFov].
	//
	// Parameters:
	//   - offset: degrees to subtract from the field of view; negative values zoom out
	Zoom(offset float32)

	// LookAt places the camera at position facing target.
	//
	// Parameters:
	//   - position: the new camera position
	//   - target: the point to face
	//   - up: the world up direction, need not be orthogonal to the view direction
	LookAt(position, target, up mgl32.Vec3)

	// SetFov sets the vertical field of view in degrees, clamped to [MinFov, MaxFov].
	SetFov(fov float32)

	// SetNear sets the near plane distance.
	SetNear(near float32)

	// SetFar sets the far plane distance.
	SetFar(far float32)

	// SetExposure sets the radiance multiplier.
	SetExposure(exposure float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at the origin looking down +Z.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		fov:         DefaultFov,
		near:        0.1,
		far:         5.0,
		exposure:    1.0,
		upAxis:      axisY,
		rotation:    mgl32.QuatIdent(),
		invRotation: mgl32.QuatIdent(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Exposure() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposure
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotation.Mat4().Mul4(mgl32.Translate3D(-c.position[0], -c.position[1], -c.position[2]))
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invRotation.Rotate(axisZ)
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invRotation.Rotate(axisY)
}

func (c *cameraImpl) Right() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invRotation.Rotate(axisX)
}

func (c *cameraImpl) Move(delta mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.position.Add(delta)
}

func (c *cameraImpl) Rotate(pitch, yaw float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pitch = mgl32.DegToRad(pitch)
	yaw = mgl32.DegToRad(yaw)

	dot := c.upAxis.Dot(c.invRotation.Rotate(axisZ))
	if (dot < -pitchLimit && pitch < 0) || (dot > pitchLimit && pitch > 0) {
		pitch = 0
	}

	// pitch applies in camera space, yaw in world space
	c.rotation = mgl32.QuatRotate(pitch, axisX).Mul(c.rotation).Mul(mgl32.QuatRotate(yaw, axisY)).Normalize()
	c.invRotation = c.rotation.Conjugate()
}

func (c *cameraImpl) Zoom(offset float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = mgl32.Clamp(c.fov-offset, MinFov, MaxFov)
}

func (c *cameraImpl) LookAt(position, target, up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookAt(position, target, up)
}

// lookAt is LookAt without locking. Caller must hold the mutex.
func (c *cameraImpl) lookAt(position, target, up mgl32.Vec3) {
	c.position = position
	c.upAxis = up.Normalize()

	forward := target.Sub(position)
	if forward.Len() < 1e-8 {
		return
	}
	forward = forward.Normalize()
	c.rotation = mgl32.QuatBetweenVectors(forward, axisZ)

	right := c.upAxis.Cross(forward)
	if right.Len() < 1e-8 {
		// looking straight along the up axis, any roll is valid
		c.invRotation = c.rotation.Conjugate()
		return
	}
	orthUp := forward.Cross(right.Normalize())
	c.rotation = mgl32.QuatBetweenVectors(c.rotation.Rotate(orthUp), axisY).Mul(c.rotation).Normalize()
	c.invRotation = c.rotation.Conjugate()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = mgl32.Clamp(fov, MinFov, MaxFov)
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
}

func (c *cameraImpl) SetExposure(exposure float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exposure = math32.Max(exposure, 0)
}
