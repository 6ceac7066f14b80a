package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

type CameraBuilderOption func(*cameraImpl)

// WithFov sets the camera's vertical field of view in degrees.
//
// Parameters:
//   - fov: field of view in degrees, clamped to [MinFov, MaxFov]
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = mgl32.Clamp(fov, MinFov, MaxFov)
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithExposure sets the radiance multiplier used by the tone-mapping blit.
//
// Parameters:
//   - exposure: the exposure multiplier
//
// Returns:
//   - CameraBuilderOption: functional option to set the exposure
func WithExposure(exposure float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.exposure = exposure
	}
}

// WithLookAt places the camera at position facing target.
//
// Parameters:
//   - position: the camera position
//   - target: the point to face
//   - up: the world up direction
//
// Returns:
//   - CameraBuilderOption: functional option to orient the camera
func WithLookAt(position, target, up mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lookAt(position, target, up)
	}
}
