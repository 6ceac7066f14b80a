package scene

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithLights sets the point light list. By default a new empty list is created.
//
// Parameters:
//   - lights: the light list
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights light.PointLightList) SceneBuilderOption {
	return func(s *scene) {
		s.lights = lights
	}
}

// WithAmbient sets the ambient irradiance. Default is DefaultAmbient on every channel.
//
// Parameters:
//   - irradiance: the ambient irradiance
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbient(irradiance mgl32.Vec3) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = light.AmbientLight{Irradiance: irradiance}
	}
}

// WithSkyColor sets the sRGB-encoded background color. Default is opaque black.
//
// Parameters:
//   - c: the sky color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSkyColor(c mgl32.Vec4) SceneBuilderOption {
	return func(s *scene) {
		s.skyColor = c
	}
}
