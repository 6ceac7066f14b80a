package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a PointLight during construction.
type LightBuilderOption func(*PointLight)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a PointLight
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *PointLight) {
		l.Position = mgl32.Vec3{x, y, z}
	}
}

// WithFlux is an option builder that sets the radiant flux in watts.
//
// Parameters:
//   - r: the red flux component
//   - g: the green flux component
//   - b: the blue flux component
//
// Returns:
//   - LightBuilderOption: a function that applies the flux option to a PointLight
func WithFlux(r, g, b float32) LightBuilderOption {
	return func(l *PointLight) {
		l.Flux = mgl32.Vec3{r, g, b}
	}
}

// WithColorPower sets the flux as a color scaled by a total power.
//
// Parameters:
//   - color: the light color, typically with a maximum component of 1
//   - power: the flux multiplier in watts
//
// Returns:
//   - LightBuilderOption: a function that applies the flux option to a PointLight
func WithColorPower(color mgl32.Vec3, power float32) LightBuilderOption {
	return func(l *PointLight) {
		l.Flux = color.Mul(power)
	}
}

// WithRadius overrides the computed culling radius.
//
// Parameters:
//   - radius: the culling radius; zero or negative restores the computed radius
//
// Returns:
//   - LightBuilderOption: a function that applies the radius option to a PointLight
func WithRadius(radius float32) LightBuilderOption {
	return func(l *PointLight) {
		l.Radius = radius
	}
}
