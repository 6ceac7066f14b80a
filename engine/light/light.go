package light

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// intensityCutoff is the intensity in W/sr below which a light is culled.
	intensityCutoff float32 = 1.0
	// attenuationCutoff keeps bright lights from reaching across the whole scene: the radius is
	// never larger than where attenuation falls to this fraction.
	attenuationCutoff float32 = 0.05
)

// PointLight is an isotropic light source.
type PointLight struct {
	// Position is the world-space position.
	Position mgl32.Vec3
	// Flux is the radiant flux in watts per color channel.
	Flux mgl32.Vec3
	// Radius overrides the culling radius when positive.
	Radius float32
}

// AmbientLight is a constant irradiance applied to every surface.
type AmbientLight struct {
	Irradiance mgl32.Vec3
}

// NewPointLight creates a point light from the given options.
//
// Parameters:
//   - options: functional options setting position, flux and radius
//
// Returns:
//   - PointLight: the configured light
func NewPointLight(options ...LightBuilderOption) PointLight {
	l := PointLight{}
	for _, opt := range options {
		opt(&l)
	}
	return l
}

// Intensity returns the radiant intensity, the flux per steradian.
//
// Returns:
//   - mgl32.Vec3: flux / 4π
func (l PointLight) Intensity() mgl32.Vec3 {
	return l.Flux.Mul(1.0 / (4.0 * math32.Pi))
}

// CalculateRadius returns the distance at which the inverse-square falloff brings the brightest
// channel down to the cutoff intensity. A windowing function in the shaders fades light smoothly
// to zero at this distance. Lights with no flux get a zero radius.
//
// Returns:
//   - float32: the culling radius
func (l PointLight) CalculateRadius() float32 {
	maxIntensity := common.MaxComponent(l.Intensity())
	if maxIntensity <= 0 {
		return 0
	}
	attenuation := math32.Max(intensityCutoff, attenuationCutoff*maxIntensity) / maxIntensity
	return 1.0 / math32.Sqrt(attenuation)
}

// CullingRadius returns Radius when set, otherwise CalculateRadius.
func (l PointLight) CullingRadius() float32 {
	if l.Radius > 0 {
		return l.Radius
	}
	return l.CalculateRadius()
}
