package light

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxExactLightCount is the largest light count a float32 represents exactly. The count travels to
// the shaders as a float next to the ambient irradiance, so larger lists are clamped.
const MaxExactLightCount = 1 << 24

// GPUPointLightSource is the canonical WGSL definition of the PointLight struct.
// Matches GPUPointLight layout exactly (32 bytes).
//
//go:embed assets/point_light.wgsl
var GPUPointLightSource string

// GPUPointLightSize is the byte size of one marshalled GPUPointLight.
const GPUPointLightSize = 32

// GPUPointLight is one element of the light storage buffer.
type GPUPointLight struct {
	Position  mgl32.Vec3 // offset  0
	Radius    float32    // offset 12: culling radius
	Intensity mgl32.Vec3 // offset 16: flux / 4π
	_pad      float32    // offset 28
}

// NewGPUPointLight converts a light into its GPU form.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - GPUPointLight: position, culling radius and intensity of l
func NewGPUPointLight(l PointLight) GPUPointLight {
	return GPUPointLight{
		Position:  l.Position,
		Radius:    l.CullingRadius(),
		Intensity: l.Intensity(),
	}
}

// MarshalTo writes the light at offset in buf.
//
// Parameters:
//   - buf: the destination, at least offset+GPUPointLightSize bytes
//   - offset: the byte offset
func (g *GPUPointLight) MarshalTo(buf []byte, offset int) {
	offset = common.PutFloat32s(buf, offset, g.Position[0], g.Position[1], g.Position[2], g.Radius)
	common.PutFloat32s(buf, offset, g.Intensity[0], g.Intensity[1], g.Intensity[2], 0)
}

// GPULightHeaderSource is the canonical WGSL definition of the LightHeader struct.
// Matches GPULightHeader layout exactly (16 bytes).
//
//go:embed assets/light_header.wgsl
var GPULightHeaderSource string

// GPULightHeaderSize is the byte size of the marshalled GPULightHeader.
const GPULightHeaderSize = 16

// GPULightHeader is the uniform that accompanies the light storage buffer.
type GPULightHeader struct {
	Ambient mgl32.Vec3 // offset  0: ambient irradiance
	Count   float32    // offset 12: number of valid lights
}

// Marshal serializes the header.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPULightHeader) Marshal() []byte {
	buf := make([]byte, GPULightHeaderSize)
	common.PutFloat32s(buf, 0, g.Ambient[0], g.Ambient[1], g.Ambient[2], g.Count)
	return buf
}

// NewGPULightHeader builds the header for n lights, clamping n to MaxExactLightCount.
//
// Parameters:
//   - ambient: the ambient irradiance
//   - n: the light count
//
// Returns:
//   - GPULightHeader: the header
func NewGPULightHeader(ambient mgl32.Vec3, n int) GPULightHeader {
	return GPULightHeader{Ambient: ambient, Count: float32(min(n, MaxExactLightCount))}
}

// MarshalPointLights serializes lights into a storage buffer image. The result always holds at
// least one element because zero-sized storage bindings are invalid.
//
// Parameters:
//   - lights: the lights to marshal
//
// Returns:
//   - []byte: max(len(lights), 1) * GPUPointLightSize bytes
func MarshalPointLights(lights []PointLight) []byte {
	buf := make([]byte, max(len(lights), 1)*GPUPointLightSize)
	for i, l := range lights {
		g := NewGPUPointLight(l)
		g.MarshalTo(buf, i*GPUPointLightSize)
	}
	return buf
}
