package shading

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/chewxy/math32"
)

// BRDFSource holds the shared BRDF functions and the Surface struct. Include it with
// //@oxy:include brdf.
//
//go:embed assets/brdf.wgsl
var BRDFSource string

// MaterialSource declares the material bind group (@group(1)) and material_surface.
// Include it with //@oxy:include material.
//
//go:embed assets/material.wgsl
var MaterialSource string

// LightsSource declares the light bind group (@group(2)) and point_light_radiance.
// Include it with //@oxy:include lights.
//
//go:embed assets/lights.wgsl
var LightsSource string

//go:embed assets/albedo_lut.wgsl
var albedoLUTSource string

// Bind group indices shared by every surface pipeline.
const (
	MaterialGroup = 1
	LightGroup    = 2
)

// Material group bindings.
const (
	MaterialUniformBinding = 0
	MaterialSamplerBinding = 1
	// MaterialTextureBinding is the binding of TextureBaseColor; the other slots follow in order.
	MaterialTextureBinding = 2
	AlbedoLUTBinding       = MaterialTextureBinding + int(material.TextureSlotCount)
)

// Light group bindings.
const (
	LightHeaderBinding = 0
	LightBufferBinding = 1
)

const (
	// AlbedoLUTSize is the width and height of the directional albedo table.
	AlbedoLUTSize = 32
	// AlbedoLUTSamples is the number of GGX samples integrated per table entry.
	AlbedoLUTSamples = 512
	// AlbedoLUTFormat is the texel format of the table.
	AlbedoLUTFormat = gpu.FormatRGBA16F

	albedoLUTWorkgroup = 8
	albedoLUTPipeline  = "albedo_lut"
)

// Registry returns the WGSL blocks owned by this package and the structs they include.
//
// Returns:
//   - shader.Registry: entries for brdf, material, lights and their struct types
func Registry() shader.Registry {
	return shader.Registry{
		"brdf":             {Source: BRDFSource},
		"material":         {Source: MaterialSource},
		"lights":           {Source: LightsSource},
		"material_uniform": {Source: material.GPUMaterialUniformSource, Type: "MaterialUniform"},
		"light_header":     {Source: light.GPULightHeaderSource, Type: "LightHeader"},
		"point_light":      {Source: light.GPUPointLightSource, Type: "PointLight"},
	}
}

// DirectionalAlbedo integrates the single-scattering GGX specular lobe with a Fresnel term of 1
// over the hemisphere, using Hammersley points importance sampled by the GGX distribution. The
// result lies in [0, 1] and is 1 for perfectly smooth surfaces.
//
// Parameters:
//   - nDotV: cosine of the view angle, in (0, 1]
//   - roughness: perceptual roughness in [0, 1]
//   - samples: the number of samples
//
// Returns:
//   - float32: the directional albedo
func DirectionalAlbedo(nDotV, roughness float32, samples int) float32 {
	nDotV = math32.Max(nDotV, 1e-4)
	v := [3]float32{math32.Sqrt(1 - nDotV*nDotV), 0, nDotV}
	a := roughness * roughness

	var sum float32
	for i := range samples {
		xi0, xi1 := hammersley(uint32(i), uint32(samples))
		h := importanceSampleGGX(xi0, xi1, a)
		vDotH := v[0]*h[0] + v[1]*h[1] + v[2]*h[2]
		nDotL := 2*vDotH*h[2] - v[2]
		nDotH := h[2]
		if nDotL > 0 && nDotH > 0 {
			vis := visibilitySmithGGXCorrelated(nDotV, nDotL, a)
			sum += vis * nDotL * 4 * math32.Max(vDotH, 0) / nDotH
		}
	}
	return sum / float32(samples)
}

func hammersley(i, n uint32) (float32, float32) {
	bits := i
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float32(i) / float32(n), float32(bits) * 2.3283064365386963e-10
}

func importanceSampleGGX(xi0, xi1, a float32) [3]float32 {
	phi := 2 * math32.Pi * xi0
	cosTheta := math32.Sqrt((1 - xi1) / (1 + (a*a-1)*xi1))
	sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))
	s, c := math32.Sincos(phi)
	return [3]float32{c * sinTheta, s * sinTheta, cosTheta}
}

func visibilitySmithGGXCorrelated(nDotV, nDotL, a float32) float32 {
	a2 := a * a
	ggxl := nDotV * math32.Sqrt((nDotL-nDotL*a2)*nDotL+a2)
	ggxv := nDotL * math32.Sqrt((nDotV-nDotV*a2)*nDotV+a2)
	return 0.5 / (ggxv + ggxl)
}

// albedoLUTKernel is the host twin of cs_albedo_lut.
func albedoLUTKernel(inv gpu.Invocation, b gpu.HostBindings) {
	x, y := int(inv.GlobalID[0]), int(inv.GlobalID[1])
	if x >= AlbedoLUTSize || y >= AlbedoLUTSize {
		return
	}
	img := b.Image(0, 0)
	if img == nil {
		return
	}
	nDotV := (float32(x) + 0.5) / AlbedoLUTSize
	roughness := (float32(y) + 0.5) / AlbedoLUTSize
	e := DirectionalAlbedo(nDotV, roughness, AlbedoLUTSamples)
	img.Set(x, y, [4]float32{e, e, e, 1})
}
