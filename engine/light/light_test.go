package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRadius(t *testing.T) {
	// intensity 1 W/sr on the brightest channel reaches the cutoff at distance 1
	l := NewPointLight(WithFlux(4*math32.Pi, 0, 0))
	assert.InDelta(t, 1.0, l.CalculateRadius(), 1e-5)

	// below 20 W/sr the radius is sqrt(intensity)
	l = NewPointLight(WithFlux(0, 16*4*math32.Pi, 1))
	assert.InDelta(t, 4.0, l.CalculateRadius(), 1e-4)

	// above it, the attenuation cutoff caps the radius
	l = NewPointLight(WithFlux(1000*4*math32.Pi, 0, 0))
	assert.InDelta(t, math32.Sqrt(20), l.CalculateRadius(), 1e-4)

	assert.Zero(t, NewPointLight().CalculateRadius())
}

func TestCalculateRadiusMonotonic(t *testing.T) {
	prev := float32(0)
	for flux := float32(0.5); flux < 5000; flux *= 1.3 {
		r := NewPointLight(WithColorPower(mgl32.Vec3{1, 0.5, 0.25}, flux)).CalculateRadius()
		assert.GreaterOrEqual(t, r, prev, "flux %f", flux)
		prev = r
	}
}

func TestCullingRadiusOverride(t *testing.T) {
	l := NewPointLight(WithFlux(100, 100, 100), WithRadius(7))
	assert.Equal(t, float32(7), l.CullingRadius())
	l.Radius = 0
	assert.Equal(t, l.CalculateRadius(), l.CullingRadius())
}

func TestMarshalPointLights(t *testing.T) {
	assert.Len(t, MarshalPointLights(nil), GPUPointLightSize, "empty lists still produce one element")

	lights := []PointLight{
		NewPointLight(WithPosition(1, 2, 3), WithFlux(4*math32.Pi, 8*math32.Pi, 0)),
		NewPointLight(WithPosition(-1, 0, 5), WithFlux(1, 1, 1), WithRadius(2.5)),
	}
	buf := MarshalPointLights(lights)
	require.Len(t, buf, 2*GPUPointLightSize)

	assert.Equal(t, float32(3), common.Float32At(buf, 8))
	assert.InDelta(t, lights[0].CalculateRadius(), common.Float32At(buf, 12), 1e-6)
	assert.InDelta(t, 1, common.Float32At(buf, 16), 1e-6)
	assert.InDelta(t, 2, common.Float32At(buf, 20), 1e-6)
	assert.Equal(t, float32(2.5), common.Float32At(buf, GPUPointLightSize+12))
}

func TestLightHeaderClampsCount(t *testing.T) {
	h := NewGPULightHeader(mgl32.Vec3{0.03, 0.03, 0.03}, MaxExactLightCount+10)
	assert.Equal(t, float32(MaxExactLightCount), h.Count)
	buf := h.Marshal()
	assert.Len(t, buf, GPULightHeaderSize)
	assert.InDelta(t, 0.03, common.Float32At(buf, 0), 1e-7)
}

func TestResizeGeneratesLightsInBounds(t *testing.T) {
	bounds := common.AABB{Min: mgl32.Vec3{-2, 0, -1}, Max: mgl32.Vec3{2, 3, 1}}
	list := NewPointLightList(WithSeed(7), WithLightPower(10))

	list.Resize(50, bounds)
	require.Equal(t, 50, list.Len())
	for _, l := range list.Lights() {
		assert.True(t, bounds.IntersectsSphere(l.Position, 0))
		assert.InDelta(t, 10, common.MaxComponent(l.Flux), 1e-4)
	}

	v := list.Version()
	list.Resize(3, bounds)
	assert.Equal(t, 3, list.Len())
	assert.Greater(t, list.Version(), v)

	// the same seed reproduces the same lights
	again := NewPointLightList(WithSeed(7), WithLightPower(10))
	again.Resize(3, bounds)
	assert.Equal(t, list.Lights(), again.Lights())
}

func TestUpdateOrbitsOnlyWhenMoving(t *testing.T) {
	bounds := common.AABB{Min: mgl32.Vec3{-5, -5, -5}, Max: mgl32.Vec3{5, 5, 5}}
	list := NewPointLightList()
	list.Add(NewPointLight(WithPosition(3, 1, 0), WithFlux(1, 1, 1)))

	list.Update(1, bounds)
	assert.Equal(t, mgl32.Vec3{3, 1, 0}, list.Lights()[0].Position)

	list.SetMoving(true)
	for range 200 {
		list.Update(0.1, bounds)
	}
	p := list.Lights()[0].Position
	assert.InDelta(t, 1, p[1], 1e-6, "height is kept")
	assert.InDelta(t, 3, math32.Hypot(p[0], p[2]), 1e-3, "orbit radius is kept")
	assert.NotEqual(t, mgl32.Vec3{3, 1, 0}, p)
}

func TestUpdateKeepsLightsInsideBounds(t *testing.T) {
	bounds := common.AABB{Min: mgl32.Vec3{-1, 0, -4}, Max: mgl32.Vec3{1, 1, 4}}
	list := NewPointLightList(WithMoving())
	list.Add(NewPointLight(WithPosition(0, 0.5, 3.5)))
	for range 50 {
		list.Update(0.2, bounds)
		assert.True(t, bounds.IntersectsSphere(list.Lights()[0].Position, 0))
	}
}
