package tonemap

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostBindings struct {
	params []byte
	img    *gpu.HostImage
}

func (h hostBindings) Bytes(group, binding int) []byte {
	if group == 0 && binding == 0 {
		return h.params
	}
	return nil
}

func (h hostBindings) Image(group, binding int) *gpu.HostImage {
	if group == 0 && binding == 1 {
		return h.img
	}
	return nil
}

func TestIdentityAtUnitExposure(t *testing.T) {
	for _, c := range []mgl32.Vec3{{0.25, 0.5, 0.75}, {0, 0, 0}, {1, 1, 1}, {3, 0.01, 0.2}} {
		assert.Equal(t, c, Apply(ModeNone, c, 1))
	}
	assert.Equal(t, mgl32.Vec3{0.5, 1, 1.5}, Apply(ModeNone, mgl32.Vec3{0.25, 0.5, 0.75}, 2))
}

func TestHostFragmentIdentity(t *testing.T) {
	img := gpu.NewHostImage(2, 2)
	img.Fill([4]float32{0.2, 0.4, 0.6, 0.5})
	p := GPUTonemapParams{Exposure: 1, Mode: uint32(ModeNone)}
	b := hostBindings{params: p.Marshal(), img: img}

	out := HostFragment(1, 1, b)
	assert.InDeltaSlice(t, []float32{0.2, 0.4, 0.6, 1}, out[:], 1e-7)

	assert.Equal(t, [4]float32{0, 0, 0, 1}, HostFragment(0, 0, hostBindings{}), "missing bindings render black")
}

func TestOperatorsStayInDisplayRange(t *testing.T) {
	inputs := []float32{0, 0.01, 0.18, 1, 4, 50, 1000}
	for _, m := range Modes() {
		if m == ModeNone {
			continue
		}
		prev := float32(-1)
		for _, v := range inputs {
			out := Apply(m, mgl32.Vec3{v, v, v}, 1)
			assert.GreaterOrEqual(t, out[0], float32(0), "%s(%f)", m, v)
			assert.LessOrEqual(t, out[0], float32(1.0001), "%s(%f)", m, v)
			assert.GreaterOrEqual(t, out[0], prev, "%s is monotonic", m)
			prev = out[0]
		}
	}
}

func TestLuminanceOperatorsKeepHue(t *testing.T) {
	in := mgl32.Vec3{2, 1, 0.5}
	for _, m := range []Mode{ModeReinhardLuminance, ModeACESLuminance} {
		out := Apply(m, in, 1)
		assert.InDelta(t, 2, out[0]/out[1], 1e-5, m.String())
		assert.InDelta(t, 2, out[1]/out[2], 1e-5, m.String())
	}
}

func TestNegativeInputClamps(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{}, Apply(ModeReinhard, mgl32.Vec3{-1, -2, -3}, 1))
	assert.Equal(t, mgl32.Vec3{}, Apply(ModeACESLuminance, mgl32.Vec3{-1, 0, 0}, 1))
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	m, err := ParseMode("ACES")
	require.NoError(t, err)
	assert.Equal(t, ModeACES, m)

	_, err = ParseMode("filmic")
	assert.ErrorContains(t, err, "reinhard_luminance")
	assert.Equal(t, "Mode(42)", Mode(42).String())
}

func TestParamsLayout(t *testing.T) {
	p := GPUTonemapParams{Exposure: 0.75, Mode: uint32(ModeHable)}
	buf := p.Marshal()
	require.Len(t, buf, GPUTonemapParamsSize)
	assert.Equal(t, p, UnmarshalGPUTonemapParams(buf))
}
