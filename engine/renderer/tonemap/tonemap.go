// Package tonemap maps the renderer's linear HDR output to displayable colors. The operators are
// implemented twice: in WGSL for the device blit, and in Go for the host blit and for tests.
package tonemap

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mode selects the tone-mapping operator.
type Mode uint32

const (
	// ModeNone passes exposed radiance through unchanged.
	ModeNone Mode = iota
	// ModeExponential is 1 - exp(-c).
	ModeExponential
	// ModeReinhard is c / (1 + c) per channel.
	ModeReinhard
	// ModeReinhardLuminance applies Reinhard to luminance and keeps the chromaticity.
	ModeReinhardLuminance
	// ModeHable is the filmic curve from Uncharted 2.
	ModeHable
	// ModeDuiker is the Hejl/Burgess-Dawson fit of Duiker's film curve.
	ModeDuiker
	// ModeACES is Narkowicz' fit of the ACES reference rendering transform.
	ModeACES
	// ModeACESLuminance applies the ACES fit to luminance and keeps the chromaticity.
	ModeACESLuminance

	modeCount
)

var modeNames = [modeCount]string{
	"none",
	"exponential",
	"reinhard",
	"reinhard_luminance",
	"hable",
	"duiker",
	"aces",
	"aces_luminance",
}

// String returns the mode's configuration name.
func (m Mode) String() string {
	if m >= modeCount {
		return fmt.Sprintf("Mode(%d)", uint32(m))
	}
	return modeNames[m]
}

// Modes returns every mode in declaration order.
func Modes() []Mode {
	out := make([]Mode, modeCount)
	for i := range out {
		out[i] = Mode(i)
	}
	return out
}

// ParseMode resolves a configuration name, case-insensitively.
//
// Parameters:
//   - name: a name returned by Mode.String
//
// Returns:
//   - Mode: the matching mode
//   - error: an error naming the valid choices if name is unknown
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(n, name) {
			return Mode(i), nil
		}
	}
	return ModeNone, fmt.Errorf("unknown tone-mapping mode %q (valid: %s)", name, strings.Join(modeNames[:], ", "))
}

func (m Mode) MarshalText() ([]byte, error) {
	if m >= modeCount {
		return nil, fmt.Errorf("unknown tone-mapping mode %d", uint32(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

const (
	hableA, hableB, hableC = 0.15, 0.50, 0.10
	hableD, hableE, hableF = 0.20, 0.02, 0.30
	hableWhite             = 11.2
)

func luminance(c mgl32.Vec3) float32 {
	return c.Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
}

func hable(x float32) float32 {
	return (x*(hableA*x+hableC*hableB)+hableD*hableE)/(x*(hableA*x+hableB)+hableD*hableF) - hableE/hableF
}

func aces(x float32) float32 {
	v := x * 0.6
	return mgl32.Clamp((v*(2.51*v+0.03))/(v*(2.43*v+0.59)+0.14), 0, 1)
}

func perChannel(c mgl32.Vec3, f func(float32) float32) mgl32.Vec3 {
	return mgl32.Vec3{f(c[0]), f(c[1]), f(c[2])}
}

// Apply maps a linear color with the given exposure and operator.
//
// Parameters:
//   - mode: the operator
//   - color: linear radiance
//   - exposure: the radiance multiplier applied first
//
// Returns:
//   - mgl32.Vec3: the mapped linear color; ModeNone returns color*exposure unchanged
func Apply(mode Mode, color mgl32.Vec3, exposure float32) mgl32.Vec3 {
	exposed := color.Mul(exposure)
	c := perChannel(exposed, func(v float32) float32 { return max(v, 0) })

	switch mode {
	case ModeExponential:
		return perChannel(c, func(v float32) float32 { return 1 - math32.Exp(-v) })
	case ModeReinhard:
		return perChannel(c, func(v float32) float32 { return v / (1 + v) })
	case ModeReinhardLuminance:
		l := luminance(c)
		if l <= 0 {
			return mgl32.Vec3{}
		}
		return c.Mul(1 / (1 + l))
	case ModeHable:
		white := hable(hableWhite)
		return perChannel(c, func(v float32) float32 { return mgl32.Clamp(hable(2*v)/white, 0, 1) })
	case ModeDuiker:
		return perChannel(c, func(v float32) float32 {
			x := max(v-0.004, 0)
			display := (x * (6.2*x + 0.5)) / (x*(6.2*x+1.7) + 0.06)
			return math32.Pow(display, 2.2)
		})
	case ModeACES:
		return perChannel(c, aces)
	case ModeACESLuminance:
		l := luminance(c)
		if l <= 0 {
			return mgl32.Vec3{}
		}
		return c.Mul(aces(l) / l)
	}
	return exposed
}

// HostFragment is the host twin of fs_tonemap. It expects the layout of the WGSL blit: the
// TonemapParams uniform at group 0 binding 0 and the HDR image at group 0 binding 1.
func HostFragment(x, y int, b gpu.HostBindings) [4]float32 {
	params := b.Bytes(0, 0)
	img := b.Image(0, 1)
	if len(params) < GPUTonemapParamsSize || img == nil {
		return [4]float32{0, 0, 0, 1}
	}
	p := UnmarshalGPUTonemapParams(params)
	texel := img.At(x, y)
	c := Apply(Mode(p.Mode), mgl32.Vec3{texel[0], texel[1], texel[2]}, p.Exposure)
	return [4]float32{c[0], c[1], c[2], 1}
}

var _ gpu.HostFragment = HostFragment

