package gpu

// StateFlags is the fixed-function state of a draw: blending, face culling, depth test and
// depth write. Sub-shaders return partial flag sets which callers OR into their pass defaults.
type StateFlags uint32

const (
	StateNone       StateFlags = 0
	StateBlendAlpha StateFlags = 1 << iota
	StateBlendAdd
	StateCullBack
	StateCullFront
	StateCullNone
	StateDepthTestLess
	StateDepthTestLessEqual
	StateDepthTestGreater
	StateDepthTestGreaterEqual
	StateDepthTestAlways
	StateDepthWrite
	StateWriteRGB
	StateWriteAlpha
)

// StateDefault matches an opaque draw: color writes, depth write, less-than depth test and back-face culling.
const StateDefault = StateWriteRGB | StateWriteAlpha | StateDepthWrite | StateDepthTestLess | StateCullBack

const (
	stateCullMask      = StateCullBack | StateCullFront | StateCullNone
	stateDepthTestMask = StateDepthTestLess | StateDepthTestLessEqual | StateDepthTestGreater |
		StateDepthTestGreaterEqual | StateDepthTestAlways
	stateBlendMask = StateBlendAlpha | StateBlendAdd
)

// Has reports whether every bit of f is set.
func (s StateFlags) Has(f StateFlags) bool {
	return s&f == f
}

// WithoutCull clears the culling bits.
func (s StateFlags) WithoutCull() StateFlags {
	return s &^ stateCullMask
}

// Cull returns the effective culling bits, with StateCullNone winning over back/front.
func (s StateFlags) Cull() StateFlags {
	if s&StateCullNone != 0 {
		return StateCullNone
	}
	if s&StateCullFront != 0 {
		return StateCullFront
	}
	if s&StateCullBack != 0 {
		return StateCullBack
	}
	return StateCullNone
}

// DepthTest returns the effective depth comparison bits. Absence of any bit means "always".
func (s StateFlags) DepthTest() StateFlags {
	d := s & stateDepthTestMask
	if d == 0 {
		return StateDepthTestAlways
	}
	return d
}

// Blend returns the blending bits, StateNone for opaque draws.
func (s StateFlags) Blend() StateFlags {
	return s & stateBlendMask
}
