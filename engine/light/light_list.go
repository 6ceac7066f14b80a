package light

import (
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLightPower is the flux in watts given to generated lights.
const DefaultLightPower float32 = 40

// pointLightListImpl is the implementation of the PointLightList interface.
type pointLightListImpl struct {
	mu *sync.Mutex

	lights []PointLight
	// speeds holds the orbit angular velocity of each light in radians per second.
	speeds []float32

	moving  bool
	power   float32
	rng     *rand.Rand
	version uint64
}

// PointLightList owns the scene's point lights. Every mutation bumps Version so GPU uploads can
// be skipped for unchanged lists.
type PointLightList interface {
	// Lights returns a copy of the lights.
	//
	// Returns:
	//   - []PointLight: the lights in insertion order
	Lights() []PointLight

	// Len returns the number of lights.
	Len() int

	// Add appends a light.
	//
	// Parameters:
	//   - l: the light to append
	Add(l PointLight)

	// Set replaces the light at index i. Out-of-range indices are ignored.
	//
	// Parameters:
	//   - i: the light index
	//   - l: the new light
	Set(i int, l PointLight)

	// Clear removes every light.
	Clear()

	// Resize truncates the list or grows it with randomly placed, randomly colored lights inside
	// bounds.
	//
	// Parameters:
	//   - n: the new light count
	//   - bounds: the region new lights are placed in
	Resize(n int, bounds common.AABB)

	// Moving reports whether Update animates the lights.
	Moving() bool

	// SetMoving enables or disables the orbit animation.
	//
	// Parameters:
	//   - moving: true to animate lights in Update
	SetMoving(moving bool)

	// Update advances the orbit animation by dt seconds. Each light circles the vertical axis
	// through the centre of bounds at its own speed and is kept inside bounds.
	// Does nothing unless moving is enabled.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	//   - bounds: the scene bounds
	Update(dt float32, bounds common.AABB)

	// Version returns a counter that changes whenever the lights change.
	Version() uint64
}

var _ PointLightList = &pointLightListImpl{}

// NewPointLightList creates an empty light list.
//
// Parameters:
//   - options: functional options, see WithSeed and WithLightPower
//
// Returns:
//   - PointLightList: the new list
func NewPointLightList(options ...PointLightListOption) PointLightList {
	l := &pointLightListImpl{
		mu:    &sync.Mutex{},
		power: DefaultLightPower,
		rng:   rand.New(rand.NewPCG(1, 2)),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (p *pointLightListImpl) Lights() []PointLight {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PointLight, len(p.lights))
	copy(out, p.lights)
	return out
}

func (p *pointLightListImpl) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lights)
}

func (p *pointLightListImpl) Add(l PointLight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(l)
}

// add appends l with a random orbit speed. Caller must hold the mutex.
func (p *pointLightListImpl) add(l PointLight) {
	speed := 0.25 + 0.75*p.rng.Float32()
	if p.rng.IntN(2) == 0 {
		speed = -speed
	}
	p.lights = append(p.lights, l)
	p.speeds = append(p.speeds, speed)
	p.version++
}

func (p *pointLightListImpl) Set(i int, l PointLight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.lights) {
		return
	}
	p.lights[i] = l
	p.version++
}

func (p *pointLightListImpl) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lights = p.lights[:0]
	p.speeds = p.speeds[:0]
	p.version++
}

func (p *pointLightListImpl) Resize(n int, bounds common.AABB) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n = max(n, 0)
	if n <= len(p.lights) {
		p.lights = p.lights[:n]
		p.speeds = p.speeds[:n]
		p.version++
		return
	}

	extent := bounds.Max.Sub(bounds.Min)
	for len(p.lights) < n {
		pos := mgl32.Vec3{
			bounds.Min[0] + p.rng.Float32()*extent[0],
			bounds.Min[1] + p.rng.Float32()*extent[1],
			bounds.Min[2] + p.rng.Float32()*extent[2],
		}
		color := mgl32.Vec3{p.rng.Float32(), p.rng.Float32(), p.rng.Float32()}
		if m := common.MaxComponent(color); m > 1e-3 {
			color = color.Mul(1 / m)
		} else {
			color = mgl32.Vec3{1, 1, 1}
		}
		p.add(PointLight{Position: pos, Flux: color.Mul(p.power)})
	}
}

func (p *pointLightListImpl) Moving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moving
}

func (p *pointLightListImpl) SetMoving(moving bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moving = moving
}

func (p *pointLightListImpl) Update(dt float32, bounds common.AABB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.moving || len(p.lights) == 0 || dt == 0 {
		return
	}

	center := bounds.Center()
	for i := range p.lights {
		angle := p.speeds[i] * dt
		s, c := math32.Sincos(angle)
		rel := p.lights[i].Position.Sub(center)
		pos := mgl32.Vec3{
			center[0] + rel[0]*c + rel[2]*s,
			p.lights[i].Position[1],
			center[2] - rel[0]*s + rel[2]*c,
		}
		if bounds.Valid() {
			for a := range 3 {
				pos[a] = mgl32.Clamp(pos[a], bounds.Min[a], bounds.Max[a])
			}
		}
		p.lights[i].Position = pos
	}
	p.version++
}

func (p *pointLightListImpl) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// PointLightListOption configures a PointLightList during construction.
type PointLightListOption func(*pointLightListImpl)

// WithSeed seeds the generator used for random placement and orbit speeds.
//
// Parameters:
//   - seed: the generator seed
//
// Returns:
//   - PointLightListOption: a function that seeds the list's generator
func WithSeed(seed uint64) PointLightListOption {
	return func(p *pointLightListImpl) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLightPower sets the flux in watts of generated lights.
//
// Parameters:
//   - power: the flux of generated lights
//
// Returns:
//   - PointLightListOption: a function that sets the generated light power
func WithLightPower(power float32) PointLightListOption {
	return func(p *pointLightListImpl) {
		p.power = power
	}
}

// WithMoving enables the orbit animation from the start.
//
// Returns:
//   - PointLightListOption: a function that enables moving lights
func WithMoving() PointLightListOption {
	return func(p *pointLightListImpl) {
		p.moving = true
	}
}
