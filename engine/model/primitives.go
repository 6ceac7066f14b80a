package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Triangles are wound clockwise when viewed from the side their normal points to, which is the
// front face of every render pipeline.

// quad appends a square face with centre c, unit normal n and unit tangent t. The face spans
// [-halfU, halfU] along t and [-halfV, halfV] along n x t. UVs span [0, uRepeat] x [0, vRepeat].
func quad(vertices []Vertex, indices []uint32, c, n, t mgl32.Vec3, halfU, halfV, uRepeat, vRepeat float32) ([]Vertex, []uint32) {
	b := n.Cross(t)
	base := uint32(len(vertices))
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, k := range corners {
		vertices = append(vertices, Vertex{
			Position: c.Add(t.Mul(k[0] * halfU)).Add(b.Mul(k[1] * halfV)),
			Normal:   n,
			Tangent:  t,
			UV:       mgl32.Vec2{(k[0] + 1) * 0.5 * uRepeat, (1 - k[1]) * 0.5 * vRepeat},
		})
	}
	indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	return vertices, indices
}

// Cube generates an axis-aligned cube centred on the origin.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - []Vertex: 24 vertices, four per face
//   - []uint32: 36 indices
func Cube(size float32) ([]Vertex, []uint32) {
	h := size * 0.5
	faces := [6][2]mgl32.Vec3{
		{{1, 0, 0}, {0, 0, 1}},
		{{-1, 0, 0}, {0, 0, -1}},
		{{0, 1, 0}, {1, 0, 0}},
		{{0, -1, 0}, {1, 0, 0}},
		{{0, 0, 1}, {-1, 0, 0}},
		{{0, 0, -1}, {1, 0, 0}},
	}
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		vertices, indices = quad(vertices, indices, f[0].Mul(h), f[0], f[1], h, h, 1, 1)
	}
	return vertices, indices
}

// Plane generates a horizontal plane at y = 0 facing +Y.
//
// Parameters:
//   - width: the extent along X
//   - depth: the extent along Z
//   - uvRepeat: how many times the texture repeats across the plane
//
// Returns:
//   - []Vertex: 4 vertices
//   - []uint32: 6 indices
func Plane(width, depth, uvRepeat float32) ([]Vertex, []uint32) {
	return quad(nil, nil, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, width*0.5, depth*0.5, uvRepeat, uvRepeat)
}

// UVSphere generates a latitude/longitude sphere centred on the origin. Degenerate triangles at
// the poles are omitted.
//
// Parameters:
//   - radius: the sphere radius
//   - segments: the number of longitude divisions, at least 3
//   - rings: the number of latitude divisions, at least 2
//
// Returns:
//   - []Vertex: (segments+1)*(rings+1) vertices
//   - []uint32: the triangle indices
func UVSphere(radius float32, segments, rings int) ([]Vertex, []uint32) {
	segments = max(segments, 3)
	rings = max(rings, 2)

	vertices := make([]Vertex, 0, (segments+1)*(rings+1))
	for i := 0; i <= rings; i++ {
		sinT, cosT := math32.Sincos(math32.Pi * float32(i) / float32(rings))
		for j := 0; j <= segments; j++ {
			sinP, cosP := math32.Sincos(2 * math32.Pi * float32(j) / float32(segments))
			n := mgl32.Vec3{sinT * cosP, cosT, sinT * sinP}
			vertices = append(vertices, Vertex{
				Position: n.Mul(radius),
				Normal:   n,
				Tangent:  mgl32.Vec3{-sinP, 0, cosP},
				UV:       mgl32.Vec2{float32(j) / float32(segments), float32(i) / float32(rings)},
			})
		}
	}

	stride := uint32(segments + 1)
	indices := make([]uint32, 0, segments*(rings-1)*6)
	for i := range uint32(rings) {
		for j := range uint32(segments) {
			a := i*stride + j
			b := a + stride
			c := b + 1
			d := a + 1
			if i != uint32(rings)-1 {
				indices = append(indices, a, c, b)
			}
			if i != 0 {
				indices = append(indices, a, d, c)
			}
		}
	}
	return vertices, indices
}
