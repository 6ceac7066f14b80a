// Package cluster partitions the view frustum into a fixed grid of clusters and assigns point
// lights to them on the GPU. Cluster bounds live in view space, so they survive camera movement
// and are only rebuilt when the projection changes; light assignment runs every frame.
package cluster

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	ClustersX = 16
	ClustersY = 8
	ClustersZ = 24
	// ClustersZThreads is the Z size of the build and cull workgroups, keeping a workgroup at
	// 16 * 8 * 2 = 256 invocations.
	ClustersZThreads = 2

	ClusterCount = ClustersX * ClustersY * ClustersZ

	// MaxLightsPerCluster caps each cluster's light list. Further lights are dropped.
	MaxLightsPerCluster = 100

	// ProjectionEpsilon is the absolute per-element tolerance below which a projection counts as
	// unchanged and the cached bounds are kept.
	ProjectionEpsilon float32 = 1e-5
)

// Supported reports whether a backend can run the cluster stages: they need compute shaders and
// 32-bit index storage.
//
// Parameters:
//   - caps: the backend capabilities
//
// Returns:
//   - bool: true when clustered shading is available
func Supported(caps gpu.Capabilities) bool {
	return caps.Compute && caps.Index32 && caps.MaxComputeInvocations >= ClustersX*ClustersY*ClustersZThreads
}

// Index flattens cluster coordinates, x varying fastest.
func Index(x, y, z int) int {
	return x + y*ClustersX + z*ClustersX*ClustersY
}

// Coords is the inverse of Index.
func Coords(index int) (x, y, z int) {
	return index % ClustersX, (index / ClustersX) % ClustersY, index / (ClustersX * ClustersY)
}

func sliceScaleBias(near, far float32) (float32, float32) {
	logRatio := math32.Log(far / near)
	return ClustersZ / logRatio, -ClustersZ * math32.Log(near) / logRatio
}

// SliceDepth returns the view-space depth of the near boundary of slice k. Slices are spaced
// exponentially: slice k spans [near * (far/near)^(k/Z), near * (far/near)^((k+1)/Z)].
//
// Parameters:
//   - k: the slice index, 0..ClustersZ (ClustersZ yields far)
//   - near, far: the depth range
//
// Returns:
//   - float32: the boundary depth
func SliceDepth(k int, near, far float32) float32 {
	return near * math32.Pow(far/near, float32(k)/ClustersZ)
}

// SliceForDepth returns the slice containing view-space depth z, clamped to the grid.
//
// Parameters:
//   - z: the view-space depth
//   - near, far: the depth range
//
// Returns:
//   - int: the slice index in [0, ClustersZ)
func SliceForDepth(z, near, far float32) int {
	scale, bias := sliceScaleBias(near, far)
	k := math32.Log(math32.Max(z, near))*scale + bias
	return min(int(math32.Max(k, 0)), ClustersZ-1)
}

// Bounds computes the view-space bounding box of cluster (x, y, z) by unprojecting the corners of
// its screen tile and intersecting the corner rays with the slice's depth boundaries. Row 0 is the
// top of the screen.
//
// Parameters:
//   - invProj: the inverse projection matrix
//   - near, far: the depth range the slices cover
//   - x, y, z: the cluster coordinates
//
// Returns:
//   - common.AABB: the cluster bounds in view space
func Bounds(invProj mgl32.Mat4, near, far float32, x, y, z int) common.AABB {
	rayMin := unprojectRay(invProj, -1+2*float32(x)/ClustersX, 1-2*float32(y+1)/ClustersY)
	rayMax := unprojectRay(invProj, -1+2*float32(x+1)/ClustersX, 1-2*float32(y)/ClustersY)
	z0, z1 := SliceDepth(z, near, far), SliceDepth(z+1, near, far)

	box := common.EmptyAABB()
	for _, p := range []mgl32.Vec3{
		rayMin.Mul(z0 / rayMin[2]), rayMin.Mul(z1 / rayMin[2]),
		rayMax.Mul(z0 / rayMax[2]), rayMax.Mul(z1 / rayMax[2]),
	} {
		box.Extend(p)
	}
	return box
}

func unprojectRay(invProj mgl32.Mat4, ndcX, ndcY float32) mgl32.Vec3 {
	p := invProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	return p.Vec3().Mul(1 / p[3])
}

// BuildBounds computes the bounds of every cluster, indexed by Index.
//
// Parameters:
//   - invProj: the inverse projection matrix
//   - near, far: the depth range
//
// Returns:
//   - []common.AABB: ClusterCount bounding boxes
func BuildBounds(invProj mgl32.Mat4, near, far float32) []common.AABB {
	out := make([]common.AABB, ClusterCount)
	for i := range out {
		x, y, z := Coords(i)
		out[i] = Bounds(invProj, near, far, x, y, z)
	}
	return out
}
