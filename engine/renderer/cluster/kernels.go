package cluster

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// byte offsets into the camera uniform read by the kernels
const (
	cameraViewOffset    = 0
	cameraInvProjOffset = 128
	lightCountOffset    = 12
)

// inGrid reports whether a global invocation id addresses a cluster.
func inGrid(id [3]uint32) bool {
	return id[0] < ClustersX && id[1] < ClustersY && id[2] < ClustersZ
}

func flatIndex(id [3]uint32) int {
	return Index(int(id[0]), int(id[1]), int(id[2]))
}

// buildKernel mirrors cs_cluster_build.
func buildKernel(inv gpu.Invocation, b gpu.HostBindings) {
	if !inGrid(inv.GlobalID) {
		return
	}
	camera := b.Bytes(0, 0)
	uniform := unmarshalClusterUniform(b.Bytes(1, 0))
	out := b.Bytes(1, 1)

	invProj := common.Mat4At(camera, cameraInvProjOffset)
	box := Bounds(invProj, uniform.ZNear, uniform.ZFar, int(inv.GlobalID[0]), int(inv.GlobalID[1]), int(inv.GlobalID[2]))
	putBounds(out, flatIndex(inv.GlobalID), box)
}

func putBounds(buf []byte, index int, box common.AABB) {
	off := index * GPUClusterBoundsSize
	off = common.PutFloat32s(buf, off, box.Min[0], box.Min[1], box.Min[2], 0)
	common.PutFloat32s(buf, off, box.Max[0], box.Max[1], box.Max[2], 0)
}

func boundsAt(buf []byte, index int) common.AABB {
	off := index * GPUClusterBoundsSize
	return common.AABB{
		Min: mgl32.Vec3{common.Float32At(buf, off), common.Float32At(buf, off+4), common.Float32At(buf, off+8)},
		Max: mgl32.Vec3{common.Float32At(buf, off+16), common.Float32At(buf, off+20), common.Float32At(buf, off+24)},
	}
}

// resetKernel mirrors cs_cluster_reset.
func resetKernel(_ gpu.Invocation, b gpu.HostBindings) {
	gpu.AtomicStoreUint32(b.Bytes(1, 4), 0, 0)
}

// cullKernel mirrors cs_cluster_cull: it tests every light sphere, transformed to view space,
// against the cluster bounds, then reserves a range of the index list with one atomic add.
func cullKernel(inv gpu.Invocation, b gpu.HostBindings) {
	if !inGrid(inv.GlobalID) {
		return
	}
	view := common.Mat4At(b.Bytes(0, 0), cameraViewOffset)
	bounds := b.Bytes(1, 1)
	indices := b.Bytes(1, 2)
	grid := b.Bytes(1, 3)
	counter := b.Bytes(1, 4)
	header := b.Bytes(2, 0)
	lights := b.Bytes(2, 1)

	index := flatIndex(inv.GlobalID)
	box := boundsAt(bounds, index)

	total := min(int(common.Float32At(header, lightCountOffset)), len(lights)/light.GPUPointLightSize)
	visible := make([]uint32, 0, MaxLightsPerCluster)
	for i := range total {
		off := i * light.GPUPointLightSize
		pos := mgl32.Vec4{common.Float32At(lights, off), common.Float32At(lights, off+4), common.Float32At(lights, off+8), 1}
		radius := common.Float32At(lights, off+12)
		if box.IntersectsSphere(view.Mul4x1(pos).Vec3(), radius) {
			visible = append(visible, uint32(i))
			if len(visible) == MaxLightsPerCluster {
				break
			}
		}
	}

	count := uint32(len(visible))
	offset := gpu.AtomicAddUint32(counter, 0, count) - count
	for j, li := range visible {
		binary.LittleEndian.PutUint32(indices[(int(offset)+j)*4:], li)
	}
	putGridEntry(grid, index, offset, count)
}

func putGridEntry(buf []byte, index int, offset, count uint32) {
	binary.LittleEndian.PutUint32(buf[index*GPULightGridEntrySize:], offset)
	binary.LittleEndian.PutUint32(buf[index*GPULightGridEntrySize+4:], count)
}

// GridEntryAt decodes the (offset, count) pair of cluster index from a light grid buffer.
//
// Parameters:
//   - buf: the light grid contents
//   - index: the flat cluster index
//
// Returns:
//   - offset: the first slot of the cluster in the light index list
//   - count: the number of lights assigned to the cluster
func GridEntryAt(buf []byte, index int) (offset, count uint32) {
	off := index * GPULightGridEntrySize
	return binary.LittleEndian.Uint32(buf[off:]), binary.LittleEndian.Uint32(buf[off+4:])
}

// heatmapKernel mirrors cs_cluster_heatmap.
func heatmapKernel(inv gpu.Invocation, b gpu.HostBindings) {
	x, y := int(inv.GlobalID[0]), int(inv.GlobalID[1])
	if x >= ClustersX || y >= ClustersY {
		return
	}
	grid := b.Bytes(1, 3)
	img := b.Image(1, 5)
	if img == nil {
		return
	}
	var most uint32
	for z := range ClustersZ {
		_, count := GridEntryAt(grid, Index(x, y, z))
		most = max(most, count)
	}
	img.Set(x, y, HeatColor(most))
}

// HeatColor maps a cluster light count onto the blue-green-red ramp of the debug overlay. Empty
// clusters are black.
//
// Parameters:
//   - count: the light count
//
// Returns:
//   - [4]float32: the opaque overlay color
func HeatColor(count uint32) [4]float32 {
	if count == 0 {
		return [4]float32{0, 0, 0, 1}
	}
	t := math32.Min(float32(count)/MaxLightsPerCluster, 1)
	clamp := func(v float32) float32 { return math32.Max(0, math32.Min(v, 1)) }
	return [4]float32{
		clamp(2*t - 0.5),
		clamp(1 - math32.Abs(2*t-1)),
		clamp(1.5 - 2*t),
		1,
	}
}
