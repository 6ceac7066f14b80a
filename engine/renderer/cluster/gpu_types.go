package cluster

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

// GPUClusterUniformSource is the canonical WGSL definition of the ClusterUniform struct.
// Matches GPUClusterUniform layout exactly (48 bytes).
//
//go:embed assets/cluster_uniform.wgsl
var GPUClusterUniformSource string

// GPUClusterBoundsSource is the canonical WGSL definition of the ClusterBounds struct (32 bytes).
//
//go:embed assets/cluster_bounds.wgsl
var GPUClusterBoundsSource string

// GPULightGridEntrySource is the canonical WGSL definition of the LightGridEntry struct (8 bytes).
//
//go:embed assets/light_grid_entry.wgsl
var GPULightGridEntrySource string

// MathSource holds the Z slicing and cluster indexing functions shared by every cluster stage.
//
//go:embed assets/cluster_math.wgsl
var MathSource string

// LookupSource declares the read-only cluster bind group of the lighting pass (@group(3)) and
// cluster_for_fragment. Include it with //@oxy:include clusters.
//
//go:embed assets/clusters.wgsl
var LookupSource string

var (
	//go:embed assets/cluster_build.wgsl
	buildSource string
	//go:embed assets/cluster_reset.wgsl
	resetSource string
	//go:embed assets/cluster_cull.wgsl
	cullSource string
	//go:embed assets/cluster_heatmap.wgsl
	heatmapSource string
)

const (
	// GPUClusterUniformSize is the byte size of the marshalled GPUClusterUniform.
	GPUClusterUniformSize = 48
	// GPUClusterBoundsSize is the byte size of one cluster's bounds: min and max as vec4.
	GPUClusterBoundsSize = 32
	// GPULightGridEntrySize is the byte size of one (offset, count) pair.
	GPULightGridEntrySize = 8
)

// GPUClusterUniform is the per-frame cluster data shared by the compute stages and the lighting
// lookup.
type GPUClusterUniform struct {
	Grid       [4]uint32  // offset  0: ClustersX, ClustersY, ClustersZ, MaxLightsPerCluster
	ZNear      float32    // offset 16
	ZFar       float32    // offset 20
	SliceScale float32    // offset 24: ClustersZ / ln(far / near)
	SliceBias  float32    // offset 28: -ClustersZ * ln(near) / ln(far / near)
	TileSize   [2]float32 // offset 32: pixels covered by one cluster column, not rounded
}

// NewGPUClusterUniform computes the uniform for a near/far range and a width x height target.
//
// Parameters:
//   - near, far: the view-space depth range
//   - width, height: the render target size in pixels
//
// Returns:
//   - GPUClusterUniform: the uniform
func NewGPUClusterUniform(near, far float32, width, height int) GPUClusterUniform {
	scale, bias := sliceScaleBias(near, far)
	return GPUClusterUniform{
		Grid:       [4]uint32{ClustersX, ClustersY, ClustersZ, MaxLightsPerCluster},
		ZNear:      near,
		ZFar:       far,
		SliceScale: scale,
		SliceBias:  bias,
		// the build splits NDC into exact fractions, so the lookup must not round the tiles
		TileSize: [2]float32{
			float32(width) / ClustersX,
			float32(height) / ClustersY,
		},
	}
}

// Marshal serializes the uniform.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUClusterUniform) Marshal() []byte {
	buf := make([]byte, GPUClusterUniformSize)
	for i, v := range g.Grid {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	common.PutFloat32s(buf, 16, g.ZNear, g.ZFar, g.SliceScale, g.SliceBias, g.TileSize[0], g.TileSize[1])
	return buf
}

func unmarshalClusterUniform(buf []byte) GPUClusterUniform {
	var g GPUClusterUniform
	for i := range g.Grid {
		g.Grid[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	g.ZNear = common.Float32At(buf, 16)
	g.ZFar = common.Float32At(buf, 20)
	g.SliceScale = common.Float32At(buf, 24)
	g.SliceBias = common.Float32At(buf, 28)
	g.TileSize = [2]float32{common.Float32At(buf, 32), common.Float32At(buf, 36)}
	return g
}

// Registry returns the WGSL blocks of the cluster stages and every struct they include.
//
// Returns:
//   - shader.Registry: entries for the cluster structs, cluster_math, clusters, the camera
//     uniform and the light structs
func Registry() shader.Registry {
	return shader.Registry{
		"cluster_uniform":  {Source: GPUClusterUniformSource, Type: "ClusterUniform"},
		"cluster_bounds":   {Source: GPUClusterBoundsSource, Type: "ClusterBounds"},
		"light_grid_entry": {Source: GPULightGridEntrySource, Type: "LightGridEntry"},
		"cluster_math":     {Source: MathSource},
		"clusters":         {Source: LookupSource},
		"camera_uniform":   {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
		"light_header":     {Source: light.GPULightHeaderSource, Type: "LightHeader"},
		"point_light":      {Source: light.GPUPointLightSource, Type: "PointLight"},
	}
}
