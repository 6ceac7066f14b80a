package cluster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Pipeline keys of the cluster stages.
const (
	BuildPipeline   = "cluster_build"
	ResetPipeline   = "cluster_reset"
	CullPipeline    = "cluster_cull"
	HeatmapPipeline = "cluster_heatmap"
)

// Bindings of the cluster bind group. The lighting group reuses the uniform, index and grid
// bindings at the same numbers.
const (
	UniformBinding = iota
	BoundsBinding
	LightIndicesBinding
	LightGridBinding
	CounterBinding
	HeatmapBinding
)

// ErrNotInitialized is returned when a grid is used before Initialize.
var ErrNotInitialized = errors.New("cluster grid not initialized")

// clusterWorkgroups covers the whole grid with 16x8x2 workgroups.
var clusterWorkgroups = [3]uint32{
	common.CeilDiv(ClustersX, ClustersX),
	common.CeilDiv(ClustersY, ClustersY),
	common.CeilDiv(ClustersZ, ClustersZThreads),
}

// grid is the implementation of the Grid interface.
type grid struct {
	mu     *sync.Mutex
	logger *zap.Logger

	backend     backend.Backend
	uniform     gpu.Buffer
	bounds      gpu.Buffer
	indices     gpu.Buffer
	lightGrid   gpu.Buffer
	counter     gpu.Buffer
	heatmap     gpu.Texture
	provider    bind_group_provider.BindGroupProvider
	lighting    bind_group_provider.BindGroupProvider
	initialized bool

	// uniformData is the uniform last uploaded
	uniformData     GPUClusterUniform
	uniformUploaded bool

	// cached is the projection the bounds were built from, pending the one passed to Update
	cached  mgl32.Mat4
	pending mgl32.Mat4
	built   bool
	stale   bool
}

// Grid owns the cluster buffers and the compute stages that fill them: bounds construction,
// counter reset and light assignment. Dispatching methods must be called inside a backend frame.
type Grid interface {
	// Initialize creates the buffers, the debug heat map and registers the compute pipelines.
	// Calling it again does nothing.
	//
	// Parameters:
	//   - b: the backend; it must satisfy Supported
	//
	// Returns:
	//   - error: gpu.ErrUnsupported when the backend lacks compute, or a creation error
	Initialize(b backend.Backend) error

	// Update uploads the cluster uniform for the frame and records the projection. The bounds are
	// stale when they were never built or when any element of projection differs from the one they
	// were built from by more than ProjectionEpsilon.
	//
	// Parameters:
	//   - projection: the camera projection
	//   - near, far: the camera depth range
	//   - width, height: the render target size
	//
	// Returns:
	//   - bool: true when Build must run this frame
	//   - error: ErrNotInitialized, or an upload error
	Update(projection mgl32.Mat4, near, far float32, width, height int) (bool, error)

	// Stale reports the result of the last Update, cleared by a successful Build.
	Stale() bool

	// Build dispatches the bounds construction and caches the pending projection.
	//
	// Parameters:
	//   - camera: the bind group holding the camera uniform at binding 0
	//
	// Returns:
	//   - error: a dispatch error
	Build(camera bind_group_provider.BindGroupProvider) error

	// ResetCounter zeroes the light index counter.
	//
	// Parameters:
	//   - camera: the camera bind group, bound at group 0
	//
	// Returns:
	//   - error: a dispatch error
	ResetCounter(camera bind_group_provider.BindGroupProvider) error

	// Cull assigns lights to clusters. Each cluster keeps at most MaxLightsPerCluster lights and
	// reserves its range of the index list atomically.
	//
	// Parameters:
	//   - camera: the camera bind group
	//   - lights: the light bind group (header and point lights)
	//
	// Returns:
	//   - error: a dispatch error
	Cull(camera, lights bind_group_provider.BindGroupProvider) error

	// Heatmap renders the per-tile light counts into HeatmapTexture.
	//
	// Returns:
	//   - error: a dispatch error
	Heatmap() error

	// Stages returns the cluster stages followed by lighting: bounds build (conditional), counter
	// reset, light culling and the caller's lighting stage.
	//
	// Parameters:
	//   - camera: the camera bind group
	//   - lights: the light bind group
	//   - lighting: the stage consuming the light grid
	//
	// Returns:
	//   - []Stage: the ordered stages
	Stages(camera, lights bind_group_provider.BindGroupProvider, lighting Stage) []Stage

	// Provider returns the bind group used by the compute stages.
	Provider() bind_group_provider.BindGroupProvider

	// LightingProvider returns the read-only bind group of the lighting pass.
	LightingProvider() bind_group_provider.BindGroupProvider

	// BoundsBuffer returns the ClusterBounds storage buffer.
	BoundsBuffer() gpu.Buffer

	// LightIndexBuffer returns the flattened light index list.
	LightIndexBuffer() gpu.Buffer

	// LightGridBuffer returns the per-cluster (offset, count) pairs.
	LightGridBuffer() gpu.Buffer

	// CounterBuffer returns the atomic counter of the light index list.
	CounterBuffer() gpu.Buffer

	// HeatmapTexture returns the ClustersX x ClustersY debug overlay.
	HeatmapTexture() gpu.Texture

	// Shutdown releases the buffers, the texture and the bind groups.
	Shutdown()
}

var _ Grid = &grid{}

// NewGrid creates an uninitialized cluster grid.
//
// Parameters:
//   - options: a variadic list of options, see WithLogger
//
// Returns:
//   - Grid: the new grid
func NewGrid(options ...GridBuilderOption) Grid {
	g := &grid{
		mu:     &sync.Mutex{},
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *grid) Initialize(b backend.Backend) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return nil
	}
	if !Supported(b.Capabilities()) {
		return fmt.Errorf("cluster grid: %w", gpu.ErrUnsupported)
	}
	g.backend = b

	var err error
	create := func(label string, size uint64, usage gpu.BufferUsage) gpu.Buffer {
		if err != nil {
			return nil
		}
		var buf gpu.Buffer
		buf, err = b.CreateBuffer(gpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
		return buf
	}
	storage := gpu.BufferUsageStorage | gpu.BufferUsageCopySrc | gpu.BufferUsageCopyDst
	g.uniform = create("cluster uniform", GPUClusterUniformSize, gpu.BufferUsageUniform|gpu.BufferUsageCopyDst)
	g.bounds = create("cluster bounds", ClusterCount*GPUClusterBoundsSize, storage)
	g.indices = create("cluster light indices", ClusterCount*MaxLightsPerCluster*4, storage)
	g.lightGrid = create("cluster light grid", ClusterCount*GPULightGridEntrySize, storage)
	g.counter = create("cluster light counter", 4, storage)
	if err == nil {
		g.heatmap, err = b.CreateTexture(gpu.TextureDescriptor{
			Label:  "cluster heatmap",
			Width:  ClustersX,
			Height: ClustersY,
			Format: gpu.FormatRGBA8,
			Usage:  gpu.TextureUsageStorage | gpu.TextureUsageSampled,
		})
	}
	if err == nil {
		err = g.registerPipelines()
	}
	if err != nil {
		g.releaseLocked()
		return fmt.Errorf("cluster grid: %w", err)
	}

	g.provider = bind_group_provider.NewBindGroupProvider("clusters",
		bind_group_provider.WithBuffers(map[int]gpu.Buffer{
			UniformBinding:      g.uniform,
			BoundsBinding:       g.bounds,
			LightIndicesBinding: g.indices,
			LightGridBinding:    g.lightGrid,
			CounterBinding:      g.counter,
		}),
		bind_group_provider.WithTexture(HeatmapBinding, g.heatmap),
	)
	g.lighting = bind_group_provider.NewBindGroupProvider("cluster lookup",
		bind_group_provider.WithBuffers(map[int]gpu.Buffer{
			UniformBinding:      g.uniform,
			LightIndicesBinding: g.indices,
			LightGridBinding:    g.lightGrid,
		}),
	)
	g.initialized = true
	return nil
}

func (g *grid) registerPipelines() error {
	stages := []struct {
		key    string
		source string
		kernel gpu.HostKernel
	}{
		{BuildPipeline, buildSource, buildKernel},
		{ResetPipeline, resetSource, resetKernel},
		{CullPipeline, cullSource, cullKernel},
		{HeatmapPipeline, heatmapSource, heatmapKernel},
	}
	registry := Registry()
	for _, s := range stages {
		cs, err := shader.NewShader(s.key, shader.ShaderTypeCompute, s.source, registry)
		if err != nil {
			return err
		}
		err = g.backend.RegisterPipeline(pipeline.NewPipeline(s.key, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(cs),
			pipeline.WithHostKernel(s.kernel),
		))
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *grid) Update(projection mgl32.Mat4, near, far float32, width, height int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return false, ErrNotInitialized
	}

	u := NewGPUClusterUniform(near, far, width, height)
	if !g.uniformUploaded || u != g.uniformData {
		if err := g.backend.WriteBuffer(g.uniform, 0, u.Marshal()); err != nil {
			return false, fmt.Errorf("cluster uniform: %w", err)
		}
		g.uniformData = u
		g.uniformUploaded = true
	}

	g.pending = projection
	g.stale = !g.built || common.MatricesDiffer(projection, g.cached, ProjectionEpsilon)
	return g.stale, nil
}

func (g *grid) Stale() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stale
}

func (g *grid) Build(camera bind_group_provider.BindGroupProvider) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	if err := g.backend.Dispatch(BuildPipeline, []bind_group_provider.BindGroupProvider{camera, g.provider}, clusterWorkgroups); err != nil {
		return fmt.Errorf("cluster build: %w", err)
	}
	g.cached = g.pending
	g.built = true
	g.stale = false
	g.logger.Debug("cluster bounds rebuilt",
		zap.Float32("near", g.uniformData.ZNear),
		zap.Float32("far", g.uniformData.ZFar),
	)
	return nil
}

func (g *grid) ResetCounter(camera bind_group_provider.BindGroupProvider) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	if err := g.backend.Dispatch(ResetPipeline, []bind_group_provider.BindGroupProvider{camera, g.provider}, [3]uint32{1, 1, 1}); err != nil {
		return fmt.Errorf("cluster counter reset: %w", err)
	}
	return nil
}

func (g *grid) Cull(camera, lights bind_group_provider.BindGroupProvider) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	if err := g.backend.Dispatch(CullPipeline, []bind_group_provider.BindGroupProvider{camera, g.provider, lights}, clusterWorkgroups); err != nil {
		return fmt.Errorf("cluster cull: %w", err)
	}
	return nil
}

func (g *grid) Heatmap() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	// group 0 is unused by the heat map
	groups := []bind_group_provider.BindGroupProvider{nil, g.provider}
	if err := g.backend.Dispatch(HeatmapPipeline, groups, [3]uint32{1, 1, 1}); err != nil {
		return fmt.Errorf("cluster heatmap: %w", err)
	}
	return nil
}

func (g *grid) Stages(camera, lights bind_group_provider.BindGroupProvider, lighting Stage) []Stage {
	return []Stage{
		{
			Name:        "ClusterBuild",
			Pipeline:    BuildPipeline,
			Reads:       []Resource{ResourceCamera},
			Writes:      []Resource{ResourceClusters},
			Conditional: true,
			Run:         func() error { return g.Build(camera) },
		},
		{
			Name:     "CounterReset",
			Pipeline: ResetPipeline,
			Writes:   []Resource{ResourceCounter},
			Run:      func() error { return g.ResetCounter(camera) },
		},
		{
			Name:     "LightCull",
			Pipeline: CullPipeline,
			Reads:    []Resource{ResourceCamera, ResourceClusters, ResourceCounter, ResourceLights},
			Writes:   []Resource{ResourceLightIndices, ResourceLightGrid},
			Run:      func() error { return g.Cull(camera, lights) },
		},
		lighting,
	}
}

func (g *grid) Provider() bind_group_provider.BindGroupProvider {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider
}

func (g *grid) LightingProvider() bind_group_provider.BindGroupProvider {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lighting
}

func (g *grid) BoundsBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bounds
}

func (g *grid) LightIndexBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.indices
}

func (g *grid) LightGridBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lightGrid
}

func (g *grid) CounterBuffer() gpu.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}

func (g *grid) HeatmapTexture() gpu.Texture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.heatmap
}

func (g *grid) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

// releaseLocked releases whatever has been created so far. Caller must hold the mutex.
func (g *grid) releaseLocked() {
	for _, p := range []bind_group_provider.BindGroupProvider{g.provider, g.lighting} {
		if p != nil {
			p.Release()
		}
	}
	for _, buf := range []gpu.Buffer{g.uniform, g.bounds, g.indices, g.lightGrid, g.counter} {
		if buf != nil {
			buf.Release()
		}
	}
	if g.heatmap != nil {
		g.heatmap.Release()
	}
	g.provider, g.lighting = nil, nil
	g.uniform, g.bounds, g.indices, g.lightGrid, g.counter = nil, nil, nil, nil, nil
	g.heatmap = nil
	g.initialized = false
	g.uniformUploaded = false
	g.built = false
	g.stale = false
}
