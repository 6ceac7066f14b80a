package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"go.uber.org/zap"
)

const (
	clusteredPipeline      = "clustered"
	clusteredDebugPipeline = "clustered_debug"
)

// ClusteredRenderer is the clustered forward+ strategy. It exposes its cluster grid for
// inspection.
type ClusteredRenderer interface {
	Renderer

	// Grid returns the light cluster grid.
	Grid() cluster.Grid
}

// clusteredRenderer splits the view frustum into a grid of clusters, assigns each light to the
// clusters its sphere touches with compute stages, and shades each fragment against the lights of
// its cluster only. Cluster bounds are rebuilt only when the projection (FOV, aspect, near/far)
// changes.
type clusteredRenderer struct {
	*renderPass

	grid      cluster.Grid
	lit       pipeline.Pipeline
	heat      pipeline.Pipeline
	validated bool
}

var _ ClusteredRenderer = &clusteredRenderer{}

func newClusteredRenderer(r *renderPass) *clusteredRenderer {
	return &clusteredRenderer{
		renderPass: r,
		grid:       cluster.NewGrid(cluster.WithLogger(r.logger)),
	}
}

func (c *clusteredRenderer) Grid() cluster.Grid {
	return c.grid
}

func (c *clusteredRenderer) onInitialize() error {
	if err := c.grid.Initialize(c.backend); err != nil {
		return err
	}
	var err error
	c.lit, err = newSurfacePipeline(clusteredPipeline, clusteredSource,
		pipeline.WithColorFormats(FrameBufferFormat),
		pipeline.WithDepthFormat(c.depthFormat),
		pipeline.WithState(gpu.StateDefault),
	)
	if err != nil {
		return err
	}
	c.heat, err = newSurfacePipeline(clusteredDebugPipeline, clusteredDebugSource,
		pipeline.WithColorFormats(FrameBufferFormat),
		pipeline.WithDepthFormat(c.depthFormat),
		pipeline.WithState(gpu.StateDefault),
	)
	if err != nil {
		return err
	}
	for _, p := range []pipeline.Pipeline{c.lit, c.heat} {
		if err := c.backend.RegisterPipeline(p); err != nil {
			return fmt.Errorf("register %q: %w", p.PipelineKey(), err)
		}
	}
	c.validated = false
	return nil
}

// onReset leaves the grid alone. The next Update refreshes the tile size and rebuilds the bounds
// only if the projection (FOV, aspect, near/far) changed.
func (c *clusteredRenderer) onReset(int, int) error {
	return nil
}

func (c *clusteredRenderer) onRender(float32) error {
	cam := c.sc.Camera()
	stale, err := c.grid.Update(c.projection, cam.Near(), cam.Far(), c.width, c.height)
	if err != nil {
		return err
	}

	lighting := cluster.Stage{
		Name:     "Lighting",
		Pipeline: clusteredPipeline,
		Reads: []cluster.Resource{
			cluster.ResourceCamera,
			cluster.ResourceLights,
			cluster.ResourceLightIndices,
			cluster.ResourceLightGrid,
		},
		Writes: []cluster.Resource{cluster.ResourceFrame},
		Run:    c.lightingPass,
	}
	stages := c.grid.Stages(c.viewGroup, c.lightsProvider, lighting)
	if !c.validated {
		if err := cluster.ValidateStages(stages, cluster.ResourceCamera, cluster.ResourceLights); err != nil {
			return err
		}
		c.validated = true
	}

	ran, err := cluster.RunStages(stages, stale)
	if err != nil {
		return err
	}
	if stale {
		c.logger.Debug("cluster stages ran", zap.Strings("stages", ran))
	}
	return nil
}

// lightingPass draws every surface with the clustered shader, or with the heat-map shader while
// the debug overlay is enabled.
func (c *clusteredRenderer) lightingPass() error {
	base := c.lit
	if c.debug {
		if err := c.grid.Heatmap(); err != nil {
			return err
		}
		base = c.heat
	}
	if err := c.backend.BeginPass(c.framePass("clustered", gpu.LoadClear, gpu.LoadClear, false)); err != nil {
		return err
	}
	_, err := c.drawSurfaces(base, gpu.StateDefault, allSurfaces, c.lightsProvider, c.grid.LightingProvider())
	return errors.Join(err, c.backend.EndPass())
}

func (c *clusteredRenderer) onShutdown() {
	c.grid.Shutdown()
	c.validated = false
}

func (c *clusteredRenderer) buffers() []TextureBuffer {
	return []TextureBuffer{
		{Name: "cluster heatmap", Texture: c.grid.HeatmapTexture()},
		{Name: "depth", Texture: c.depth},
	}
}
