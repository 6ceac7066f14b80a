package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
)

const forwardPipeline = "forward"

// forwardRenderer shades every fragment against every light in the scene, in one pass.
type forwardRenderer struct {
	*renderPass

	pipeline pipeline.Pipeline
}

var _ Renderer = &forwardRenderer{}

func (f *forwardRenderer) onInitialize() error {
	p, err := newForwardPipeline(forwardPipeline, f.depthFormat)
	if err != nil {
		return err
	}
	if err := f.backend.RegisterPipeline(p); err != nil {
		return err
	}
	f.pipeline = p
	return nil
}

// newForwardPipeline builds the lit surface pipeline that loops over every light. The deferred
// path reuses it for transparent surfaces.
func newForwardPipeline(key string, depth gpu.TextureFormat) (pipeline.Pipeline, error) {
	return newSurfacePipeline(key, forwardSource,
		pipeline.WithColorFormats(FrameBufferFormat),
		pipeline.WithDepthFormat(depth),
		pipeline.WithState(gpu.StateDefault),
	)
}

func (f *forwardRenderer) onReset(int, int) error {
	return nil
}

func (f *forwardRenderer) onRender(float32) error {
	if err := f.backend.BeginPass(f.framePass("forward", gpu.LoadClear, gpu.LoadClear, false)); err != nil {
		return err
	}
	_, err := f.drawSurfaces(f.pipeline, gpu.StateDefault, allSurfaces, f.lightsProvider)
	return errors.Join(err, f.backend.EndPass())
}

func (f *forwardRenderer) onShutdown() {
	f.pipeline = nil
}

func (f *forwardRenderer) buffers() []TextureBuffer {
	return []TextureBuffer{{Name: "depth", Texture: f.depth}}
}
