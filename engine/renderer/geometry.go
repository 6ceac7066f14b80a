package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"go.uber.org/zap"
)

// meshGeometry is the uploaded vertex and index data of one mesh.
type meshGeometry struct {
	vertices gpu.Buffer
	indices  gpu.Buffer
	provider bind_group_provider.BindGroupProvider
}

func (g *meshGeometry) release() {
	g.provider.Release()
	g.vertices.Release()
	g.indices.Release()
}

// uploadGeometry creates the vertex and index buffers of a vertex/index pair.
func uploadGeometry(b backend.Backend, label string, vertices []model.Vertex, indices []uint32) (*meshGeometry, error) {
	vb, err := b.CreateBuffer(gpu.BufferDescriptor{
		Label: label + " vertices",
		Size:  uint64(len(vertices) * model.GPUVertexSize),
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	ib, err := b.CreateBuffer(gpu.BufferDescriptor{
		Label: label + " indices",
		Size:  uint64(len(indices) * 4),
		Usage: gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, err
	}
	err = b.WriteBuffer(vb, 0, model.MarshalVertices(vertices))
	if err == nil {
		err = b.WriteBuffer(ib, 0, model.MarshalIndices(indices))
	}
	if err != nil {
		vb.Release()
		ib.Release()
		return nil, err
	}
	return &meshGeometry{
		vertices: vb,
		indices:  ib,
		provider: bind_group_provider.NewBindGroupProvider(label,
			bind_group_provider.WithGeometry(vb, ib, len(indices)),
		),
	}, nil
}

// uploadMeshes uploads meshes of the current scene that have no geometry yet and releases the
// geometry of meshes that left it. Caller must hold the mutex.
func (r *renderPass) uploadMeshes() error {
	meshes := r.sc.Meshes()
	current := make(map[model.Mesh]struct{}, len(meshes))
	for _, m := range meshes {
		current[m] = struct{}{}
		if _, ok := r.meshes[m]; ok {
			continue
		}
		if len(m.Vertices()) == 0 || m.IndexCount() == 0 {
			continue
		}
		g, err := uploadGeometry(r.backend, m.Name(), m.Vertices(), m.Indices())
		if err != nil {
			return fmt.Errorf("upload mesh %q: %w", m.Name(), err)
		}
		m.SetProvider(g.provider)
		r.meshes[m] = g
	}
	for m, g := range r.meshes {
		if _, ok := current[m]; !ok {
			m.SetProvider(nil)
			g.release()
			delete(r.meshes, m)
		}
	}
	return nil
}

// releaseMeshes releases every uploaded mesh. Caller must hold the mutex.
func (r *renderPass) releaseMeshes() {
	for m, g := range r.meshes {
		m.SetProvider(nil)
		g.release()
	}
	clear(r.meshes)
}

// surfaceFilter selects which materials a surface pass draws.
type surfaceFilter func(m material.Material) bool

func allSurfaces(material.Material) bool      { return true }
func opaqueSurfaces(m material.Material) bool { return !m.Blend() }
func blendedSurfaces(m material.Material) bool {
	return m.Blend()
}

// newSurfacePipeline builds a render pipeline that runs the shared surface vertex stage and the
// fragment entry point of source.
//
// Parameters:
//   - key: the pipeline key
//   - source: WGSL including the surface block and one fragment entry point
//   - options: further pipeline options such as target formats and state
//
// Returns:
//   - pipeline.Pipeline: the pipeline, not yet registered
//   - error: an error if either stage fails to pre-process
func newSurfacePipeline(key, source string, options ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	return newRenderPipeline(key, source, source, options...)
}

func newRenderPipeline(key, vertexSource, fragmentSource string, options ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	registry := Registry()
	vs, err := shader.NewShader(key+"_vs", shader.ShaderTypeVertex, vertexSource, registry)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShader(key+"_fs", shader.ShaderTypeFragment, fragmentSource, registry)
	if err != nil {
		return nil, err
	}
	options = append([]pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	}, options...)
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender, options...), nil
}

// variant returns the key of base with state, registering the variant on first use. Caller must
// hold the mutex.
func (r *renderPass) variant(base pipeline.Pipeline, state gpu.StateFlags) (string, error) {
	if state == base.State() {
		return base.PipelineKey(), nil
	}
	key := fmt.Sprintf("%s@%x", base.PipelineKey(), uint32(state))
	if r.backend.HasPipeline(key) {
		return key, nil
	}
	if err := r.backend.RegisterPipeline(base.WithState(key, state)); err != nil {
		return "", err
	}
	r.logger.Debug("pipeline variant registered", zap.String("key", key))
	return key, nil
}

// drawSurfaces draws the scene meshes accepted by filter inside the open pass. Each draw binds the
// view group, the mesh's material and extra, in that group order, and uses the variant of base
// whose state merges defaults with the material's culling and blending. Blended draws never write
// depth. Meshes outside the view frustum are skipped. Caller must hold the mutex.
//
// Parameters:
//   - base: the registered pipeline
//   - defaults: the pass state; its culling bits are replaced by the material's
//   - filter: selects the materials to draw
//   - extra: bind groups following the material group
//
// Returns:
//   - int: the number of meshes drawn
//   - error: the first bind or draw error
func (r *renderPass) drawSurfaces(base pipeline.Pipeline, defaults gpu.StateFlags, filter surfaceFilter, extra ...bind_group_provider.BindGroupProvider) (int, error) {
	drawn := 0
	for _, m := range r.sc.Meshes() {
		mat := r.sc.Material(m.MaterialIndex())
		geometry := m.Provider()
		if mat == nil || geometry == nil || !filter(mat) {
			continue
		}
		bounds := m.Bounds()
		if bounds.Valid() && !r.frustum.ContainsSphere(bounds.Center(), bounds.Diagonal()*0.5) {
			continue
		}

		flags, provider, err := r.materials.BindMaterial(mat)
		if err != nil {
			return drawn, fmt.Errorf("mesh %q: %w", m.Name(), err)
		}
		state := defaults.WithoutCull() | flags
		if state.Blend() != gpu.StateNone {
			state &^= gpu.StateDepthWrite
		}
		key, err := r.variant(base, state)
		if err != nil {
			return drawn, fmt.Errorf("mesh %q: %w", m.Name(), err)
		}

		groups := append([]bind_group_provider.BindGroupProvider{r.viewGroup, provider}, extra...)
		if err := r.backend.Draw(backend.DrawCall{
			Pipeline: key,
			Groups:   groups,
			Geometry: geometry,
		}); err != nil {
			return drawn, fmt.Errorf("mesh %q: %w", m.Name(), err)
		}
		drawn++
	}
	return drawn, nil
}

// framePass describes a pass over the frame buffer and depth target. Caller must hold the mutex.
func (r *renderPass) framePass(label string, color, depth gpu.LoadOp, depthReadOnly bool) gpu.PassDescriptor {
	return gpu.PassDescriptor{
		Label: label,
		Color: []gpu.ColorAttachment{{Texture: r.frame, Load: color, Clear: r.clearColor}},
		Depth: &gpu.DepthAttachment{Texture: r.depth, Load: depth, Clear: 1, ReadOnly: depthReadOnly},
	}
}
