package renderer

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
)

var (
	//go:embed assets/surface.wgsl
	surfaceSource string
	//go:embed assets/octahedral.wgsl
	octahedralSource string
	//go:embed assets/gbuffer.wgsl
	gbufferReadSource string

	//go:embed assets/forward.wgsl
	forwardSource string
	//go:embed assets/clustered.wgsl
	clusteredSource string
	//go:embed assets/clustered_debug.wgsl
	clusteredDebugSource string
	//go:embed assets/gbuffer_write.wgsl
	gbufferWriteSource string
	//go:embed assets/deferred_ambient.wgsl
	deferredAmbientSource string
	//go:embed assets/deferred_light.wgsl
	deferredLightSource string
)

// Registry returns every WGSL block the strategies include: the shading and cluster blocks, the
// shared surface vertex stage and the G-buffer helpers.
//
// Returns:
//   - shader.Registry: the merged registry
func Registry() shader.Registry {
	return shading.Registry().Merge(cluster.Registry()).Merge(shader.Registry{
		"camera_uniform": {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
		"vertex":         {Source: model.GPUVertexSource, Type: "VertexInput"},
		"mesh_transform": {Source: model.GPUMeshTransformSource, Type: "MeshTransform"},
		"tonemap_params": {Source: tonemap.GPUTonemapParamsSource, Type: "TonemapParams"},
		"surface":        {Source: surfaceSource},
		"octahedral":     {Source: octahedralSource},
		"gbuffer":        {Source: gbufferReadSource},
	})
}
