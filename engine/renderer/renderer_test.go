package renderer

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 320
	testHeight = 180
	testNear   = 1
	testFar    = 51
)

func newTestRenderer(t *testing.T, path RenderPath, options ...RendererBuilderOption) (Renderer, backend.SoftwareBackend) {
	t.Helper()
	b := backend.NewSoftwareBackend(backend.WithParallelism(4))
	r, err := New(path, b, options...)
	require.NoError(t, err)
	r.Reset(testWidth, testHeight)
	require.NoError(t, r.Initialize())
	t.Cleanup(func() {
		r.Shutdown()
		_ = b.Shutdown()
	})
	return r, b
}

// testScene builds a floor and a glass panel in front of a camera at the origin looking down +Z.
func testScene(t *testing.T, lights ...light.PointLight) scene.Scene {
	t.Helper()
	list := light.NewPointLightList()
	for _, l := range lights {
		list.Add(l)
	}
	s := scene.NewScene("test",
		scene.WithLights(list),
		scene.WithSkyColor(mgl32.Vec4{0.2, 0.4, 0.8, 1}),
	)
	floor := model.NewMesh(
		model.WithName("floor"),
		model.WithGeometry(model.Plane(40, 60, 1)),
		model.WithMaterialIndex(0),
		model.WithTransform(mgl32.Translate3D(0, -2, 25)),
	)
	panel := model.NewMesh(
		model.WithName("panel"),
		model.WithGeometry(model.Cube(2)),
		model.WithMaterialIndex(1),
		model.WithTransform(mgl32.Translate3D(0, 0, 10)),
	)
	materials := []material.Material{
		material.NewMaterial(material.WithName("stone")),
		material.NewMaterial(material.WithName("glass"), material.WithBlend(), material.WithBaseColor(mgl32.Vec4{1, 1, 1, 0.3})),
	}
	cam := camera.NewCamera(camera.WithFov(60), camera.WithNear(testNear), camera.WithFar(testFar))
	require.NoError(t, s.Load([]model.Mesh{panel, floor}, materials, cam))
	return s
}

func drawsWithPrefix(stats backend.Stats, prefix string) int {
	n := 0
	for key, count := range stats.Draws {
		if strings.HasPrefix(key, prefix) {
			n += count
		}
	}
	return n
}

func TestParseRenderPath(t *testing.T) {
	for _, p := range RenderPaths() {
		got, err := ParseRenderPath(strings.ToUpper(p.String()))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseRenderPath("raytraced")
	assert.Error(t, err)
}

func TestSelectFallsBack(t *testing.T) {
	full := backend.NewSoftwareBackend().Capabilities()

	noCompute := full
	noCompute.Compute = false

	noMRT := noCompute
	noMRT.MaxColorAttachments = 1

	noHDR := full
	noHDR.RenderableFormats = []gpu.TextureFormat{gpu.FormatRGBA8, gpu.FormatD16}

	tests := []struct {
		name string
		caps gpu.Capabilities
		want RenderPath
		ok   bool
	}{
		{"everything", full, RenderPathClustered, true},
		{"no compute", noCompute, RenderPathDeferred, true},
		{"no multiple render targets", noMRT, RenderPathForward, true},
		{"no hdr target", noHDR, RenderPathForward, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(RenderPathClustered, tt.caps)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	got, ok := Select(RenderPathForward, full)
	assert.True(t, ok)
	assert.Equal(t, RenderPathForward, got, "a supported path is never upgraded")
}

func TestNewRejectsUnsupportedPath(t *testing.T) {
	caps := backend.NewSoftwareBackend().Capabilities()
	caps.Compute = false
	b := backend.NewSoftwareBackend(backend.WithCapabilities(caps))

	_, err := New(RenderPathClustered, b)
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	r, err := New(RenderPathDeferred, b)
	require.NoError(t, err)
	assert.Equal(t, RenderPathDeferred, r.Path())
}

func TestRenderBeforeInitialize(t *testing.T) {
	r, err := New(RenderPathForward, backend.NewSoftwareBackend())
	require.NoError(t, err)
	assert.ErrorIs(t, r.Render(0.016), ErrNotInitialized)
}

func TestResetIsIdempotent(t *testing.T) {
	for _, path := range RenderPaths() {
		t.Run(path.String(), func(t *testing.T) {
			r, b := newTestRenderer(t, path)
			r.Reset(testWidth, testHeight)
			r.Reset(testWidth, testHeight)

			stats := b.Stats()
			assert.Equal(t, 1, stats.TextureAllocations[frameBufferLabel])
			assert.Equal(t, 1, stats.TextureAllocations[frameDepthLabel])
			if path == RenderPathDeferred {
				assert.Equal(t, 1, stats.TextureAllocations["gbuffer normal"])
			}
			live := stats.LiveTextures

			r.Reset(2*testWidth, 2*testHeight)
			stats = b.Stats()
			assert.Equal(t, 2, stats.TextureAllocations[frameBufferLabel])
			if path == RenderPathDeferred {
				assert.Equal(t, 2, stats.TextureAllocations["gbuffer normal"])
			}
			assert.Equal(t, live, stats.LiveTextures, "resizing releases the previous targets")

			w, h := r.Size()
			assert.Equal(t, 2*testWidth, w)
			assert.Equal(t, 2*testHeight, h)
			assert.Equal(t, 2*testWidth, r.FrameBuffer().Width())
		})
	}
}

func TestResetIgnoresEmptySize(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathForward)
	r.Reset(0, 100)
	w, h := r.Size()
	assert.Equal(t, testWidth, w)
	assert.Equal(t, testHeight, h)
	assert.Equal(t, 1, b.Stats().TextureAllocations[frameBufferLabel])
}

func TestEmptySceneClearsToGray(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathForward, WithToneMapping(tonemap.ModeNone))
	require.NoError(t, r.Render(0.5))
	assert.InDelta(t, 0.5, r.Time(), 1e-9)

	want := common.SRGBToLinear(common.ColorFromRGBA8(emptySceneColor).Vec3())
	surface := b.SurfaceImage()
	require.NotNil(t, surface)
	for _, p := range [][2]int{{0, 0}, {testWidth / 2, testHeight / 2}, {testWidth - 1, testHeight - 1}} {
		got := surface.At(p[0], p[1])
		assert.InDelta(t, want[0], got[0], 1e-3)
		assert.InDelta(t, want[1], got[1], 1e-3)
		assert.InDelta(t, want[2], got[2], 1e-3)
	}
	assert.Equal(t, 1, b.Stats().Draws[tonemapPipeline])
}

func TestSkyColorReachesSurface(t *testing.T) {
	want := common.SRGBToLinear(mgl32.Vec3{0.2, 0.4, 0.8})
	for _, path := range RenderPaths() {
		t.Run(path.String(), func(t *testing.T) {
			r, b := newTestRenderer(t, path, WithToneMapping(tonemap.ModeNone))
			r.SetScene(testScene(t))
			require.NoError(t, r.Render(0.016))

			got := b.SurfaceImage().At(0, 0)
			assert.InDelta(t, want[0], got[0], 1e-3)
			assert.InDelta(t, want[1], got[1], 1e-3)
			assert.InDelta(t, want[2], got[2], 1e-3)
		})
	}
}

func TestToneMappingAppliesToSurface(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathForward, WithToneMapping(tonemap.ModeNone))
	require.NoError(t, r.Render(0.016))
	linear := b.SurfaceImage().At(0, 0)

	r.SetToneMapping(tonemap.ModeReinhard)
	assert.Equal(t, tonemap.ModeReinhard, r.ToneMapping())
	require.NoError(t, r.Render(0.016))
	mapped := b.SurfaceImage().At(0, 0)

	want := tonemap.Apply(tonemap.ModeReinhard, mgl32.Vec3{linear[0], linear[1], linear[2]}, 1)
	assert.InDelta(t, want[0], mapped[0], 1e-3)
	assert.Less(t, mapped[0], linear[0])
}

func TestForwardDrawsEverySurface(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathForward)
	r.SetScene(testScene(t))
	require.NoError(t, r.Render(0.016))

	stats := b.Stats()
	assert.Equal(t, 1, stats.Draws[forwardPipeline], "the opaque floor uses the default state")
	assert.Equal(t, 2, drawsWithPrefix(stats, forwardPipeline), "the glass panel uses a blended variant")
	assert.True(t, b.HasPipeline(forwardPipeline))
}

func TestDeferredPasses(t *testing.T) {
	lights := []light.PointLight{
		{Position: mgl32.Vec3{0, 0, 15}, Flux: mgl32.Vec3{50, 50, 50}, Radius: 5},
		{Position: mgl32.Vec3{3, 0, 20}, Flux: mgl32.Vec3{50, 50, 50}, Radius: 5},
	}
	r, b := newTestRenderer(t, RenderPathDeferred)
	r.SetScene(testScene(t, lights...))
	require.NoError(t, r.Render(0.016))

	stats := b.Stats()
	assert.Equal(t, 1, stats.Draws[gbufferPipeline], "only opaque surfaces reach the G-buffer")
	assert.Equal(t, 1, stats.Draws[deferredAmbientPipeline])
	assert.Equal(t, len(lights), stats.Draws[lightVolumePipeline], "one volume per light")
	assert.Equal(t, 1, drawsWithPrefix(stats, deferredTransparentPipeline), "blended surfaces are drawn forward")
}

func TestMeshesAreUploadedOnce(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathForward)
	s := testScene(t)
	r.SetScene(s)
	require.NoError(t, r.Render(0.016))
	live := b.Stats().LiveBuffers
	require.NoError(t, r.Render(0.016))
	assert.Equal(t, live, b.Stats().LiveBuffers)
	for _, m := range s.Meshes() {
		assert.NotNil(t, m.Provider(), m.Name())
	}

	r.SetScene(nil)
	for _, m := range s.Meshes() {
		assert.Nil(t, m.Provider(), "replacing the scene releases %s", m.Name())
	}
	assert.Equal(t, live-2*len(s.Meshes()), b.Stats().LiveBuffers)
}

func clusterContains(b backend.SoftwareBackend, g cluster.Grid, index int, li uint32) bool {
	offset, count := cluster.GridEntryAt(b.BufferBytes(g.LightGridBuffer()), index)
	indices := b.BufferBytes(g.LightIndexBuffer())
	for i := range int(count) {
		if binary.LittleEndian.Uint32(indices[(int(offset)+i)*4:]) == li {
			return true
		}
	}
	return false
}

func TestClusteredThreeLightsAlongViewAxis(t *testing.T) {
	const radius = 5
	lights := []light.PointLight{
		{Position: mgl32.Vec3{0, 0, 15}, Flux: mgl32.Vec3{50, 50, 50}, Radius: radius},
		{Position: mgl32.Vec3{0, 0, 20}, Flux: mgl32.Vec3{50, 50, 50}, Radius: radius},
		{Position: mgl32.Vec3{0, 0, 25}, Flux: mgl32.Vec3{50, 50, 50}, Radius: radius},
	}
	r, b := newTestRenderer(t, RenderPathClustered)
	r.SetScene(testScene(t, lights...))
	require.NoError(t, r.Render(0.016))

	cr, ok := r.(ClusteredRenderer)
	require.True(t, ok)
	g := cr.Grid()
	x, y := cluster.ClustersX/2, cluster.ClustersY/2

	for li, l := range lights {
		z := cluster.SliceForDepth(l.Position[2], testNear, testFar)
		assert.True(t, clusterContains(b, g, cluster.Index(x, y, z), uint32(li)), "light %d in its own slice", li)
	}
	grid := b.BufferBytes(g.LightGridBuffer())
	for z := range cluster.ClustersZ {
		if cluster.SliceDepth(z+1, testNear, testFar) >= 15-radius {
			break
		}
		_, count := cluster.GridEntryAt(grid, cluster.Index(x, y, z))
		assert.Zero(t, count, "slice %d ends before the nearest light", z)
	}

	require.NoError(t, r.Render(0.016))
	stats := b.Stats()
	assert.Equal(t, 1, stats.Dispatches[cluster.BuildPipeline], "bounds are cached while the projection is unchanged")
	assert.Equal(t, 2, stats.Dispatches[cluster.CullPipeline])
	assert.Equal(t, 2, stats.Draws[clusteredPipeline])

	r.Reset(2*testWidth, testHeight)
	require.NoError(t, r.Render(0.016))
	assert.Equal(t, 2, b.Stats().Dispatches[cluster.BuildPipeline], "a new aspect ratio rebuilds the bounds")
}

func TestClusteredDebugVisualization(t *testing.T) {
	r, b := newTestRenderer(t, RenderPathClustered, WithDebugVisualization(true))
	assert.True(t, r.DebugVisualization())
	r.SetScene(testScene(t, light.PointLight{Position: mgl32.Vec3{0, 0, 12}, Flux: mgl32.Vec3{10, 10, 10}, Radius: 4}))
	require.NoError(t, r.Render(0.016))

	stats := b.Stats()
	assert.Equal(t, 1, stats.Dispatches[cluster.HeatmapPipeline])
	assert.Equal(t, 2, drawsWithPrefix(stats, clusteredDebugPipeline))
	assert.Zero(t, drawsWithPrefix(stats, clusteredPipeline+"@"))

	r.SetDebugVisualization(false)
	require.NoError(t, r.Render(0.016))
	assert.Equal(t, 1, b.Stats().Dispatches[cluster.HeatmapPipeline])
}

func TestBuffersAreTerminated(t *testing.T) {
	for _, path := range RenderPaths() {
		t.Run(path.String(), func(t *testing.T) {
			r, _ := newTestRenderer(t, path)
			buffers := r.Buffers()
			require.NotEmpty(t, buffers)
			assert.Empty(t, buffers[len(buffers)-1].Name)

			names := make([]string, 0, len(buffers))
			for _, tb := range buffers[:len(buffers)-1] {
				assert.NotNil(t, tb.Texture, tb.Name)
				names = append(names, tb.Name)
			}
			switch path {
			case RenderPathDeferred:
				assert.Contains(t, names, "gbuffer normal")
			case RenderPathClustered:
				assert.Contains(t, names, "cluster heatmap")
			}
		})
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	for _, path := range RenderPaths() {
		t.Run(path.String(), func(t *testing.T) {
			b := backend.NewSoftwareBackend()
			r, err := New(path, b)
			require.NoError(t, err)
			r.Reset(testWidth, testHeight)
			require.NoError(t, r.Initialize())
			r.SetScene(testScene(t, light.PointLight{Position: mgl32.Vec3{0, 0, 12}, Flux: mgl32.Vec3{10, 10, 10}, Radius: 4}))
			require.NoError(t, r.Render(0.016))
			require.NotZero(t, b.Stats().LiveBuffers)

			r.Shutdown()
			r.Shutdown()
			stats := b.Stats()
			assert.Zero(t, stats.LiveBuffers)
			assert.Zero(t, stats.LiveTextures)
			assert.ErrorIs(t, r.Render(0.016), ErrShutdown)
			assert.ErrorIs(t, r.Initialize(), ErrShutdown)
		})
	}
}

func TestMaterialTogglesReachShaders(t *testing.T) {
	r, _ := newTestRenderer(t, RenderPathForward, WithMultipleScattering(false))
	assert.False(t, r.MultipleScattering())
	r.SetMultipleScattering(true)
	assert.True(t, r.MultipleScattering())

	assert.False(t, r.WhiteFurnace())
	r.SetWhiteFurnace(true)
	assert.True(t, r.WhiteFurnace())
}
