package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// failingBackend refuses to create textures labelled label while fail is set.
type failingBackend struct {
	backend.Backend
	label string
	fail  bool
}

func (b *failingBackend) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if b.fail && desc.Label == b.label {
		return nil, errors.New("out of memory")
	}
	return b.Backend.CreateTexture(desc)
}

func TestFramebufferFailureWarnsAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sw := backend.NewSoftwareBackend(backend.WithParallelism(2))
	b := &failingBackend{Backend: sw, label: frameBufferLabel, fail: true}
	r, err := New(RenderPathForward, b, WithLogger(zap.New(core)))
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Shutdown()
		_ = sw.Shutdown()
	})

	r.Reset(testWidth, testHeight)
	require.NoError(t, r.Initialize())
	assert.Equal(t, 1, logs.FilterMessage("failed to create framebuffer").Len())

	require.NoError(t, r.Render(0.5))
	assert.InDelta(t, 0.5, r.Time(), 1e-9)
	assert.Zero(t, sw.Stats().Draws["forward"])

	b.fail = false
	r.Reset(testWidth/2, testHeight/2)
	require.NoError(t, r.Render(0.5))
	assert.Equal(t, 1, logs.FilterMessage("failed to create framebuffer").Len())
}

func TestGBufferFailureWarnsAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sw := backend.NewSoftwareBackend(backend.WithParallelism(2))
	b := &failingBackend{Backend: sw, label: "gbuffer normal", fail: true}
	r, err := New(RenderPathDeferred, b, WithLogger(zap.New(core)), WithToneMapping(tonemap.ModeNone))
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Shutdown()
		_ = sw.Shutdown()
	})

	r.Reset(testWidth, testHeight)
	require.NoError(t, r.Initialize())
	assert.Equal(t, 1, logs.FilterMessage("failed to create size-dependent resources").Len())

	r.SetScene(testScene(t, light.PointLight{Position: mgl32.Vec3{0, 0, 15}, Flux: mgl32.Vec3{50, 50, 50}, Radius: 5}))
	require.NoError(t, r.Render(0.016))
	require.NoError(t, r.Render(0.016))

	stats := sw.Stats()
	assert.Zero(t, stats.Draws[gbufferPipeline])
	assert.Equal(t, 2, stats.Draws[tonemapPipeline], "the frame is still blitted")
	want := common.SRGBToLinear(mgl32.Vec3{0.2, 0.4, 0.8})
	got := sw.SurfaceImage().At(testWidth/2, testHeight/2)
	assert.InDelta(t, want[0], got[0], 1e-3)
	assert.InDelta(t, want[2], got[2], 1e-3)

	buffers := r.Buffers()
	for _, tb := range buffers[:len(buffers)-1] {
		assert.NotNil(t, tb.Texture, tb.Name)
	}

	b.fail = false
	r.Reset(testWidth/2, testHeight/2)
	require.NoError(t, r.Render(0.016))
	assert.Equal(t, 1, sw.Stats().Draws[gbufferPipeline])
}
