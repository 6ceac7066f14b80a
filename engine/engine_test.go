package engine

import (
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T, options ...config.ConfigBuilderOption) config.Config {
	t.Helper()
	cfg := config.New(
		config.WithWindowSize(160, 90),
		config.WithLightCount(4),
		config.WithMaxLights(16),
		config.WithScreenshotDir(t.TempDir()),
		config.WithLogFile(""),
	)
	cfg.Apply(options...)
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config, options ...backend.BackendBuilderOption) (Engine, backend.SoftwareBackend) {
	t.Helper()
	b := backend.NewSoftwareBackend(append([]backend.BackendBuilderOption{backend.WithParallelism(2)}, options...)...)
	e, err := NewEngine(b, WithConfig(cfg), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, e.Shutdown())
	})
	return e, b
}

func TestNewEngineUsesConfiguredPath(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))

	assert.Equal(t, renderer.RenderPathClustered, e.Path())
	assert.Equal(t, 4, e.LightCount())
	w, h := e.Renderer().Size()
	assert.Equal(t, []int{160, 90}, []int{w, h})
	assert.Same(t, e.Scene(), e.Renderer().Scene())
}

func TestNewEngineFallsBackWithoutCompute(t *testing.T) {
	caps := backend.NewSoftwareBackend().Capabilities()
	caps.Compute = false
	e, _ := newTestEngine(t, testConfig(t), backend.WithCapabilities(caps))

	assert.Equal(t, renderer.RenderPathDeferred, e.Path())
}

func TestPathKeysSwitchOnNextFrame(t *testing.T) {
	e, b := newTestEngine(t, testConfig(t))

	e.KeyDown(common.Key1)
	assert.Equal(t, renderer.RenderPathClustered, e.Path())

	require.NoError(t, e.RunFrames(1))
	assert.Equal(t, renderer.RenderPathForward, e.Path())
	assert.Positive(t, b.Stats().Draws["forward"])

	e.KeyDown(common.Key2)
	require.NoError(t, e.RunFrames(1))
	assert.Equal(t, renderer.RenderPathDeferred, e.Path())

	e.KeyDown(common.Key3)
	require.NoError(t, e.RunFrames(2))
	assert.Equal(t, renderer.RenderPathClustered, e.Path())
	assert.EqualValues(t, 4, e.Frame())
}

func TestSettingsSurvivePathSwitch(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))

	e.KeyDown(common.KeyM)
	e.KeyDown(common.KeyV)
	e.KeyDown(common.KeyT)
	r := e.Renderer()
	assert.False(t, r.MultipleScattering())
	assert.True(t, r.DebugVisualization())
	assert.Equal(t, tonemap.ModeACESLuminance, r.ToneMapping())

	e.SetRenderPath(renderer.RenderPathForward)
	require.NoError(t, e.RunFrames(1))
	r = e.Renderer()
	require.Equal(t, renderer.RenderPathForward, r.Path())
	assert.False(t, r.MultipleScattering())
	assert.True(t, r.DebugVisualization())
	assert.Equal(t, tonemap.ModeACESLuminance, r.ToneMapping())
}

func TestToneMappingKeyWraps(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t, config.WithToneMapping(tonemap.ModeACESLuminance)))

	e.KeyDown(common.KeyT)
	assert.Equal(t, tonemap.ModeNone, e.Renderer().ToneMapping())
}

func TestLightCountKeys(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))

	e.KeyDown(common.KeyEqual)
	assert.Equal(t, 8, e.LightCount())
	e.KeyDown(common.KeyEqual)
	e.KeyDown(common.KeyEqual)
	assert.Equal(t, 16, e.LightCount())

	e.KeyDown(common.KeyMinus)
	assert.Equal(t, 8, e.LightCount())

	assert.Equal(t, 0, e.SetLightCount(-3))
	e.KeyDown(common.KeyEqual)
	assert.Equal(t, 1, e.LightCount())
	require.NoError(t, e.RunFrames(1))
}

func TestMovingLightsKey(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))
	lights := e.Scene().Lights()
	before := lights.Lights()

	require.NoError(t, e.RunFrames(2))
	assert.Equal(t, before, lights.Lights())

	e.KeyDown(common.KeyL)
	assert.True(t, lights.Moving())
	require.NoError(t, e.RunFrames(2))
	assert.NotEqual(t, before, lights.Lights())
}

func TestResizeAppliesNextFrame(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))

	e.Resize(200, 100)
	w, _ := e.Renderer().Size()
	assert.Equal(t, 160, w)

	require.NoError(t, e.RunFrames(1))
	w, h := e.Renderer().Size()
	assert.Equal(t, []int{200, 100}, []int{w, h})
}

func TestScreenshotKeyWritesFile(t *testing.T) {
	cfg := testConfig(t)
	e, _ := newTestEngine(t, cfg)

	e.KeyDown(common.KeyF12)
	require.NoError(t, e.RunFrames(2))
	files, err := filepath.Glob(filepath.Join(cfg.Output.ScreenshotDir, "*.png"))
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, e.RunFrames(1))
	require.NoError(t, e.Shutdown())
	files, err = filepath.Glob(filepath.Join(cfg.Output.ScreenshotDir, "*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestShutdownStopsRendering(t *testing.T) {
	e, b := newTestEngine(t, testConfig(t))
	require.NoError(t, e.RunFrames(1))

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.ErrorIs(t, e.RenderFrame(0), ErrClosed)

	stats := b.Stats()
	assert.Zero(t, stats.LiveTextures)
	assert.Zero(t, stats.LiveBuffers)
}

func TestRunNeedsWindow(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))
	assert.Error(t, e.Run())
}
