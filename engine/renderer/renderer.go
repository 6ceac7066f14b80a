package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/model"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const (
	// FrameBufferFormat is the HDR format every strategy renders into before the tone-mapping blit.
	FrameBufferFormat = gpu.FormatRGBA16F

	frameBufferLabel = "frame buffer"
	frameDepthLabel  = "frame depth"
	tonemapPipeline  = "tonemap"

	// emptySceneColor is the sRGB clear color used while no scene is loaded.
	emptySceneColor = 0x303030ff
)

// depthFormats lists the depth formats in order of preference. Formats with a stencil aspect come
// after the plain ones because they cannot be copied for the deferred depth read.
var depthFormats = []gpu.TextureFormat{gpu.FormatD16, gpu.FormatD32F, gpu.FormatD24S8}

// ErrNotInitialized is returned by Render before Initialize has succeeded.
var ErrNotInitialized = errors.New("renderer not initialized")

// ErrShutdown is returned when a renderer is used after Shutdown.
var ErrShutdown = errors.New("renderer shut down")

// TextureBuffer names an intermediate texture a strategy exposes for inspection.
type TextureBuffer struct {
	Name    string
	Texture gpu.Texture
}

// Renderer draws a scene through one lighting strategy into an HDR frame buffer, then tone maps
// the frame buffer onto the backend's surface.
//
// Every strategy follows the same lifecycle: Initialize once, Reset on every size change,
// Render once per frame and Shutdown once.
type Renderer interface {
	// Path returns the lighting strategy of this renderer.
	Path() RenderPath

	// Initialize creates the pipelines and long-lived resources. It is a no-op when already initialized.
	//
	// Returns:
	//   - error: an error if any resource or pipeline cannot be created
	Initialize() error

	// Reset resizes the frame buffer and every size-dependent resource. Calls with the current size
	// are no-ops. Reset may be called before Initialize.
	//
	// Parameters:
	//   - width: the target width in pixels
	//   - height: the target height in pixels
	Reset(width, height int)

	// Render draws one frame and presents it.
	//
	// Parameters:
	//   - dt: elapsed time since the previous frame, in seconds
	//
	// Returns:
	//   - error: an error if the frame could not be recorded
	Render(dt float32) error

	// Shutdown releases every resource the renderer owns. Further calls are no-ops.
	Shutdown()

	// Scene returns the rendered scene, or nil.
	Scene() scene.Scene

	// SetScene replaces the rendered scene. Geometry of the previous scene is released.
	//
	// Parameters:
	//   - s: the scene to render, or nil
	SetScene(s scene.Scene)

	// ToneMapping returns the active tone-mapping curve.
	ToneMapping() tonemap.Mode

	// SetToneMapping selects the tone-mapping curve applied by the blit.
	//
	// Parameters:
	//   - mode: the curve
	SetToneMapping(mode tonemap.Mode)

	// MultipleScattering reports whether the specular energy compensation is enabled.
	MultipleScattering() bool

	// SetMultipleScattering toggles the specular energy compensation.
	//
	// Parameters:
	//   - enabled: true to compensate
	SetMultipleScattering(enabled bool)

	// WhiteFurnace reports whether materials are replaced by the white furnace test material.
	WhiteFurnace() bool

	// SetWhiteFurnace toggles the white furnace test material.
	//
	// Parameters:
	//   - enabled: true to replace every material
	SetWhiteFurnace(enabled bool)

	// DebugVisualization reports whether the strategy's debug overlay is drawn.
	DebugVisualization() bool

	// SetDebugVisualization toggles the strategy's debug overlay. Strategies without an overlay
	// ignore it.
	//
	// Parameters:
	//   - enabled: true to draw the overlay
	SetDebugVisualization(enabled bool)

	// Buffers lists the strategy's intermediate textures, terminated by an entry with an empty name.
	Buffers() []TextureBuffer

	// FrameBuffer returns the HDR render target, nil until the first successful Reset.
	FrameBuffer() gpu.Texture

	// Size returns the current target size.
	Size() (int, int)

	// Projection returns the projection matrix used by the last frame.
	Projection() mgl32.Mat4

	// Time returns the accumulated frame time in seconds.
	Time() float64

	// Backend returns the backend the renderer draws with.
	Backend() backend.Backend
}

// strategy is implemented by each lighting path. The base renderPass calls the hooks with its
// mutex held.
type strategy interface {
	onInitialize() error
	onReset(width, height int) error
	onRender(dt float32) error
	onShutdown()
	buffers() []TextureBuffer
}

// renderPass holds everything the strategies share: the frame buffer, the camera and mesh groups,
// the material and light sub-shaders, the uploaded geometry and the tone-mapping blit.
type renderPass struct {
	mu     *sync.Mutex
	logger *zap.Logger

	path     RenderPath
	strategy strategy

	backend backend.Backend
	caps    gpu.Capabilities
	sc      scene.Scene

	materials shading.MaterialShader
	lights    shading.LightShader

	width, height int
	depthFormat   gpu.TextureFormat
	frame         gpu.Texture
	depth         gpu.Texture

	cameraBuffer    gpu.Buffer
	transformBuffer gpu.Buffer
	viewGroup       bind_group_provider.BindGroupProvider

	tonemapBuffer  gpu.Buffer
	blitGroup      bind_group_provider.BindGroupProvider
	blitParams     tonemap.GPUTonemapParams
	blitUploaded   bool
	toneMapping    tonemap.Mode
	clearColor     gpu.Color
	debug          bool
	multipleScatt  bool
	whiteFurnace   bool
	lightCapacity  int
	meshes         map[model.Mesh]*meshGeometry
	view           mgl32.Mat4
	projection     mgl32.Mat4
	frustum        common.Frustum
	lightsProvider bind_group_provider.BindGroupProvider

	time        float64
	initialized bool
	shutdown    bool
}

// New creates a renderer for path on b. The renderer is not usable until Initialize succeeds.
//
// Parameters:
//   - path: the lighting strategy
//   - b: the backend to draw with
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error wrapping gpu.ErrUnsupported when b cannot run path
func New(path RenderPath, b backend.Backend, options ...RendererBuilderOption) (Renderer, error) {
	if b == nil {
		return nil, errors.New("new renderer: nil backend")
	}
	if !Supported(path, b.Capabilities()) {
		return nil, fmt.Errorf("new renderer: %s path on %s backend: %w", path, b.Name(), gpu.ErrUnsupported)
	}

	r := &renderPass{
		mu:            &sync.Mutex{},
		logger:        zap.NewNop(),
		path:          path,
		backend:       b,
		caps:          b.Capabilities(),
		toneMapping:   tonemap.ModeACES,
		multipleScatt: true,
		meshes:        make(map[model.Mesh]*meshGeometry),
		view:          mgl32.Ident4(),
		projection:    mgl32.Ident4(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.With(zap.Stringer("path", path))
	r.depthFormat = r.caps.FirstSupported(depthFormats...)
	r.materials = shading.NewMaterialShader(
		shading.WithLogger(r.logger),
		shading.WithMultipleScattering(r.multipleScatt),
		shading.WithWhiteFurnace(r.whiteFurnace),
	)
	lightOptions := []shading.LightShaderBuilderOption{shading.WithLightLogger(r.logger)}
	if r.lightCapacity > 0 {
		lightOptions = append(lightOptions, shading.WithInitialCapacity(r.lightCapacity))
	}
	r.lights = shading.NewLightShader(lightOptions...)

	switch path {
	case RenderPathForward:
		r.strategy = &forwardRenderer{renderPass: r}
	case RenderPathDeferred:
		r.strategy = &deferredRenderer{renderPass: r}
	default:
		c := newClusteredRenderer(r)
		r.strategy = c
		return c, nil
	}
	return r, nil
}

func (r *renderPass) Path() RenderPath {
	return r.path
}

func (r *renderPass) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return ErrShutdown
	}
	if r.initialized {
		return nil
	}
	if err := r.initializeLocked(); err != nil {
		r.releaseLocked()
		return fmt.Errorf("initialize %s renderer: %w", r.path, err)
	}
	r.initialized = true
	r.logger.Info("renderer initialized", zap.String("backend", r.backend.Name()), zap.Stringer("depth", r.depthFormat))

	if r.frame != nil {
		if err := r.strategy.onReset(r.width, r.height); err != nil {
			r.logger.Warn("failed to create size-dependent resources", zap.Error(err))
		}
	}
	return nil
}

func (r *renderPass) initializeLocked() error {
	if err := r.materials.Initialize(r.backend); err != nil {
		return err
	}
	if err := r.materials.GenerateAlbedoLUT(); err != nil {
		return err
	}
	if err := r.lights.Initialize(r.backend); err != nil {
		return err
	}

	var err error
	r.cameraBuffer, err = r.backend.CreateBuffer(gpu.BufferDescriptor{
		Label: "camera",
		Size:  camera.GPUCameraUniformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	r.transformBuffer, err = r.backend.CreateBuffer(gpu.BufferDescriptor{
		Label: "mesh transform",
		Size:  model.GPUMeshTransformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	// meshes are baked into world space, so one identity transform serves every draw
	identity := model.NewGPUMeshTransform(mgl32.Ident4())
	if err := r.backend.WriteBuffer(r.transformBuffer, 0, identity.Marshal()); err != nil {
		return err
	}
	r.viewGroup = bind_group_provider.NewBindGroupProvider("view",
		bind_group_provider.WithBuffer(0, r.cameraBuffer),
		bind_group_provider.WithBuffer(1, r.transformBuffer),
	)

	r.tonemapBuffer, err = r.backend.CreateBuffer(gpu.BufferDescriptor{
		Label: "tonemap params",
		Size:  tonemap.GPUTonemapParamsSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	r.blitGroup = bind_group_provider.NewBindGroupProvider("tonemap",
		bind_group_provider.WithBuffer(0, r.tonemapBuffer),
	)
	if r.frame != nil {
		r.blitGroup.SetTexture(1, r.frame)
	}
	r.blitUploaded = false

	if err := r.registerBlit(); err != nil {
		return err
	}
	return r.strategy.onInitialize()
}

func (r *renderPass) registerBlit() error {
	registry := Registry()
	vs, err := shader.NewShader("tonemap_vs", shader.ShaderTypeVertex, tonemap.Source, registry)
	if err != nil {
		return err
	}
	fs, err := shader.NewShader("tonemap_fs", shader.ShaderTypeFragment, tonemap.Source, registry)
	if err != nil {
		return err
	}
	return r.backend.RegisterPipeline(pipeline.NewPipeline(tonemapPipeline, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithSurfaceTarget(),
		pipeline.WithState(gpu.StateWriteRGB|gpu.StateWriteAlpha|gpu.StateCullNone),
		pipeline.WithHostFragment(tonemap.HostFragment),
	))
}

func (r *renderPass) Reset(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return
	}
	if width <= 0 || height <= 0 {
		r.logger.Warn("ignoring reset to an empty size", zap.Int("width", width), zap.Int("height", height))
		return
	}
	if r.frame != nil && width == r.width && height == r.height {
		return
	}
	r.width, r.height = width, height

	if err := r.backend.ConfigureSurface(width, height); err != nil {
		r.logger.Warn("failed to configure surface", zap.Error(err))
	}
	r.releaseFrameBuffer()
	if err := r.createFrameBuffer(); err != nil {
		r.logger.Warn("failed to create framebuffer", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		r.releaseFrameBuffer()
		return
	}
	if r.blitGroup != nil {
		r.blitGroup.SetTexture(1, r.frame)
	}
	r.logger.Debug("frame buffer resized", zap.Int("width", width), zap.Int("height", height))

	if r.initialized {
		if err := r.strategy.onReset(width, height); err != nil {
			r.logger.Warn("failed to create size-dependent resources", zap.Error(err))
		}
	}
}

// createFrameBuffer allocates the HDR color target and the depth target. Caller must hold the mutex.
func (r *renderPass) createFrameBuffer() error {
	if r.depthFormat == gpu.FormatUndefined {
		return fmt.Errorf("no depth format: %w", gpu.ErrUnsupported)
	}
	var err error
	r.frame, err = r.backend.CreateTexture(gpu.TextureDescriptor{
		Label:  frameBufferLabel,
		Width:  r.width,
		Height: r.height,
		Format: FrameBufferFormat,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageSampled | gpu.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	r.depth, err = r.backend.CreateTexture(gpu.TextureDescriptor{
		Label:  frameDepthLabel,
		Width:  r.width,
		Height: r.height,
		Format: r.depthFormat,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageCopySrc,
	})
	return err
}

// releaseFrameBuffer releases the frame and depth targets. Caller must hold the mutex.
func (r *renderPass) releaseFrameBuffer() {
	if r.frame != nil {
		r.frame.Release()
		r.frame = nil
	}
	if r.depth != nil {
		r.depth.Release()
		r.depth = nil
	}
}

func (r *renderPass) Render(dt float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return ErrShutdown
	}
	if !r.initialized {
		return ErrNotInitialized
	}
	r.time += float64(dt)
	if r.frame == nil {
		// Reset already reported why the frame buffer is missing
		return nil
	}

	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	err := r.renderScene(dt)
	if err == nil {
		err = r.blit()
	}
	if endErr := r.backend.EndFrame(); endErr != nil {
		err = errors.Join(err, endErr)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return r.backend.Present()
}

// renderScene records the strategy's passes, or a plain clear when nothing is loaded. Caller must
// hold the mutex.
func (r *renderPass) renderScene(dt float32) error {
	if r.sc == nil || !r.sc.Loaded() {
		r.clearColor = linearColor(common.ColorFromRGBA8(emptySceneColor))
		if err := r.backend.BeginPass(gpu.PassDescriptor{
			Label: "clear",
			Color: []gpu.ColorAttachment{{Texture: r.frame, Load: gpu.LoadClear, Clear: r.clearColor}},
		}); err != nil {
			return err
		}
		return r.backend.EndPass()
	}

	r.clearColor = linearColor(r.sc.SkyColor())
	if err := r.uploadMeshes(); err != nil {
		return err
	}
	if err := r.setViewProjection(); err != nil {
		return err
	}
	provider, err := r.lights.BindLights(r.sc)
	if err != nil {
		return err
	}
	r.lightsProvider = provider
	return r.strategy.onRender(dt)
}

// setViewProjection uploads the camera uniform for the current size. Caller must hold the mutex.
func (r *renderPass) setViewProjection() error {
	cam := r.sc.Camera()
	aspect := float32(r.width) / float32(r.height)
	r.view = cam.ViewMatrix()
	r.projection = common.PerspectiveLH(cam.Fov(), aspect, cam.Near(), cam.Far(), r.caps.HomogeneousDepth)
	r.frustum = common.ExtractFrustum(r.projection.Mul4(r.view), r.caps.HomogeneousDepth)

	u := camera.NewGPUCameraUniform(cam, r.projection, r.width, r.height)
	if err := r.backend.WriteBuffer(r.cameraBuffer, 0, u.Marshal()); err != nil {
		return fmt.Errorf("camera uniform: %w", err)
	}
	return nil
}

// blit tone maps the frame buffer onto the surface. Caller must hold the mutex.
func (r *renderPass) blit() error {
	params := tonemap.GPUTonemapParams{Exposure: 1, Mode: uint32(r.toneMapping)}
	if r.sc != nil && r.sc.Loaded() {
		params.Exposure = r.sc.Camera().Exposure()
	}
	if !r.blitUploaded || params != r.blitParams {
		if err := r.backend.WriteBuffer(r.tonemapBuffer, 0, params.Marshal()); err != nil {
			return fmt.Errorf("tonemap params: %w", err)
		}
		r.blitParams = params
		r.blitUploaded = true
	}

	if err := r.backend.BeginPass(gpu.PassDescriptor{
		Label: "tonemap",
		Color: []gpu.ColorAttachment{{Load: gpu.LoadClear, Clear: gpu.Color{A: 1}}},
	}); err != nil {
		return err
	}
	err := r.backend.Draw(backend.DrawCall{
		Pipeline:    tonemapPipeline,
		Groups:      []bind_group_provider.BindGroupProvider{r.blitGroup},
		VertexCount: 3,
	})
	return errors.Join(err, r.backend.EndPass())
}

func linearColor(srgb mgl32.Vec4) gpu.Color {
	c := common.SRGBToLinear(srgb.Vec3())
	return gpu.Color{R: c[0], G: c[1], B: c[2], A: srgb[3]}
}

func (r *renderPass) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return
	}
	r.releaseLocked()
	r.releaseFrameBuffer()
	r.shutdown = true
	r.initialized = false
	r.logger.Info("renderer shut down")
}

// releaseLocked releases everything Initialize created. Caller must hold the mutex.
func (r *renderPass) releaseLocked() {
	r.strategy.onShutdown()
	r.releaseMeshes()
	r.materials.Shutdown()
	r.lights.Shutdown()
	r.lightsProvider = nil
	for _, p := range []bind_group_provider.BindGroupProvider{r.viewGroup, r.blitGroup} {
		if p != nil {
			p.Release()
		}
	}
	r.viewGroup, r.blitGroup = nil, nil
	for _, b := range []gpu.Buffer{r.cameraBuffer, r.transformBuffer, r.tonemapBuffer} {
		if b != nil {
			b.Release()
		}
	}
	r.cameraBuffer, r.transformBuffer, r.tonemapBuffer = nil, nil, nil
}

func (r *renderPass) Scene() scene.Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sc
}

func (r *renderPass) SetScene(s scene.Scene) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == r.sc {
		return
	}
	r.releaseMeshes()
	r.sc = s
}

func (r *renderPass) ToneMapping() tonemap.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.toneMapping
}

func (r *renderPass) SetToneMapping(mode tonemap.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toneMapping = mode
}

func (r *renderPass) MultipleScattering() bool {
	return r.materials.MultipleScattering()
}

func (r *renderPass) SetMultipleScattering(enabled bool) {
	r.materials.SetMultipleScattering(enabled)
}

func (r *renderPass) WhiteFurnace() bool {
	return r.materials.WhiteFurnace()
}

func (r *renderPass) SetWhiteFurnace(enabled bool) {
	r.materials.SetWhiteFurnace(enabled)
}

func (r *renderPass) DebugVisualization() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debug
}

func (r *renderPass) SetDebugVisualization(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = enabled
}

func (r *renderPass) Buffers() []TextureBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TextureBuffer
	if r.initialized {
		out = r.strategy.buffers()
	}
	return append(out, TextureBuffer{})
}

func (r *renderPass) FrameBuffer() gpu.Texture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *renderPass) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderPass) Projection() mgl32.Mat4 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projection
}

func (r *renderPass) Time() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.time
}

func (r *renderPass) Backend() backend.Backend {
	return r.backend
}
