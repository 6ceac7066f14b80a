package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/Carmen-Shannon/oxy-cluster/engine/screenshot"
	"github.com/Carmen-Shannon/oxy-cluster/engine/window"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on an engine after Shutdown.
var ErrClosed = errors.New("engine: shut down")

// Engine drives one scene through the active renderer. A tick loop animates the scene and camera at
// a fixed rate while a render loop draws frames as fast as the frame limit allows. Input events are
// mapped to renderer switches; render path changes are deferred to the start of the next frame.
type Engine interface {
	// Renderer returns the active renderer.
	Renderer() renderer.Renderer

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Controller returns the camera controller fed by input events.
	Controller() camera.CameraController

	// Path returns the active render path.
	Path() renderer.RenderPath

	// SetRenderPath requests a strategy switch, applied before the next frame. Paths the backend
	// cannot run fall back like renderer.Select.
	//
	// Parameters:
	//   - path: the requested path
	SetRenderPath(path renderer.RenderPath)

	// LightCount returns the number of point lights.
	LightCount() int

	// SetLightCount regenerates the light list with n lights, clamped to [0, max lights].
	//
	// Parameters:
	//   - n: the requested count
	//
	// Returns:
	//   - int: the count actually applied
	SetLightCount(n int) int

	// SetMovingLights toggles the orbit animation of the lights.
	SetMovingLights(moving bool)

	// KeyDown maps a common key code to an action, then forwards it to the camera controller.
	KeyDown(keyCode uint32)

	// KeyUp forwards a key release to the camera controller.
	KeyUp(keyCode uint32)

	// Resize requests a framebuffer size, applied before the next frame.
	Resize(width, height int)

	// RequestScreenshot captures the next presented frame.
	RequestScreenshot()

	// Frame returns the number of frames rendered so far.
	Frame() uint64

	// Update advances the scene and the camera controller by dt seconds.
	Update(dt float32)

	// RenderFrame renders and presents one frame.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - error: a render or read-back error
	RenderFrame(dt float32) error

	// RunFrames updates and renders n frames with a fixed 1/60 s step, without a window.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error
	RunFrames(n int) error

	// Run starts the tick and render loops and runs the window's message loop on the calling
	// thread until the window closes or Quit is called.
	//
	// Returns:
	//   - error: the error that stopped the render loop, if any
	Run() error

	// Quit signals the loops to stop. Safe to call multiple times.
	Quit()

	// Shutdown stops the loops and releases the renderer, the screenshot writer and the backend.
	//
	// Returns:
	//   - error: the joined shutdown errors
	Shutdown() error
}

// settings are the renderer switches carried across path changes.
type settings struct {
	toneMapping        tonemap.Mode
	multipleScattering bool
	whiteFurnace       bool
	debug              bool
}

type engine struct {
	mu     *sync.Mutex
	logger *zap.Logger
	cfg    config.Config

	backend     backend.Backend
	win         window.Window
	sc          scene.Scene
	controller  camera.CameraController
	rend        renderer.Renderer
	screenshots screenshot.Screenshotter
	prof        profiler.Profiler
	profiling   bool
	sessionID   uuid.UUID

	settings    settings
	width       int
	height      int
	pendingPath *renderer.RenderPath
	pendingSize *[2]int
	shot        bool
	frame       uint64

	tickRate   time.Duration
	frameLimit time.Duration

	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
	runErr   atomic.Pointer[error]
	shutdown bool
}

var _ Engine = &engine{}

// NewEngine builds the scene, the camera controller and the renderer for the configured path.
//
// Parameters:
//   - b: the backend frames are rendered with; the engine owns it from here on
//   - options: functional options, see WithConfig, WithScene and WithWindow
//
// Returns:
//   - Engine: the engine, ready to render
//   - error: an error if the scene or the renderer cannot be created
func NewEngine(b backend.Backend, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:        &sync.Mutex{},
		logger:    zap.NewNop(),
		cfg:       config.Default(),
		backend:   b,
		sessionID: uuid.New(),
		tickRate:  time.Second / 60,
		quit:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	e.logger = e.logger.With(zap.Stringer("session", e.sessionID))
	e.settings = settings{
		toneMapping:        e.cfg.Renderer.ToneMapping,
		multipleScattering: e.cfg.Renderer.MultipleScattering,
		whiteFurnace:       e.cfg.Renderer.WhiteFurnace,
		debug:              e.cfg.Renderer.DebugVisualization,
	}
	e.profiling = e.profiling || e.cfg.Output.Profile
	e.width, e.height = e.cfg.Window.Width, e.cfg.Window.Height
	if e.win != nil {
		e.width, e.height = e.win.Size()
	}

	if e.sc == nil {
		if err := e.loadShowcase(); err != nil {
			return nil, err
		}
	}
	e.controller = camera.NewCameraController(e.sc.Camera())
	e.prof = profiler.NewProfiler(profiler.WithLogger(e.logger))
	e.screenshots = screenshot.NewScreenshotter(b,
		screenshot.WithLogger(e.logger),
		screenshot.WithDirectory(e.cfg.Output.ScreenshotDir),
		screenshot.WithFormat(e.cfg.Output.ScreenshotFormat),
		screenshot.WithSessionID(e.sessionID),
	)
	b.SetVSync(e.cfg.Renderer.VSync)

	if err := e.switchPath(e.cfg.Renderer.Path); err != nil {
		e.screenshots.Close()
		return nil, err
	}
	if e.win != nil {
		e.win.SetCallbacks(e.callbacks())
		e.updateTitle()
	}
	return e, nil
}

// loadShowcase builds the procedural scene with the configured lights.
func (e *engine) loadShowcase() error {
	opts := []light.PointLightListOption{
		light.WithSeed(e.cfg.Lights.Seed),
		light.WithLightPower(e.cfg.Lights.Power),
	}
	if e.cfg.Lights.Moving {
		opts = append(opts, light.WithMoving())
	}
	e.sc = scene.NewScene("showcase", scene.WithLights(light.NewPointLightList(opts...)))
	if err := scene.LoadShowcase(e.sc); err != nil {
		return fmt.Errorf("load showcase: %w", err)
	}
	e.sc.Lights().Resize(min(e.cfg.Lights.Count, e.cfg.Lights.Max), e.sc.Bounds())
	return nil
}

// switchPath replaces the active renderer with one for path, or the nearest supported fallback.
// Caller must hold the mutex or own the engine exclusively.
func (e *engine) switchPath(path renderer.RenderPath) error {
	selected, ok := renderer.Select(path, e.backend.Capabilities())
	if !ok {
		return fmt.Errorf("render path %s: %w", path, gpu.ErrUnsupported)
	}
	if selected != path {
		e.logger.Warn("render path not supported, falling back",
			zap.Stringer("requested", path),
			zap.Stringer("selected", selected))
	}
	if e.rend != nil && e.rend.Path() == selected {
		return nil
	}

	next, err := renderer.New(selected, e.backend,
		renderer.WithLogger(e.logger),
		renderer.WithScene(e.sc),
		renderer.WithToneMapping(e.settings.toneMapping),
		renderer.WithMultipleScattering(e.settings.multipleScattering),
		renderer.WithWhiteFurnace(e.settings.whiteFurnace),
		renderer.WithDebugVisualization(e.settings.debug),
		renderer.WithLightCapacity(e.cfg.Lights.Max),
	)
	if err != nil {
		return fmt.Errorf("create %s renderer: %w", selected, err)
	}
	next.Reset(e.width, e.height)
	if err := next.Initialize(); err != nil {
		next.Shutdown()
		return fmt.Errorf("initialize %s renderer: %w", selected, err)
	}
	// the old renderer keeps serving until its replacement is ready
	if e.rend != nil {
		e.rend.Shutdown()
	}
	e.rend = next
	e.logger.Info("render path active", zap.Stringer("path", selected))
	return nil
}

func (e *engine) Renderer() renderer.Renderer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rend
}

func (e *engine) Scene() scene.Scene {
	return e.sc
}

func (e *engine) Controller() camera.CameraController {
	return e.controller
}

func (e *engine) Path() renderer.RenderPath {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rend.Path()
}

func (e *engine) SetRenderPath(path renderer.RenderPath) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingPath = &path
}

func (e *engine) LightCount() int {
	return e.sc.Lights().Len()
}

func (e *engine) SetLightCount(n int) int {
	n = max(0, min(n, e.cfg.Lights.Max))
	e.sc.Lights().Resize(n, e.sc.Bounds())
	e.logger.Info("light count changed", zap.Int("lights", n))
	e.updateTitle()
	return n
}

func (e *engine) SetMovingLights(moving bool) {
	e.sc.Lights().SetMoving(moving)
}

func (e *engine) KeyDown(keyCode uint32) {
	switch keyCode {
	case common.Key1:
		e.SetRenderPath(renderer.RenderPathForward)
	case common.Key2:
		e.SetRenderPath(renderer.RenderPathDeferred)
	case common.Key3:
		e.SetRenderPath(renderer.RenderPathClustered)
	case common.KeyT:
		e.cycleToneMapping()
	case common.KeyM:
		e.toggle(&e.settings.multipleScattering, renderer.Renderer.SetMultipleScattering, "multiple scattering")
	case common.KeyV:
		e.toggle(&e.settings.debug, renderer.Renderer.SetDebugVisualization, "debug visualization")
	case common.KeyL:
		lights := e.sc.Lights()
		lights.SetMoving(!lights.Moving())
	case common.KeyEqual:
		e.SetLightCount(max(1, e.LightCount()*2))
	case common.KeyMinus:
		e.SetLightCount(e.LightCount() / 2)
	case common.KeyF12:
		e.RequestScreenshot()
	default:
		e.controller.KeyDown(keyCode)
	}
}

func (e *engine) KeyUp(keyCode uint32) {
	e.controller.KeyUp(keyCode)
}

func (e *engine) cycleToneMapping() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.toneMapping = (e.settings.toneMapping + 1) % tonemap.Mode(len(tonemap.Modes()))
	e.rend.SetToneMapping(e.settings.toneMapping)
	e.logger.Info("tone mapping changed", zap.Stringer("mode", e.settings.toneMapping))
}

func (e *engine) toggle(flag *bool, apply func(renderer.Renderer, bool), name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*flag = !*flag
	apply(e.rend, *flag)
	e.logger.Info("setting toggled", zap.String("setting", name), zap.Bool("enabled", *flag))
}

func (e *engine) Resize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingSize = &[2]int{width, height}
}

func (e *engine) RequestScreenshot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shot = true
}

func (e *engine) Frame() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *engine) Update(dt float32) {
	e.sc.Update(dt)
	e.controller.Update(dt)
}

func (e *engine) RenderFrame(dt float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return ErrClosed
	}

	if e.pendingPath != nil {
		path := *e.pendingPath
		e.pendingPath = nil
		if err := e.switchPath(path); err != nil {
			e.logger.Error("render path switch failed", zap.Stringer("path", path), zap.Error(err))
		}
		e.updateTitleLocked()
	}
	if e.pendingSize != nil {
		e.width, e.height = e.pendingSize[0], e.pendingSize[1]
		e.pendingSize = nil
		e.rend.Reset(e.width, e.height)
	}
	if e.shot {
		e.shot = false
		e.screenshots.Request(e.frame)
	}

	if err := e.rend.Render(dt); err != nil {
		return fmt.Errorf("frame %d: %w", e.frame, err)
	}
	if err := e.screenshots.Poll(e.frame); err != nil {
		e.logger.Warn("screenshot read-back failed", zap.Error(err))
	}
	e.frame++

	if e.profiling && e.prof.Tick(e.frameFields()...) {
		e.updateTitleLocked()
	}
	return nil
}

// frameFields summarizes backend work for the profiler.
func (e *engine) frameFields() []zap.Field {
	stats := e.backend.Stats()
	draws, dispatches := 0, 0
	for _, n := range stats.Draws {
		draws += n
	}
	for _, n := range stats.Dispatches {
		dispatches += n
	}
	return []zap.Field{
		zap.Stringer("path", e.rend.Path()),
		zap.Int("lights", e.sc.Lights().Len()),
		zap.Int("total_draws", draws),
		zap.Int("total_dispatches", dispatches),
		zap.Int("live_textures", stats.LiveTextures),
		zap.Int("live_buffers", stats.LiveBuffers),
	}
}

func (e *engine) RunFrames(n int) error {
	const step = float32(1.0 / 60)
	for range n {
		e.Update(step)
		if err := e.RenderFrame(step); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) updateTitle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateTitleLocked()
}

func (e *engine) updateTitleLocked() {
	if e.win == nil || e.rend == nil {
		return
	}
	title := fmt.Sprintf("%s - %s - %d lights", e.cfg.Window.Title, e.rend.Path(), e.sc.Lights().Len())
	if s, ok := e.prof.Last(); ok && e.profiling {
		title += fmt.Sprintf(" - %.0f fps", s.FPS)
	}
	e.win.SetTitle(title)
}

func (e *engine) callbacks() window.Callbacks {
	return window.Callbacks{
		OnResize:    e.Resize,
		OnScroll:    e.controller.Scroll,
		OnKeyDown:   e.KeyDown,
		OnKeyUp:     e.KeyUp,
		OnDragStart: e.controller.BeginRotate,
		OnDragEnd:   e.controller.EndRotate,
		OnMouseMove: e.controller.MouseMove,
		OnClose:     e.Quit,
	}
}

func (e *engine) Run() error {
	if e.win == nil {
		return errors.New("engine: Run needs a window, use RunFrames for headless rendering")
	}
	e.wg.Add(2)
	go e.tickLoop()
	go e.renderLoop()

	go func() {
		<-e.quit
		e.win.RequestClose()
	}()
	e.win.ProcessMessages()
	e.Quit()
	e.wg.Wait()

	if err := e.runErr.Load(); err != nil {
		return *err
	}
	return nil
}

// tickLoop updates the scene at the fixed tick rate.
func (e *engine) tickLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-e.quit:
			return
		case now := <-ticker.C:
			e.Update(float32(now.Sub(last).Seconds()))
			last = now
		}
	}
}

// renderLoop renders until quit. A panic or render error stops the engine.
func (e *engine) renderLoop() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("render loop panic: %v", r)
			e.logger.Error("render loop stopped", zap.Error(err))
			e.runErr.Store(&err)
			e.Quit()
		}
	}()

	last := time.Now()
	for {
		select {
		case <-e.quit:
			return
		default:
		}

		start := time.Now()
		dt := float32(start.Sub(last).Seconds())
		last = start
		if err := e.RenderFrame(dt); err != nil {
			e.logger.Error("render loop stopped", zap.Error(err))
			e.runErr.Store(&err)
			e.Quit()
			return
		}
		if e.frameLimit > 0 {
			if remaining := e.frameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

func (e *engine) Shutdown() error {
	e.Quit()
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil
	}
	e.shutdown = true

	var errs []error
	if err := e.screenshots.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.rend != nil {
		e.rend.Shutdown()
	}
	if err := e.backend.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	e.logger.Info("engine shut down", zap.Uint64("frames", e.frame))
	return errors.Join(errs...)
}
