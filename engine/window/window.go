// Package window opens the native window the renderer presents into and forwards its input events.
package window

import (
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Callbacks receives window events. Every callback runs on the thread that calls ProcessMessages;
// nil callbacks are skipped.
type Callbacks struct {
	// OnUpdate runs once per message loop iteration.
	OnUpdate func()
	// OnResize receives the new framebuffer size in pixels.
	OnResize func(width, height int)
	// OnScroll receives the wheel delta, positive when scrolling up.
	OnScroll func(delta float32)
	// OnKeyDown receives a common key code on press and repeat.
	OnKeyDown func(keyCode uint32)
	// OnKeyUp receives a common key code on release.
	OnKeyUp func(keyCode uint32)
	// OnDragStart fires when the right or middle mouse button is pressed.
	OnDragStart func(x, y int32)
	// OnDragEnd fires when that button is released.
	OnDragEnd func()
	// OnMouseMove receives the cursor position.
	OnMouseMove func(x, y int32)
	// OnClose fires once when the window starts closing.
	OnClose func()
}

// Window provides platform windowing and input event handling.
type Window interface {
	// SetCallbacks replaces every event callback.
	//
	// Parameters:
	//   - callbacks: the new callbacks
	SetCallbacks(callbacks Callbacks)

	// SetTitle changes the title bar text. It may be called from any goroutine; the change is
	// applied by the next ProcessMessages iteration.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns the platform surface descriptor the WebGPU backend presents to,
	// created by the wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil after Close
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// ProcessMessages polls events until the window closes. It must run on the main thread.
	ProcessMessages()

	// RequestClose asks the message loop to exit. Safe from any goroutine.
	RequestClose()

	// Close destroys the window and releases the platform library.
	//
	// Returns:
	//   - error: an error if the window was never opened
	Close() error

	// Size returns the framebuffer size in pixels.
	Size() (width, height int)
}

type engineWindow struct {
	mu *sync.Mutex

	title     string
	width     int
	height    int
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int

	callbacks    Callbacks
	pendingTitle *string
	closeOnce    sync.Once
	closing      bool

	platform *glfwWindow
}

var _ Window = &engineWindow{}

// NewWindow opens a window. It locks the calling goroutine to its OS thread, which must then run
// ProcessMessages.
//
// Parameters:
//   - options: functional options, see WithTitle and WithSize
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform layer fails to create it
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		title:     "Cluster",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 180,
		maxWidth:  7680,
		maxHeight: 4320,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = clampDimension(w.width, w.minWidth, w.maxWidth)
	w.height = clampDimension(w.height, w.minHeight, w.maxHeight)

	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

// clampDimension bounds v to [lo, hi]; non-positive bounds are treated as absent.
func clampDimension(v, lo, hi int) int {
	if lo > 0 {
		v = max(v, lo)
	}
	if hi > 0 {
		v = min(v, hi)
	}
	return v
}

func (w *engineWindow) SetCallbacks(callbacks Callbacks) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = callbacks
}

func (w *engineWindow) callbacksSnapshot() Callbacks {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.callbacks
}

func (w *engineWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingTitle = &title
}

func (w *engineWindow) takeTitle() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingTitle == nil {
		return "", false
	}
	t := *w.pendingTitle
	w.pendingTitle = nil
	w.title = t
	return t, true
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	w.mu.Lock()
	closing := w.closing
	w.mu.Unlock()
	return !closing && platformIsRunning(w)
}

func (w *engineWindow) RequestClose() {
	w.mu.Lock()
	w.closing = true
	w.mu.Unlock()
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if title, ok := w.takeTitle(); ok {
			platformSetTitle(w, title)
		}
		platformPollEvents()

		if cb := w.callbacksSnapshot(); cb.OnUpdate != nil {
			cb.OnUpdate()
		}
		runtime.Gosched()
	}
	w.notifyClose()
}

func (w *engineWindow) notifyClose() {
	w.closeOnce.Do(func() {
		if cb := w.callbacksSnapshot(); cb.OnClose != nil {
			cb.OnClose()
		}
	})
}

func (w *engineWindow) Close() error {
	w.RequestClose()
	w.notifyClose()
	return platformClose(w)
}

func (w *engineWindow) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *engineWindow) setSize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width = width
	w.height = height
}
