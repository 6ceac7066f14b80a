package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW state of an engineWindow.
type glfwWindow struct {
	window *glfw.Window
}

// newPlatformWindow creates the GLFW window without a client API and wires its callbacks.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %w", err)
	}
	// WebGPU owns the swap chain
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(limit(w.minWidth), limit(w.minHeight), limit(w.maxWidth), limit(w.maxHeight))
	w.platform = &glfwWindow{window: win}

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		cb := w.callbacksSnapshot()
		code := uint32(key)
		if code == common.KeyEsc && action == glfw.Press {
			w.RequestClose()
			return
		}
		switch action {
		case glfw.Press, glfw.Repeat:
			if cb.OnKeyDown != nil {
				cb.OnKeyDown(code)
			}
		case glfw.Release:
			if cb.OnKeyUp != nil {
				cb.OnKeyUp(code)
			}
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if cb := w.callbacksSnapshot(); cb.OnScroll != nil {
			cb.OnScroll(float32(yoff))
		}
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonMiddle && button != glfw.MouseButtonRight {
			return
		}
		cb := w.callbacksSnapshot()
		switch action {
		case glfw.Press:
			if cb.OnDragStart != nil {
				x, y := win.GetCursorPos()
				cb.OnDragStart(int32(x), int32(y))
			}
		case glfw.Release:
			if cb.OnDragEnd != nil {
				cb.OnDragEnd()
			}
		}
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if cb := w.callbacksSnapshot(); cb.OnMouseMove != nil {
			cb.OnMouseMove(int32(x), int32(y))
		}
	})

	// framebuffer size, not window size: they differ on high-DPI displays
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
		if cb := w.callbacksSnapshot(); cb.OnResize != nil {
			cb.OnResize(width, height)
		}
	})

	w.setSize(win.GetFramebufferSize())
	return nil
}

func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// platformSurfaceDescriptor uses the wgpuglfw bridge, which covers Windows, X11, Wayland and macOS.
func platformSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.platform.window)
}

func platformIsRunning(w *engineWindow) bool {
	return w.platform != nil && !w.platform.window.ShouldClose()
}

func platformSetTitle(w *engineWindow, title string) {
	if w.platform != nil {
		w.platform.window.SetTitle(title)
	}
}

func platformPollEvents() {
	glfw.PollEvents()
}

func platformClose(w *engineWindow) error {
	if w.platform == nil {
		return errors.New("window is not open")
	}
	w.platform.window.SetShouldClose(true)
	w.platform.window.Destroy()
	w.platform = nil
	glfw.Terminate()
	return nil
}
