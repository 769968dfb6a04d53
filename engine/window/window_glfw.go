package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var errClosed = errors.New("window: window is closed")

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	window  *glfw.Window
	running bool
}

// newPlatformWindow creates the GLFW window without a client API context and registers its
// callbacks.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU drives the surface, so no OpenGL context is created.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	maxWidth, maxHeight := glfw.DontCare, glfw.DontCare
	if w.maxWidth > 0 && w.maxHeight > 0 {
		maxWidth, maxHeight = w.maxWidth, w.maxHeight
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, maxWidth, maxHeight)

	gw := &glfwWindow{window: win, running: true}
	w.internal = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.running = false
			win.SetShouldClose(true)
		}
	})

	// The framebuffer size is the pixel size the surface must be configured with.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})
	w.width, w.height = win.GetFramebufferSize()
	return nil
}

// platformGetSurfaceDescriptor creates the surface descriptor through the wgpuglfw bridge, which
// covers Windows, X11, Wayland and macOS.
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.internal == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.internal.window)
}

func platformIsRunningCheck(w *engineWindow) bool {
	if w.internal == nil {
		return false
	}
	return w.internal.running && !w.internal.window.ShouldClose()
}

func platformCloseWindow(w *engineWindow) error {
	if w.internal == nil {
		return errClosed
	}
	w.internal.running = false
	w.internal.window.Destroy()
	w.internal = nil
	glfw.Terminate()
	return nil
}

// platformProcessMessages polls pending events without blocking.
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}
