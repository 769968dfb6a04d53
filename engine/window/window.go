// Package window hosts the GLFW window that a presentation surface is created for.
package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a native window with a WebGPU-compatible surface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SurfaceDescriptor returns the platform surface descriptor of the window, for use with
	// backend.WithSurfaceDescriptor.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window and terminates GLFW.
	//
	// Returns:
	//   - error: an error if the window is already closed
	Close() error

	// ProcessMessages polls events until the window is closed, calling the update callback after
	// each poll.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

type engineWindow struct {
	title     string
	width     int
	height    int
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int

	// internal holds the GLFW state, nil once closed.
	internal *glfwWindow

	onUpdate func()
	onResize func(width, height int)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. The calling goroutine is locked to its OS thread, which
// GLFW requires for every later call.
//
// Parameters:
//   - options: functional options such as WithTitle and WithSize
//
// Returns:
//   - Window: the created window
//   - error: an error if GLFW could not create the window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-gpu",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: failed to create platform window: %w", err)
	}
	common.Logger().Info("[window] created", "title", w.title, "width", w.width, "height", w.height)
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// resized records a framebuffer size change. Minimized windows report a zero size, which is not
// forwarded since a surface cannot be configured with it.
func (w *engineWindow) resized(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
