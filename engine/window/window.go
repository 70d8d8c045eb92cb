// Package window opens the native window the demo presents into and forwards its events.
package window

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a native window with a surface WebGPU can present to. Every method must be
// called from the goroutine that created the window.
type Window interface {
	// SetUpdateCallback sets the function run once per message loop iteration, after events
	// are dispatched.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function receiving the framebuffer size in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key presses and repeats. Escape never reaches
	// it; the window closes instead.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common.Key*)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key releases.
	SetKeyUpCallback(callback func(keyCode uint32))

	SetTitle(title string)
	Title() string

	// SurfaceDescriptor returns the platform surface descriptor for wgpu.Instance.CreateSurface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is open and no close was requested.
	IsRunning() bool

	// RequestClose makes ProcessMessages return after the current iteration. The window
	// stays valid until Close.
	RequestClose()

	// Close destroys the native window. Calling it again is a no-op.
	//
	// Returns:
	//   - error: always nil for the GLFW backend
	Close() error

	// ProcessMessages polls events and runs the update callback until the window is closed
	// or a close is requested.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// platform is the native half of a window.
type platform interface {
	surfaceDescriptor() *wgpu.SurfaceDescriptor
	setTitle(title string)
	shouldClose() bool
	requestClose()
	pollEvents()
	destroy()
}

type engineWindow struct {
	title string

	// width and height are the framebuffer size, updated on resize.
	width, height int

	minWidth, minHeight int
	maxWidth, maxHeight int

	native platform
	closed bool

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow opens a GLFW window and locks the calling goroutine to its OS thread.
//
// Parameters:
//   - options: functional options applied over the defaults
//
// Returns:
//   - Window: the open window
//   - error: error if GLFW cannot be initialized or the window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	native, err := openGLFW(w)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	w.native = native
	return w, nil
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "oxy-glass",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 240,
		maxWidth:  3840,
		maxHeight: 2160,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// resized is called by the platform with the new framebuffer size.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

// key is called by the platform for every key event. Repeats count as presses.
func (w *engineWindow) key(code uint32, pressed bool) {
	switch {
	case code == common.KeyEsc:
		if pressed {
			w.RequestClose()
		}
	case pressed && w.onKeyDown != nil:
		w.onKeyDown(code)
	case !pressed && w.onKeyUp != nil:
		w.onKeyUp(code)
	}
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if !w.closed {
		w.native.setTitle(title)
	}
}

func (w *engineWindow) Title() string {
	return w.title
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.closed {
		return nil
	}
	return w.native.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return !w.closed && !w.native.shouldClose()
}

func (w *engineWindow) RequestClose() {
	if !w.closed {
		w.native.requestClose()
	}
}

func (w *engineWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.native.destroy()
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.native.pollEvents()
		if !w.IsRunning() {
			return
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
