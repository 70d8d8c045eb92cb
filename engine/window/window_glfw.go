package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type glfwPlatform struct {
	win *glfw.Window
}

var _ platform = &glfwPlatform{}

// openGLFW creates the native window for w and routes its callbacks back into w. GLFW
// must be driven from the main OS thread, so the caller stays locked to its thread.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html
func openGLFW(w *engineWindow) (*glfwPlatform, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize GLFW: %w", err)
	}

	// No OpenGL context; the surface belongs to WebGPU.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.sizeLimits())

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		w.key(uint32(key), action != glfw.Release)
	})
	// The framebuffer size is in pixels and differs from the window size on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})
	w.width, w.height = win.GetFramebufferSize()

	return &glfwPlatform{win: win}, nil
}

// surfaceDescriptor goes through wgpuglfw, which knows the per-platform handles.
func (p *glfwPlatform) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(p.win)
}

func (p *glfwPlatform) setTitle(title string) {
	p.win.SetTitle(title)
}

func (p *glfwPlatform) shouldClose() bool {
	return p.win.ShouldClose()
}

func (p *glfwPlatform) requestClose() {
	p.win.SetShouldClose(true)
}

func (p *glfwPlatform) pollEvents() {
	glfw.PollEvents()
}

func (p *glfwPlatform) destroy() {
	p.win.Destroy()
	glfw.Terminate()
}
