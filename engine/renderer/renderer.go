// Package renderer draws one frame of the demo: the cloud pass into the half-resolution render
// target, then the glass composite pass onto the screen.
package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-glass/engine/clock"
	"github.com/Carmen-Shannon/oxy-glass/engine/params"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-glass/engine/scene"
	"github.com/Carmen-Shannon/oxy-glass/engine/viewport"
	"github.com/go-gl/mathgl/mgl32"
)

// ViewportPolicy selects the viewport of the cloud pass.
type ViewportPolicy int

const (
	// ViewportHalf matches the viewport to the half-resolution target.
	ViewportHalf ViewportPolicy = iota

	// ViewportFull uses the full drawable size while drawing into the half-resolution target.
	// The device keeps the full-size mapping, so only the lower-left quarter of the quad lands.
	ViewportFull
)

func (v ViewportPolicy) String() string {
	switch v {
	case ViewportHalf:
		return "half"
	case ViewportFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseViewportPolicy parses "half" or "full".
func ParseViewportPolicy(s string) (ViewportPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half":
		return ViewportHalf, nil
	case "full":
		return ViewportFull, nil
	default:
		return ViewportHalf, fmt.Errorf("unknown viewport policy %q", s)
	}
}

// TargetSource provides the render target the cloud pass draws into. viewport.Manager
// satisfies it.
type TargetSource interface {
	Target() *resource.RenderTarget
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	dev     device.Device
	res     *scene.Resources
	targets TargetSource

	policy     ViewportPolicy
	clearColor mgl32.Vec4
}

// Renderer issues the draw calls of one frame. It keeps no state between frames.
type Renderer interface {
	// RenderFrame acquires the surface, runs the cloud pass and the composite pass, then
	// presents. A pass whose program is unusable is skipped. The clock must already have
	// ticked for this frame.
	//
	// Parameters:
	//   - p: the shading parameters, read only
	//   - spec: the current drawable sizes
	//   - clk: the frame clock
	//
	// Returns:
	//   - error: an error if the surface cannot be acquired or presented or a draw fails
	RenderFrame(p *params.Params, spec viewport.RenderSpec, clk *clock.FrameClock) error

	// Policy returns the cloud pass viewport policy.
	Policy() ViewportPolicy
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing the given resources on dev.
//
// Parameters:
//   - dev: the device to draw with
//   - res: the loaded scene resources
//   - targets: the owner of the half-resolution render target
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(dev device.Device, res *scene.Resources, targets TargetSource, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:         &sync.Mutex{},
		dev:        dev,
		res:        res,
		targets:    targets,
		policy:     ViewportHalf,
		clearColor: mgl32.Vec4{0.02, 0.0, 0.05, 1.0},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *renderer) Policy() ViewportPolicy {
	return r.policy
}

func (r *renderer) RenderFrame(p *params.Params, spec viewport.RenderSpec, clk *clock.FrameClock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.dev.BeginFrame(); err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}

	var errs []error
	if err := r.cloudPass(spec, clk); err != nil {
		errs = append(errs, fmt.Errorf("cloud pass: %w", err))
	}
	if err := r.compositePass(p, spec); err != nil {
		errs = append(errs, fmt.Errorf("composite pass: %w", err))
	}
	r.dev.BindVertexArray(0)

	if err := r.dev.EndFrame(); err != nil {
		errs = append(errs, fmt.Errorf("end frame: %w", err))
	}
	return errors.Join(errs...)
}

func (r *renderer) cloudViewport(spec viewport.RenderSpec, target *resource.RenderTarget) (int, int) {
	if r.policy == ViewportFull {
		return spec.Width, spec.Height
	}
	return target.Width(), target.Height()
}

func (r *renderer) cloudPass(spec viewport.RenderSpec, clk *clock.FrameClock) error {
	prog := r.res.Cloud
	target := r.targets.Target()
	if !prog.Usable() || target == nil || target.Released() {
		return nil
	}

	w, h := r.cloudViewport(spec, target)
	resolution := mgl32.Vec2{float32(spec.HalfWidth), float32(spec.HalfHeight)}

	r.dev.BindFramebuffer(target.Framebuffer())
	r.dev.Viewport(0, 0, w, h)
	r.dev.SetClearColor(r.clearColor.X(), r.clearColor.Y(), r.clearColor.Z(), r.clearColor.W())
	r.dev.Clear(device.ClearColor | device.ClearDepth)

	r.dev.BindVertexArray(r.res.Quad.ID())
	r.dev.UseProgram(prog.ID())
	r.dev.Uniform1f(prog.Uniform("time"), clk.ElapsedSeconds())
	r.dev.Uniform2f(prog.Uniform("resolution"), resolution.X(), resolution.Y())
	r.dev.Uniform1i(prog.Uniform("frame"), int32(clk.Frame()))

	r.dev.BindTexture(0, r.res.Noise.ID())
	r.dev.Uniform1i(prog.Uniform("noiseTex"), 0)
	r.dev.BindTexture(1, r.res.BlueNoise.ID())
	r.dev.Uniform1i(prog.Uniform("blueNoiseTex"), 1)

	err := r.dev.DrawArrays(device.TriangleStrip, 0, r.res.Quad.Vertices())
	r.dev.UseProgram(0)
	return err
}

func (r *renderer) compositePass(p *params.Params, spec viewport.RenderSpec) error {
	prog := r.res.Composite
	target := r.targets.Target()

	r.dev.BindFramebuffer(device.Screen)
	r.dev.Viewport(0, 0, spec.Width, spec.Height)
	r.dev.SetClearColor(r.clearColor.X(), r.clearColor.Y(), r.clearColor.Z(), r.clearColor.W())
	r.dev.Clear(device.ClearColor | device.ClearDepth)
	if !prog.Usable() || target == nil || target.Released() {
		return nil
	}

	resolution := mgl32.Vec2{float32(spec.Width), float32(spec.Height)}

	r.dev.BindVertexArray(r.res.Quad.ID())
	r.dev.UseProgram(prog.ID())
	r.dev.BindTexture(0, target.Color().ID())
	r.dev.Uniform1i(prog.Uniform("tex"), 0)
	r.dev.Uniform2f(prog.Uniform("resolution"), resolution.X(), resolution.Y())
	for name, v := range p.Values() {
		r.dev.Uniform1f(prog.Uniform(name), v)
	}
	r.dev.Uniform3f(prog.Uniform("light"), p.Light.X(), p.Light.Y(), p.Light.Z())

	err := r.dev.DrawArrays(device.TriangleStrip, 0, r.res.Quad.Vertices())
	r.dev.UseProgram(0)
	r.dev.BindTexture(0, 0)
	return err
}
