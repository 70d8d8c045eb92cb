// Package engine runs the demo: it owns the lifecycle of the scene load, reacts to surface
// resizes and renders one frame per iteration of the surface message loop.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-glass/engine/clock"
	"github.com/Carmen-Shannon/oxy-glass/engine/params"
	"github.com/Carmen-Shannon/oxy-glass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-glass/engine/scene"
	"github.com/Carmen-Shannon/oxy-glass/engine/viewport"
)

// State is the lifecycle state of the engine.
type State int

const (
	// StateUninitialized is the state before the first usable surface size is known.
	StateUninitialized State = iota

	// StateLoading means the scene images are decoding; nothing is drawn.
	StateLoading

	// StateReady means the scene resources exist and every update renders a frame.
	StateReady

	// StateFailed is the standby state after a failed scene load. It is never left.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Surface is the drawable the engine renders to and whose message loop drives it.
// window.Window satisfies it.
type Surface interface {
	// Width returns the drawable width in pixels.
	Width() int

	// Height returns the drawable height in pixels.
	Height() int

	// SetResizeCallback sets the function called with the new drawable size in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetUpdateCallback sets the function called once per message loop iteration.
	SetUpdateCallback(callback func())

	// ProcessMessages runs the message loop until the surface stops running.
	ProcessMessages()

	// IsRunning returns true until the surface has been asked to close.
	IsRunning() bool

	// RequestClose makes ProcessMessages return after the current iteration.
	RequestClose()
}

// engine implements the Engine interface.
type engine struct {
	surface  Surface
	dev      device.Device
	factory  resource.Factory
	viewport viewport.Manager
	loader   scene.Loader

	params          *params.Params
	clock           *clock.FrameClock
	profiler        *profiler.Profiler
	rendererOptions []renderer.RendererBuilderOption
	onStateChange   func(from, to State)
	now             func() time.Time

	// renderFrameLimit is the minimum time between rendered frames; 0 = uncapped.
	renderFrameLimit time.Duration
	lastRender       time.Time

	mu        sync.Mutex
	state     State
	ctx       context.Context
	task      *scene.LoadTask
	resources *scene.Resources
	renderer  renderer.Renderer

	err          error
	lastFrameErr string
	quitOnce     sync.Once
	releaseOnce  sync.Once
}

// Engine is the main entry point of the demo.
type Engine interface {
	// Run sizes the render target for the current surface, starts the scene load and runs the
	// surface message loop until it closes. Every GPU object, the loader and the device are
	// released before Run returns.
	//
	// Parameters:
	//   - ctx: cancels the scene load
	//
	// Returns:
	//   - error: the error that made the engine quit, nil on a normal close
	Run(ctx context.Context) error

	// Quit asks the surface to close. Safe to call multiple times.
	Quit()

	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the lifecycle state
	State() State

	// Params returns the shading parameters the frames read. Input handlers write to them
	// between frames.
	//
	// Returns:
	//   - *params.Params: the live parameters
	Params() *params.Params
}

var _ Engine = &engine{}

// NewEngine creates an Engine drawing on surface with dev. The engine takes ownership of dev
// and loader and releases both when Run returns.
//
// Parameters:
//   - surface: the drawable whose message loop drives the engine
//   - dev: the device bound to the surface
//   - loader: loads the scene resources
//   - options: functional options for parameters, profiling, frame limit and renderer settings
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(surface Surface, dev device.Device, loader scene.Loader, options ...EngineBuilderOption) Engine {
	factory := resource.NewFactory(dev)
	e := &engine{
		surface:  surface,
		dev:      dev,
		factory:  factory,
		viewport: viewport.NewManager(factory),
		loader:   loader,
		params:   params.Default(),
		clock:    clock.New(),
		now:      time.Now,
		state:    StateUninitialized,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Run(ctx context.Context) error {
	e.start(ctx)
	defer e.release()

	if e.surface.IsRunning() {
		e.surface.ProcessMessages()
	}
	return e.Err()
}

// start wires the surface callbacks and applies the initial surface size.
func (e *engine) start(ctx context.Context) {
	e.ctx = ctx
	e.surface.SetResizeCallback(e.handleResize)
	e.surface.SetUpdateCallback(e.update)
	e.handleResize(e.surface.Width(), e.surface.Height())
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.surface.RequestClose()
	})
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) Params() *params.Params {
	return e.params
}

// Err returns the error that made the engine quit.
func (e *engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *engine) setState(to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()

	if from == to {
		return
	}
	log.Printf("[Engine] %s -> %s", from, to)
	if e.onStateChange != nil {
		e.onStateChange(from, to)
	}
}

// fail records err and quits.
func (e *engine) fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.Quit()
}

// handleResize reconfigures the surface and the render target. The first usable size starts
// the scene load; later resizes never reload.
func (e *engine) handleResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.dev.ConfigureSurface(width, height)
	if err := e.viewport.Resize(width, height); err != nil {
		log.Printf("[Engine] resize to %dx%d failed: %v", width, height, err)
		e.fail(fmt.Errorf("resize %dx%d: %w", width, height, err))
		return
	}

	if e.State() == StateUninitialized {
		e.task = e.loader.Load(e.ctx)
		e.setState(StateLoading)
	}
}

// update runs one iteration of the frame loop. A panic quits the engine instead of crashing
// the process.
func (e *engine) update() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] frame loop recovered from panic: %v", r)
			e.fail(fmt.Errorf("panic in frame loop: %v", r))
		}
	}()
	e.frame(e.now())
}

func (e *engine) frame(now time.Time) {
	switch e.State() {
	case StateLoading:
		if !e.poll() {
			return
		}
	case StateReady:
	default:
		return
	}

	if e.renderFrameLimit > 0 && !e.lastRender.IsZero() && now.Sub(e.lastRender) < e.renderFrameLimit {
		return
	}
	e.lastRender = now

	e.clock.Tick(now)
	if e.profiler != nil {
		e.profiler.Begin()
	}
	err := e.renderer.RenderFrame(e.params, e.viewport.Spec(), e.clock)
	if e.profiler != nil {
		e.profiler.End()
	}

	// The same failure repeats every frame; log it when it changes.
	if err == nil {
		e.lastFrameErr = ""
		return
	}
	if msg := err.Error(); msg != e.lastFrameErr {
		log.Printf("[Engine] frame %d: %v", e.clock.Frame(), err)
		e.lastFrameErr = msg
	}
}

// poll builds the scene once the load task has finished.
//
// Returns:
//   - bool: true if the engine became ready
func (e *engine) poll() bool {
	if !e.task.Finished() {
		return false
	}

	res, err := e.task.Build(e.factory)
	if err != nil {
		log.Printf("[Engine] scene load failed, standing by: %v", err)
		e.setState(StateFailed)
		return false
	}
	e.resources = res
	e.renderer = renderer.NewRenderer(e.dev, res, e.viewport, e.rendererOptions...)
	e.setState(StateReady)
	return true
}

// release frees everything the engine owns, in reverse order of creation.
func (e *engine) release() {
	e.releaseOnce.Do(func() {
		if e.task != nil {
			e.task.Cancel()
		}
		if e.resources != nil {
			e.resources.Release(e.factory)
			e.resources = nil
		}
		e.viewport.Release()
		e.loader.Release()
		e.dev.Release()
	})
}
