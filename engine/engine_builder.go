package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-glass/engine/params"
	"github.com/Carmen-Shannon/oxy-glass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output with a default profiler.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		if !enabled {
			e.profiler = nil
			return
		}
		if e.profiler == nil {
			e.profiler = profiler.NewProfiler()
		}
	}
}

// WithProfiler sets the profiler measuring rendered frames.
//
// Parameters:
//   - p: the profiler, or nil to disable profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithParams sets the shading parameters instead of the defaults.
//
// Parameters:
//   - p: the parameters; the engine keeps the pointer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithParams(p *params.Params) EngineBuilderOption {
	return func(e *engine) {
		if p != nil {
			e.params = p
		}
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithRendererOptions passes options to the renderer created once the scene is ready.
//
// Parameters:
//   - options: renderer options such as the cloud viewport policy
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithStateCallback sets a function called on every lifecycle transition.
func WithStateCallback(callback func(from, to State)) EngineBuilderOption {
	return func(e *engine) {
		e.onStateChange = callback
	}
}

// WithTimeSource replaces time.Now as the source of frame timestamps.
func WithTimeSource(now func() time.Time) EngineBuilderOption {
	return func(e *engine) {
		e.now = now
	}
}
