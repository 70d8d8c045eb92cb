package renderer

import "github.com/go-gl/mathgl/mgl32"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithViewportPolicy sets the viewport used by the cloud pass. Defaults to ViewportHalf.
//
// Parameters:
//   - policy: the viewport policy
//
// Returns:
//   - RendererBuilderOption: a function that applies the viewport policy option to a renderer
func WithViewportPolicy(policy ViewportPolicy) RendererBuilderOption {
	return func(r *renderer) {
		r.policy = policy
	}
}

// WithClearColor sets the color the render target and the screen are cleared to.
//
// Parameters:
//   - color: the RGBA clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(color mgl32.Vec4) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = color
	}
}
