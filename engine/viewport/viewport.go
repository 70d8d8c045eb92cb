// Package viewport tracks the drawable size and owns the half-resolution render target the
// cloud pass draws into.
package viewport

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
)

// RenderSpec holds the full and half drawable sizes with their aspect ratios.
type RenderSpec struct {
	Width      int
	Height     int
	Aspect     float32
	HalfWidth  int
	HalfHeight int
	HalfAspect float32
}

// NewRenderSpec derives a RenderSpec from a drawable size. Half dimensions are floored.
func NewRenderSpec(width, height int) RenderSpec {
	s := RenderSpec{
		Width:      width,
		Height:     height,
		HalfWidth:  width / 2,
		HalfHeight: height / 2,
	}
	if height > 0 {
		s.Aspect = float32(width) / float32(height)
	}
	if s.HalfHeight > 0 {
		s.HalfAspect = float32(s.HalfWidth) / float32(s.HalfHeight)
	}
	return s
}

type manager struct {
	factory resource.Factory
	spec    RenderSpec
	target  *resource.RenderTarget
}

// Manager recomputes the RenderSpec on resize and keeps exactly one live half-resolution
// render target. It is not safe for concurrent use.
type Manager interface {
	// Resize recomputes the RenderSpec and replaces the render target. Non-positive sizes are
	// ignored. The outgoing target is destroyed right after the new one is installed; on error
	// the previous spec and target stay in place.
	//
	// Parameters:
	//   - drawableWidth, drawableHeight: the surface size in pixels
	//
	// Returns:
	//   - error: the render target creation error, wrapping device.ErrIncompleteFramebuffer when
	//     the device rejects the attachments
	Resize(drawableWidth, drawableHeight int) error

	// Spec returns the current RenderSpec.
	Spec() RenderSpec

	// Target returns the current half-resolution target, or nil before the first Resize.
	Target() *resource.RenderTarget

	// Release destroys the current target.
	Release()
}

var _ Manager = &manager{}

// NewManager creates a Manager that allocates targets through factory.
//
// Parameters:
//   - factory: the resource factory of the device the targets live on
//
// Returns:
//   - Manager: the manager, with no target until the first Resize
func NewManager(factory resource.Factory) Manager {
	return &manager{factory: factory}
}

func (m *manager) Resize(drawableWidth, drawableHeight int) error {
	if drawableWidth <= 0 || drawableHeight <= 0 {
		return nil
	}

	spec := NewRenderSpec(drawableWidth, drawableHeight)
	target, err := m.factory.CreateRenderTarget(max(1, spec.HalfWidth), max(1, spec.HalfHeight))
	if err != nil {
		return fmt.Errorf("resize to %dx%d: %w", drawableWidth, drawableHeight, err)
	}

	old := m.target
	m.spec = spec
	m.target = target
	m.factory.DestroyRenderTarget(old)

	log.Printf("[Viewport] %dx%d, render target %dx%d", spec.Width, spec.Height, target.Width(), target.Height())
	return nil
}

func (m *manager) Spec() RenderSpec {
	return m.spec
}

func (m *manager) Target() *resource.RenderTarget {
	return m.target
}

func (m *manager) Release() {
	m.factory.DestroyRenderTarget(m.target)
	m.target = nil
}
