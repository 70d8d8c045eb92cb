// Package resource owns the GPU objects of the demo. Every object is created through the
// Factory and has an explicit destroy counterpart; nothing is released implicitly.
package resource

import (
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
)

// Program is a linked program together with the locations of the names it was created with.
// The location maps are filled once at creation and never change.
type Program struct {
	id         device.ProgramID
	uniforms   map[string]device.Location
	attributes map[string]device.Location
}

// UnusableProgram returns the sentinel used in place of a program that failed to build.
// Passes skip drawing with it.
func UnusableProgram() *Program {
	return &Program{
		uniforms:   map[string]device.Location{},
		attributes: map[string]device.Location{},
	}
}

// ID returns the device handle, zero for the unusable sentinel.
func (p *Program) ID() device.ProgramID {
	if p == nil {
		return 0
	}
	return p.id
}

// Usable reports whether the program linked.
func (p *Program) Usable() bool {
	return p != nil && p.id != 0
}

// Uniform returns the cached location of a uniform, or device.NoLocation.
func (p *Program) Uniform(name string) device.Location {
	if p == nil {
		return device.NoLocation
	}
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return device.NoLocation
}

// Attribute returns the cached location of a vertex attribute, or device.NoLocation.
func (p *Program) Attribute(name string) device.Location {
	if p == nil {
		return device.NoLocation
	}
	if loc, ok := p.attributes[name]; ok {
		return loc
	}
	return device.NoLocation
}

// Texture is a 2D RGBA8 texture owned by whoever created it.
type Texture struct {
	id     device.TextureID
	width  int
	height int
	levels int
}

func (t *Texture) ID() device.TextureID {
	if t == nil {
		return 0
	}
	return t.id
}

func (t *Texture) Width() int  { return t.width }
func (t *Texture) Height() int { return t.height }

// MipLevels returns the number of allocated mip levels.
func (t *Texture) MipLevels() int { return t.levels }

// RenderTarget is an offscreen draw destination: a color texture, a depth buffer and the
// framebuffer combining them. The three objects live and die together.
type RenderTarget struct {
	width       int
	height      int
	color       *Texture
	depth       device.DepthBufferID
	framebuffer device.FramebufferID
	released    bool
}

func (rt *RenderTarget) Width() int  { return rt.width }
func (rt *RenderTarget) Height() int { return rt.height }

// Color returns the color attachment, sampled by later passes.
func (rt *RenderTarget) Color() *Texture { return rt.color }

// Framebuffer returns the framebuffer to bind when drawing into the target.
func (rt *RenderTarget) Framebuffer() device.FramebufferID { return rt.framebuffer }

// Released reports whether DestroyRenderTarget has run for this target.
func (rt *RenderTarget) Released() bool { return rt.released }

// Buffer is a vertex buffer of float32 components.
type Buffer struct {
	id    device.BufferID
	count int
}

func (b *Buffer) ID() device.BufferID {
	if b == nil {
		return 0
	}
	return b.id
}

// Len returns the number of float32 components uploaded.
func (b *Buffer) Len() int { return b.count }

// VertexArray is a recorded vertex layout over one buffer.
type VertexArray struct {
	id       device.VertexArrayID
	vertices int
}

func (va *VertexArray) ID() device.VertexArrayID {
	if va == nil {
		return 0
	}
	return va.id
}

// Vertices returns the number of whole vertices the layout reads from its buffer.
func (va *VertexArray) Vertices() int { return va.vertices }
