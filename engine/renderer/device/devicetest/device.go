// Package devicetest provides an in-memory device.Device that records every call, counts live
// objects per kind and snapshots the bound state of each draw.
package devicetest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
)

// Kind names an object category tracked by the live counter.
type Kind string

const (
	KindShader      Kind = "shader"
	KindProgram     Kind = "program"
	KindTexture     Kind = "texture"
	KindDepthBuffer Kind = "depth"
	KindFramebuffer Kind = "framebuffer"
	KindBuffer      Kind = "buffer"
	KindVertexArray Kind = "vertexarray"
)

// Draw is the state captured when DrawArrays is called.
type Draw struct {
	Framebuffer device.FramebufferID
	Viewport    [4]int
	Program     device.ProgramID
	VertexArray device.VertexArrayID
	Mode        device.Primitive
	First       int
	Count       int

	// Textures maps texture units to the texture bound on them at draw time.
	Textures map[int]device.TextureID

	// Uniforms holds the program's uniform values by name: float32, int32, [2]float32 or [3]float32.
	Uniforms map[string]any
}

type program struct {
	vertex, fragment device.ShaderID
	locations        map[string]device.Location
	names            []string
	values           map[string]any
}

type framebuffer struct {
	color device.TextureID
	depth device.DepthBufferID
}

// Device is a recording fake. The zero value is not usable; create one with New.
type Device struct {
	mu sync.Mutex

	next   uint32
	live   map[Kind]map[uint32]bool
	shader map[device.ShaderID]device.ShaderStage

	programs     map[device.ProgramID]*program
	textures     map[device.TextureID]device.TextureDescriptor
	framebuffers map[device.FramebufferID]framebuffer
	uploads      map[device.TextureID][]int

	// FailCompile makes CreateShader fail for the stage whose source contains the marker.
	FailCompile string

	// FailLink makes CreateProgram fail when either stage source contains the marker.
	FailLink string

	// FailFramebuffer makes CreateFramebuffer report an incomplete framebuffer.
	FailFramebuffer bool

	// Inactive lists uniform and attribute names every program reports as optimized out.
	Inactive map[string]bool

	sources map[device.ShaderID]string

	boundFramebuffer device.FramebufferID
	viewport         [4]int
	current          device.ProgramID
	vertexArray      device.VertexArrayID
	units            map[int]device.TextureID
	inFrame          bool

	// Calls is the ordered call log, one entry per method invocation.
	Calls []string

	// Draws lists every successful DrawArrays in call order.
	Draws []Draw

	// Frames counts completed BeginFrame/EndFrame pairs.
	Frames int

	// SurfaceSize is the size passed to the last ConfigureSurface.
	SurfaceSize [2]int
}

var _ device.Device = &Device{}

// New returns an empty recording device.
func New() *Device {
	return &Device{
		live:         make(map[Kind]map[uint32]bool),
		shader:       make(map[device.ShaderID]device.ShaderStage),
		sources:      make(map[device.ShaderID]string),
		programs:     make(map[device.ProgramID]*program),
		textures:     make(map[device.TextureID]device.TextureDescriptor),
		framebuffers: make(map[device.FramebufferID]framebuffer),
		uploads:      make(map[device.TextureID][]int),
		units:        make(map[int]device.TextureID),
		Inactive:     make(map[string]bool),
	}
}

// Live returns the number of live objects of the given kind.
func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live[kind])
}

// LiveTotal returns the number of live objects across all kinds.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, objs := range d.live {
		n += len(objs)
	}
	return n
}

// IsLive reports whether the handle of the given kind is still alive.
func (d *Device) IsLive(kind Kind, id uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind][id]
}

// Texture returns the descriptor a texture was created with.
func (d *Device) Texture(id device.TextureID) (device.TextureDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.textures[id]
	return desc, ok
}

// Uploads returns the mip levels uploaded to a texture, in upload order.
func (d *Device) Uploads(id device.TextureID) []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.uploads[id]...)
}

// FramebufferColor returns the color attachment of a framebuffer.
func (d *Device) FramebufferColor(id device.FramebufferID) device.TextureID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framebuffers[id].color
}

// ResetLog clears the call log and the recorded draws.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = nil
	d.Draws = nil
}

func (d *Device) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Device) alloc(kind Kind) uint32 {
	d.next++
	if d.live[kind] == nil {
		d.live[kind] = make(map[uint32]bool)
	}
	d.live[kind][d.next] = true
	return d.next
}

func (d *Device) free(kind Kind, id uint32) {
	if id == 0 {
		return
	}
	delete(d.live[kind], id)
}

func (d *Device) CreateShader(stage device.ShaderStage, source string) (device.ShaderID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateShader %s", stage)
	if d.FailCompile != "" && strings.Contains(source, d.FailCompile) {
		return 0, &device.ShaderError{
			Kind:  device.ErrCompileFailed,
			Stage: stage,
			Label: stage.String(),
			Log:   "error: unexpected token " + d.FailCompile,
		}
	}
	id := device.ShaderID(d.alloc(KindShader))
	d.shader[id] = stage
	d.sources[id] = source
	return id, nil
}

func (d *Device) DeleteShader(id device.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteShader %d", id)
	d.free(KindShader, uint32(id))
	delete(d.sources, id)
}

func (d *Device) CreateProgram(vertex, fragment device.ShaderID) (device.ProgramID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateProgram %d %d", vertex, fragment)
	if !d.live[KindShader][uint32(vertex)] || !d.live[KindShader][uint32(fragment)] {
		return 0, &device.ShaderError{Kind: device.ErrLinkFailed, Log: "stage is not compiled"}
	}
	if d.FailLink != "" && (strings.Contains(d.sources[vertex], d.FailLink) || strings.Contains(d.sources[fragment], d.FailLink)) {
		return 0, &device.ShaderError{Kind: device.ErrLinkFailed, Log: "error: varying mismatch " + d.FailLink}
	}
	id := device.ProgramID(d.alloc(KindProgram))
	d.programs[id] = &program{
		vertex:    vertex,
		fragment:  fragment,
		locations: make(map[string]device.Location),
		values:    make(map[string]any),
	}
	return id, nil
}

func (d *Device) DeleteProgram(id device.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteProgram %d", id)
	d.free(KindProgram, uint32(id))
	delete(d.programs, id)
}

func (d *Device) location(id device.ProgramID, name string) device.Location {
	p, ok := d.programs[id]
	if !ok || d.Inactive[name] {
		return device.NoLocation
	}
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := device.Location(len(p.names))
	p.locations[name] = loc
	p.names = append(p.names, name)
	return loc
}

func (d *Device) UniformLocation(id device.ProgramID, name string) device.Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location(id, "uniform:"+name)
}

func (d *Device) AttributeLocation(id device.ProgramID, name string) device.Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location(id, "attribute:"+name)
}

func (d *Device) CreateTexture(desc device.TextureDescriptor) (device.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateTexture %dx%d", desc.Width, desc.Height)
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	id := device.TextureID(d.alloc(KindTexture))
	d.textures[id] = desc
	return id, nil
}

func (d *Device) UploadTexture(id device.TextureID, level, width, height int, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadTexture %d %d", id, level)
	if !d.live[KindTexture][uint32(id)] {
		return device.ErrUnknownObject
	}
	if len(pixels) != width*height*4 {
		return fmt.Errorf("upload of %d bytes does not match %dx%d", len(pixels), width, height)
	}
	d.uploads[id] = append(d.uploads[id], level)
	return nil
}

func (d *Device) DeleteTexture(id device.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteTexture %d", id)
	d.free(KindTexture, uint32(id))
}

func (d *Device) CreateDepthBuffer(width, height int) (device.DepthBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateDepthBuffer %dx%d", width, height)
	return device.DepthBufferID(d.alloc(KindDepthBuffer)), nil
}

func (d *Device) DeleteDepthBuffer(id device.DepthBufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteDepthBuffer %d", id)
	d.free(KindDepthBuffer, uint32(id))
}

func (d *Device) CreateFramebuffer(color device.TextureID, depth device.DepthBufferID) (device.FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateFramebuffer %d %d", color, depth)
	if d.FailFramebuffer {
		return 0, fmt.Errorf("color %d depth %d: %w", color, depth, device.ErrIncompleteFramebuffer)
	}
	id := device.FramebufferID(d.alloc(KindFramebuffer))
	d.framebuffers[id] = framebuffer{color: color, depth: depth}
	return id, nil
}

func (d *Device) DeleteFramebuffer(id device.FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteFramebuffer %d", id)
	d.free(KindFramebuffer, uint32(id))
	delete(d.framebuffers, id)
}

func (d *Device) CreateBuffer(data []float32, usage device.BufferUsage) (device.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateBuffer %d", len(data))
	return device.BufferID(d.alloc(KindBuffer)), nil
}

func (d *Device) DeleteBuffer(id device.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteBuffer %d", id)
	d.free(KindBuffer, uint32(id))
}

func (d *Device) CreateVertexArray(layout device.VertexLayout) (device.VertexArrayID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateVertexArray %d", layout.Buffer)
	if !d.live[KindBuffer][uint32(layout.Buffer)] {
		return 0, device.ErrUnknownObject
	}
	return device.VertexArrayID(d.alloc(KindVertexArray)), nil
}

func (d *Device) DeleteVertexArray(id device.VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteVertexArray %d", id)
	d.free(KindVertexArray, uint32(id))
}

func (d *Device) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ConfigureSurface %dx%d", width, height)
	d.SurfaceSize = [2]int{width, height}
}

func (d *Device) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BeginFrame")
	if d.inFrame {
		return fmt.Errorf("previous frame not presented")
	}
	d.inFrame = true
	return nil
}

func (d *Device) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EndFrame")
	if !d.inFrame {
		return device.ErrNoFrame
	}
	d.inFrame = false
	d.Frames++
	return nil
}

func (d *Device) BindFramebuffer(id device.FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindFramebuffer %d", id)
	d.boundFramebuffer = id
}

func (d *Device) Viewport(x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Viewport %d %d %d %d", x, y, width, height)
	d.viewport = [4]int{x, y, width, height}
}

func (d *Device) SetClearColor(r, g, b, a float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetClearColor")
}

func (d *Device) Clear(mask device.ClearMask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Clear %d fb=%d", mask, d.boundFramebuffer)
}

func (d *Device) UseProgram(id device.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UseProgram %d", id)
	d.current = id
}

func (d *Device) BindVertexArray(id device.VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindVertexArray %d", id)
	d.vertexArray = id
}

func (d *Device) BindTexture(unit int, id device.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindTexture %d %d", unit, id)
	if id == 0 {
		delete(d.units, unit)
		return
	}
	d.units[unit] = id
}

func (d *Device) setUniform(loc device.Location, v any) {
	p, ok := d.programs[d.current]
	if !ok || !loc.Valid() || int(loc) >= len(p.names) {
		return
	}
	name := strings.TrimPrefix(p.names[loc], "uniform:")
	p.values[name] = v
	d.record("Uniform %s", name)
}

func (d *Device) Uniform1f(loc device.Location, v float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setUniform(loc, v)
}

func (d *Device) Uniform1i(loc device.Location, v int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setUniform(loc, v)
}

func (d *Device) Uniform2f(loc device.Location, x, y float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setUniform(loc, [2]float32{x, y})
}

func (d *Device) Uniform3f(loc device.Location, x, y, z float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setUniform(loc, [3]float32{x, y, z})
}

func (d *Device) DrawArrays(mode device.Primitive, first, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DrawArrays %d %d", first, count)
	p, ok := d.programs[d.current]
	if !ok {
		return fmt.Errorf("draw without program: %w", device.ErrUnknownObject)
	}
	if d.vertexArray == 0 {
		return fmt.Errorf("draw without vertex array: %w", device.ErrUnknownObject)
	}
	if d.boundFramebuffer == device.Screen && !d.inFrame {
		return device.ErrNoFrame
	}

	draw := Draw{
		Framebuffer: d.boundFramebuffer,
		Viewport:    d.viewport,
		Program:     d.current,
		VertexArray: d.vertexArray,
		Mode:        mode,
		First:       first,
		Count:       count,
		Textures:    make(map[int]device.TextureID, len(d.units)),
		Uniforms:    make(map[string]any, len(p.values)),
	}
	for unit, tex := range d.units {
		draw.Textures[unit] = tex
	}
	for name, v := range p.values {
		draw.Uniforms[name] = v
	}
	d.Draws = append(d.Draws, draw)
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Release")
}
