// Package device defines the graphics device boundary used by the resource factory and the
// render pipeline. Objects are addressed through small integer handles so that owners can be
// modelled as plain values and the whole boundary can be replaced by a recording fake in tests.
package device

// ShaderStage identifies the programmable stage a shader object is compiled for.
type ShaderStage int

const (
	// ShaderStageVertex compiles the source as a vertex program.
	ShaderStageVertex ShaderStage = iota

	// ShaderStageFragment compiles the source as a fragment program.
	ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// Handle types. The zero value of every handle is "no object"; for FramebufferID it
// additionally names the presentable screen.
type (
	ShaderID      uint32
	ProgramID     uint32
	TextureID     uint32
	DepthBufferID uint32
	FramebufferID uint32
	BufferID      uint32
	VertexArrayID uint32
)

// Screen is the default framebuffer, i.e. the surface image acquired by BeginFrame.
const Screen FramebufferID = 0

// Location is a program-scoped uniform or attribute slot.
type Location int32

// NoLocation is returned for names the program does not expose. Writes to it are ignored.
const NoLocation Location = -1

// Valid reports whether the location refers to an active slot.
func (l Location) Valid() bool {
	return l >= 0
}

// FilterMode selects texel filtering.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// MipmapMode selects how mip levels are chosen when minifying. MipmapNone disables mip lookups.
type MipmapMode int

const (
	MipmapNone MipmapMode = iota
	MipmapNearest
	MipmapLinear
)

// WrapMode selects texture coordinate addressing outside [0, 1].
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClampToEdge
)

// TextureDescriptor describes a 2D RGBA8 texture.
type TextureDescriptor struct {
	Label     string
	Width     int
	Height    int
	MipLevels int

	MinFilter FilterMode
	MagFilter FilterMode
	Mipmap    MipmapMode
	WrapS     WrapMode
	WrapT     WrapMode

	// RenderTarget allows the texture to be used as a framebuffer color attachment.
	RenderTarget bool
}

// BufferUsage is the upload frequency hint given when a vertex buffer is created.
type BufferUsage int

const (
	StaticDraw BufferUsage = iota
	DynamicDraw
)

// VertexAttribute binds a float vector stored in a vertex buffer to a shader input location.
type VertexAttribute struct {
	Location   uint32
	Components int
	Offset     int
}

// VertexLayout describes how a single interleaved buffer feeds the vertex stage.
type VertexLayout struct {
	Buffer     BufferID
	Stride     int
	Attributes []VertexAttribute
}

// ClearMask selects the attachments affected by Clear.
type ClearMask uint32

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// Primitive selects the primitive assembly mode of a draw.
type Primitive int

const (
	TriangleStrip Primitive = iota
	TriangleList
)

// Device is the graphics context consumed by the rest of the renderer. It is a
// single-threaded state machine: the bound framebuffer, viewport, program, vertex array and
// texture units persist between calls until changed.
type Device interface {
	// CreateShader compiles a single shader stage.
	//
	// Parameters:
	//   - stage: the stage to compile for
	//   - source: the shader program text
	//
	// Returns:
	//   - ShaderID: the compiled stage
	//   - error: a *ShaderError wrapping ErrCompileFailed when the compiler rejects the source
	CreateShader(stage ShaderStage, source string) (ShaderID, error)

	// DeleteShader releases a compiled stage. Deleting the zero handle is a no-op.
	DeleteShader(id ShaderID)

	// CreateProgram links a vertex and a fragment stage into a program.
	//
	// Parameters:
	//   - vertex: the compiled vertex stage
	//   - fragment: the compiled fragment stage
	//
	// Returns:
	//   - ProgramID: the linked program
	//   - error: a *ShaderError wrapping ErrLinkFailed when the stages cannot be linked
	CreateProgram(vertex, fragment ShaderID) (ProgramID, error)

	// DeleteProgram releases a program. Deleting the zero handle is a no-op.
	DeleteProgram(id ProgramID)

	// UniformLocation resolves a named uniform of a linked program.
	//
	// Returns:
	//   - Location: the slot, or NoLocation when the program has no active uniform by that name
	UniformLocation(program ProgramID, name string) Location

	// AttributeLocation resolves a named vertex input of a linked program.
	//
	// Returns:
	//   - Location: the slot, or NoLocation when the program has no active input by that name
	AttributeLocation(program ProgramID, name string) Location

	// CreateTexture allocates an empty texture with all of its mip levels.
	CreateTexture(desc TextureDescriptor) (TextureID, error)

	// UploadTexture replaces the contents of one mip level with tightly packed RGBA8 pixels.
	UploadTexture(id TextureID, level, width, height int, pixels []byte) error

	// DeleteTexture releases a texture. Deleting the zero handle is a no-op.
	DeleteTexture(id TextureID)

	// CreateDepthBuffer allocates a depth attachment of the given size.
	CreateDepthBuffer(width, height int) (DepthBufferID, error)

	// DeleteDepthBuffer releases a depth attachment. Deleting the zero handle is a no-op.
	DeleteDepthBuffer(id DepthBufferID)

	// CreateFramebuffer bundles a color texture and a depth buffer into a draw destination.
	//
	// Returns:
	//   - FramebufferID: the framebuffer
	//   - error: ErrIncompleteFramebuffer (wrapped) when the attachments cannot be combined
	CreateFramebuffer(color TextureID, depth DepthBufferID) (FramebufferID, error)

	// DeleteFramebuffer releases a framebuffer object. The attachments are not released.
	DeleteFramebuffer(id FramebufferID)

	// CreateBuffer uploads float data into a new vertex buffer.
	CreateBuffer(data []float32, usage BufferUsage) (BufferID, error)

	// DeleteBuffer releases a vertex buffer. Deleting the zero handle is a no-op.
	DeleteBuffer(id BufferID)

	// CreateVertexArray records a vertex layout for later binding.
	CreateVertexArray(layout VertexLayout) (VertexArrayID, error)

	// DeleteVertexArray releases a vertex array. Deleting the zero handle is a no-op.
	DeleteVertexArray(id VertexArrayID)

	// ConfigureSurface resizes the presentable surface and its depth attachment.
	ConfigureSurface(width, height int)

	// BeginFrame acquires the next surface image. Draws to Screen are only valid between
	// BeginFrame and EndFrame.
	BeginFrame() error

	// EndFrame presents the acquired surface image.
	EndFrame() error

	// BindFramebuffer selects the destination of subsequent Clear and draw calls.
	BindFramebuffer(id FramebufferID)

	// Viewport sets the destination rectangle in pixels.
	Viewport(x, y, width, height int)

	// SetClearColor sets the color used when ClearColor is requested.
	SetClearColor(r, g, b, a float32)

	// Clear clears the selected attachments of the bound framebuffer.
	Clear(mask ClearMask)

	// UseProgram selects the program for uniform writes and draws. Zero unbinds.
	UseProgram(id ProgramID)

	// BindVertexArray selects the vertex inputs of subsequent draws. Zero unbinds.
	BindVertexArray(id VertexArrayID)

	// BindTexture attaches a texture to a texture unit. Zero detaches.
	BindTexture(unit int, id TextureID)

	// Uniform1f writes a float uniform of the current program.
	Uniform1f(loc Location, v float32)

	// Uniform1i writes an integer uniform of the current program. For texture uniforms the
	// value is the texture unit the uniform samples from.
	Uniform1i(loc Location, v int32)

	// Uniform2f writes a vec2 uniform of the current program.
	Uniform2f(loc Location, x, y float32)

	// Uniform3f writes a vec3 uniform of the current program.
	Uniform3f(loc Location, x, y, z float32)

	// DrawArrays issues a non-indexed draw with the current state.
	DrawArrays(mode Primitive, first, count int) error

	// Release tears the device down. Objects still alive are released with it.
	Release()
}
