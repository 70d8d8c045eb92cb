package resource

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
)

type factory struct {
	dev device.Device
}

// Factory creates and destroys the GPU objects used by the demo on a single device.
// All methods must be called from the thread that owns the device.
type Factory interface {
	// CreateProgram compiles and links a vertex and a fragment stage, then resolves the
	// requested names. Stage objects are released whether or not linking succeeds.
	//
	// Parameters:
	//   - vertexSource: the vertex stage text
	//   - fragmentSource: the fragment stage text
	//   - uniforms: uniform names to resolve; names the program lacks map to device.NoLocation
	//   - attributes: vertex attribute names to resolve
	//
	// Returns:
	//   - *Program: the program, or the unusable sentinel on failure
	//   - error: a *device.ShaderError wrapping device.ErrCompileFailed or device.ErrLinkFailed
	CreateProgram(vertexSource, fragmentSource string, uniforms, attributes []string) (*Program, error)

	// DestroyProgram releases a program. Nil and the unusable sentinel are ignored.
	DestroyProgram(p *Program)

	// CreateTexture uploads a decoded image with its full CPU-generated mip chain. The texture
	// repeats on both axes, magnifies linearly and minifies nearest within a level, blending
	// linearly between levels.
	//
	// Parameters:
	//   - img: tightly packed RGBA pixels
	//
	// Returns:
	//   - *Texture: the texture
	//   - error: an error if the image is empty or malformed or the device rejects it
	CreateTexture(img common.TextureStagingData) (*Texture, error)

	// DestroyTexture releases a texture. Nil is ignored.
	DestroyTexture(t *Texture)

	// CreateRenderTarget allocates a color texture, a depth buffer and a framebuffer of the
	// given size. Either all three objects exist afterwards or none do.
	//
	// Parameters:
	//   - width, height: the target size in pixels, both positive
	//
	// Returns:
	//   - *RenderTarget: the target
	//   - error: device.ErrIncompleteFramebuffer (wrapped) if the attachments are rejected
	CreateRenderTarget(width, height int) (*RenderTarget, error)

	// DestroyRenderTarget releases the framebuffer and both attachments. Calling it twice
	// or with nil is a no-op.
	DestroyRenderTarget(rt *RenderTarget)

	// CreateVertexBuffer uploads float data into a new vertex buffer.
	CreateVertexBuffer(data []float32, usage device.BufferUsage) (*Buffer, error)

	// DestroyBuffer releases a vertex buffer. Nil is ignored.
	DestroyBuffer(b *Buffer)

	// CreateVertexArray records how a buffer feeds the vertex stage.
	//
	// Parameters:
	//   - buf: the buffer read by every attribute
	//   - stride: the size of one vertex in bytes
	//   - attrs: the attributes, with byte offsets inside a vertex
	//
	// Returns:
	//   - *VertexArray: the vertex array
	//   - error: an error if the buffer is not live or the layout is invalid
	CreateVertexArray(buf *Buffer, stride int, attrs []device.VertexAttribute) (*VertexArray, error)

	// DestroyVertexArray releases a vertex array. The buffer it reads is not released.
	DestroyVertexArray(va *VertexArray)
}

var _ Factory = &factory{}

// NewFactory creates a Factory bound to a device.
//
// Parameters:
//   - dev: the device every object is created on
//
// Returns:
//   - Factory: the factory
func NewFactory(dev device.Device) Factory {
	return &factory{dev: dev}
}

func (f *factory) CreateProgram(vertexSource, fragmentSource string, uniforms, attributes []string) (*Program, error) {
	vs, err := f.dev.CreateShader(device.ShaderStageVertex, vertexSource)
	if err != nil {
		return UnusableProgram(), err
	}
	fs, err := f.dev.CreateShader(device.ShaderStageFragment, fragmentSource)
	if err != nil {
		f.dev.DeleteShader(vs)
		return UnusableProgram(), err
	}

	id, err := f.dev.CreateProgram(vs, fs)
	f.dev.DeleteShader(vs)
	f.dev.DeleteShader(fs)
	if err != nil {
		return UnusableProgram(), err
	}

	p := &Program{
		id:         id,
		uniforms:   make(map[string]device.Location, len(uniforms)),
		attributes: make(map[string]device.Location, len(attributes)),
	}
	for _, name := range uniforms {
		p.uniforms[name] = f.dev.UniformLocation(id, name)
	}
	for _, name := range attributes {
		p.attributes[name] = f.dev.AttributeLocation(id, name)
	}
	return p, nil
}

func (f *factory) DestroyProgram(p *Program) {
	if !p.Usable() {
		return
	}
	f.dev.DeleteProgram(p.id)
	p.id = 0
}

func (f *factory) CreateTexture(img common.TextureStagingData) (*Texture, error) {
	width, height := int(img.Width), int(img.Height)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("texture: empty image %dx%d", width, height)
	}
	if len(img.Pixels) != width*height*4 {
		return nil, fmt.Errorf("texture: %d bytes for %dx%d RGBA", len(img.Pixels), width, height)
	}

	chain := MipChain(img)
	id, err := f.dev.CreateTexture(device.TextureDescriptor{
		Label:     "Static Texture",
		Width:     width,
		Height:    height,
		MipLevels: len(chain),
		MinFilter: device.FilterNearest,
		MagFilter: device.FilterLinear,
		Mipmap:    device.MipmapLinear,
		WrapS:     device.WrapRepeat,
		WrapT:     device.WrapRepeat,
	})
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}

	for level, m := range chain {
		b := m.Bounds()
		if err := f.dev.UploadTexture(id, level, b.Dx(), b.Dy(), m.Pix); err != nil {
			f.dev.DeleteTexture(id)
			return nil, fmt.Errorf("texture level %d: %w", level, err)
		}
	}
	return &Texture{id: id, width: width, height: height, levels: len(chain)}, nil
}

func (f *factory) DestroyTexture(t *Texture) {
	if t == nil || t.id == 0 {
		return
	}
	f.dev.DeleteTexture(t.id)
	t.id = 0
}

func (f *factory) CreateRenderTarget(width, height int) (*RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render target: invalid size %dx%d", width, height)
	}

	color, err := f.dev.CreateTexture(device.TextureDescriptor{
		Label:        "Render Target Color",
		Width:        width,
		Height:       height,
		MipLevels:    1,
		MinFilter:    device.FilterNearest,
		MagFilter:    device.FilterNearest,
		Mipmap:       device.MipmapNone,
		WrapS:        device.WrapClampToEdge,
		WrapT:        device.WrapClampToEdge,
		RenderTarget: true,
	})
	if err != nil {
		return nil, fmt.Errorf("render target color: %w", err)
	}

	depth, err := f.dev.CreateDepthBuffer(width, height)
	if err != nil {
		f.dev.DeleteTexture(color)
		return nil, fmt.Errorf("render target depth: %w", err)
	}

	fb, err := f.dev.CreateFramebuffer(color, depth)
	if err != nil {
		f.dev.DeleteDepthBuffer(depth)
		f.dev.DeleteTexture(color)
		if !errors.Is(err, device.ErrIncompleteFramebuffer) {
			err = fmt.Errorf("%w: %w", device.ErrIncompleteFramebuffer, err)
		}
		return nil, fmt.Errorf("render target %dx%d: %w", width, height, err)
	}

	return &RenderTarget{
		width:       width,
		height:      height,
		color:       &Texture{id: color, width: width, height: height, levels: 1},
		depth:       depth,
		framebuffer: fb,
	}, nil
}

func (f *factory) DestroyRenderTarget(rt *RenderTarget) {
	if rt == nil || rt.released {
		return
	}
	rt.released = true
	f.dev.DeleteFramebuffer(rt.framebuffer)
	f.dev.DeleteDepthBuffer(rt.depth)
	f.dev.DeleteTexture(rt.color.id)
	rt.framebuffer, rt.depth, rt.color.id = 0, 0, 0
}

func (f *factory) CreateVertexBuffer(data []float32, usage device.BufferUsage) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("vertex buffer: no data")
	}
	id, err := f.dev.CreateBuffer(data, usage)
	if err != nil {
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}
	return &Buffer{id: id, count: len(data)}, nil
}

func (f *factory) DestroyBuffer(b *Buffer) {
	if b == nil || b.id == 0 {
		return
	}
	f.dev.DeleteBuffer(b.id)
	b.id = 0
}

func (f *factory) CreateVertexArray(buf *Buffer, stride int, attrs []device.VertexAttribute) (*VertexArray, error) {
	if buf.ID() == 0 {
		return nil, fmt.Errorf("vertex array: %w", device.ErrUnknownObject)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("vertex array: stride %d must be positive", stride)
	}
	id, err := f.dev.CreateVertexArray(device.VertexLayout{
		Buffer:     buf.id,
		Stride:     stride,
		Attributes: attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex array: %w", err)
	}
	return &VertexArray{id: id, vertices: buf.count * 4 / stride}, nil
}

func (f *factory) DestroyVertexArray(va *VertexArray) {
	if va == nil || va.id == 0 {
		return
	}
	f.dev.DeleteVertexArray(va.id)
	va.id = 0
}
