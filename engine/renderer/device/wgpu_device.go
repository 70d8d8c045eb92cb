package device

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuShader struct {
	stage     ShaderStage
	reflected shader.Shader
	module    *wgpu.ShaderModule

	// refs counts the programs linked against the module; the module outlives DeleteShader
	// until the last of them is deleted.
	refs    int
	deleted bool
}

// Members of the vertex stage's clip transform, written by the device on every draw.
const (
	clipScaleUniform  = "clipScale"
	clipOffsetUniform = "clipOffset"
)

type wgpuUniformBlock struct {
	group   int
	binding int
	buffer  *wgpu.Buffer
	data    []byte
	dirty   bool
}

// uniformSlot is one entry of a program's location table. Exactly one of block and texture
// is non-negative.
type uniformSlot struct {
	name    string
	block   int
	offset  uint64
	size    uint64
	texture int
}

type wgpuProgram struct {
	label            string
	vertex, fragment *wgpuShader
	pipeline         pipeline.Pipeline
	layouts          map[int]wgpu.BindGroupLayoutDescriptor

	blocks     []*wgpuUniformBlock
	slots      []uniformSlot
	uniforms   map[string]Location
	attributes map[string]Location

	textures []shader.TextureBinding
	units    []int32

	// staticGroups holds the bind groups that reference no textures; they are built once.
	staticGroups map[int]*wgpu.BindGroup
}

type wgpuTexture struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

type wgpuDepthBuffer struct {
	width, height int
	texture       *wgpu.Texture
	view          *wgpu.TextureView
}

type wgpuFramebuffer struct {
	color TextureID
	depth DepthBufferID
}

type wgpuVertexArray struct {
	layout  VertexLayout
	buffers []wgpu.VertexBufferLayout
	key     string
}

type wgpuDevice struct {
	mu sync.Mutex

	label                string
	presentMode          PresentMode
	presentFallback      bool
	forceFallbackAdapter bool

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat    wgpu.TextureFormat
	surfaceWidth     int
	surfaceHeight    int
	surfaceDepth     *wgpu.Texture
	surfaceDepthView *wgpu.TextureView

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	nextHandle   uint32
	shaders      map[ShaderID]*wgpuShader
	programs     map[ProgramID]*wgpuProgram
	textures     map[TextureID]*wgpuTexture
	depthBuffers map[DepthBufferID]*wgpuDepthBuffer
	framebuffers map[FramebufferID]*wgpuFramebuffer
	buffers      map[BufferID]*wgpu.Buffer
	vertexArrays map[VertexArrayID]*wgpuVertexArray

	framebuffer FramebufferID
	viewport    [4]int
	clearColor  wgpu.Color
	program     ProgramID
	vertexArray VertexArrayID
	units       map[int]TextureID
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice acquires a WebGPU adapter and device for a window surface. The calling
// goroutine is locked to its OS thread; every other method must be called from it.
//
// Parameters:
//   - surfaceDescriptor: the platform surface, usually from wgpuglfw.GetSurfaceDescriptor
//   - opts: options applied before the adapter is requested
//
// Returns:
//   - Device: the device, with an unconfigured surface
//   - error: an error if no adapter or device could be acquired
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...WGPUDeviceBuilderOption) (Device, error) {
	runtime.LockOSThread()

	d := &wgpuDevice{
		label:        "Main Device",
		presentMode:  PresentModeVSync,
		shaders:      make(map[ShaderID]*wgpuShader),
		programs:     make(map[ProgramID]*wgpuProgram),
		textures:     make(map[TextureID]*wgpuTexture),
		depthBuffers: make(map[DepthBufferID]*wgpuDepthBuffer),
		framebuffers: make(map[FramebufferID]*wgpuFramebuffer),
		buffers:      make(map[BufferID]*wgpu.Buffer),
		vertexArrays: make(map[VertexArrayID]*wgpuVertexArray),
		units:        make(map[int]TextureID),
		clearColor:   wgpu.Color{A: 1},
	}
	for _, opt := range opts {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: d.label,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	log.Printf("[Device] acquired %s (fallback adapter: %v)", d.label, d.forceFallbackAdapter)
	return d, nil
}

func (d *wgpuDevice) handle() uint32 {
	d.nextHandle++
	return d.nextHandle
}

func (d *wgpuDevice) CreateShader(stage ShaderStage, source string) (ShaderID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	shaderType := shader.ShaderTypeVertex
	if stage == ShaderStageFragment {
		shaderType = shader.ShaderTypeFragment
	}
	label := fmt.Sprintf("%s shader %d", stage, d.nextHandle+1)

	reflected, err := shader.NewShader(label, shaderType, source)
	if err != nil {
		return 0, &ShaderError{Kind: ErrCompileFailed, Stage: stage, Label: label, Log: err.Error()}
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: reflected.Source(),
		},
	})
	if err != nil {
		return 0, &ShaderError{Kind: ErrCompileFailed, Stage: stage, Label: label, Log: err.Error()}
	}

	id := ShaderID(d.handle())
	d.shaders[id] = &wgpuShader{stage: stage, reflected: reflected, module: module}
	return id, nil
}

func (d *wgpuDevice) DeleteShader(id ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.shaders[id]
	if !ok {
		return
	}
	delete(d.shaders, id)
	s.deleted = true
	d.releaseShader(s)
}

func (d *wgpuDevice) releaseShader(s *wgpuShader) {
	if !s.deleted || s.refs > 0 || s.module == nil {
		return
	}
	s.module.Release()
	s.module = nil
}

func (d *wgpuDevice) CreateProgram(vertex, fragment ShaderID) (ProgramID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, fs := d.shaders[vertex], d.shaders[fragment]
	label := fmt.Sprintf("program %d+%d", vertex, fragment)
	switch {
	case vs == nil || fs == nil:
		return 0, &ShaderError{Kind: ErrLinkFailed, Label: label, Log: "attached stage is not a live shader"}
	case vs.stage != ShaderStageVertex || fs.stage != ShaderStageFragment:
		return 0, &ShaderError{Kind: ErrLinkFailed, Label: label, Log: "stages attached in the wrong order"}
	}

	p := &wgpuProgram{
		label:        label,
		vertex:       vs,
		fragment:     fs,
		uniforms:     make(map[string]Location),
		attributes:   make(map[string]Location),
		staticGroups: make(map[int]*wgpu.BindGroup),
		pipeline: pipeline.NewPipeline(label,
			pipeline.WithVertexShader(vs.reflected),
			pipeline.WithFragmentShader(fs.reflected),
		),
	}
	vs.refs++
	fs.refs++

	if err := d.linkProgram(p); err != nil {
		d.releaseProgram(p)
		return 0, &ShaderError{Kind: ErrLinkFailed, Label: label, Log: err.Error()}
	}

	id := ProgramID(d.handle())
	d.programs[id] = p
	return id, nil
}

// linkProgram builds the pipeline layout, the location tables and the uniform buffers of a
// program, then compiles the variant its vertex stage was written for so that interface
// mismatches surface at link time.
func (d *wgpuDevice) linkProgram(p *wgpuProgram) error {
	p.layouts = p.pipeline.MergedBindGroupLayouts()
	groupCount := 0
	for g := range p.layouts {
		groupCount = max(groupCount, g+1)
	}

	groups := make([]*wgpu.BindGroupLayout, groupCount)
	for g := range groups {
		desc, ok := p.layouts[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s group %d", p.label, g)}
			p.layouts[g] = desc
		}
		layout, err := d.device.CreateBindGroupLayout(&desc)
		if err != nil {
			for _, created := range groups[:g] {
				created.Release()
			}
			return fmt.Errorf("bind group layout %d: %w", g, err)
		}
		groups[g] = layout
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		for _, created := range groups {
			created.Release()
		}
		return fmt.Errorf("pipeline layout: %w", err)
	}
	p.pipeline.SetLayout(layout, groups)

	for _, in := range p.vertex.reflected.VertexInputs() {
		p.attributes[in.Name] = Location(in.Location)
	}
	if err := d.reflectUniforms(p); err != nil {
		return err
	}

	for g := range groups {
		if groupSamplesTextures(p.layouts[g]) {
			continue
		}
		bg, err := d.createBindGroup(p, g)
		if err != nil {
			return err
		}
		p.staticGroups[g] = bg
	}

	var buffers []wgpu.VertexBufferLayout
	reflected := p.vertex.reflected.VertexLayouts()
	for i := 0; i < len(reflected); i++ {
		buffers = append(buffers, reflected[i]...)
	}
	key := pipeline.VariantKey{
		Format:   colorFormat,
		Topology: wgpu.PrimitiveTopologyTriangleStrip,
		Layout:   vertexLayoutKey(buffers),
	}
	if _, err := d.variant(p, key, buffers); err != nil {
		return err
	}
	return nil
}

func (d *wgpuDevice) reflectUniforms(p *wgpuProgram) error {
	type bindingKey struct{ group, binding int }
	seen := make(map[bindingKey]bool)
	seenTextures := make(map[string]bool)

	for _, st := range []shader.Shader{p.vertex.reflected, p.fragment.reflected} {
		for _, ub := range st.UniformBlocks() {
			k := bindingKey{ub.Group, ub.Binding}
			if seen[k] {
				continue
			}
			seen[k] = true

			size := uniformBufferSize(ub.Size)
			buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: p.label + " " + ub.VarName,
				Size:  size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("uniform buffer %s: %w", ub.VarName, err)
			}
			block := len(p.blocks)
			p.blocks = append(p.blocks, &wgpuUniformBlock{
				group:   ub.Group,
				binding: ub.Binding,
				buffer:  buf,
				data:    make([]byte, size),
				dirty:   true,
			})
			for _, m := range ub.Members {
				if _, dup := p.uniforms[m.Name]; dup {
					continue
				}
				p.uniforms[m.Name] = Location(len(p.slots))
				p.slots = append(p.slots, uniformSlot{name: m.Name, block: block, offset: m.Offset, size: m.Size, texture: -1})
			}
		}

		for _, tb := range st.TextureBindings() {
			if seenTextures[tb.Name] {
				continue
			}
			seenTextures[tb.Name] = true
			p.uniforms[tb.Name] = Location(len(p.slots))
			p.slots = append(p.slots, uniformSlot{name: tb.Name, block: -1, texture: len(p.textures)})
			p.textures = append(p.textures, tb)
			p.units = append(p.units, 0)
		}
	}
	return nil
}

func groupSamplesTextures(desc wgpu.BindGroupLayoutDescriptor) bool {
	for _, e := range desc.Entries {
		if e.Texture.SampleType != wgpu.TextureSampleTypeUndefined || e.Sampler.Type != wgpu.SamplerBindingTypeUndefined {
			return true
		}
	}
	return false
}

// createBindGroup resolves every entry of a group against the program's uniform buffers and
// the textures currently bound to the units its texture uniforms point at.
func (d *wgpuDevice) createBindGroup(p *wgpuProgram, group int) (*wgpu.BindGroup, error) {
	desc := p.layouts[group]
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))

	for _, e := range desc.Entries {
		binding := int(e.Binding)
		switch {
		case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			tex, err := d.unitTexture(p, group, func(tb shader.TextureBinding) bool { return tb.Binding == binding })
			if err != nil {
				return nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, TextureView: tex.view})
		case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			tex, err := d.unitTexture(p, group, func(tb shader.TextureBinding) bool { return tb.SamplerBinding == binding })
			if err != nil {
				return nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Sampler: tex.sampler})
		default:
			var buf *wgpu.Buffer
			for _, b := range p.blocks {
				if b.group == group && b.binding == binding {
					buf = b.buffer
				}
			}
			if buf == nil {
				return nil, fmt.Errorf("group %d binding %d: no uniform buffer", group, binding)
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: buf, Offset: 0, Size: wgpu.WholeSize})
		}
	}

	return d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  p.pipeline.BindGroupLayout(group),
		Entries: entries,
	})
}

// unitTexture finds the texture uniform matching a binding and returns the texture bound to
// the unit that uniform samples from.
func (d *wgpuDevice) unitTexture(p *wgpuProgram, group int, match func(shader.TextureBinding) bool) (*wgpuTexture, error) {
	for i, tb := range p.textures {
		if tb.Group != group || !match(tb) {
			continue
		}
		unit := int(p.units[i])
		tex := d.textures[d.units[unit]]
		if tex == nil {
			return nil, fmt.Errorf("%s: %w: no texture bound to unit %d", tb.Name, ErrUnknownObject, unit)
		}
		return tex, nil
	}
	return nil, fmt.Errorf("group %d: binding has no texture uniform", group)
}

func (d *wgpuDevice) variant(p *wgpuProgram, key pipeline.VariantKey, buffers []wgpu.VertexBufferLayout) (*wgpu.RenderPipeline, error) {
	if rp, ok := p.pipeline.Variant(key); ok {
		return rp, nil
	}
	rp, err := d.device.CreateRenderPipeline(p.pipeline.Descriptor(key, p.vertex.module, p.fragment.module, buffers))
	if err != nil {
		return nil, err
	}
	p.pipeline.SetVariant(key, rp)
	return rp, nil
}

func (d *wgpuDevice) DeleteProgram(id ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[id]
	if !ok {
		return
	}
	delete(d.programs, id)
	if d.program == id {
		d.program = 0
	}
	d.releaseProgram(p)
}

func (d *wgpuDevice) releaseProgram(p *wgpuProgram) {
	for g, bg := range p.staticGroups {
		bg.Release()
		delete(p.staticGroups, g)
	}
	for _, b := range p.blocks {
		b.buffer.Release()
	}
	p.blocks = nil
	p.pipeline.Release()

	p.vertex.refs--
	p.fragment.refs--
	d.releaseShader(p.vertex)
	d.releaseShader(p.fragment)
}

func (d *wgpuDevice) UniformLocation(program ProgramID, name string) Location {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[program]
	if !ok {
		return NoLocation
	}
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return NoLocation
}

func (d *wgpuDevice) AttributeLocation(program ProgramID, name string) Location {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[program]
	if !ok {
		return NoLocation
	}
	if loc, ok := p.attributes[name]; ok {
		return loc
	}
	return NoLocation
}

func (d *wgpuDevice) CreateTexture(desc TextureDescriptor) (TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	levels := max(1, desc.MipLevels)
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        colorFormat,
		MipLevelCount: uint32(levels),
		SampleCount:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("texture %q view: %w", desc.Label, err)
	}
	sampler, err := d.device.CreateSampler(samplerDescriptor(desc.Label, samplerStaging(desc)))
	if err != nil {
		view.Release()
		tex.Release()
		return 0, fmt.Errorf("texture %q sampler: %w", desc.Label, err)
	}

	id := TextureID(d.handle())
	d.textures[id] = &wgpuTexture{desc: desc, texture: tex, view: view, sampler: sampler}
	return id, nil
}

func (d *wgpuDevice) UploadTexture(id TextureID, level, width, height int, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("upload texture %d: %w", id, ErrUnknownObject)
	}
	if level < 0 || level >= max(1, t.desc.MipLevels) {
		return fmt.Errorf("upload texture %d: level %d out of range", id, level)
	}
	if width != levelSize(t.desc.Width, level) || height != levelSize(t.desc.Height, level) {
		return fmt.Errorf("upload texture %d: level %d is %dx%d, got %dx%d", id, level,
			levelSize(t.desc.Width, level), levelSize(t.desc.Height, level), width, height)
	}
	if len(pixels) != width*height*4 {
		return fmt.Errorf("upload texture %d: %d bytes for %dx%d RGBA", id, len(pixels), width, height)
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: uint32(level),
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(width * 4),
			RowsPerImage: uint32(height),
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (d *wgpuDevice) DeleteTexture(id TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	for unit, bound := range d.units {
		if bound == id {
			delete(d.units, unit)
		}
	}
	t.sampler.Release()
	t.view.Release()
	t.texture.Release()
}

func (d *wgpuDevice) createDepthTexture(label string, width, height int) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (d *wgpuDevice) CreateDepthBuffer(width, height int) (DepthBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("depth buffer: invalid size %dx%d", width, height)
	}
	tex, view, err := d.createDepthTexture("Depth Buffer", width, height)
	if err != nil {
		return 0, fmt.Errorf("depth buffer: %w", err)
	}
	id := DepthBufferID(d.handle())
	d.depthBuffers[id] = &wgpuDepthBuffer{width: width, height: height, texture: tex, view: view}
	return id, nil
}

func (d *wgpuDevice) DeleteDepthBuffer(id DepthBufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	db, ok := d.depthBuffers[id]
	if !ok {
		return
	}
	delete(d.depthBuffers, id)
	db.view.Release()
	db.texture.Release()
}

func (d *wgpuDevice) CreateFramebuffer(color TextureID, depth DepthBufferID) (FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[color]
	if !ok || !tex.desc.RenderTarget {
		return 0, fmt.Errorf("color attachment %d is not a render target: %w", color, ErrIncompleteFramebuffer)
	}
	db, ok := d.depthBuffers[depth]
	if !ok {
		return 0, fmt.Errorf("depth attachment %d: %w", depth, ErrIncompleteFramebuffer)
	}
	if db.width != tex.desc.Width || db.height != tex.desc.Height {
		return 0, fmt.Errorf("attachment sizes %dx%d and %dx%d differ: %w",
			tex.desc.Width, tex.desc.Height, db.width, db.height, ErrIncompleteFramebuffer)
	}

	id := FramebufferID(d.handle())
	d.framebuffers[id] = &wgpuFramebuffer{color: color, depth: depth}
	return id, nil
}

func (d *wgpuDevice) DeleteFramebuffer(id FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.framebuffers, id)
	if d.framebuffer == id {
		d.framebuffer = Screen
	}
}

func (d *wgpuDevice) CreateBuffer(data []float32, usage BufferUsage) (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data) == 0 {
		return 0, errors.New("vertex buffer: no data")
	}
	bytes := common.SliceToBytes(data)
	label := "Static Vertex Buffer"
	if usage == DynamicDraw {
		label = "Dynamic Vertex Buffer"
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(len(bytes)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return 0, fmt.Errorf("vertex buffer: %w", err)
	}
	d.queue.WriteBuffer(buf, 0, bytes)

	id := BufferID(d.handle())
	d.buffers[id] = buf
	return id, nil
}

func (d *wgpuDevice) DeleteBuffer(id BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return
	}
	delete(d.buffers, id)
	buf.Release()
}

func (d *wgpuDevice) CreateVertexArray(layout VertexLayout) (VertexArrayID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.buffers[layout.Buffer]; !ok {
		return 0, fmt.Errorf("vertex array: buffer %d: %w", layout.Buffer, ErrUnknownObject)
	}
	bl, err := vertexBufferLayout(layout)
	if err != nil {
		return 0, fmt.Errorf("vertex array: %w", err)
	}
	buffers := []wgpu.VertexBufferLayout{bl}

	id := VertexArrayID(d.handle())
	d.vertexArrays[id] = &wgpuVertexArray{layout: layout, buffers: buffers, key: vertexLayoutKey(buffers)}
	return id, nil
}

func (d *wgpuDevice) DeleteVertexArray(id VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.vertexArrays, id)
	if d.vertexArray == id {
		d.vertexArray = 0
	}
}

func (d *wgpuDevice) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]

	// Fifo is the only mode every surface supports.
	presentMode := wgpu.PresentModeFifo
	if d.presentMode == PresentModeUncapped {
		if slices.Contains(capabilities.PresentModes, wgpu.PresentModeImmediate) {
			presentMode = wgpu.PresentModeImmediate
		} else if !d.presentFallback {
			d.presentFallback = true
			log.Printf("[Device] surface does not support immediate presentation, using vsync")
		}
	}

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.surfaceWidth, d.surfaceHeight = width, height

	if d.surfaceDepthView != nil {
		d.surfaceDepthView.Release()
		d.surfaceDepth.Release()
		d.surfaceDepthView, d.surfaceDepth = nil, nil
	}
	tex, view, err := d.createDepthTexture("Surface Depth Texture", width, height)
	if err != nil {
		log.Printf("[Device] surface depth texture %dx%d: %v", width, height, err)
		return
	}
	d.surfaceDepth, d.surfaceDepthView = tex, view
}

func (d *wgpuDevice) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}
	if d.surfaceWidth == 0 {
		return errors.New("surface not configured")
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	d.frameSurface = surfaceTexture
	d.frameView = view
	return nil
}

func (d *wgpuDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return ErrNoFrame
	}
	d.surface.Present()

	d.frameView.Release()
	d.frameSurface.Release()
	d.frameView = nil
	d.frameSurface = nil
	return nil
}

func (d *wgpuDevice) BindFramebuffer(id FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.framebuffer = id
}

func (d *wgpuDevice) Viewport(x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = [4]int{x, y, width, height}
}

func (d *wgpuDevice) SetClearColor(r, g, b, a float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearColor = wgpu.Color{R: float64(r), G: float64(g), B: float64(b), A: float64(a)}
}

// attachments resolves the bound framebuffer into pass attachments.
func (d *wgpuDevice) attachments(id FramebufferID) (color, depth *wgpu.TextureView, format wgpu.TextureFormat, width, height int, err error) {
	if id == Screen {
		if d.frameView == nil {
			return nil, nil, 0, 0, 0, ErrNoFrame
		}
		if d.surfaceDepthView == nil {
			return nil, nil, 0, 0, 0, fmt.Errorf("surface has no depth attachment: %w", ErrIncompleteFramebuffer)
		}
		return d.frameView, d.surfaceDepthView, d.surfaceFormat, d.surfaceWidth, d.surfaceHeight, nil
	}

	fb, ok := d.framebuffers[id]
	if !ok {
		return nil, nil, 0, 0, 0, fmt.Errorf("framebuffer %d: %w", id, ErrUnknownObject)
	}
	tex, texOK := d.textures[fb.color]
	db, dbOK := d.depthBuffers[fb.depth]
	if !texOK || !dbOK {
		return nil, nil, 0, 0, 0, fmt.Errorf("framebuffer %d lost an attachment: %w", id, ErrIncompleteFramebuffer)
	}
	return tex.view, db.view, colorFormat, tex.desc.Width, tex.desc.Height, nil
}

func (d *wgpuDevice) passDescriptor(color, depth *wgpu.TextureView, mask ClearMask) *wgpu.RenderPassDescriptor {
	colorLoad := wgpu.LoadOpLoad
	if mask&ClearColor != 0 {
		colorLoad = wgpu.LoadOpClear
	}
	depthLoad := wgpu.LoadOpLoad
	if mask&ClearDepth != 0 {
		depthLoad = wgpu.LoadOpClear
	}
	return &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       color,
				LoadOp:     colorLoad,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: d.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	}
}

func (d *wgpuDevice) submit(encoder *wgpu.CommandEncoder) error {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	return nil
}

func (d *wgpuDevice) Clear(mask ClearMask) {
	d.mu.Lock()
	defer d.mu.Unlock()

	color, depth, _, _, _, err := d.attachments(d.framebuffer)
	if err != nil {
		log.Printf("[Device] clear of framebuffer %d skipped: %v", d.framebuffer, err)
		return
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		log.Printf("[Device] clear of framebuffer %d skipped: %v", d.framebuffer, err)
		return
	}
	pass := encoder.BeginRenderPass(d.passDescriptor(color, depth, mask))
	pass.End()
	if err := d.submit(encoder); err != nil {
		log.Printf("[Device] clear of framebuffer %d failed: %v", d.framebuffer, err)
	}
}

func (d *wgpuDevice) UseProgram(id ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program = id
}

func (d *wgpuDevice) BindVertexArray(id VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vertexArray = id
}

func (d *wgpuDevice) BindTexture(unit int, id TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == 0 {
		delete(d.units, unit)
		return
	}
	d.units[unit] = id
}

// writeUniform copies raw bytes into a member of the current program's uniform staging.
func (d *wgpuDevice) writeUniform(loc Location, data []byte) {
	p, ok := d.programs[d.program]
	if !ok || !loc.Valid() || int(loc) >= len(p.slots) {
		return
	}
	s := p.slots[loc]
	if s.block < 0 {
		return
	}
	b := p.blocks[s.block]
	n := min(uint64(len(data)), s.size)
	copy(b.data[s.offset:s.offset+n], data[:n])
	b.dirty = true
}

func (d *wgpuDevice) Uniform1f(loc Location, v float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeUniform(loc, common.SliceToBytes([]float32{v}))
}

func (d *wgpuDevice) Uniform1i(loc Location, v int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[d.program]
	if ok && loc.Valid() && int(loc) < len(p.slots) && p.slots[loc].texture >= 0 {
		p.units[p.slots[loc].texture] = v
		return
	}
	d.writeUniform(loc, common.SliceToBytes([]int32{v}))
}

func (d *wgpuDevice) Uniform2f(loc Location, x, y float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeUniform(loc, common.SliceToBytes([]float32{x, y}))
}

func (d *wgpuDevice) Uniform3f(loc Location, x, y, z float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeUniform(loc, common.SliceToBytes([]float32{x, y, z}))
}

func (d *wgpuDevice) DrawArrays(mode Primitive, first, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[d.program]
	if !ok {
		return fmt.Errorf("draw: program %d: %w", d.program, ErrUnknownObject)
	}
	va, ok := d.vertexArrays[d.vertexArray]
	if !ok {
		return fmt.Errorf("draw: vertex array %d: %w", d.vertexArray, ErrUnknownObject)
	}
	buf, ok := d.buffers[va.layout.Buffer]
	if !ok {
		return fmt.Errorf("draw: vertex buffer %d: %w", va.layout.Buffer, ErrUnknownObject)
	}
	color, depth, format, width, height, err := d.attachments(d.framebuffer)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	rect, scale, offset := clipTransform(d.viewport, width, height)
	x, y, w, h := rect[0], rect[1], rect[2], rect[3]
	if w == 0 || h == 0 || count <= 0 {
		return nil
	}
	if loc, ok := p.uniforms[clipScaleUniform]; ok {
		d.writeUniform(loc, common.SliceToBytes(scale[:]))
	}
	if loc, ok := p.uniforms[clipOffsetUniform]; ok {
		d.writeUniform(loc, common.SliceToBytes(offset[:]))
	}

	rp, err := d.variant(p, pipeline.VariantKey{Format: format, Topology: primitiveTopology(mode), Layout: va.key}, va.buffers)
	if err != nil {
		return fmt.Errorf("draw: %s pipeline: %w", p.label, err)
	}

	groups := make([]*wgpu.BindGroup, p.pipeline.GroupCount())
	var transient []*wgpu.BindGroup
	defer func() {
		for _, bg := range transient {
			bg.Release()
		}
	}()
	for g := range groups {
		if bg, ok := p.staticGroups[g]; ok {
			groups[g] = bg
			continue
		}
		bg, err := d.createBindGroup(p, g)
		if err != nil {
			return fmt.Errorf("draw: %s: %w", p.label, err)
		}
		groups[g] = bg
		transient = append(transient, bg)
	}

	for _, b := range p.blocks {
		if b.dirty {
			d.queue.WriteBuffer(b.buffer, 0, b.data)
			b.dirty = false
		}
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	pass := encoder.BeginRenderPass(d.passDescriptor(color, depth, 0))
	pass.SetPipeline(rp)
	for i, bg := range groups {
		pass.SetBindGroup(uint32(i), bg, nil)
	}
	pass.SetVertexBuffer(0, buf, 0, wgpu.WholeSize)
	pass.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
	pass.Draw(uint32(count), 1, uint32(first), 0)
	pass.End()

	return d.submit(encoder)
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, p := range d.programs {
		d.releaseProgram(p)
		delete(d.programs, id)
	}
	for id, s := range d.shaders {
		s.deleted = true
		d.releaseShader(s)
		delete(d.shaders, id)
	}
	for id, t := range d.textures {
		t.sampler.Release()
		t.view.Release()
		t.texture.Release()
		delete(d.textures, id)
	}
	for id, db := range d.depthBuffers {
		db.view.Release()
		db.texture.Release()
		delete(d.depthBuffers, id)
	}
	for id, buf := range d.buffers {
		buf.Release()
		delete(d.buffers, id)
	}
	clear(d.framebuffers)
	clear(d.vertexArrays)
	clear(d.units)

	if d.frameView != nil {
		d.frameView.Release()
		d.frameSurface.Release()
		d.frameView, d.frameSurface = nil, nil
	}
	if d.surfaceDepthView != nil {
		d.surfaceDepthView.Release()
		d.surfaceDepth.Release()
		d.surfaceDepthView, d.surfaceDepth = nil, nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
