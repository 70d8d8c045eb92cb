package pipeline

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// VariantKey identifies one compiled render pipeline of a linked program. A program is linked
// once, but WebGPU bakes the color format, the primitive topology and the vertex buffer
// layout into the pipeline object, so each combination used at draw time gets its own variant.
type VariantKey struct {
	Format   wgpu.TextureFormat
	Topology wgpu.PrimitiveTopology
	Layout   string
}

// DepthFormat is the depth attachment format of every render target and the surface.
const DepthFormat = wgpu.TextureFormatDepth24Plus

func (k VariantKey) String() string {
	return fmt.Sprintf("%v/%v/%s", k.Format, k.Topology, k.Layout)
}

type pipeline struct {
	pipelineKey string

	vertexShader, fragmentShader shader.Shader

	pipelineLayout   *wgpu.PipelineLayout
	bindGroupLayouts []*wgpu.BindGroupLayout
	variants         map[VariantKey]*wgpu.RenderPipeline
}

// Pipeline is a linked vertex + fragment program. It owns the pipeline layout shared by all
// of its variants and the render pipelines compiled for each VariantKey.
type Pipeline interface {
	// PipelineKey returns the label the pipeline was created with.
	PipelineKey() string

	// Shader returns the stage of the given type, or nil if not set.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the stage, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// MergedBindGroupLayouts combines the bind group layouts reflected from both stages.
	// Entries declared by both stages have their visibility ORed.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged layouts keyed by group index
	MergedBindGroupLayouts() map[int]wgpu.BindGroupLayoutDescriptor

	// SetLayout stores the pipeline layout and the per-group bind group layouts it was built from.
	//
	// Parameters:
	//   - layout: the pipeline layout
	//   - groups: bind group layouts indexed by group
	SetLayout(layout *wgpu.PipelineLayout, groups []*wgpu.BindGroupLayout)

	// Layout returns the pipeline layout, or nil before SetLayout.
	Layout() *wgpu.PipelineLayout

	// BindGroupLayout returns the layout of a group, or nil if the program declares none.
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// GroupCount returns the number of bind group slots in the pipeline layout.
	GroupCount() int

	// Variant returns a previously compiled variant.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the variant, or nil
	//   - bool: true if the variant exists
	Variant(key VariantKey) (*wgpu.RenderPipeline, bool)

	// SetVariant stores a compiled variant.
	SetVariant(key VariantKey, p *wgpu.RenderPipeline)

	// VariantCount returns the number of compiled variants.
	VariantCount() int

	// Descriptor builds the render pipeline descriptor of a variant. Every pass draws an
	// opaque fullscreen quad, so depth testing, blending and culling are off.
	//
	// Parameters:
	//   - key: the variant to describe
	//   - vertex: the compiled vertex module
	//   - fragment: the compiled fragment module
	//   - buffers: the vertex buffer layouts fed at draw time
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor, with Layout set to the pipeline layout
	Descriptor(key VariantKey, vertex, fragment *wgpu.ShaderModule, buffers []wgpu.VertexBufferLayout) *wgpu.RenderPipelineDescriptor

	// Release frees every variant, the pipeline layout and the bind group layouts.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a program from its stages. GPU objects are created later by the device.
//
// Parameters:
//   - pipelineKey: a label used for the created GPU objects
//   - opts: options applied in order
//
// Returns:
//   - Pipeline: the configured pipeline
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		variants:    make(map[VariantKey]*wgpu.RenderPipeline),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) MergedBindGroupLayouts() map[int]wgpu.BindGroupLayoutDescriptor {
	var vertex, fragment map[int]wgpu.BindGroupLayoutDescriptor
	if p.vertexShader != nil {
		vertex = p.vertexShader.BindGroupLayoutDescriptors()
	}
	if p.fragmentShader != nil {
		fragment = p.fragmentShader.BindGroupLayoutDescriptors()
	}
	merged := mergeBindGroupLayouts(vertex, fragment)
	for g, desc := range merged {
		desc.Label = fmt.Sprintf("%s group %d", p.pipelineKey, g)
		merged[g] = desc
	}
	return merged
}

func (p *pipeline) SetLayout(layout *wgpu.PipelineLayout, groups []*wgpu.BindGroupLayout) {
	p.pipelineLayout = layout
	p.bindGroupLayouts = groups
}

func (p *pipeline) Layout() *wgpu.PipelineLayout {
	return p.pipelineLayout
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) GroupCount() int {
	return len(p.bindGroupLayouts)
}

func (p *pipeline) Variant(key VariantKey) (*wgpu.RenderPipeline, bool) {
	rp, ok := p.variants[key]
	return rp, ok
}

func (p *pipeline) SetVariant(key VariantKey, rp *wgpu.RenderPipeline) {
	p.variants[key] = rp
}

func (p *pipeline) VariantCount() int {
	return len(p.variants)
}

func (p *pipeline) Descriptor(key VariantKey, vertex, fragment *wgpu.ShaderModule, buffers []wgpu.VertexBufferLayout) *wgpu.RenderPipelineDescriptor {
	var vertexEntry, fragmentEntry string
	if p.vertexShader != nil {
		vertexEntry = p.vertexShader.EntryPoint()
	}
	if p.fragmentShader != nil {
		fragmentEntry = p.fragmentShader.EntryPoint()
	}

	// Render targets carry a depth attachment, so the pipeline declares its format even
	// though nothing is tested against it.
	return &wgpu.RenderPipelineDescriptor{
		Label:  p.pipelineKey + " " + key.String(),
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vertex,
			EntryPoint: vertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fragment,
			EntryPoint: fragmentEntry,
			Targets:    []wgpu.ColorTargetState{{Format: key.Format, WriteMask: wgpu.ColorWriteMaskAll}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  key.Topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		DepthStencil: &wgpu.DepthStencilState{
			Format:       DepthFormat,
			DepthCompare: wgpu.CompareFunctionAlways,
			StencilFront: wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:  wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	}
}

func (p *pipeline) Release() {
	for key, rp := range p.variants {
		if rp != nil {
			rp.Release()
		}
		delete(p.variants, key)
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	for _, bgl := range p.bindGroupLayouts {
		if bgl != nil {
			bgl.Release()
		}
	}
	p.bindGroupLayouts = nil
}

// mergeBindGroupLayouts combines per-stage bind group layout descriptors into one set
// suitable for a pipeline layout.
//
// For each group index present in either stage:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one stage keep their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex stage
//   - fragmentLayouts: bind group layout descriptors from the fragment stage
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groups := make(map[int]bool)
	for g := range vertexLayouts {
		groups[g] = true
	}
	for g := range fragmentLayouts {
		groups[g] = true
	}

	for g := range groups {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			byBinding := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				byBinding[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := byBinding[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					byBinding[e.Binding] = existing
				} else {
					byBinding[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(byBinding))
			for _, e := range byBinding {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})
			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
