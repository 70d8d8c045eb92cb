// Package shader holds the embedded WGSL programs, expands their @oxy: annotations and
// reflects entry points, vertex inputs, bind groups and uniform layouts from the source.
package shader

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/structs/varyings.wgsl
var varyingsSource string

//go:embed assets/structs/vertex_input.wgsl
var vertexInputSource string

//go:embed assets/structs/cloud_uniforms.wgsl
var cloudUniformsSource string

//go:embed assets/structs/glass_uniforms.wgsl
var glassUniformsSource string

//go:embed assets/structs/clip_transform.wgsl
var clipTransformSource string

//go:embed assets/fullscreen.vert.wgsl
var fullscreenVertexSource string

//go:embed assets/clouds.frag.wgsl
var cloudsFragmentSource string

//go:embed assets/glass.frag.wgsl
var glassFragmentSource string

// ShaderType identifies the pipeline stage a shader is written for.
type ShaderType int

const (
	// ShaderTypeVertex is a vertex stage, entry point marked @vertex.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is a fragment stage, entry point marked @fragment.
	ShaderTypeFragment
)

// ProgramSource names one of the embedded programs.
type ProgramSource string

const (
	// SourceFullscreenVertex maps the quad to clip space through the device's viewport
	// transform. Shared by both passes.
	SourceFullscreenVertex ProgramSource = "fullscreen.vert"

	// SourceCloudsFragment renders the raymarched cloud layer.
	SourceCloudsFragment ProgramSource = "clouds.frag"

	// SourceGlassFragment composites the cloud layer through the dispersive glass shape.
	SourceGlassFragment ProgramSource = "glass.frag"
)

var programSources = map[ProgramSource]string{
	SourceFullscreenVertex: fullscreenVertexSource,
	SourceCloudsFragment:   cloudsFragmentSource,
	SourceGlassFragment:    glassFragmentSource,
}

// Load returns the pre-processed WGSL text of an embedded program.
//
// Parameters:
//   - name: the embedded program to load
//
// Returns:
//   - string: WGSL with every annotation expanded
//   - error: an error if the program is unknown or an annotation is malformed
func Load(name ProgramSource) (string, error) {
	src, ok := programSources[name]
	if !ok {
		return "", fmt.Errorf("shader: unknown program %q", name)
	}
	out, err := NewPreProcessor().Process(src)
	if err != nil {
		return "", fmt.Errorf("shader: pre-processing %s: %w", name, err)
	}
	return out, nil
}

// UniformMember is one field of a uniform struct, located by byte offset inside its buffer.
type UniformMember struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// UniformBlock is a var<uniform> binding whose type is a struct.
type UniformBlock struct {
	Group   int
	Binding int
	VarName string
	Type    string
	Size    uint64
	Members []UniformMember
}

// TextureBinding is a sampled texture together with the sampler declared next to it. The
// sampler is found by the "<texture>Sampler" naming convention; SamplerBinding is -1 when the
// program declares no matching sampler.
type TextureBinding struct {
	Name           string
	Group          int
	Binding        int
	SamplerBinding int
}

// VertexInput is a single @location input of the vertex entry point.
type VertexInput struct {
	Name     string
	Location uint32
	Format   wgpu.VertexFormat
}

type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              map[int][]wgpu.VertexBufferLayout
	vertexInputs               []VertexInput
	uniformBlocks              []UniformBlock
	textureBindings            []TextureBinding
	entryPoint                 string
	declarations               []Annotation
}

// Shader is a pre-processed WGSL stage together with everything reflected from its source.
type Shader interface {
	// Key returns the label the shader was created with.
	Key() string

	// Source returns the pre-processed WGSL source.
	Source() string

	// ShaderType returns the stage the shader was reflected for.
	ShaderType() ShaderType

	// EntryPoint returns the name of the stage's entry point function.
	EntryPoint() string

	// BindGroupLayoutDescriptors returns the reflected bind group layouts keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: layouts with this stage's visibility
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the WGSL variable declared at a group and binding, or "".
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName looks a binding up by variable name within a group.
	//
	// Returns:
	//   - int: the binding index, or -1
	//   - bool: true if found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// VertexLayouts returns the buffer layouts derived from vertex input structs.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// VertexInputs returns the entry point's @location inputs, sorted by location.
	VertexInputs() []VertexInput

	// UniformBlocks returns every struct-typed uniform buffer binding with member offsets.
	UniformBlocks() []UniformBlock

	// TextureBindings returns every sampled texture binding with its paired sampler.
	TextureBindings() []TextureBinding

	// Declarations returns the @oxy:group annotations found in the source.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and reflects a WGSL stage.
//
// Parameters:
//   - key: a label used in diagnostics
//   - shaderType: the stage the source is written for
//   - source: the WGSL source, annotated or already expanded
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if pre-processing fails or the entry point is missing
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		declarations: append([]Annotation(nil), pp.Declarations()...),
	}

	m := parseModule(processed)
	s.entryPoint = m.entryPoint(shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no %s entry point", key, shaderType)
	}

	visibility := wgpu.ShaderStageFragment
	s.vertexLayouts = make(map[int][]wgpu.VertexBufferLayout)
	if shaderType == ShaderTypeVertex {
		visibility = wgpu.ShaderStageVertex
		s.vertexLayouts = m.vertexLayouts()
		s.vertexInputs = m.vertexInputs()
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = m.bindGroupLayouts(visibility)
	s.uniformBlocks = m.uniformBlocks()
	s.textureBindings = m.textureBindings()

	return s, nil
}

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "@vertex"
	case ShaderTypeFragment:
		return "@fragment"
	default:
		return "unknown"
	}
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) VertexInputs() []VertexInput {
	return s.vertexInputs
}

func (s *shader) UniformBlocks() []UniformBlock {
	return s.uniformBlocks
}

func (s *shader) TextureBindings() []TextureBinding {
	return s.textureBindings
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
