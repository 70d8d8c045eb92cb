package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	structRegex     = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	attributeRegex  = regexp.MustCompile(`@(\w+)(?:\(\s*([^)]*?)\s*\))?`)
	entryPointRegex = regexp.MustCompile(`(?s)@(vertex|fragment)\b.*?\bfn\s+(\w+)`)

	// declRegex matches `@group(g) @binding(b) var<space> name: type;`, the address space
	// being absent for samplers and textures.
	declRegex = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<\s*([^>]*?)\s*>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

type member struct {
	name     string
	typ      string
	location int // -1 without @location
	builtin  bool
}

type structDecl struct {
	name    string
	members []member
}

// vertexInput reports whether every member is a @location attribute, which is how a vertex
// buffer struct differs from the stage's varyings.
func (s structDecl) vertexInput() bool {
	for _, f := range s.members {
		if f.builtin || f.location < 0 {
			return false
		}
	}
	return len(s.members) > 0
}

type declaration struct {
	group   int
	binding int
	space   string
	name    string
	typ     string
}

// module is a WGSL source with comments removed and its structs and resource declarations
// listed in source order.
type module struct {
	source  string
	order   []string
	structs map[string]structDecl
	decls   []declaration
}

func parseModule(source string) *module {
	m := &module{source: stripComments(source), structs: make(map[string]structDecl)}

	for _, match := range structRegex.FindAllStringSubmatch(m.source, -1) {
		s := structDecl{name: match[1]}
		for _, field := range splitTopLevel(match[2]) {
			if f, ok := parseMember(field); ok {
				s.members = append(s.members, f)
			}
		}
		m.order = append(m.order, s.name)
		m.structs[s.name] = s
	}

	for _, match := range declRegex.FindAllStringSubmatch(m.source, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		m.decls = append(m.decls, declaration{
			group:   group,
			binding: binding,
			space:   strings.ReplaceAll(match[3], " ", ""),
			name:    match[4],
			typ:     match[5],
		})
	}
	return m
}

// parseMember reads `@location(0) uv: vec2f` style fields.
func parseMember(field string) (member, bool) {
	f := member{location: -1}
	for _, attr := range attributeRegex.FindAllStringSubmatch(field, -1) {
		switch attr[1] {
		case "location":
			if n, err := strconv.Atoi(attr[2]); err == nil {
				f.location = n
			}
		case "builtin":
			f.builtin = true
		}
	}
	name, typ, ok := strings.Cut(attributeRegex.ReplaceAllString(field, ""), ":")
	if !ok {
		return f, false
	}
	f.name, f.typ = strings.TrimSpace(name), strings.TrimSpace(typ)
	return f, f.name != "" && f.typ != ""
}

// splitTopLevel splits a struct body at commas outside angle brackets and parentheses, so
// array<f32, 4> stays one field.
func splitTopLevel(body string) []string {
	var fields []string
	depth, start := 0, 0
	for i, r := range body {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, body[start:i])
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(body[start:]); tail != "" {
		fields = append(fields, tail)
	}
	return fields
}

// stripComments removes line comments and nested block comments, keeping newlines.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(rest, "*/"):
			depth--
			i++
		case depth > 0:
			if src[i] == '\n' {
				sb.WriteByte('\n')
			}
		case strings.HasPrefix(rest, "//"):
			nl := strings.IndexByte(rest, '\n')
			if nl < 0 {
				return sb.String()
			}
			i += nl - 1
		default:
			sb.WriteByte(src[i])
		}
	}
	return sb.String()
}

func (m *module) entryPoint(stage ShaderType) string {
	want := strings.TrimPrefix(stage.String(), "@")
	for _, match := range entryPointRegex.FindAllStringSubmatch(m.source, -1) {
		if match[1] == want {
			return match[2]
		}
	}
	return ""
}

// vertexLayouts builds one buffer layout per vertex input struct, attributes packed in
// member order.
func (m *module) vertexLayouts() map[int][]wgpu.VertexBufferLayout {
	layouts := make(map[int][]wgpu.VertexBufferLayout)
	for _, name := range m.order {
		s := m.structs[name]
		if !s.vertexInput() {
			continue
		}
		layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
		ok := true
		for _, f := range s.members {
			format, size, known := vertexFormat(f.typ)
			if !known {
				ok = false
				break
			}
			layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
				Format:         format,
				Offset:         layout.ArrayStride,
				ShaderLocation: uint32(f.location),
			})
			layout.ArrayStride += size
		}
		if ok {
			layouts[len(layouts)] = []wgpu.VertexBufferLayout{layout}
		}
	}
	return layouts
}

func (m *module) vertexInputs() []VertexInput {
	var inputs []VertexInput
	for _, name := range m.order {
		s := m.structs[name]
		if !s.vertexInput() {
			continue
		}
		for _, f := range s.members {
			if format, _, ok := vertexFormat(f.typ); ok {
				inputs = append(inputs, VertexInput{Name: f.name, Location: uint32(f.location), Format: format})
			}
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	return inputs
}

// bindGroupLayouts returns a layout per group with entries sorted by binding, and the
// declared variable name of every binding.
func (m *module) bindGroupLayouts(visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)
	for _, d := range m.decls {
		entries[d.group] = append(entries[d.group], m.layoutEntry(d, visibility))
		if names[d.group] == nil {
			names[d.group] = make(map[int]string)
		}
		names[d.group][d.binding] = d.name
	}

	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for g, list := range entries {
		sort.Slice(list, func(i, j int) bool { return list[i].Binding < list[j].Binding })
		layouts[g] = wgpu.BindGroupLayoutDescriptor{Entries: list}
	}
	return layouts, names
}

func (m *module) layoutEntry(d declaration, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: uint32(d.binding), Visibility: visibility}
	switch {
	case d.space == "uniform":
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		if l, ok := m.layoutOf(d.typ, nil); ok {
			e.Buffer.MinBindingSize = l.size
		}
	case d.space == "storage,read_write":
		e.Buffer.Type = wgpu.BufferBindingTypeStorage
	case strings.HasPrefix(d.space, "storage"):
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case d.typ == "sampler":
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case d.typ == "sampler_comparison":
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(d.typ, "texture_"):
		e.Texture = textureLayout(d.typ)
	}
	return e
}

// textureLayout reads the dimension and sample type out of a texture_* type name.
func textureLayout(typ string) wgpu.TextureBindingLayout {
	base, param, _ := strings.Cut(typ, "<")
	param = strings.TrimSuffix(strings.TrimSpace(param), ">")

	t := wgpu.TextureBindingLayout{
		ViewDimension: wgpu.TextureViewDimension2D,
		Multisampled:  strings.Contains(base, "multisampled"),
	}
	switch {
	case strings.HasSuffix(base, "_cube_array"):
		t.ViewDimension = wgpu.TextureViewDimensionCubeArray
	case strings.HasSuffix(base, "_cube"):
		t.ViewDimension = wgpu.TextureViewDimensionCube
	case strings.HasSuffix(base, "_2d_array"):
		t.ViewDimension = wgpu.TextureViewDimension2DArray
	case strings.HasSuffix(base, "_3d"):
		t.ViewDimension = wgpu.TextureViewDimension3D
	case strings.HasSuffix(base, "_1d"):
		t.ViewDimension = wgpu.TextureViewDimension1D
	}

	switch {
	case strings.HasPrefix(base, "texture_depth"):
		t.SampleType = wgpu.TextureSampleTypeDepth
	case param == "i32":
		t.SampleType = wgpu.TextureSampleTypeSint
	case param == "u32":
		t.SampleType = wgpu.TextureSampleTypeUint
	default:
		t.SampleType = wgpu.TextureSampleTypeFloat
	}
	return t
}

// uniformBlocks lays out every var<uniform> whose type is a struct declared in the module.
func (m *module) uniformBlocks() []UniformBlock {
	var blocks []UniformBlock
	for _, d := range m.decls {
		s, ok := m.structs[d.typ]
		if d.space != "uniform" || !ok {
			continue
		}
		members, l, ok := m.structLayout(s, nil)
		if !ok {
			continue
		}
		blocks = append(blocks, UniformBlock{
			Group:   d.group,
			Binding: d.binding,
			VarName: d.name,
			Type:    d.typ,
			Size:    l.size,
			Members: members,
		})
	}
	return blocks
}

// textureBindings pairs each texture with the "<texture>Sampler" declared in the same group.
func (m *module) textureBindings() []TextureBinding {
	samplers := make(map[int]map[string]int)
	for _, d := range m.decls {
		if d.typ != "sampler" {
			continue
		}
		if samplers[d.group] == nil {
			samplers[d.group] = make(map[string]int)
		}
		samplers[d.group][d.name] = d.binding
	}

	var bindings []TextureBinding
	for _, d := range m.decls {
		if d.space != "" || !strings.HasPrefix(d.typ, "texture_") {
			continue
		}
		tb := TextureBinding{Name: d.name, Group: d.group, Binding: d.binding, SamplerBinding: -1}
		if b, ok := samplers[d.group][d.name+"Sampler"]; ok {
			tb.SamplerBinding = b
		}
		bindings = append(bindings, tb)
	}
	return bindings
}
