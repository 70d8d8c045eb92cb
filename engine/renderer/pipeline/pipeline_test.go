package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func glassStages(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	vsSrc, err := shader.Load(shader.SourceFullscreenVertex)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	fsSrc, err := shader.Load(shader.SourceGlassFragment)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, vsSrc)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, fsSrc)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	return vs, fs
}

func TestDescriptorDefaults(t *testing.T) {
	vs, fs := glassStages(t)
	p := NewPipeline("composite", WithVertexShader(vs), WithFragmentShader(fs))

	key := VariantKey{Format: wgpu.TextureFormatBGRA8Unorm, Topology: wgpu.PrimitiveTopologyTriangleStrip, Layout: "20:0/3/0,1/2/12"}
	desc := p.Descriptor(key, nil, nil, nil)

	if desc.Vertex.EntryPoint != "vs_main" || desc.Fragment.EntryPoint != "fs_main" {
		t.Errorf("entry points = %q, %q, want vs_main, fs_main", desc.Vertex.EntryPoint, desc.Fragment.EntryPoint)
	}
	if desc.Primitive.Topology != wgpu.PrimitiveTopologyTriangleStrip {
		t.Errorf("Topology = %v, want triangle strip", desc.Primitive.Topology)
	}
	if got := desc.Fragment.Targets[0].Format; got != wgpu.TextureFormatBGRA8Unorm {
		t.Errorf("target format = %v, want %v", got, wgpu.TextureFormatBGRA8Unorm)
	}
	if desc.Fragment.Targets[0].Blend != nil {
		t.Errorf("Blend = %+v, want nil", desc.Fragment.Targets[0].Blend)
	}
	if desc.DepthStencil.Format != DepthFormat {
		t.Errorf("depth format = %v, want %v", desc.DepthStencil.Format, DepthFormat)
	}
	if desc.DepthStencil.DepthCompare != wgpu.CompareFunctionAlways || desc.DepthStencil.DepthWriteEnabled {
		t.Errorf("depth state = %+v, want compare always without writes", desc.DepthStencil)
	}
	if desc.Primitive.CullMode != wgpu.CullModeNone {
		t.Errorf("CullMode = %v, want none", desc.Primitive.CullMode)
	}
}

func TestMergedBindGroupLayouts(t *testing.T) {
	vs, fs := glassStages(t)
	p := NewPipeline("composite", WithVertexShader(vs), WithFragmentShader(fs))

	merged := p.MergedBindGroupLayouts()
	if len(merged) != 3 {
		t.Fatalf("MergedBindGroupLayouts() has %d groups, want 3", len(merged))
	}
	if e := merged[2].Entries; len(e) != 1 || e[0].Visibility != wgpu.ShaderStageVertex {
		t.Errorf("group 2 entries = %+v, want the vertex clip transform", e)
	}
	if n := len(merged[1].Entries); n != 2 {
		t.Errorf("group 1 has %d entries, want 2", n)
	}
	if merged[0].Label != "composite group 0" {
		t.Errorf("group 0 label = %q, want %q", merged[0].Label, "composite group 0")
	}
}

func TestMergeBindGroupLayoutsOrsVisibility(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	entries := merged[0].Entries
	if len(entries) != 2 || entries[0].Binding != 0 || entries[1].Binding != 1 {
		t.Fatalf("entries = %+v, want bindings 0 and 1 in order", entries)
	}
	want := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if entries[1].Visibility != want {
		t.Errorf("binding 1 visibility = %v, want %v", entries[1].Visibility, want)
	}
}

func TestVariantCache(t *testing.T) {
	p := NewPipeline("cache")
	key := VariantKey{Format: wgpu.TextureFormatRGBA8Unorm, Topology: wgpu.PrimitiveTopologyTriangleStrip}
	if _, ok := p.Variant(key); ok {
		t.Fatalf("Variant() found an entry in a new pipeline")
	}
	p.SetVariant(key, nil)
	if _, ok := p.Variant(key); !ok || p.VariantCount() != 1 {
		t.Errorf("Variant() after SetVariant = _, %v (count %d), want true (1)", ok, p.VariantCount())
	}
	p.Release()
	if p.VariantCount() != 0 {
		t.Errorf("VariantCount() after Release = %d, want 0", p.VariantCount())
	}
	if p.BindGroupLayout(0) != nil || p.GroupCount() != 0 {
		t.Errorf("Release() left bind group layouts behind")
	}
}
