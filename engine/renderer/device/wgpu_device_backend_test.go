package device

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestClampViewport(t *testing.T) {
	tests := []struct {
		name          string
		vp            [4]int
		width, height int
		want          [4]int
	}{
		{name: "exact fit", vp: [4]int{0, 0, 400, 300}, width: 400, height: 300, want: [4]int{0, 0, 400, 300}},
		{name: "full size viewport on half target", vp: [4]int{0, 0, 800, 600}, width: 400, height: 300, want: [4]int{0, 0, 400, 300}},
		{name: "bottom-left quadrant", vp: [4]int{0, 0, 200, 150}, width: 400, height: 300, want: [4]int{0, 150, 200, 150}},
		{name: "negative origin", vp: [4]int{-10, -10, 20, 20}, width: 100, height: 100, want: [4]int{0, 90, 10, 10}},
		{name: "outside", vp: [4]int{500, 0, 10, 10}, width: 100, height: 100, want: [4]int{0, 0, 0, 0}},
		{name: "empty", vp: [4]int{0, 0, 0, 0}, width: 100, height: 100, want: [4]int{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := clampViewport(tt.vp, tt.width, tt.height)
			if got := [4]int{x, y, w, h}; got != tt.want {
				t.Errorf("clampViewport(%v, %d, %d) = %v, want %v", tt.vp, tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestClipTransform(t *testing.T) {
	tests := []struct {
		name          string
		vp            [4]int
		width, height int
		wantRect      [4]int
		wantScale     [2]float32
		wantOffset    [2]float32
	}{
		{name: "exact fit is identity", vp: [4]int{0, 0, 400, 300}, width: 400, height: 300,
			wantRect: [4]int{0, 0, 400, 300}, wantScale: [2]float32{1, 1}, wantOffset: [2]float32{0, 0}},
		{name: "full size viewport on half target", vp: [4]int{0, 0, 800, 600}, width: 400, height: 300,
			wantRect: [4]int{0, 0, 400, 300}, wantScale: [2]float32{2, 2}, wantOffset: [2]float32{1, 1}},
		{name: "inner quadrant is identity", vp: [4]int{0, 0, 200, 150}, width: 400, height: 300,
			wantRect: [4]int{0, 150, 200, 150}, wantScale: [2]float32{1, 1}, wantOffset: [2]float32{0, 0}},
		{name: "negative origin", vp: [4]int{-10, -10, 20, 20}, width: 100, height: 100,
			wantRect: [4]int{0, 90, 10, 10}, wantScale: [2]float32{2, 2}, wantOffset: [2]float32{-1, -1}},
		{name: "outside", vp: [4]int{500, 0, 10, 10}, width: 100, height: 100,
			wantRect: [4]int{0, 0, 0, 0}, wantScale: [2]float32{1, 1}, wantOffset: [2]float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect, scale, offset := clipTransform(tt.vp, tt.width, tt.height)
			if rect != tt.wantRect || scale != tt.wantScale || offset != tt.wantOffset {
				t.Errorf("clipTransform(%v, %d, %d) = %v, %v, %v, want %v, %v, %v",
					tt.vp, tt.width, tt.height, rect, scale, offset, tt.wantRect, tt.wantScale, tt.wantOffset)
			}
		})
	}
}

func TestClipTransformKeepsFullViewportMapping(t *testing.T) {
	// A corner of the quad must land on the pixel an 800x600 viewport puts it on, measured
	// from the bottom-left of the 400x300 target.
	_, scale, offset := clipTransform([4]int{0, 0, 800, 600}, 400, 300)
	for _, ndc := range []float32{-1, 0, 1} {
		clipped := ndc*scale[0] + offset[0]
		got := (clipped + 1) / 2 * 400
		want := (ndc + 1) / 2 * 800
		if got != want {
			t.Errorf("x = %v lands on pixel %v, want %v", ndc, got, want)
		}
	}
}

func TestLevelSize(t *testing.T) {
	tests := []struct {
		size, level, want int
	}{
		{256, 0, 256},
		{256, 3, 32},
		{256, 8, 1},
		{256, 12, 1},
		{5, 1, 2},
	}
	for _, tt := range tests {
		if got := levelSize(tt.size, tt.level); got != tt.want {
			t.Errorf("levelSize(%d, %d) = %d, want %d", tt.size, tt.level, got, tt.want)
		}
	}
}

func TestVertexBufferLayout(t *testing.T) {
	layout := VertexLayout{
		Buffer: 1,
		Stride: 20,
		Attributes: []VertexAttribute{
			{Location: 0, Components: 3, Offset: 0},
			{Location: 1, Components: 2, Offset: 12},
		},
	}
	bl, err := vertexBufferLayout(layout)
	if err != nil {
		t.Fatalf("vertexBufferLayout() error = %v", err)
	}
	if bl.ArrayStride != 20 || len(bl.Attributes) != 2 {
		t.Fatalf("vertexBufferLayout() = %+v, want stride 20 with 2 attributes", bl)
	}
	if bl.Attributes[1].Format != wgpu.VertexFormatFloat32x2 || bl.Attributes[1].Offset != 12 {
		t.Errorf("attribute 1 = %+v, want float32x2 at offset 12", bl.Attributes[1])
	}

	bad := []VertexLayout{
		{Stride: 0},
		{Stride: 20, Attributes: []VertexAttribute{{Location: 0, Components: 5}}},
		{Stride: 20, Attributes: []VertexAttribute{{Location: 0, Components: 3, Offset: 12}}},
	}
	for i, l := range bad {
		if _, err := vertexBufferLayout(l); err == nil {
			t.Errorf("vertexBufferLayout(bad[%d]) error = nil, want error", i)
		}
	}
}

func TestVertexLayoutKeyIgnoresAttributeOrder(t *testing.T) {
	a := []wgpu.VertexBufferLayout{{
		ArrayStride: 20,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
		},
	}}
	b := []wgpu.VertexBufferLayout{{
		ArrayStride: 20,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		},
	}}
	if vertexLayoutKey(a) != vertexLayoutKey(b) {
		t.Errorf("vertexLayoutKey() differs for reordered attributes: %q vs %q", vertexLayoutKey(a), vertexLayoutKey(b))
	}

	b[0].ArrayStride = 24
	if vertexLayoutKey(a) == vertexLayoutKey(b) {
		t.Errorf("vertexLayoutKey() equal for different strides")
	}
}

func TestSamplerStaging(t *testing.T) {
	static := samplerStaging(TextureDescriptor{
		Width: 256, Height: 256, MipLevels: 9,
		MinFilter: FilterNearest, MagFilter: FilterLinear, Mipmap: MipmapLinear,
		WrapS: WrapRepeat, WrapT: WrapRepeat,
	})
	if static.MinFilter != wgpu.FilterModeNearest || static.MagFilter != wgpu.FilterModeLinear {
		t.Errorf("static filters = %v/%v, want nearest/linear", static.MinFilter, static.MagFilter)
	}
	if static.MipmapFilter != wgpu.MipmapFilterModeLinear || static.LodMaxClamp != 9 {
		t.Errorf("static mip = %v up to %v, want linear up to 9", static.MipmapFilter, static.LodMaxClamp)
	}
	if static.AddressModeU != wgpu.AddressModeRepeat || static.AddressModeV != wgpu.AddressModeRepeat {
		t.Errorf("static wrap = %v/%v, want repeat", static.AddressModeU, static.AddressModeV)
	}

	target := samplerStaging(TextureDescriptor{
		Width: 400, Height: 300, MipLevels: 1, RenderTarget: true,
		WrapS: WrapClampToEdge, WrapT: WrapClampToEdge,
	})
	if target.LodMaxClamp != 0 {
		t.Errorf("render target LodMaxClamp = %v, want 0", target.LodMaxClamp)
	}
	if target.AddressModeU != wgpu.AddressModeClampToEdge {
		t.Errorf("render target wrap = %v, want clamp to edge", target.AddressModeU)
	}

	desc := samplerDescriptor("", target)
	if desc.Label != "texture Sampler" || desc.MaxAnisotropy != 1 {
		t.Errorf("samplerDescriptor() = %q anisotropy %d, want %q anisotropy 1", desc.Label, desc.MaxAnisotropy, "texture Sampler")
	}
}

func TestUniformBufferSize(t *testing.T) {
	tests := []struct{ in, want uint64 }{
		{0, 16}, {4, 16}, {16, 16}, {17, 32}, {80, 80},
	}
	for _, tt := range tests {
		if got := uniformBufferSize(tt.in); got != tt.want {
			t.Errorf("uniformBufferSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
