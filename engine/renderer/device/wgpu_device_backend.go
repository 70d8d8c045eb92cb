package device

import (
	"cmp"
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// colorFormat is the format of every texture created through the device.
const colorFormat = wgpu.TextureFormatRGBA8Unorm

const depthFormat = pipeline.DepthFormat

// clampViewport converts a viewport given with a bottom-left origin into the top-left origin
// used by render passes and clips it to the attachment. A viewport larger than its attachment
// is not an error; the part outside is dropped.
//
// Parameters:
//   - vp: x, y, width, height with y measured from the bottom edge
//   - width, height: the attachment size
//
// Returns:
//   - x, y, w, h: the clipped rectangle with y measured from the top edge; w or h is zero
//     when nothing of the viewport is inside the attachment
func clampViewport(vp [4]int, width, height int) (x, y, w, h int) {
	top := height - (vp[1] + vp[3])
	x0 := max(vp[0], 0)
	y0 := max(top, 0)
	x1 := min(vp[0]+vp[2], width)
	y1 := min(top+vp[3], height)
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, 0, 0
	}
	return x0, y0, x1 - x0, y1 - y0
}

// clipTransform maps a viewport that may extend past its attachment onto the clipped rectangle
// clampViewport returns. Render passes only accept viewports inside the attachment, so the
// vertex stage applies scale and offset to clip-space x and y to land each vertex on the same
// pixel the unclipped viewport would have.
//
// Parameters:
//   - vp: x, y, width, height with y measured from the bottom edge
//   - width, height: the attachment size
//
// Returns:
//   - rect: the clipped rectangle, as clampViewport returns it
//   - scale, offset: the clip-space transform; identity when vp fits the attachment
func clipTransform(vp [4]int, width, height int) (rect [4]int, scale, offset [2]float32) {
	x, y, w, h := clampViewport(vp, width, height)
	rect = [4]int{x, y, w, h}
	if w == 0 || h == 0 {
		return rect, [2]float32{1, 1}, [2]float32{}
	}
	bottom := height - (y + h)
	axis := func(origin, size, clippedOrigin, clippedSize int) (float32, float32) {
		s := float32(size) / float32(clippedSize)
		o := float32(2*(origin-clippedOrigin)+size)/float32(clippedSize) - 1
		return s, o
	}
	scale[0], offset[0] = axis(vp[0], vp[2], x, w)
	scale[1], offset[1] = axis(vp[1], vp[3], bottom, h)
	return rect, scale, offset
}

// levelSize returns the extent of a mip level.
func levelSize(size, level int) int {
	return max(1, size>>level)
}

// vertexFormat maps a float vector width to its vertex format.
func vertexFormat(components int) (wgpu.VertexFormat, bool) {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32, true
	case 2:
		return wgpu.VertexFormatFloat32x2, true
	case 3:
		return wgpu.VertexFormatFloat32x3, true
	case 4:
		return wgpu.VertexFormatFloat32x4, true
	default:
		return 0, false
	}
}

// primitiveTopology maps a draw mode to its primitive topology.
func primitiveTopology(mode Primitive) wgpu.PrimitiveTopology {
	if mode == TriangleList {
		return wgpu.PrimitiveTopologyTriangleList
	}
	return wgpu.PrimitiveTopologyTriangleStrip
}

// vertexBufferLayout converts a vertex layout into the buffer layout a render pipeline is
// compiled against.
//
// Parameters:
//   - layout: the layout recorded by CreateVertexArray
//
// Returns:
//   - wgpu.VertexBufferLayout: the buffer layout
//   - error: an error if an attribute has an unsupported width or the stride is not positive
func vertexBufferLayout(layout VertexLayout) (wgpu.VertexBufferLayout, error) {
	if layout.Stride <= 0 {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("vertex stride %d must be positive", layout.Stride)
	}
	attrs := make([]wgpu.VertexAttribute, 0, len(layout.Attributes))
	for _, a := range layout.Attributes {
		format, ok := vertexFormat(a.Components)
		if !ok {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("attribute %d: unsupported component count %d", a.Location, a.Components)
		}
		if a.Offset < 0 || a.Offset+a.Components*4 > layout.Stride {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("attribute %d: offset %d outside stride %d", a.Location, a.Offset, layout.Stride)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(layout.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

// vertexLayoutKey builds the variant key component for a set of vertex buffer layouts.
// Attribute order does not matter; two layouts feeding the same locations with the same
// formats, offsets and strides share a key.
func vertexLayoutKey(buffers []wgpu.VertexBufferLayout) string {
	var sb strings.Builder
	for i, b := range buffers {
		if i > 0 {
			sb.WriteByte('|')
		}
		attrs := append([]wgpu.VertexAttribute(nil), b.Attributes...)
		sort.Slice(attrs, func(i, j int) bool {
			return attrs[i].ShaderLocation < attrs[j].ShaderLocation
		})
		fmt.Fprintf(&sb, "%d:", b.ArrayStride)
		for j, a := range attrs {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%d/%d/%d", a.ShaderLocation, a.Format, a.Offset)
		}
	}
	return sb.String()
}

func filterMode(f FilterMode) wgpu.FilterMode {
	if f == FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func addressMode(w WrapMode) wgpu.AddressMode {
	if w == WrapClampToEdge {
		return wgpu.AddressModeClampToEdge
	}
	return wgpu.AddressModeRepeat
}

// samplerStaging translates a texture descriptor's sampling state into sampler staging data.
// MipmapNone pins sampling to the base level.
func samplerStaging(desc TextureDescriptor) common.SamplerStagingData {
	levels := max(1, desc.MipLevels)
	staging := common.SamplerStagingData{
		AddressModeU:  addressMode(desc.WrapS),
		AddressModeV:  addressMode(desc.WrapT),
		AddressModeW:  addressMode(desc.WrapS),
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   float32(levels),
		MaxAnisotropy: 1,
	}
	switch desc.Mipmap {
	case MipmapNone:
		staging.LodMaxClamp = 0
	case MipmapLinear:
		staging.MipmapFilter = wgpu.MipmapFilterModeLinear
	}
	return staging
}

// samplerDescriptor builds the sampler of a texture from its staging data.
func samplerDescriptor(label string, staging common.SamplerStagingData) *wgpu.SamplerDescriptor {
	return &wgpu.SamplerDescriptor{
		Label:         cmp.Or(label, "texture") + " Sampler",
		AddressModeU:  staging.AddressModeU,
		AddressModeV:  staging.AddressModeV,
		AddressModeW:  staging.AddressModeW,
		MagFilter:     staging.MagFilter,
		MinFilter:     staging.MinFilter,
		MipmapFilter:  staging.MipmapFilter,
		LodMinClamp:   staging.LodMinClamp,
		LodMaxClamp:   staging.LodMaxClamp,
		MaxAnisotropy: cmp.Or(staging.MaxAnisotropy, 1),
	}
}

// uniformBufferSize rounds a uniform block up to the 16 byte granularity uniform bindings use.
func uniformBufferSize(size uint64) uint64 {
	return max(16, (size+15)&^15)
}
